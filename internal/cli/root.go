package cli

import (
	"github.com/spf13/cobra"
)

func NewCmdRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "kevfeed <command>",
		Short:         "CISA Known Exploited Vulnerabilities as RSS",
		Long:          "Serve the CISA Known Exploited Vulnerabilities catalog as an RSS feed, backed by a cache of the upstream JSON.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.AddCommand(
		newCmdServe(),
		newCmdRefresh(),
		newCmdToken(),
		newCmdVersion(),
	)

	return cmd
}
