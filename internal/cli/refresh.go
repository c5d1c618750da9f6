package cli

import (
	"context"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"kevfeed/internal/catalog"
	"kevfeed/internal/config"
	"kevfeed/internal/feed"
	"kevfeed/internal/tlog"
)

const refreshTimeout = 2 * time.Minute

type refreshOptions struct {
	config string
}

func newCmdRefresh() *cobra.Command {
	opts := &refreshOptions{}

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the catalog once and overwrite the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.config)
			if err != nil {
				return errors.Wrap(err, "load config")
			}
			return runRefresh(cmd, cfg)
		},
		Example: heredoc.Doc(`
			$ kevfeed refresh
			$ kevfeed refresh --config /etc/kevfeed/config.yaml
			$ KEVFEED_CACHE_TYPE=boltdb KEVFEED_CACHE_PATH=kev.db kevfeed refresh
		`),
	}

	cmd.Flags().StringVarP(&opts.config, "config", "c", "", "config file path (default: $KEVFEED_CONFIG)")

	return cmd
}

func runRefresh(cmd *cobra.Command, cfg config.Config) error {
	logger := tlog.NewWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogColor)

	store, err := cfg.CacheStoreConfig().New()
	if err != nil {
		return errors.Wrap(err, "open cache")
	}
	defer store.Close()

	fetcher := catalog.NewFetcher(logger, catalog.WithURL(cfg.UpstreamURL))
	svc := feed.NewService(store, fetcher, logger, 0)

	ctx, cancel := context.WithTimeout(cmd.Context(), refreshTimeout)
	defer cancel()

	if err := svc.Refresh(ctx); err != nil {
		return errors.Wrap(err, "refresh")
	}
	return nil
}
