package cli

import (
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"kevfeed/internal/auth"
)

type tokenOptions struct {
	token string
}

func newCmdToken() *cobra.Command {
	opts := &tokenOptions{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate a refresh token and its bcrypt hash",
		Long:  "Generate a bearer token for POST /admin/refresh together with the bcrypt hash to set as refresh_token_hash.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token := opts.token
			if token == "" {
				t, err := auth.GenerateToken()
				if err != nil {
					return errors.Wrap(err, "generate token")
				}
				token = t
			}

			hash, err := auth.HashToken(token)
			if err != nil {
				return errors.Wrap(err, "hash token")
			}

			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "token: %s\nhash:  %s\n", token, hash); err != nil {
				return errors.Wrap(err, "token")
			}
			return nil
		},
		Example: heredoc.Doc(`
			$ kevfeed token
			$ kevfeed token --token "$(cat refresh-token.txt)"
		`),
	}

	cmd.Flags().StringVarP(&opts.token, "token", "t", "", "hash this token instead of generating one")

	return cmd
}
