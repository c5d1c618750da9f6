package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"kevfeed/internal/catalog"
	"kevfeed/internal/config"
	"kevfeed/internal/feed"
	"kevfeed/internal/server"
	"kevfeed/internal/tlog"
	"kevfeed/internal/version"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	config    string
	port      int
	cacheType string
	cachePath string
}

func newCmdServe() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the feed server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd, cfg)
		},
		Example: heredoc.Doc(`
			$ kevfeed serve
			$ kevfeed serve --port 9000 --cache-type sqlite3 --cache-path kev.sqlite3
			$ kevfeed serve --cache-type redis --cache-path redis://localhost:6379/0
		`),
	}

	opts.addFlags(cmd)

	return cmd
}

func (o *serveOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.config, "config", "c", "", "config file path (default: $KEVFEED_CONFIG)")
	cmd.Flags().IntVarP(&o.port, "port", "p", 0, "port to listen on (default: 8080 or $KEVFEED_PORT)")
	cmd.Flags().StringVarP(&o.cacheType, "cache-type", "", "", "cache backend: memory, sqlite3, postgres, boltdb, redis or file")
	cmd.Flags().StringVarP(&o.cachePath, "cache-path", "", "", "cache location: file path, DSN or redis address")
}

// load applies explicitly set flags on top of the file and environment.
func (o *serveOptions) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.config)
	if err != nil {
		return config.Config{}, errors.Wrap(err, "load config")
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = o.port
	}
	if flags.Changed("cache-type") {
		cfg.Cache.Type = o.cacheType
	}
	if flags.Changed("cache-path") {
		cfg.Cache.Path = o.cachePath
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, errors.Wrap(err, "validate config")
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, cfg config.Config) error {
	logger := tlog.NewWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogColor)

	logger.Info("starting kevfeed",
		"version", version.String(),
		"port", cfg.Port,
		"upstream", cfg.UpstreamURL,
		"cache", cfg.Cache.Type,
		"refresh_interval", cfg.RefreshInterval,
	)

	store, err := cfg.CacheStoreConfig().New()
	if err != nil {
		return errors.Wrap(err, "open cache")
	}
	defer store.Close()

	fetcher := catalog.NewFetcher(logger, catalog.WithURL(cfg.UpstreamURL))
	svc := feed.NewService(store, fetcher, logger, cfg.RefreshInterval)
	svc.Start()
	defer svc.Stop()

	srv := server.NewServer(logger, svc, server.Config{
		RefreshTokenHash: cfg.RefreshTokenHash,
		MaxConnections:   cfg.MaxConnections,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.GetAddress())
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "serve")
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return <-errCh
}
