package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/keepup/keepup-api/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := newLogger(cfg)
			if !cfg.GitHubEnabled() {
				logger.Info("GITHUB_CLIENT_ID/SECRET not set, GitHub login disabled")
			}

			ctx := cmd.Context()
			store, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			// Closed after Start returns, once in-flight requests are done.
			defer func() {
				if err := store.Close(); err != nil {
					logger.Error("closing store", slog.String("error", err.Error()))
				}
			}()

			srv, err := server.New(cfg, store, logger)
			if err != nil {
				return err
			}
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "port to listen on (overrides PORT)")
	return cmd
}
