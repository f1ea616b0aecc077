package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keepup/keepup-api/internal/config"
	"github.com/keepup/keepup-api/internal/repository"
	"github.com/keepup/keepup-api/internal/repository/mongostore"
	"github.com/keepup/keepup-api/internal/repository/sqlite"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	envFile  string
	logLevel string

	// Client subcommands.
	apiURL    string
	tokenFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "keepup",
		Short: "KeepUp social API server and client",
		Long: `KeepUp is a small social backend: users, friends, groups, posts,
likes, saves and comments over a JSON HTTP API.

Server commands (serve, seed) read configuration from the environment
and an optional .env file. Client commands (login, feed, post) talk to
a running server.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&opts.apiURL, "api", envOr("KEEPUP_API_URL", "http://localhost:8080"), "KeepUp server URL for client commands")
	cmd.PersistentFlags().StringVar(&opts.tokenFile, "token-file", defaultTokenFile(), "where client commands keep the session token")

	cmd.AddCommand(
		newServeCmd(opts),
		newSeedCmd(opts),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newFeedCmd(opts),
		newPostCmd(opts),
	)
	return cmd
}

// loadConfig reads the environment and applies flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.envFile)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		if cfg.LogLevel, err = config.ParseLevel(o.logLevel); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newLogger returns a JSON logger in production and a text logger
// everywhere else.
func newLogger(cfg *config.Config) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, handlerOpts))
}

// openStore opens the database DB_DRIVER names. The caller closes it.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Store, error) {
	switch cfg.DBDriver {
	case config.DriverMongo:
		store, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to MongoDB", slog.String("database", cfg.MongoDatabase))
		return store, nil

	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.DBPath); cfg.DBPath != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		logger.Info("opened SQLite database", slog.String("path", cfg.DBPath))
		return db, nil

	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func defaultTokenFile() string {
	if v := os.Getenv("KEEPUP_TOKEN_FILE"); v != "" {
		return v
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".keepup-token"
	}
	return filepath.Join(dir, "keepup", "token")
}
