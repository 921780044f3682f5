package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"viralbot/internal/config"
	"viralbot/internal/storage/ledger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "bot",
		Short: "Adaptive social posting bot",
		Long: "Scrapes memes, videos and quotes, posts them on an adaptive " +
			"schedule, and learns posting times from engagement metrics.",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	rootCmd.AddCommand(newRunCmd(&configPath))
	rootCmd.AddCommand(newReportCmd(&configPath))
	rootCmd.AddCommand(newRefreshCmd(&configPath))
	rootCmd.AddCommand(newResetCmd(&configPath))

	return rootCmd
}

// setup loads config, builds the logger and opens the database.
func setup(configPath string) (*config.Config, *slog.Logger, *sqlx.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	return cfg, logger, db, nil
}

func newResetCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Drop and recreate the posts table",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, db, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := ledger.New(db).Reset(cmd.Context()); err != nil {
				return err
			}
			logger.Info("database reset with current schema")
			return nil
		},
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
