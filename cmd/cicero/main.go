package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/redmonkez12/cicero/internal/config"
	"github.com/redmonkez12/cicero/internal/database"
	"github.com/redmonkez12/cicero/internal/logging"
	"github.com/redmonkez12/cicero/internal/reset"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "cicero",
		Short:         "AI travel itinerary service",
		Long:          "Cicero generates day-by-day travel itineraries, streams them to signed-in users and keeps each user's trip history.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE:  runMigrate,
	}

	purgeCmd := &cobra.Command{
		Use:   "purge-resets",
		Short: "Delete expired password reset records",
		RunE:  runPurgeResets,
	}
	purgeCmd.Flags().Duration("older-than", 0, "Only purge records that expired at least this long ago")

	rootCmd.AddCommand(serveCmd, migrateCmd, purgeCmd)

	// Allow running without subcommand (default to serve)
	rootCmd.RunE = serveCmd.RunE

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.NewLogger(cfg.Server.IsDevelopment())

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return err
	}

	logger.Info("migrations applied", "driver", cfg.Database.Driver)
	return nil
}

func runPurgeResets(cmd *cobra.Command, args []string) error {
	olderThan, _ := cmd.Flags().GetDuration("older-than")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.NewLogger(cfg.Server.IsDevelopment())

	if cfg.Auth.ResetStore != "sql" {
		logger.Info("reset records expire on their own in redis, nothing to purge")
		return nil
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	n, err := reset.NewSQLStore(db).PurgeExpired(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return fmt.Errorf("failed to purge reset records: %w", err)
	}

	logger.Info("purged expired reset records", "count", n)
	return nil
}
