package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/juju/clock"
	"github.com/spf13/cobra"

	"github.com/nao1215/onionspider/internal/config"
	"github.com/nao1215/onionspider/internal/database"
	"github.com/nao1215/onionspider/internal/log"
	"github.com/nao1215/onionspider/internal/queue"
)

// Backend names shown in logs and status reports.
const (
	backendSQLite   = "sqlite"
	backendPostgres = "postgres"
)

// boolFlag returns the value of a boolean flag defined on cmd or inherited
// from the root command, and whether the user set it.
func boolFlag(cmd *cobra.Command, name string) (value, changed bool) {
	f := cmd.Flags().Lookup(name)
	if f == nil {
		f = cmd.Root().PersistentFlags().Lookup(name)
	}
	if f == nil || !f.Changed {
		return false, false
	}
	v, err := strconv.ParseBool(f.Value.String())
	return err == nil && v, true
}

// loadConfig loads the configuration file named by --config (or found in
// the default locations) and applies the global and database flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if v, ok := boolFlag(cmd, "verbose"); ok {
		cfg.Verbose = v
	}
	if v, ok := boolFlag(cmd, "log-json"); ok {
		cfg.LogJSON = v
	}

	if flags.Changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("database-url") {
		if cfg.DatabaseURL, err = flags.GetString("database-url"); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// addDatabaseFlags registers the flags that select the Work Queue backend.
func addDatabaseFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .onionspider in current, XDG config or home directory)")
	cmd.Flags().String("db-dir", "",
		"SQLite database directory (default: XDG data directory)")
	cmd.Flags().String("database-url", "",
		"PostgreSQL URL; overrides --db-dir (e.g., postgres://user@localhost/onionspider)")
}

// newLogger creates the process logger and installs it as the slog default.
func newLogger(cfg *config.Config) *slog.Logger {
	logger := log.New(os.Stderr, cfg.Verbose, cfg.LogJSON)
	slog.SetDefault(logger)
	return logger
}

// openQueue opens the Work Queue selected by cfg. With create false a
// missing SQLite database is an error instead of being created.
func openQueue(ctx context.Context, cfg *config.Config, create bool) (queue.WorkQueue, string, error) {
	if cfg.UsePostgres() {
		db, err := database.OpenPostgres(ctx, cfg.DatabaseURL, clock.WallClock)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open database: %w", err)
		}
		return db, backendPostgres, nil
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = create
	db, err := database.Open(cfg.DBDir, opts)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}
	return db, backendSQLite, nil
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}
