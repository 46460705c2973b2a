package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/onionspider/internal/config"
	"github.com/nao1215/onionspider/internal/queue"
	"github.com/nao1215/onionspider/internal/report"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show Work Queue statistics and the latest crawl session",
		Long: `Status prints how many hosts and locations the Work Queue holds, how many
are still pending, how many were fetched successfully, and the counters of
the most recent crawl session.

Examples:
  # Plain text
  onionspider status

  # JSON for scripts
  onionspider status --json

  # Markdown report written to a file as well as stdout
  onionspider status --markdown -o reports/status.md`,
		Args: cobra.NoArgs,
		RunE: runStatusCmd,
	}

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Also write the report to specified file path (creates directories if needed)")

	addDatabaseFlags(cmd)

	return cmd
}

// runStatusCmd executes the status command.
func runStatusCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildStatusConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cfg)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	q, backend, err := openQueue(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := q.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	status, err := collectStatus(ctx, q, backend, time.Now())
	if err != nil {
		return err
	}

	return writeStatus(cfg, status, cmd.OutOrStdout())
}

// buildStatusConfig applies the status flags over the configuration file.
func buildStatusConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// collectStatus reads the queue totals and the latest session.
// An empty queue has no session, which is not an error.
func collectStatus(ctx context.Context, q queue.WorkQueue, backend string, now time.Time) (*report.Status, error) {
	stats, err := q.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue statistics: %w", err)
	}

	session, err := q.LatestSession(ctx)
	if err != nil && !errors.Is(err, queue.ErrNotFound) {
		return nil, fmt.Errorf("failed to read latest session: %w", err)
	}

	return &report.Status{
		GeneratedAt: now,
		Backend:     backend,
		Stats:       stats,
		Session:     session,
	}, nil
}

// newStatusWriter returns the writer for the format selected in cfg.
func newStatusWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(w, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w)
	}
}

// writeStatus renders status to stdout and, when cfg.ReportFile is set,
// to that file as well.
func writeStatus(cfg *config.Config, status *report.Status, stdout io.Writer) error {
	writers := []report.Writer{newStatusWriter(cfg, stdout)}

	if cfg.ReportFile != "" {
		if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports list crawled hosts and should only be readable by the owner.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()

		writers = append(writers, newStatusWriter(cfg, f))
	}

	if _, err := report.NewMultiWriter(writers...).Write(status); err != nil {
		return fmt.Errorf("failed to write status: %w", err)
	}
	return nil
}
