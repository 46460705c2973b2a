package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/nao1215/onionspider/internal/config"
	"github.com/nao1215/onionspider/internal/metrics"
	"github.com/nao1215/onionspider/internal/model"
	"github.com/nao1215/onionspider/internal/queue"
	"github.com/nao1215/onionspider/internal/scheduler"
	"github.com/nao1215/onionspider/internal/seed"
	"github.com/nao1215/onionspider/internal/tor"
)

// noPendingDataMessages are printed when a crawl finds nothing to fetch.
var noPendingDataMessages = []string{
	"No initial data available to start the crawl.",
	"If you need to run on previous data, please contact the developer. This feature is not yet implemented.",
	"If you have initial data, please specify it on the command line (as a CSV or XLSX file with --seed).",
}

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-text...]",
		Short: "Seed the Work Queue and crawl every pending location",
		Long: `Crawl reads seed files, stores every onion URL found in them as a pending
location and fetches each pending location once through Tor.

Every cell of a seed file is scanned, so URLs may appear anywhere in a
row, surrounded by other text. Positional arguments are scanned the same
way. Locations fetched in earlier runs are not fetched again unless a
seed names them again.

Examples:
  # Crawl the onion URLs listed in a CSV file
  onionspider crawl --seed seeds.csv

  # Several seed files, including a spreadsheet
  onionspider crawl -s seeds.csv -s directory.xlsx

  # Seed directly from the command line
  onionspider crawl "http://exampleonionv3xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx.onion/"

  # Use external Tor proxy instead of embedded daemon
  onionspider crawl --external-tor 127.0.0.1:9150 -s seeds.csv

  # Store results in PostgreSQL and expose metrics
  onionspider crawl --database-url postgres://localhost/onionspider --metrics-addr :9100 -s seeds.csv`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().StringArrayP("seed", "s", nil,
		"Seed file (CSV or XLSX); can be repeated")

	// Tor connection flags
	cmd.Flags().StringP("external-tor", "e", "",
		"Use external Tor proxy at specified address (e.g., 127.0.0.1:9150)")
	cmd.Flags().Int("tor-port", config.DefaultTorPort,
		"Use an external Tor proxy at 127.0.0.1 on this port")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Crawl behavior flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each fetch")
	cmd.Flags().IntP("slots", "n", config.DefaultSlots,
		"Number of concurrent fetches")
	cmd.Flags().Int("hop-depth", config.DefaultHopDepth,
		"Hop-depth cutoff recorded with the session (links are not followed)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header for every fetch")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum number of body bytes stored per fetch")

	cmd.Flags().String("metrics-addr", "",
		"Serve Prometheus metrics at this address (e.g., 127.0.0.1:9100)")

	addDatabaseFlags(cmd)

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCrawlConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cfg)

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout())
}

// buildCrawlConfig applies the crawl flags the user set over the
// configuration file.
func buildCrawlConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("tor-port") {
		if cfg.TorPort, err = flags.GetInt("tor-port"); err != nil {
			return nil, err
		}
		cfg.UseExternalTor = true
		cfg.TorProxyAddress = ""
	}
	if flags.Changed("external-tor") {
		if cfg.TorProxyAddress, err = flags.GetString("external-tor"); err != nil {
			return nil, err
		}
		cfg.UseExternalTor = true
	}
	if flags.Changed("tor-timeout") {
		if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("slots") {
		if cfg.Slots, err = flags.GetInt("slots"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("hop-depth") {
		if cfg.HopDepth, err = flags.GetInt("hop-depth"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-body-size") {
		if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("metrics-addr") {
		if cfg.MetricsAddr, err = flags.GetString("metrics-addr"); err != nil {
			return nil, err
		}
	}

	seedFiles, err := flags.GetStringArray("seed")
	if err != nil {
		return nil, err
	}
	cfg.SeedFiles = append(cfg.SeedFiles, seedFiles...)
	cfg.Seeds = args

	return cfg, nil
}

// runCrawl wires the Work Queue, Tor and metrics together and runs one
// crawl session.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	groups, err := loadSeeds(cfg)
	if err != nil {
		return err
	}

	q, backend, err := openQueue(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := q.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()
	logger.Info("work queue opened", "backend", backend)

	recorder, stopMetrics := startMetrics(cfg, logger)
	defer stopMetrics()

	client, stopTor, err := connectTor(ctx, cfg, logger, out)
	if err != nil {
		return err
	}
	defer stopTor()

	gateway, err := tor.NewGateway(client, cfg.Slots,
		tor.WithUserAgent(cfg.UserAgent),
		tor.WithMaxBodySize(cfg.MaxBodySize),
	)
	if err != nil {
		return fmt.Errorf("failed to create fetch gateway: %w", err)
	}

	run := &crawlRun{
		queue:    q,
		gateway:  gateway,
		recorder: recorder,
		clock:    clock.WallClock,
		logger:   logger,
		out:      out,
	}
	_, err = run.run(ctx, cfg, groups)
	return err
}

// loadSeeds reads every seed file and appends each positional argument as
// a single-cell group. An unreadable seed file is fatal.
func loadSeeds(cfg *config.Config) ([][]string, error) {
	groups, err := seed.ReadFiles(cfg.SeedFiles)
	if err != nil {
		return nil, err
	}
	for _, s := range cfg.Seeds {
		groups = append(groups, []string{s})
	}
	return groups, nil
}

// startMetrics serves Prometheus metrics when cfg.MetricsAddr is set.
// Without an address it returns a no-op recorder.
func startMetrics(cfg *config.Config, logger *slog.Logger) (metrics.Recorder, func()) {
	if cfg.MetricsAddr == "" {
		return metrics.Nop{}, func() {}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(reg)

	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metrics.Handler(reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "addr", cfg.MetricsAddr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", cfg.MetricsAddr)

	return recorder, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("failed to stop metrics server", "error", err)
		}
	}
}

// connectTor returns a verified Tor client, starting the embedded daemon
// unless an external proxy is configured. The returned func stops the
// daemon.
func connectTor(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) (*tor.Client, func(), error) {
	if cfg.UseExternalTor {
		client, err := tor.NewClient(cfg.ProxyAddress(), cfg.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
		}

		status := client.CheckConnection(ctx)
		if status != tor.ProxyStatusOK {
			return nil, nil, fmt.Errorf("tor proxy check failed: %s (make sure Tor is running at %s)",
				status, cfg.ProxyAddress())
		}

		logger.Info("Tor proxy connection verified", "address", cfg.ProxyAddress())
		return client, func() {}, nil
	}

	fmt.Fprintln(out, "Starting embedded Tor daemon...")
	fmt.Fprintf(out, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := tor.NewEmbeddedTor(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
		tor.WithEmbeddedLogger(logger),
	)
	if err := embeddedTor.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	stop := func() {
		logger.Info("stopping embedded Tor daemon...")
		if err := embeddedTor.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	logger.Info("embedded Tor daemon started",
		"socksAddr", embeddedTor.SocksAddr(),
		"controlAddr", embeddedTor.ControlAddr(),
	)
	fmt.Fprintf(out, "Embedded Tor daemon started, SOCKS proxy: %s\n\n", embeddedTor.SocksAddr())

	client, err := embeddedTor.NewClient(cfg.Timeout)
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}

	if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
		stop()
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %s", status)
	}

	return client, stop, nil
}

// crawlRun is one crawl session over an open Work Queue and gateway.
type crawlRun struct {
	queue    queue.WorkQueue
	gateway  scheduler.Gateway
	recorder metrics.Recorder
	clock    clock.Clock
	logger   *slog.Logger
	out      io.Writer
}

// run records a new session, ingests groups, crawls until the frontier is
// exhausted and stores the final session counters. A cancelled crawl is
// not an error.
func (r *crawlRun) run(ctx context.Context, cfg *config.Config, groups [][]string) (*scheduler.Result, error) {
	session := model.CrawlSession{
		ID:        uuid.NewString(),
		StartedAt: r.clock.Now().UnixMilli(),
		HopDepth:  cfg.HopDepth,
		Slots:     r.gateway.Capacity(),
		Status:    model.SessionRunning,
	}
	if err := r.queue.StartSession(ctx, session); err != nil {
		return nil, err
	}

	sched, err := scheduler.New(r.queue, r.gateway,
		scheduler.WithHopDepth(cfg.HopDepth),
		scheduler.WithLogger(r.logger),
		scheduler.WithClock(r.clock),
		scheduler.WithMetrics(r.recorder),
		scheduler.WithSessionID(session.ID),
	)
	if err != nil {
		return nil, err
	}

	ingest := sched.Ingest(ctx, groups)
	session.Seeded = ingest.Upserted
	if err := ingest.Err(); err != nil {
		r.logger.Warn("some seed URIs were not stored",
			"failed", len(ingest.Failures),
			"error", err,
		)
	}
	if len(groups) > 0 {
		fmt.Fprintf(r.out, "Seeded %d location(s) from %d cell(s) (%d duplicate(s), %d failure(s))\n",
			ingest.Upserted, ingest.Cells, ingest.Duplicates, len(ingest.Failures))
	}

	if ctx.Err() != nil {
		session.FinishedAt = r.clock.Now().UnixMilli()
		session.Status = model.SessionCancelled
		r.finish(ctx, session)
		fmt.Fprintln(r.out, "Crawl cancelled during seeding")
		return &scheduler.Result{Status: scheduler.StatusCancelled}, nil
	}

	res, runErr := sched.Run(ctx)

	session.FinishedAt = res.FinishedAt.UnixMilli()
	session.Dispatched = res.Dispatched
	session.Succeeded = res.Succeeded
	session.Failed = res.Failed
	session.Status = res.Status.SessionStatus()
	r.finish(ctx, session)

	switch res.Status {
	case scheduler.StatusNoPendingData:
		for _, msg := range noPendingDataMessages {
			fmt.Fprintln(r.out, msg)
		}
	case scheduler.StatusExhausted:
		fmt.Fprintf(r.out, "Crawl finished in %s: %d fetched, %d succeeded, %d failed\n",
			res.Duration().Round(time.Millisecond), res.Dispatched, res.Succeeded, res.Failed)
	case scheduler.StatusCancelled:
		fmt.Fprintf(r.out, "Crawl cancelled after %d fetch(es)\n", res.Dispatched)
		return res, nil
	case scheduler.StatusFailed:
		return res, fmt.Errorf("crawl failed: %w", runErr)
	}

	return res, runErr
}

// finish stores the final state of session. It still runs after ctx is
// cancelled so that interrupted sessions are recorded.
func (r *crawlRun) finish(ctx context.Context, session model.CrawlSession) {
	if err := r.queue.FinishSession(context.WithoutCancel(ctx), session); err != nil {
		r.logger.Error("failed to record session", "session", session.ID, "error", err)
	}
}
