package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/juju/clock"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/onionspider/internal/metrics"
	"github.com/nao1215/onionspider/internal/model"
	"github.com/nao1215/onionspider/internal/queue"
)

var (
	// ErrNoQueue is returned by New when the work queue is nil.
	ErrNoQueue = errors.New("scheduler requires a work queue")
	// ErrNoGateway is returned by New when the gateway is nil.
	ErrNoGateway = errors.New("scheduler requires a fetch gateway")
	// ErrInvalidCapacity is returned by New when the gateway has no slots.
	ErrInvalidCapacity = errors.New("gateway capacity must be at least 1")
)

// Gateway performs fetches on behalf of the scheduler. *tor.Gateway
// implements it.
type Gateway interface {
	// Capacity is the number of concurrent fetch slots. It is also the
	// page size of every pending-work read.
	Capacity() int

	// Fetch performs one attempt without retry. A non-nil error means no
	// HTTP response was received.
	Fetch(ctx context.Context, host, path string) (*model.FetchResponse, error)
}

// Scheduler seeds a WorkQueue and crawls it through a Gateway.
type Scheduler struct {
	queue     queue.WorkQueue
	gateway   Gateway
	hopDepth  int
	logger    *slog.Logger
	clock     clock.Clock
	metrics   metrics.Recorder
	sessionID string
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithHopDepth records the hop-depth cutoff. Links are not followed, so
// the value is only logged and stored with the session.
func WithHopDepth(depth int) Option {
	return func(s *Scheduler) {
		s.hopDepth = depth
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source for the session start and for
// timestamping transport failures.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithMetrics sets the metrics recorder. The default discards events.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithSessionID tags every log record with the crawl session id.
func WithSessionID(id string) Option {
	return func(s *Scheduler) {
		s.sessionID = id
	}
}

// New creates a Scheduler over q and g.
func New(q queue.WorkQueue, g Gateway, opts ...Option) (*Scheduler, error) {
	if q == nil {
		return nil, ErrNoQueue
	}
	if g == nil {
		return nil, ErrNoGateway
	}
	if g.Capacity() < 1 {
		return nil, ErrInvalidCapacity
	}

	s := &Scheduler{
		queue:   q,
		gateway: g,
		clock:   clock.WallClock,
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.sessionID != "" {
		s.logger = s.logger.With("session", s.sessionID)
	}

	return s, nil
}

// HopDepth returns the configured hop-depth cutoff.
func (s *Scheduler) HopDepth() int {
	return s.hopDepth
}

// runState holds the counters of one Run. Workers update it concurrently.
type runState struct {
	frontier     *frontier
	startedAt    int64
	dispatched   atomic.Int64
	succeeded    atomic.Int64
	failed       atomic.Int64
	foldBackErrs atomic.Int64
	releases     atomic.Int64
}

// Run crawls every never-attempted Location until the frontier is empty.
//
// If the initial read returns nothing Run returns StatusNoPendingData and
// a nil error without fetching anything. Otherwise it starts one worker
// per gateway slot and returns StatusExhausted once every worker has
// found the frontier empty. On cancellation it returns StatusCancelled
// together with the context error; a failed queue read returns
// StatusFailed and the error.
func (s *Scheduler) Run(ctx context.Context) (*Result, error) {
	started := s.clock.Now()
	capacity := s.gateway.Capacity()

	state := &runState{
		frontier:  newFrontier(s.queue, capacity, started.UnixMilli(), s.metrics),
		startedAt: started.UnixMilli(),
	}

	result := func(status Status) *Result {
		return &Result{
			Status:         status,
			StartedAt:      started,
			FinishedAt:     s.clock.Now(),
			Dispatched:     int(state.dispatched.Load()),
			Succeeded:      int(state.succeeded.Load()),
			Failed:         int(state.failed.Load()),
			FoldBackErrors: int(state.foldBackErrs.Load()),
			Refills:        state.frontier.refills(),
			SlotReleases:   int(state.releases.Load()),
		}
	}

	primed, err := state.frontier.prime(ctx)
	if err != nil {
		return result(StatusFailed), err
	}
	if primed == 0 {
		s.logger.Info("no pending locations to crawl")
		return result(StatusNoPendingData), nil
	}

	if s.hopDepth > 0 {
		s.logger.Info("hop depth is recorded but not enforced", "hop_depth", s.hopDepth)
	}
	s.logger.Info("starting crawl",
		"slots", capacity,
		"primed", primed,
	)

	g, gctx := errgroup.WithContext(ctx)
	for worker := range capacity {
		g.Go(func() error {
			return s.work(gctx, state, worker)
		})
	}
	err = g.Wait()

	switch {
	case ctx.Err() != nil:
		res := result(StatusCancelled)
		s.logger.Info("crawl cancelled", "dispatched", res.Dispatched)
		return res, ctx.Err()
	case err != nil:
		s.logger.Error("crawl stopped", "error", err)
		return result(StatusFailed), err
	}

	res := result(StatusExhausted)
	s.logger.Info("crawl finished",
		"dispatched", res.Dispatched,
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"fold_back_errors", res.FoldBackErrors,
		"duration", res.Duration(),
	)
	return res, nil
}

// work is the loop of one fetch slot.
func (s *Scheduler) work(ctx context.Context, state *runState, worker int) error {
	for {
		loc, ok, err := state.frontier.next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			state.releases.Add(1)
			s.metrics.RecordSlotRelease()
			s.logger.Debug("releasing slot, no pending locations",
				"worker", worker,
				"offset", state.frontier.position(),
			)
			return nil
		}

		if err := s.visit(ctx, state, loc); err != nil {
			return err
		}
	}
}

// visit fetches one Location and folds the outcome back into the queue.
// It only returns an error when ctx is done.
func (s *Scheduler) visit(ctx context.Context, state *runState, loc model.Location) error {
	state.dispatched.Add(1)
	s.metrics.RecordDispatch()

	begin := s.clock.Now()
	resp, err := s.gateway.Fetch(ctx, loc.Host, loc.Path)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("fetch failed",
			"host", loc.Host,
			"path", loc.Path,
			"error", err,
		)
		resp = &model.FetchResponse{
			Host:      loc.Host,
			Path:      loc.Path,
			Timestamp: s.clock.Now().UnixMilli(),
		}
	}
	latency := s.clock.Now().Sub(begin)

	successful := resp.Successful()
	if successful {
		state.succeeded.Add(1)
	} else {
		state.failed.Add(1)
	}
	s.metrics.RecordFetch(resp.StatusCode, successful, latency)

	s.logger.Debug("fetched location",
		"host", loc.Host,
		"path", loc.Path,
		"status", resp.StatusCode,
		"latency", latency,
	)

	if err := s.foldBack(ctx, state, loc, resp); err != nil {
		state.foldBackErrs.Add(1)
		s.metrics.RecordFoldBackError()
		s.logger.Error("failed to store fetch result",
			"host", loc.Host,
			"path", loc.Path,
			"error", err,
		)
	}
	return nil
}

// foldBack stores one attempt: the Location state first, then the content.
// The attempt timestamp is clamped to the session start so the Location
// stays inside the frontier's query window.
func (s *Scheduler) foldBack(ctx context.Context, state *runState, loc model.Location, resp *model.FetchResponse) error {
	resp.Timestamp = max(resp.Timestamp, state.startedAt)
	successful := resp.Successful()

	_, locationID, err := s.queue.UpsertLocation(ctx, loc.Host, loc.Path, resp.Timestamp, successful)
	if err != nil {
		return fmt.Errorf("failed to update location state: %w", err)
	}

	if _, err := s.queue.RecordContent(ctx, resp.ToContentRecord(locationID)); err != nil {
		return fmt.Errorf("failed to record content: %w", err)
	}
	return nil
}
