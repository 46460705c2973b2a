package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/onionspider/internal/metrics"
	"github.com/nao1215/onionspider/internal/model"
	"github.com/nao1215/onionspider/internal/queue"
	"github.com/nao1215/onionspider/internal/queue/memory"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScheduler(t *testing.T, q queue.WorkQueue, g Gateway, opts ...Option) *Scheduler {
	t.Helper()

	opts = append([]Option{WithLogger(quietLogger()), WithClock(newTestClock())}, opts...)
	s, err := New(q, g, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func seedQueue(t *testing.T, q queue.WorkQueue, n int) []string {
	t.Helper()

	urls := make([]string, 0, n)
	for i := range n {
		path := fmt.Sprintf("/page/%d", i)
		if _, _, err := q.UpsertLocation(context.Background(), "http://site.onion", path, model.NeverScraped, false); err != nil {
			t.Fatal(err)
		}
		urls = append(urls, "http://site.onion"+path)
	}
	return urls
}

func TestNew(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue()

	tests := []struct {
		name    string
		queue   queue.WorkQueue
		gateway Gateway
		wantErr error
	}{
		{name: "valid", queue: q, gateway: newFakeGateway(2)},
		{name: "nil queue", gateway: newFakeGateway(2), wantErr: ErrNoQueue},
		{name: "nil gateway", queue: q, wantErr: ErrNoGateway},
		{name: "zero capacity", queue: q, gateway: newFakeGateway(0), wantErr: ErrInvalidCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, err := New(tt.queue, tt.gateway, WithHopDepth(3))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && s.HopDepth() != 3 {
				t.Errorf("HopDepth() = %d, want 3", s.HopDepth())
			}
		})
	}
}

func TestRunNoPendingData(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue()
	g := newFakeGateway(3)
	s := newTestScheduler(t, q, g)

	report := s.Ingest(context.Background(), [][]string{{"no onion links here"}})
	if report.Upserted != 0 {
		t.Fatalf("Upserted = %d, want 0", report.Upserted)
	}

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Status != StatusNoPendingData {
		t.Errorf("Status = %v, want %v", res.Status, StatusNoPendingData)
	}
	if g.total() != 0 {
		t.Errorf("gateway received %d fetches, want 0", g.total())
	}
	if res.Dispatched != 0 {
		t.Errorf("Dispatched = %d, want 0", res.Dispatched)
	}
}

func TestRunExhaustsFrontier(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := memory.NewQueue()
	urls := seedQueue(t, q, 7)
	g := newFakeGateway(3)
	s := newTestScheduler(t, q, g)

	res, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Status != StatusExhausted {
		t.Fatalf("Status = %v, want %v", res.Status, StatusExhausted)
	}
	if res.Dispatched != 7 || res.Succeeded != 7 || res.Failed != 0 {
		t.Errorf("counters = %+v, want 7 dispatched and succeeded", res)
	}
	if res.SlotReleases != 3 {
		t.Errorf("SlotReleases = %d, want 3", res.SlotReleases)
	}

	calls := g.callCount()
	for _, u := range urls {
		if calls[u] != 1 {
			t.Errorf("%s fetched %d times, want 1", u, calls[u])
		}
	}

	pending, _, err := q.QueryPending(ctx, queue.PendingQuery{Threshold: model.NeverScraped, Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("%d locations still pending after run", len(pending))
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.ContentRecords != 7 || stats.Succeeded != 7 {
		t.Errorf("Stats() = %+v, want 7 content records and 7 succeeded", stats)
	}
}

func TestRunFoldBackOrder(t *testing.T) {
	t.Parallel()

	log := &eventLog{}
	q := &recordingQueue{WorkQueue: memory.NewQueue()}
	if _, _, err := q.UpsertLocation(context.Background(), "http://a.onion", "/x", 0, false); err != nil {
		t.Fatal(err)
	}
	q.log = log

	g := newFakeGateway(1)
	g.log = log
	s := newTestScheduler(t, q, g)

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	ts := sessionStart.Add(time.Second).UnixMilli()
	want := []string{
		"query 0",
		"fetch http://a.onion/x",
		fmt.Sprintf("upsert http://a.onion/x %d true", ts),
		"content 1 true",
		"query 1",
	}
	got := log.all()
	if len(got) != len(want) {
		t.Fatalf("events = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRunFailedFetchKeepsLastSuccessful(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := memory.NewQueue()
	if _, _, err := q.UpsertLocation(ctx, "http://a.onion", "/", 500, true); err != nil {
		t.Fatal(err)
	}

	g := newFakeGateway(2)
	g.respond = func(_ context.Context, host, path string) (*model.FetchResponse, error) {
		return &model.FetchResponse{
			StatusCode: 503,
			Host:       host,
			Path:       path,
			Timestamp:  sessionStart.Add(2 * time.Second).UnixMilli(),
		}, nil
	}
	s := newTestScheduler(t, q, g)

	report := s.Ingest(ctx, [][]string{{"http://a.onion/"}})
	if report.Upserted != 1 {
		t.Fatalf("Upserted = %d, want 1", report.Upserted)
	}

	res, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Failed != 1 || res.Succeeded != 0 {
		t.Errorf("counters = %+v, want 1 failed", res)
	}

	loc, err := q.GetLocation(ctx, "http://a.onion", "/")
	if err != nil {
		t.Fatal(err)
	}
	if loc.LastScrapedAt != sessionStart.Add(2*time.Second).UnixMilli() {
		t.Errorf("LastScrapedAt = %d, want response timestamp", loc.LastScrapedAt)
	}
	if loc.LastSuccessfulAt != 500 {
		t.Errorf("LastSuccessfulAt = %d, want 500", loc.LastSuccessfulAt)
	}

	history, err := q.ContentHistory(ctx, loc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Fatalf("history has %d records, want 1", len(history))
	}
	rec := history[0]
	if rec.Success || rec.StatusCode != 503 {
		t.Errorf("record = %+v, want unsuccessful 503", rec)
	}
	if rec.Body != model.PlaceholderMissing || rec.MimeType != model.PlaceholderMissing {
		t.Errorf("record body/mime = %q/%q, want placeholders", rec.Body, rec.MimeType)
	}
}

func TestRunTransportFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := memory.NewQueue()
	seedQueue(t, q, 1)

	g := newFakeGateway(1)
	g.respond = func(context.Context, string, string) (*model.FetchResponse, error) {
		return nil, errors.New("connection refused")
	}
	s := newTestScheduler(t, q, g)

	res, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Status != StatusExhausted || res.Failed != 1 {
		t.Errorf("result = %+v, want exhausted with 1 failure", res)
	}

	loc, err := q.GetLocation(ctx, "http://site.onion", "/page/0")
	if err != nil {
		t.Fatal(err)
	}
	if loc.LastScrapedAt != sessionStart.UnixMilli() {
		t.Errorf("LastScrapedAt = %d, want scheduler clock %d", loc.LastScrapedAt, sessionStart.UnixMilli())
	}
	if loc.LastSuccessfulAt != model.NeverScraped {
		t.Errorf("LastSuccessfulAt = %d, want 0", loc.LastSuccessfulAt)
	}

	history, err := q.ContentHistory(ctx, loc.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := model.ContentRecord{
		ID:         1,
		LocationID: loc.ID,
		ScrapedAt:  sessionStart.UnixMilli(),
		StatusCode: 0,
		MimeType:   model.PlaceholderMissing,
		Body:       model.PlaceholderMissing,
	}
	if len(history) != 1 || history[0] != want {
		t.Errorf("history = %+v, want [%+v]", history, want)
	}
}

func TestRunMissingMimeTypeStaysSuccessful(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := memory.NewQueue()
	seedQueue(t, q, 1)

	g := newFakeGateway(1)
	g.respond = func(_ context.Context, host, path string) (*model.FetchResponse, error) {
		resp := okResponse(host, path)
		resp.MimeType = ""
		return resp, nil
	}
	s := newTestScheduler(t, q, g)

	if _, err := s.Run(ctx); err != nil {
		t.Fatal(err)
	}

	loc, err := q.GetLocation(ctx, "http://site.onion", "/page/0")
	if err != nil {
		t.Fatal(err)
	}
	history, err := q.ContentHistory(ctx, loc.ID)
	if err != nil || len(history) != 1 {
		t.Fatalf("ContentHistory() = %v, %v", history, err)
	}
	if !history[0].Success {
		t.Error("placeholder MIME type changed the success flag")
	}
	if history[0].MimeType != model.PlaceholderMissing {
		t.Errorf("MimeType = %q, want %q", history[0].MimeType, model.PlaceholderMissing)
	}
	if loc.LastSuccessfulAt != loc.LastScrapedAt {
		t.Errorf("LastSuccessfulAt = %d, want %d", loc.LastSuccessfulAt, loc.LastScrapedAt)
	}
}

func TestRunReleasesIdleSlots(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue()
	seedQueue(t, q, 1)
	g := newFakeGateway(4)
	s := newTestScheduler(t, q, g)

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if g.total() != 1 {
		t.Errorf("gateway received %d fetches, want 1", g.total())
	}
	if res.SlotReleases != 4 {
		t.Errorf("SlotReleases = %d, want 4", res.SlotReleases)
	}
}

func TestRunRespectsCapacity(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue()
	seedQueue(t, q, 12)
	g := newFakeGateway(3)
	g.respond = func(_ context.Context, host, path string) (*model.FetchResponse, error) {
		time.Sleep(5 * time.Millisecond)
		return okResponse(host, path), nil
	}
	s := newTestScheduler(t, q, g)

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Dispatched != 12 {
		t.Errorf("Dispatched = %d, want 12", res.Dispatched)
	}
	if peak := g.peak.Load(); peak > 3 || peak < 1 {
		t.Errorf("peak concurrency = %d, want between 1 and 3", peak)
	}
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue()
	seedQueue(t, q, 2)

	started := make(chan struct{}, 2)
	g := newFakeGateway(2)
	g.respond = func(ctx context.Context, _, _ string) (*model.FetchResponse, error) {
		started <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	s := newTestScheduler(t, q, g)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	res, err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if res.Status != StatusCancelled {
		t.Errorf("Status = %v, want %v", res.Status, StatusCancelled)
	}

	pending, _, err := q.QueryPending(context.Background(), queue.PendingQuery{Threshold: model.NeverScraped, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Errorf("%d locations pending after cancellation, want 2", len(pending))
	}
}

func TestRunQueryFailure(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("database is locked")

	t.Run("initial read", func(t *testing.T) {
		t.Parallel()

		q := &recordingQueue{WorkQueue: memory.NewQueue(), queryErr: func(int) error { return errBoom }}
		s := newTestScheduler(t, q, newFakeGateway(1))

		res, err := s.Run(context.Background())
		if !errors.Is(err, errBoom) {
			t.Fatalf("Run() error = %v, want %v", err, errBoom)
		}
		if res.Status != StatusFailed {
			t.Errorf("Status = %v, want %v", res.Status, StatusFailed)
		}
	})

	t.Run("refill", func(t *testing.T) {
		t.Parallel()

		q := &recordingQueue{
			WorkQueue: memory.NewQueue(),
			queryErr: func(call int) error {
				if call > 1 {
					return errBoom
				}
				return nil
			},
		}
		seedQueue(t, q, 1)
		g := newFakeGateway(1)
		s := newTestScheduler(t, q, g)

		res, err := s.Run(context.Background())
		if !errors.Is(err, errBoom) {
			t.Fatalf("Run() error = %v, want %v", err, errBoom)
		}
		if res.Status != StatusFailed {
			t.Errorf("Status = %v, want %v", res.Status, StatusFailed)
		}
		if g.total() != 1 {
			t.Errorf("gateway received %d fetches, want 1", g.total())
		}
	})
}

func TestRunFoldBackFailureContinues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := &recordingQueue{WorkQueue: memory.NewQueue(), contentErr: errors.New("disk full")}
	seedQueue(t, q, 3)
	reg := &countingRecorder{}
	s := newTestScheduler(t, q, newFakeGateway(2), WithMetrics(reg))

	res, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Status != StatusExhausted {
		t.Errorf("Status = %v, want %v", res.Status, StatusExhausted)
	}
	if res.FoldBackErrors != 3 {
		t.Errorf("FoldBackErrors = %d, want 3", res.FoldBackErrors)
	}
	if reg.foldBackErrors != 3 || reg.dispatched != 3 || reg.releases != 2 {
		t.Errorf("recorder = %+v", reg)
	}

	pending, _, err := q.WorkQueue.QueryPending(ctx, queue.PendingQuery{Threshold: model.NeverScraped, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("%d locations pending, want 0: state is written before content", len(pending))
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status  Status
		str     string
		session model.SessionStatus
	}{
		{StatusExhausted, "exhausted", model.SessionExhausted},
		{StatusNoPendingData, "no pending data", model.SessionNoPendingData},
		{StatusCancelled, "cancelled", model.SessionCancelled},
		{StatusFailed, "failed", model.SessionFailed},
		{Status(99), "unknown", model.SessionFailed},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.str {
			t.Errorf("String() = %q, want %q", got, tt.str)
		}
		if got := tt.status.SessionStatus(); got != tt.session {
			t.Errorf("SessionStatus() = %q, want %q", got, tt.session)
		}
	}
}

// countingRecorder counts metrics events without Prometheus.
type countingRecorder struct {
	metrics.Nop
	mu             sync.Mutex
	dispatched     int
	foldBackErrors int
	releases       int
}

func (r *countingRecorder) RecordDispatch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatched++
}

func (r *countingRecorder) RecordFoldBackError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.foldBackErrors++
}

func (r *countingRecorder) RecordSlotRelease() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releases++
}
