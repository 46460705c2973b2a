package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/clock/testclock"

	"github.com/nao1215/onionspider/internal/model"
	"github.com/nao1215/onionspider/internal/queue"
)

// sessionStart is the fixed time returned by the test clock.
var sessionStart = time.UnixMilli(1_700_000_000_000)

func newTestClock() *testclock.Clock {
	return testclock.NewClock(sessionStart)
}

// eventLog records queue and gateway calls in order.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// fakeGateway answers every fetch with respond, or with a 200 HTML page.
type fakeGateway struct {
	capacity int
	log      *eventLog
	respond  func(ctx context.Context, host, path string) (*model.FetchResponse, error)

	mu    sync.Mutex
	calls map[string]int

	active atomic.Int64
	peak   atomic.Int64
}

func newFakeGateway(capacity int) *fakeGateway {
	return &fakeGateway{
		capacity: capacity,
		calls:    make(map[string]int),
	}
}

func (g *fakeGateway) Capacity() int {
	return g.capacity
}

func (g *fakeGateway) Fetch(ctx context.Context, host, path string) (*model.FetchResponse, error) {
	n := g.active.Add(1)
	defer g.active.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}

	g.mu.Lock()
	g.calls[host+path]++
	g.mu.Unlock()
	g.log.add("fetch %s%s", host, path)

	if g.respond != nil {
		return g.respond(ctx, host, path)
	}
	return okResponse(host, path), nil
}

func (g *fakeGateway) callCount() map[string]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]int, len(g.calls))
	for k, v := range g.calls {
		out[k] = v
	}
	return out
}

func (g *fakeGateway) total() int {
	total := 0
	for _, n := range g.callCount() {
		total += n
	}
	return total
}

// okResponse is a 200 HTML page fetched one second after the session start.
func okResponse(host, path string) *model.FetchResponse {
	return &model.FetchResponse{
		StatusCode: 200,
		Host:       host,
		Path:       path,
		Body:       "<html><title>ok</title></html>",
		MimeType:   "text/html",
		Title:      "ok",
		Timestamp:  sessionStart.Add(time.Second).UnixMilli(),
	}
}

// recordingQueue wraps a WorkQueue, logging calls and injecting failures.
type recordingQueue struct {
	queue.WorkQueue
	log *eventLog

	upsertErr  func(host, path string) error
	contentErr error
	queryErr   func(call int) error

	mu      sync.Mutex
	queries []queue.PendingQuery
}

func (q *recordingQueue) UpsertLocation(ctx context.Context, host, path string, scrapedAt int64, successful bool) (int64, int64, error) {
	q.log.add("upsert %s%s %d %t", host, path, scrapedAt, successful)
	if q.upsertErr != nil {
		if err := q.upsertErr(host, path); err != nil {
			return 0, 0, err
		}
	}
	return q.WorkQueue.UpsertLocation(ctx, host, path, scrapedAt, successful)
}

func (q *recordingQueue) RecordContent(ctx context.Context, record model.ContentRecord) (int64, error) {
	q.log.add("content %d %t", record.LocationID, record.Success)
	if q.contentErr != nil {
		return 0, q.contentErr
	}
	return q.WorkQueue.RecordContent(ctx, record)
}

func (q *recordingQueue) QueryPending(ctx context.Context, pq queue.PendingQuery) ([]model.Location, bool, error) {
	q.mu.Lock()
	q.queries = append(q.queries, pq)
	call := len(q.queries)
	q.mu.Unlock()

	q.log.add("query %d", pq.Offset)
	if q.queryErr != nil {
		if err := q.queryErr(call); err != nil {
			return nil, false, err
		}
	}
	return q.WorkQueue.QueryPending(ctx, pq)
}

func (q *recordingQueue) pendingQueries() []queue.PendingQuery {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.PendingQuery(nil), q.queries...)
}

// pagedQueue serves QueryPending from fixed pages, one per call.
type pagedQueue struct {
	queue.WorkQueue

	mu      sync.Mutex
	pages   [][]model.Location
	queries []queue.PendingQuery
}

func (q *pagedQueue) QueryPending(_ context.Context, pq queue.PendingQuery) ([]model.Location, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.queries = append(q.queries, pq)
	if len(q.pages) == 0 {
		return nil, false, nil
	}
	page := q.pages[0]
	q.pages = q.pages[1:]
	return page, len(page) > 0, nil
}
