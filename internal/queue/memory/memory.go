// Package memory provides an in-memory implementation of queue.WorkQueue.
// It is intended for tests and dry runs; nothing survives Close.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nao1215/onionspider/internal/model"
	"github.com/nao1215/onionspider/internal/queue"
)

// Compile-time check for the queue.WorkQueue interface.
var _ queue.WorkQueue = (*Queue)(nil)

type locationKey struct {
	hostID int64
	path   string
}

// Queue is an in-memory WorkQueue guarded by a single mutex.
type Queue struct {
	mu sync.RWMutex

	hosts     map[string]*model.Host
	locations map[locationKey]*model.Location
	byID      map[int64]*model.Location
	contents  []model.ContentRecord
	sessions  []model.CrawlSession

	nextHostID     int64
	nextLocationID int64
	nextContentID  int64
	lastCreatedAt  int64

	now func() time.Time
}

// NewQueue returns an empty in-memory queue.
func NewQueue() *Queue {
	return &Queue{
		hosts:     make(map[string]*model.Host),
		locations: make(map[locationKey]*model.Location),
		byID:      make(map[int64]*model.Location),
		now:       time.Now,
	}
}

// UpsertLocation implements queue.WorkQueue.
func (q *Queue) UpsertLocation(_ context.Context, host, path string, scrapedAt int64, successful bool) (int64, int64, error) {
	host = model.NormalizeHost(host)
	if host == "" {
		return 0, 0, queue.ErrInvalidLocation
	}
	path = model.NormalizePath(path)

	q.mu.Lock()
	defer q.mu.Unlock()

	h, ok := q.hosts[host]
	if !ok {
		q.nextHostID++
		h = &model.Host{ID: q.nextHostID, BaseURL: host}
		q.hosts[host] = h
	}

	key := locationKey{hostID: h.ID, path: path}
	loc, ok := q.locations[key]
	if !ok {
		q.nextLocationID++
		loc = &model.Location{
			ID:               q.nextLocationID,
			HostID:           h.ID,
			Host:             h.BaseURL,
			Path:             path,
			LastScrapedAt:    scrapedAt,
			LastSuccessfulAt: scrapedAt,
			CreatedAt:        q.nextCreatedAt(),
		}
		q.locations[key] = loc
		q.byID[loc.ID] = loc
		return h.ID, loc.ID, nil
	}

	loc.LastScrapedAt = scrapedAt
	if successful {
		loc.LastSuccessfulAt = scrapedAt
	}
	return h.ID, loc.ID, nil
}

// nextCreatedAt returns a strictly increasing creation timestamp.
// Callers must hold q.mu.
func (q *Queue) nextCreatedAt() int64 {
	ts := q.now().UnixMilli()
	if ts <= q.lastCreatedAt {
		ts = q.lastCreatedAt + 1
	}
	q.lastCreatedAt = ts
	return ts
}

// RecordContent implements queue.WorkQueue.
func (q *Queue) RecordContent(_ context.Context, record model.ContentRecord) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.byID[record.LocationID]; !ok {
		return 0, queue.ErrNotFound
	}

	q.nextContentID++
	record.ID = q.nextContentID
	q.contents = append(q.contents, record)
	return record.ID, nil
}

// QueryPending implements queue.WorkQueue.
func (q *Queue) QueryPending(_ context.Context, pq queue.PendingQuery) ([]model.Location, bool, error) {
	if pq.Limit <= 0 {
		return nil, false, nil
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	matching := make([]model.Location, 0, len(q.byID))
	for _, loc := range q.byID {
		if pq.Matches(loc.LastScrapedAt) {
			matching = append(matching, *loc)
		}
	}
	sort.Slice(matching, func(i, j int) bool {
		if matching[i].CreatedAt != matching[j].CreatedAt {
			return matching[i].CreatedAt < matching[j].CreatedAt
		}
		return matching[i].ID < matching[j].ID
	})

	if pq.Offset >= len(matching) {
		return nil, false, nil
	}
	end := pq.Offset + pq.Limit
	if end > len(matching) {
		end = len(matching)
	}

	page := matching[pq.Offset:end]
	return page, len(page) != 0, nil
}

// GetLocation implements queue.WorkQueue.
func (q *Queue) GetLocation(_ context.Context, host, path string) (*model.Location, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	h, ok := q.hosts[model.NormalizeHost(host)]
	if !ok {
		return nil, queue.ErrNotFound
	}
	loc, ok := q.locations[locationKey{hostID: h.ID, path: model.NormalizePath(path)}]
	if !ok {
		return nil, queue.ErrNotFound
	}
	out := *loc
	return &out, nil
}

// ContentHistory implements queue.WorkQueue.
func (q *Queue) ContentHistory(_ context.Context, locationID int64) ([]model.ContentRecord, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var out []model.ContentRecord
	for _, rec := range q.contents {
		if rec.LocationID == locationID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Stats implements queue.WorkQueue.
func (q *Queue) Stats(_ context.Context) (queue.Stats, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	stats := queue.Stats{
		Hosts:          len(q.hosts),
		Locations:      len(q.byID),
		ContentRecords: len(q.contents),
	}

	succeeded := make(map[int64]bool)
	for _, rec := range q.contents {
		if rec.Success {
			succeeded[rec.LocationID] = true
		}
	}
	stats.Succeeded = len(succeeded)

	for _, loc := range q.byID {
		if loc.IsPending() {
			stats.Pending++
		}
	}
	return stats, nil
}

// StartSession implements queue.WorkQueue.
func (q *Queue) StartSession(_ context.Context, session model.CrawlSession) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.sessions = append(q.sessions, session)
	return nil
}

// FinishSession implements queue.WorkQueue.
func (q *Queue) FinishSession(_ context.Context, session model.CrawlSession) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.sessions {
		if q.sessions[i].ID == session.ID {
			q.sessions[i] = session
			return nil
		}
	}
	return queue.ErrNotFound
}

// LatestSession implements queue.WorkQueue.
func (q *Queue) LatestSession(_ context.Context) (*model.CrawlSession, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if len(q.sessions) == 0 {
		return nil, queue.ErrNotFound
	}
	latest := q.sessions[0]
	for _, s := range q.sessions[1:] {
		if s.StartedAt >= latest.StartedAt {
			latest = s
		}
	}
	return &latest, nil
}

// Close implements queue.WorkQueue. The queue remains usable afterwards.
func (q *Queue) Close() error {
	return nil
}
