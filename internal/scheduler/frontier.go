package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/nao1215/onionspider/internal/metrics"
	"github.com/nao1215/onionspider/internal/model"
	"github.com/nao1215/onionspider/internal/queue"
)

// frontier is the page cache shared by all workers.
type frontier struct {
	queue       queue.WorkQueue
	pageSize    int
	stableSince int64
	metrics     metrics.Recorder

	mu      sync.Mutex
	cache   []model.Location
	offset  int
	reads   int
	handed  map[int64]struct{}
	hasRead bool
}

func newFrontier(q queue.WorkQueue, pageSize int, stableSince int64, rec metrics.Recorder) *frontier {
	return &frontier{
		queue:       q,
		pageSize:    pageSize,
		stableSince: stableSince,
		metrics:     rec,
		handed:      make(map[int64]struct{}),
	}
}

// prime performs the initial read and returns the number of rows cached.
func (f *frontier) prime(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.read(ctx)
}

// next removes the oldest cached Location. If the cache is empty it is
// refilled first; ok is false when the refill returned no rows.
func (f *frontier) next(ctx context.Context) (loc model.Location, ok bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		for len(f.cache) > 0 {
			loc = f.cache[0]
			f.cache = f.cache[1:]

			// Rows attempted earlier in this session stay in the window to
			// keep offsets stable; they are skipped here.
			if !loc.IsPending() {
				continue
			}
			if _, dup := f.handed[loc.ID]; dup {
				continue
			}
			f.handed[loc.ID] = struct{}{}
			return loc, true, nil
		}

		n, err := f.read(ctx)
		if err != nil {
			return model.Location{}, false, err
		}
		if n == 0 {
			return model.Location{}, false, nil
		}
	}
}

// read appends one page to the cache and advances the offset by the
// number of rows returned. The caller holds f.mu.
func (f *frontier) read(ctx context.Context) (int, error) {
	locations, _, err := f.queue.QueryPending(ctx, queue.PendingQuery{
		Threshold:   model.NeverScraped,
		StableSince: f.stableSince,
		Limit:       f.pageSize,
		Offset:      f.offset,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to query pending locations at offset %d: %w", f.offset, err)
	}

	if f.hasRead {
		f.reads++
	}
	f.hasRead = true

	f.metrics.RecordRefill(len(locations))

	f.offset += len(locations)
	f.cache = append(f.cache, locations...)
	return len(locations), nil
}

// refills returns the number of reads after the initial one.
func (f *frontier) refills() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// position returns the current read offset.
func (f *frontier) position() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offset
}
