/*
Package queuetest contains a re-usable test suite that can be imported
and run against any object that implements the queue.WorkQueue interface.
*/
package queuetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	check "gopkg.in/check.v1"

	"github.com/nao1215/onionspider/internal/model"
	"github.com/nao1215/onionspider/internal/queue"
)

// BaseSuite defines a set of re-usable tests that can be executed against
// any concrete type that implements queue.WorkQueue. Embedding suites must
// call SetQueue with an empty queue before every test.
type BaseSuite struct {
	q queue.WorkQueue
}

// SetQueue configures the suite to run all tests against q.
func (s *BaseSuite) SetQueue(q queue.WorkQueue) {
	s.q = q
}

// TearDownTest closes the queue configured for the current test.
func (s *BaseSuite) TearDownTest(c *check.C) {
	if s.q != nil {
		c.Assert(s.q.Close(), check.IsNil)
		s.q = nil
	}
}

// TestUpsertCreatesLocation verifies that a first upsert uses scrapedAt
// for both timestamps.
func (s *BaseSuite) TestUpsertCreatesLocation(c *check.C) {
	ctx := context.Background()

	hostID, locID, err := s.q.UpsertLocation(ctx, "http://example.onion", "/foo", model.NeverScraped, false)
	c.Assert(err, check.IsNil)
	c.Assert(hostID, check.Not(check.Equals), int64(0))
	c.Assert(locID, check.Not(check.Equals), int64(0))

	loc, err := s.q.GetLocation(ctx, "http://example.onion", "/foo")
	c.Assert(err, check.IsNil)
	c.Assert(loc.ID, check.Equals, locID)
	c.Assert(loc.HostID, check.Equals, hostID)
	c.Assert(loc.Host, check.Equals, "http://example.onion")
	c.Assert(loc.Path, check.Equals, "/foo")
	c.Assert(loc.LastScrapedAt, check.Equals, model.NeverScraped)
	c.Assert(loc.LastSuccessfulAt, check.Equals, model.NeverScraped)
	c.Assert(loc.IsPending(), check.Equals, true)
}

// TestUpsertIsIdempotent verifies that repeated upserts of the same
// (host, path) never create a second row.
func (s *BaseSuite) TestUpsertIsIdempotent(c *check.C) {
	ctx := context.Background()

	_, first, err := s.q.UpsertLocation(ctx, "http://example.onion", "/foo", model.NeverScraped, false)
	c.Assert(err, check.IsNil)

	_, second, err := s.q.UpsertLocation(ctx, "HTTP://Example.onion/", "/foo", model.NeverScraped, false)
	c.Assert(err, check.IsNil)
	c.Assert(second, check.Equals, first)

	_, third, err := s.q.UpsertLocation(ctx, "http://example.onion", "/foo", 1000, true)
	c.Assert(err, check.IsNil)
	c.Assert(third, check.Equals, first)

	stats, err := s.q.Stats(ctx)
	c.Assert(err, check.IsNil)
	c.Assert(stats.Hosts, check.Equals, 1)
	c.Assert(stats.Locations, check.Equals, 1)
}

// TestUpsertEmptyPath verifies that an empty path is stored as "/".
func (s *BaseSuite) TestUpsertEmptyPath(c *check.C) {
	ctx := context.Background()

	_, locID, err := s.q.UpsertLocation(ctx, "http://example.onion", "", model.NeverScraped, false)
	c.Assert(err, check.IsNil)

	loc, err := s.q.GetLocation(ctx, "http://example.onion", "/")
	c.Assert(err, check.IsNil)
	c.Assert(loc.ID, check.Equals, locID)
	c.Assert(loc.Path, check.Equals, model.DefaultPath)
}

// TestUpsertRejectsEmptyHost verifies that an empty host is refused.
func (s *BaseSuite) TestUpsertRejectsEmptyHost(c *check.C) {
	_, _, err := s.q.UpsertLocation(context.Background(), "  ", "/", model.NeverScraped, false)
	c.Assert(err, check.Equals, queue.ErrInvalidLocation)
}

// TestUpsertSuccessfulUpdatesBothTimestamps verifies the successful branch
// of the timestamp rule.
func (s *BaseSuite) TestUpsertSuccessfulUpdatesBothTimestamps(c *check.C) {
	ctx := context.Background()

	_, _, err := s.q.UpsertLocation(ctx, "http://example.onion", "/", model.NeverScraped, false)
	c.Assert(err, check.IsNil)
	_, _, err = s.q.UpsertLocation(ctx, "http://example.onion", "/", 5000, true)
	c.Assert(err, check.IsNil)

	loc, err := s.q.GetLocation(ctx, "http://example.onion", "/")
	c.Assert(err, check.IsNil)
	c.Assert(loc.LastScrapedAt, check.Equals, int64(5000))
	c.Assert(loc.LastSuccessfulAt, check.Equals, int64(5000))
}

// TestUpsertFailedKeepsLastSuccessful verifies that a failed attempt only
// advances lastScrapedAt.
func (s *BaseSuite) TestUpsertFailedKeepsLastSuccessful(c *check.C) {
	ctx := context.Background()

	_, _, err := s.q.UpsertLocation(ctx, "http://example.onion", "/", model.NeverScraped, false)
	c.Assert(err, check.IsNil)
	_, _, err = s.q.UpsertLocation(ctx, "http://example.onion", "/", 5000, true)
	c.Assert(err, check.IsNil)
	_, _, err = s.q.UpsertLocation(ctx, "http://example.onion", "/", 9000, false)
	c.Assert(err, check.IsNil)

	loc, err := s.q.GetLocation(ctx, "http://example.onion", "/")
	c.Assert(err, check.IsNil)
	c.Assert(loc.LastScrapedAt, check.Equals, int64(9000))
	c.Assert(loc.LastSuccessfulAt, check.Equals, int64(5000))
}

// TestGetLocationNotFound verifies the not-found error.
func (s *BaseSuite) TestGetLocationNotFound(c *check.C) {
	_, err := s.q.GetLocation(context.Background(), "http://missing.onion", "/")
	c.Assert(err, check.Equals, queue.ErrNotFound)
}

// TestQueryPendingOrderAndPagination verifies that paging with an
// advancing offset enumerates every pending row exactly once in creation
// order, and that pages past the end are empty.
func (s *BaseSuite) TestQueryPendingOrderAndPagination(c *check.C) {
	ctx := context.Background()

	var want []int64
	for i := 0; i < 7; i++ {
		_, id, err := s.q.UpsertLocation(ctx, "http://example.onion", fmt.Sprintf("/page/%d", i), model.NeverScraped, false)
		c.Assert(err, check.IsNil)
		want = append(want, id)
	}

	var got []int64
	offset := 0
	for {
		page, hasMore, err := s.q.QueryPending(ctx, queue.PendingQuery{Limit: 3, Offset: offset})
		c.Assert(err, check.IsNil)
		c.Assert(hasMore, check.Equals, len(page) != 0)
		c.Assert(len(page) <= 3, check.Equals, true)
		if !hasMore {
			break
		}
		for _, loc := range page {
			got = append(got, loc.ID)
		}
		offset += len(page)
	}
	c.Assert(got, check.DeepEquals, want)

	// The offset is never reset: a later query past the end stays empty.
	page, hasMore, err := s.q.QueryPending(ctx, queue.PendingQuery{Limit: 3, Offset: offset + 3})
	c.Assert(err, check.IsNil)
	c.Assert(hasMore, check.Equals, false)
	c.Assert(page, check.HasLen, 0)
}

// TestQueryPendingZeroLimit verifies that a zero limit returns nothing.
func (s *BaseSuite) TestQueryPendingZeroLimit(c *check.C) {
	ctx := context.Background()

	_, _, err := s.q.UpsertLocation(ctx, "http://example.onion", "/", model.NeverScraped, false)
	c.Assert(err, check.IsNil)

	page, hasMore, err := s.q.QueryPending(ctx, queue.PendingQuery{Limit: 0})
	c.Assert(err, check.IsNil)
	c.Assert(hasMore, check.Equals, false)
	c.Assert(page, check.HasLen, 0)
}

// TestQueryPendingThreshold verifies that attempted rows are excluded
// once their lastScrapedAt exceeds the threshold.
func (s *BaseSuite) TestQueryPendingThreshold(c *check.C) {
	ctx := context.Background()

	_, pending, err := s.q.UpsertLocation(ctx, "http://a.onion", "/", model.NeverScraped, false)
	c.Assert(err, check.IsNil)
	_, _, err = s.q.UpsertLocation(ctx, "http://b.onion", "/", model.NeverScraped, false)
	c.Assert(err, check.IsNil)
	_, _, err = s.q.UpsertLocation(ctx, "http://b.onion", "/", 1000, false)
	c.Assert(err, check.IsNil)

	page, hasMore, err := s.q.QueryPending(ctx, queue.PendingQuery{Threshold: model.NeverScraped, Limit: 10})
	c.Assert(err, check.IsNil)
	c.Assert(hasMore, check.Equals, true)
	c.Assert(page, check.HasLen, 1)
	c.Assert(page[0].ID, check.Equals, pending)
	c.Assert(page[0].Host, check.Equals, "http://a.onion")

	page, _, err = s.q.QueryPending(ctx, queue.PendingQuery{Threshold: 1000, Limit: 10})
	c.Assert(err, check.IsNil)
	c.Assert(page, check.HasLen, 2)
}

// TestQueryPendingStableSince verifies that rows attempted at or after
// StableSince keep their position, so an advancing offset does not skip
// rows that are still pending.
func (s *BaseSuite) TestQueryPendingStableSince(c *check.C) {
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 4; i++ {
		_, id, err := s.q.UpsertLocation(ctx, "http://example.onion", fmt.Sprintf("/%d", i), model.NeverScraped, false)
		c.Assert(err, check.IsNil)
		ids = append(ids, id)
	}

	// An attempt from an earlier session drops out of the ordering.
	_, _, err := s.q.UpsertLocation(ctx, "http://example.onion", "/0", 100, true)
	c.Assert(err, check.IsNil)

	const sessionStart = int64(500)
	firstPage, _, err := s.q.QueryPending(ctx, queue.PendingQuery{StableSince: sessionStart, Limit: 2})
	c.Assert(err, check.IsNil)
	c.Assert(firstPage, check.HasLen, 2)
	c.Assert(firstPage[0].ID, check.Equals, ids[1])
	c.Assert(firstPage[1].ID, check.Equals, ids[2])

	// Attempts inside the session keep rows in place.
	for _, loc := range firstPage {
		_, _, err = s.q.UpsertLocation(ctx, loc.Host, loc.Path, sessionStart+10, true)
		c.Assert(err, check.IsNil)
	}

	secondPage, hasMore, err := s.q.QueryPending(ctx, queue.PendingQuery{StableSince: sessionStart, Limit: 2, Offset: 2})
	c.Assert(err, check.IsNil)
	c.Assert(hasMore, check.Equals, true)
	c.Assert(secondPage, check.HasLen, 1)
	c.Assert(secondPage[0].ID, check.Equals, ids[3])
}

// TestRecordContentHistory verifies that every attempt appends a record.
func (s *BaseSuite) TestRecordContentHistory(c *check.C) {
	ctx := context.Background()

	_, locID, err := s.q.UpsertLocation(ctx, "http://example.onion", "/", model.NeverScraped, false)
	c.Assert(err, check.IsNil)

	first := model.ContentRecord{
		LocationID: locID,
		ScrapedAt:  1000,
		Success:    false,
		StatusCode: 503,
		MimeType:   model.PlaceholderMissing,
		Body:       model.PlaceholderMissing,
	}
	second := model.ContentRecord{
		LocationID: locID,
		ScrapedAt:  2000,
		Success:    true,
		StatusCode: 200,
		MimeType:   "text/html",
		Title:      "hello",
		Body:       "<title>hello</title>",
	}

	id1, err := s.q.RecordContent(ctx, first)
	c.Assert(err, check.IsNil)
	id2, err := s.q.RecordContent(ctx, second)
	c.Assert(err, check.IsNil)
	c.Assert(id2, check.Not(check.Equals), id1)

	history, err := s.q.ContentHistory(ctx, locID)
	c.Assert(err, check.IsNil)
	c.Assert(history, check.HasLen, 2)

	first.ID, second.ID = id1, id2
	c.Assert(history[0], check.DeepEquals, first)
	c.Assert(history[1], check.DeepEquals, second)
}

// TestRecordContentUnknownLocation verifies that content for a missing
// Location is refused.
func (s *BaseSuite) TestRecordContentUnknownLocation(c *check.C) {
	_, err := s.q.RecordContent(context.Background(), model.ContentRecord{
		LocationID: 424242,
		MimeType:   model.PlaceholderMissing,
		Body:       model.PlaceholderMissing,
	})
	c.Assert(err, check.NotNil)
}

// TestStats verifies the summary counters.
func (s *BaseSuite) TestStats(c *check.C) {
	ctx := context.Background()

	_, a, err := s.q.UpsertLocation(ctx, "http://a.onion", "/", model.NeverScraped, false)
	c.Assert(err, check.IsNil)
	_, _, err = s.q.UpsertLocation(ctx, "http://a.onion", "/x", model.NeverScraped, false)
	c.Assert(err, check.IsNil)
	_, _, err = s.q.UpsertLocation(ctx, "http://b.onion", "/", model.NeverScraped, false)
	c.Assert(err, check.IsNil)

	_, _, err = s.q.UpsertLocation(ctx, "http://a.onion", "/", 1000, true)
	c.Assert(err, check.IsNil)
	_, err = s.q.RecordContent(ctx, model.ContentRecord{
		LocationID: a, ScrapedAt: 1000, Success: true, StatusCode: 200,
		MimeType: "text/plain", Body: "ok",
	})
	c.Assert(err, check.IsNil)

	stats, err := s.q.Stats(ctx)
	c.Assert(err, check.IsNil)
	c.Assert(stats, check.DeepEquals, queue.Stats{
		Hosts:          2,
		Locations:      3,
		Pending:        2,
		Succeeded:      1,
		ContentRecords: 1,
	})
}

// TestSessions verifies session bookkeeping.
func (s *BaseSuite) TestSessions(c *check.C) {
	ctx := context.Background()

	_, err := s.q.LatestSession(ctx)
	c.Assert(err, check.Equals, queue.ErrNotFound)

	older := model.CrawlSession{ID: uuid.NewString(), StartedAt: 1000, Slots: 2, Status: model.SessionRunning}
	newer := model.CrawlSession{ID: uuid.NewString(), StartedAt: 2000, Slots: 4, HopDepth: 3, Status: model.SessionRunning}
	c.Assert(s.q.StartSession(ctx, older), check.IsNil)
	c.Assert(s.q.StartSession(ctx, newer), check.IsNil)

	newer.FinishedAt = 3000
	newer.Seeded = 5
	newer.Dispatched = 5
	newer.Succeeded = 3
	newer.Failed = 2
	newer.Status = model.SessionExhausted
	c.Assert(s.q.FinishSession(ctx, newer), check.IsNil)

	latest, err := s.q.LatestSession(ctx)
	c.Assert(err, check.IsNil)
	c.Assert(*latest, check.DeepEquals, newer)

	unknown := model.CrawlSession{ID: uuid.NewString(), StartedAt: 1, Status: model.SessionFailed}
	c.Assert(s.q.FinishSession(ctx, unknown), check.Equals, queue.ErrNotFound)
}

// TestConcurrentUpserts verifies that concurrent upserts of the same
// (host, path) converge on a single row.
func (s *BaseSuite) TestConcurrentUpserts(c *check.C) {
	ctx := context.Background()

	const workers = 8
	ids := make([]int64, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ids[i], errs[i] = s.q.UpsertLocation(ctx, "http://example.onion", "/same", model.NeverScraped, false)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		c.Assert(errs[i], check.IsNil)
		c.Assert(ids[i], check.Equals, ids[0])
	}

	stats, err := s.q.Stats(ctx)
	c.Assert(err, check.IsNil)
	c.Assert(stats.Locations, check.Equals, 1)
}
