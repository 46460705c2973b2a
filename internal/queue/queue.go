package queue

import (
	"context"
	"errors"

	"github.com/nao1215/onionspider/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrInvalidLocation is returned when an upsert has an empty host.
var ErrInvalidLocation = errors.New("invalid location: host must not be empty")

// PendingQuery selects Locations that are due for a fetch.
type PendingQuery struct {
	// Threshold selects Locations whose lastScrapedAt is at or below it.
	// model.NeverScraped (0) selects only never-attempted Locations.
	Threshold int64

	// StableSince, when positive, also selects Locations whose lastScrapedAt
	// is at or after it. A scheduler passes its session start here so that
	// Locations attempted during the session keep their place in the
	// ordering and an advancing offset does not skip rows.
	StableSince int64

	// Limit is the maximum number of rows to return. Zero returns nothing.
	Limit int

	// Offset is the number of matching rows to skip.
	Offset int
}

// Stats summarizes the contents of a Work Queue.
type Stats struct {
	// Hosts is the number of distinct hosts.
	Hosts int `json:"hosts"`

	// Locations is the number of distinct (host, path) pairs.
	Locations int `json:"locations"`

	// Pending is the number of Locations never attempted.
	Pending int `json:"pending"`

	// Succeeded is the number of Locations with at least one successful fetch.
	Succeeded int `json:"succeeded"`

	// ContentRecords is the number of stored fetch attempts.
	ContentRecords int `json:"content_records"`
}

// WorkQueue is the persistent, ordered frontier of the crawl.
// Implementations must be safe for concurrent use.
type WorkQueue interface {
	// UpsertLocation creates the Host and the Location if absent, using
	// scrapedAt for both timestamps of a new Location. For an existing
	// Location it always sets lastScrapedAt to scrapedAt and sets
	// lastSuccessfulAt to scrapedAt only when successful is true.
	// It never creates a second row for the same (host, path).
	UpsertLocation(ctx context.Context, host, path string, scrapedAt int64, successful bool) (hostID, locationID int64, err error)

	// RecordContent appends one fetch attempt for a Location.
	RecordContent(ctx context.Context, record model.ContentRecord) (int64, error)

	// QueryPending returns up to q.Limit matching Locations ordered by
	// creation time ascending, skipping q.Offset rows. hasMore is true
	// iff at least one row was returned.
	QueryPending(ctx context.Context, q PendingQuery) (locations []model.Location, hasMore bool, err error)

	// GetLocation returns a Location by host and path, or ErrNotFound.
	GetLocation(ctx context.Context, host, path string) (*model.Location, error)

	// ContentHistory returns every ContentRecord of a Location, oldest first.
	ContentHistory(ctx context.Context, locationID int64) ([]model.ContentRecord, error)

	// Stats returns summary counts.
	Stats(ctx context.Context) (Stats, error)

	// StartSession inserts a new running CrawlSession.
	StartSession(ctx context.Context, session model.CrawlSession) error

	// FinishSession stores the final counters and status of a session.
	FinishSession(ctx context.Context, session model.CrawlSession) error

	// LatestSession returns the most recently started session, or ErrNotFound.
	LatestSession(ctx context.Context) (*model.CrawlSession, error)

	// Close releases the backend's resources.
	Close() error
}

// Matches reports whether a Location's lastScrapedAt satisfies q.
// Backends that filter in Go use it to stay consistent with the SQL ones.
func (q PendingQuery) Matches(lastScrapedAt int64) bool {
	if lastScrapedAt <= q.Threshold {
		return true
	}
	return q.StableSince > 0 && lastScrapedAt >= q.StableSince
}
