package scheduler

import (
	"time"

	"github.com/nao1215/onionspider/internal/model"
)

// Status is the terminal state of Run.
type Status int

const (
	// StatusExhausted means every worker found the frontier empty.
	StatusExhausted Status = iota
	// StatusNoPendingData means the first read returned nothing, so there
	// was nothing to crawl. It is a clean stop, not an error.
	StatusNoPendingData
	// StatusCancelled means the context was cancelled before the frontier
	// was drained.
	StatusCancelled
	// StatusFailed means the queue could not be read.
	StatusFailed
)

// String returns the string representation of the Status.
func (s Status) String() string {
	switch s {
	case StatusExhausted:
		return "exhausted"
	case StatusNoPendingData:
		return "no pending data"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SessionStatus maps s to the status stored with a CrawlSession.
func (s Status) SessionStatus() model.SessionStatus {
	switch s {
	case StatusExhausted:
		return model.SessionExhausted
	case StatusNoPendingData:
		return model.SessionNoPendingData
	case StatusCancelled:
		return model.SessionCancelled
	default:
		return model.SessionFailed
	}
}

// Result summarizes one Run.
type Result struct {
	Status Status

	// StartedAt is the session start. Locations attempted during the run
	// carry a lastScrapedAt at or after it.
	StartedAt  time.Time
	FinishedAt time.Time

	// Dispatched counts fetches handed to the gateway. Succeeded and
	// Failed split the completed ones by outcome.
	Dispatched int
	Succeeded  int
	Failed     int

	// FoldBackErrors counts attempts whose state or content write failed.
	FoldBackErrors int

	// Refills counts pending-work reads after the initial one.
	Refills int

	// SlotReleases counts workers that exited on an empty refill.
	SlotReleases int
}

// Duration returns how long the run took.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
