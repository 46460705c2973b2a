package model

// SessionStatus is the terminal state of a crawl session.
type SessionStatus string

const (
	// SessionRunning marks a session that has not finished (or crashed).
	SessionRunning SessionStatus = "running"
	// SessionExhausted marks a session whose frontier was drained.
	SessionExhausted SessionStatus = "exhausted"
	// SessionNoPendingData marks a session that found nothing to crawl at startup.
	SessionNoPendingData SessionStatus = "no_pending_data"
	// SessionCancelled marks a session stopped by a signal or context cancellation.
	SessionCancelled SessionStatus = "cancelled"
	// SessionFailed marks a session that stopped on an unrecoverable error.
	SessionFailed SessionStatus = "failed"
)

// CrawlSession records one run of the crawl command.
type CrawlSession struct {
	// ID is a random UUID assigned when the session starts.
	ID string `json:"id"`

	// StartedAt and FinishedAt are unix milliseconds. FinishedAt is 0 while running.
	StartedAt  int64 `json:"started_at"`
	FinishedAt int64 `json:"finished_at,omitempty"`

	// HopDepth is the configured hop-depth cutoff. It is recorded but not enforced.
	HopDepth int `json:"hop_depth"`

	// Slots is the number of concurrent fetch slots used.
	Slots int `json:"slots"`

	// Seeded is the number of distinct URIs upserted during ingestion.
	Seeded int `json:"seeded"`

	// Dispatched, Succeeded and Failed count fetch attempts.
	Dispatched int `json:"dispatched"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`

	// Status is the terminal state.
	Status SessionStatus `json:"status"`
}
