package report

import (
	"io"
	"time"

	"github.com/nao1215/onionspider/internal/model"
	"github.com/nao1215/onionspider/internal/queue"
)

// Status is a snapshot of the Work Queue and its latest session.
type Status struct {
	// GeneratedAt is when the snapshot was taken.
	GeneratedAt time.Time `json:"generated_at"`

	// Backend names the Work Queue backend, e.g. "sqlite" or "postgres".
	Backend string `json:"backend"`

	// Stats are the queue totals.
	Stats queue.Stats `json:"stats"`

	// Session is the most recently started crawl session, or nil.
	Session *model.CrawlSession `json:"session,omitempty"`
}

// Attempted returns the number of Locations fetched at least once.
func (s *Status) Attempted() int {
	return s.Stats.Locations - s.Stats.Pending
}

// Writer renders a Status.
type Writer interface {
	// Write outputs the status and returns the number of bytes written.
	Write(status *Status) (int, error)
}

// MultiWriter writes to multiple Writers in order.
// It stops on the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the status to all configured Writers.
// Returns the total bytes written across all writers.
func (m *MultiWriter) Write(status *Status) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(status)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// formatMillis renders a unix millisecond timestamp, or "-" for zero.
func formatMillis(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05 MST")
}

// sessionDuration returns the session's run time, or 0 while running.
func sessionDuration(s *model.CrawlSession) time.Duration {
	if s.FinishedAt <= 0 || s.FinishedAt < s.StartedAt {
		return 0
	}
	return time.Duration(s.FinishedAt-s.StartedAt) * time.Millisecond
}
