package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/onionspider/internal/model"
	"github.com/nao1215/onionspider/internal/queue"
)

// createTestStatus creates a status with sample data for testing.
func createTestStatus() *Status {
	return &Status{
		GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Backend:     "sqlite",
		Stats: queue.Stats{
			Hosts:          2,
			Locations:      10,
			Pending:        4,
			Succeeded:      5,
			ContentRecords: 7,
		},
		Session: &model.CrawlSession{
			ID:         "2f1c7c1e-8e3b-4c47-9b3e-0c8f1d7a0b11",
			StartedAt:  time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC).UnixMilli(),
			FinishedAt: time.Date(2026, 1, 2, 3, 2, 0, 0, time.UTC).UnixMilli(),
			HopDepth:   3,
			Slots:      8,
			Seeded:     10,
			Dispatched: 6,
			Succeeded:  5,
			Failed:     1,
			Status:     model.SessionExhausted,
		},
	}
}

func TestStatusAttempted(t *testing.T) {
	t.Parallel()

	if got := createTestStatus().Attempted(); got != 6 {
		t.Errorf("Attempted() = %d, want 6", got)
	}
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes queue and session", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewSimpleWriter(&buf).Write(createTestStatus())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("returned %d bytes, buffer has %d", n, buf.Len())
		}

		output := buf.String()
		for _, want := range []string{
			"WORK QUEUE (sqlite)",
			"Locations:       10",
			"  Pending:       4",
			"  Attempted:     6",
			"Content records: 7",
			"2f1c7c1e-8e3b-4c47-9b3e-0c8f1d7a0b11",
			"Status:     exhausted",
			"Duration:   2m0s",
			"Dispatched: 6 (5 succeeded, 1 failed)",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("without session", func(t *testing.T) {
		t.Parallel()

		status := createTestStatus()
		status.Session = nil

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(status); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No crawl session recorded.") {
			t.Errorf("expected missing-session message, got:\n%s", buf.String())
		}
	})
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("compact", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestStatus()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if strings.Count(output, "\n") != 1 || !strings.HasSuffix(output, "\n") {
			t.Errorf("expected one line with trailing newline, got %q", output)
		}

		var decoded Status
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded.Stats.ContentRecords != 7 {
			t.Errorf("content_records = %d, want 7", decoded.Stats.ContentRecords)
		}
		if decoded.Session == nil || decoded.Session.Status != model.SessionExhausted {
			t.Errorf("session = %+v, want exhausted session", decoded.Session)
		}
	})

	t.Run("pretty print", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestStatus()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"stats\": {") {
			t.Errorf("expected indented output, got:\n%s", buf.String())
		}
	})

	t.Run("omits missing session", func(t *testing.T) {
		t.Parallel()

		status := createTestStatus()
		status.Session = nil

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(status); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), `"session"`) {
			t.Errorf("expected no session key, got %s", buf.String())
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes tables and chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestStatus()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# Crawl Status",
			"## Work Queue",
			"## Latest Session",
			"```mermaid",
			"Pending",
			"`sqlite`",
			"exhausted",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("empty queue has no chart", func(t *testing.T) {
		t.Parallel()

		status := &Status{GeneratedAt: time.Now()}

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(status); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if strings.Contains(output, "```mermaid") {
			t.Error("expected no pie chart for an empty queue")
		}
		if !strings.Contains(output, "No crawl session recorded yet.") {
			t.Errorf("expected missing-session note, got:\n%s", output)
		}
	})

	t.Run("running session warns", func(t *testing.T) {
		t.Parallel()

		status := createTestStatus()
		status.Session.Status = model.SessionRunning
		status.Session.FinishedAt = 0

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(status); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "still running") {
			t.Errorf("expected running warning, got:\n%s", buf.String())
		}
	})
}

type failingWriter struct{}

func (failingWriter) Write(*Status) (int, error) {
	return 0, errors.New("write failed")
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var text, js bytes.Buffer
		m := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))

		n, err := m.Write(createTestStatus())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != text.Len()+js.Len() {
			t.Errorf("returned %d bytes, want %d", n, text.Len()+js.Len())
		}
		if text.Len() == 0 || js.Len() == 0 {
			t.Error("expected both writers to receive output")
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var after bytes.Buffer
		m := NewMultiWriter(failingWriter{}, NewSimpleWriter(&after))
		if _, err := m.Write(createTestStatus()); err == nil {
			t.Error("expected error")
		}
		if after.Len() != 0 {
			t.Error("expected later writers to be skipped")
		}
	})
}

func TestFormatMillis(t *testing.T) {
	t.Parallel()

	if got := formatMillis(0); got != "-" {
		t.Errorf("formatMillis(0) = %q, want -", got)
	}
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := formatMillis(ts.UnixMilli()); got != "2026-01-02 03:04:05 UTC" {
		t.Errorf("formatMillis() = %q", got)
	}
}
