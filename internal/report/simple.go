package report

import (
	"fmt"
	"io"
	"strings"
)

// SimpleWriter outputs the status as aligned plain text.
type SimpleWriter struct {
	baseWriter
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer) *SimpleWriter {
	return &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the status in human-readable format.
func (w *SimpleWriter) Write(status *Status) (int, error) {
	var sb strings.Builder

	w.writeQueue(&sb, status)
	w.writeSession(&sb, status)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeQueue(sb *strings.Builder, status *Status) {
	sb.WriteString("WORK QUEUE")
	if status.Backend != "" {
		fmt.Fprintf(sb, " (%s)", status.Backend)
	}
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 40))
	sb.WriteString("\n")

	st := status.Stats
	fmt.Fprintf(sb, "Hosts:           %d\n", st.Hosts)
	fmt.Fprintf(sb, "Locations:       %d\n", st.Locations)
	fmt.Fprintf(sb, "  Pending:       %d\n", st.Pending)
	fmt.Fprintf(sb, "  Attempted:     %d\n", status.Attempted())
	fmt.Fprintf(sb, "  Succeeded:     %d\n", st.Succeeded)
	fmt.Fprintf(sb, "Content records: %d\n", st.ContentRecords)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSession(sb *strings.Builder, status *Status) {
	sb.WriteString("LATEST SESSION\n")
	sb.WriteString(strings.Repeat("-", 40))
	sb.WriteString("\n")

	s := status.Session
	if s == nil {
		sb.WriteString("No crawl session recorded.\n")
		return
	}

	fmt.Fprintf(sb, "ID:         %s\n", s.ID)
	fmt.Fprintf(sb, "Status:     %s\n", s.Status)
	fmt.Fprintf(sb, "Started:    %s\n", formatMillis(s.StartedAt))
	fmt.Fprintf(sb, "Finished:   %s\n", formatMillis(s.FinishedAt))
	if d := sessionDuration(s); d > 0 {
		fmt.Fprintf(sb, "Duration:   %s\n", d)
	}
	fmt.Fprintf(sb, "Slots:      %d\n", s.Slots)
	fmt.Fprintf(sb, "Seeded:     %d\n", s.Seeded)
	fmt.Fprintf(sb, "Dispatched: %d (%d succeeded, %d failed)\n", s.Dispatched, s.Succeeded, s.Failed)
}
