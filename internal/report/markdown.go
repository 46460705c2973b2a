package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/onionspider/internal/model"
)

// MarkdownWriter outputs the status in GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the status in Markdown format.
func (w *MarkdownWriter) Write(status *Status) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Status")
	md.PlainText("")

	w.writeQueue(md, status)
	w.writeSession(md, status.Session)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated %s*", status.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST"))

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeQueue(md *markdown.Markdown, status *Status) {
	st := status.Stats

	md.H2("Work Queue")
	md.PlainText("")

	rows := [][]string{
		{"Hosts", strconv.Itoa(st.Hosts)},
		{"Locations", strconv.Itoa(st.Locations)},
		{"Pending", strconv.Itoa(st.Pending)},
		{"Attempted", strconv.Itoa(status.Attempted())},
		{"Succeeded", strconv.Itoa(st.Succeeded)},
		{"Content records", strconv.Itoa(st.ContentRecords)},
	}
	if status.Backend != "" {
		rows = append([][]string{{"Backend", "`" + status.Backend + "`"}}, rows...)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if st.Locations > 0 {
		w.writePieChart(md, status)
	}
}

// writePieChart writes the split of Locations by crawl state.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, status *Status) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Locations"),
		piechart.WithShowData(true),
	)

	failed := status.Attempted() - status.Stats.Succeeded
	slices := []struct {
		label string
		count int
	}{
		{"Pending", status.Stats.Pending},
		{"Succeeded", status.Stats.Succeeded},
		{"Attempted, never succeeded", failed},
	}
	for _, s := range slices {
		if s.count > 0 {
			chart.LabelAndIntValue(s.label, uint64(s.count))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeSession(md *markdown.Markdown, s *model.CrawlSession) {
	md.H2("Latest Session")
	md.PlainText("")

	if s == nil {
		md.Note("No crawl session recorded yet. Run `onionspider crawl` with a seed file.")
		md.PlainText("")
		return
	}

	rows := [][]string{
		{"ID", "`" + s.ID + "`"},
		{"Status", string(s.Status)},
		{"Started", formatMillis(s.StartedAt)},
		{"Finished", formatMillis(s.FinishedAt)},
		{"Slots", strconv.Itoa(s.Slots)},
		{"Hop depth", strconv.Itoa(s.HopDepth)},
		{"Seeded", strconv.Itoa(s.Seeded)},
		{"Dispatched", strconv.Itoa(s.Dispatched)},
		{"Succeeded", strconv.Itoa(s.Succeeded)},
		{"Failed", strconv.Itoa(s.Failed)},
	}
	if d := sessionDuration(s); d > 0 {
		rows = append(rows, []string{"Duration", d.String()})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	switch s.Status {
	case model.SessionRunning:
		md.Warningf("The session has no finish time. It is still running or the process was killed.")
		md.PlainText("")
	case model.SessionNoPendingData:
		md.Tip("The last session found nothing to crawl. Pass a seed file to `onionspider crawl`.")
		md.PlainText("")
	}
}
