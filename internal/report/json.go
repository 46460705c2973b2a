package report

import (
	"bytes"
	"encoding/json"
	"io"
)

// JSONWriter outputs the status as one JSON document followed by a newline.
type JSONWriter struct {
	baseWriter

	prefix string
	indent string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented output. prefix starts every line and
// indent is repeated once per nesting level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.prefix = prefix
		w.indent = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
// Output is compact unless WithIndent or WithPrettyPrint is given.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write encodes status. Nothing reaches the output if encoding fails.
func (w *JSONWriter) Write(status *Status) (int, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetIndent(w.prefix, w.indent)
	if err := enc.Encode(status); err != nil {
		return 0, err
	}

	return w.output.Write(buf.Bytes())
}
