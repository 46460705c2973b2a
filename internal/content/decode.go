package content

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// Decode converts raw to a UTF-8 string. contentType is the value of the
// Content-Type response header and may be empty. Invalid sequences in a
// UTF-8 body are replaced with U+FFFD.
func Decode(raw []byte, contentType string) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}

	enc, name, _ := charset.DetermineEncoding(raw, contentType)
	if name == "utf-8" {
		return string(bytes.ToValidUTF8(raw, []byte("\uFFFD"))), nil
	}

	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(raw), enc.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("failed to decode body as %s: %w", name, err)
	}
	return string(decoded), nil
}

// IsHTML reports whether a media type denotes an HTML document.
func IsHTML(mediaType string) bool {
	switch strings.ToLower(mediaType) {
	case "text/html", "application/xhtml+xml":
		return true
	default:
		return false
	}
}
