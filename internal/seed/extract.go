package seed

import (
	"regexp"
	"strings"

	"github.com/nao1215/onionspider/internal/model"
	"github.com/nao1215/onionspider/internal/tor"
)

// onionURIPattern matches an http or https URL whose authority ends in
// .onion. Groups: 1 scheme, 2 optional "www.", 3 host, 4 optional path.
// The path stops at whitespace, quotes and angle brackets so that URLs
// embedded in HTML or CSV cells come out clean.
var onionURIPattern = regexp.MustCompile(`(?i)\b(https?)://(www\.)?((?:[a-z0-9-]+\.)*[a-z0-9-]+\.onion)\b(/[^\s"'<>]*)?`)

// trailingPunctuation is trimmed from paths. Prose often ends a URL with
// a period or wraps it in parentheses.
const trailingPunctuation = ".,;:!?)]}"

// Extract returns every onion URI in text, in order of appearance.
// Duplicates are kept; callers collapse them. Hosts are lower-cased with
// any "www." prefix removed, and an empty path becomes "/". The onion
// version is detected but never used to reject a match.
func Extract(text string) []model.OnionURI {
	matches := onionURIPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	uris := make([]model.OnionURI, 0, len(matches))
	for _, m := range matches {
		host := strings.ToLower(m[3])
		path := strings.TrimRight(m[4], trailingPunctuation)

		uri, err := model.NewOnionURI(m[1], host, path, tor.DetectVersion(host))
		if err != nil {
			continue
		}
		uris = append(uris, uri)
	}
	return uris
}

// ExtractGroups runs Extract over every cell of every group and returns
// the matches in input order.
func ExtractGroups(groups [][]string) []model.OnionURI {
	var uris []model.OnionURI
	for _, group := range groups {
		for _, cell := range group {
			uris = append(uris, Extract(cell)...)
		}
	}
	return uris
}
