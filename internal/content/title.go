package content

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxTitleLength caps stored titles. Some pages stuff keywords into <title>.
const maxTitleLength = 512

// Title returns the whitespace-collapsed text of the first <title> element
// of an HTML document, or "" if there is none. Titles inside <svg> are
// ignored.
func Title(body string) string {
	z := html.NewTokenizer(strings.NewReader(body))

	inTitle := false
	svgDepth := 0
	var b strings.Builder

	for {
		switch z.Next() {
		case html.ErrorToken:
			return finishTitle(b.String())
		case html.StartTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Svg:
				svgDepth++
			case atom.Title:
				if svgDepth == 0 {
					inTitle = true
				}
			}
		case html.EndTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Svg:
				if svgDepth > 0 {
					svgDepth--
				}
			case atom.Title:
				if inTitle {
					return finishTitle(b.String())
				}
			}
		case html.TextToken:
			if inTitle {
				b.Write(z.Text())
			}
		}
	}
}

func finishTitle(raw string) string {
	title := strings.Join(strings.Fields(raw), " ")
	if len(title) > maxTitleLength {
		title = strings.ToValidUTF8(title[:maxTitleLength], "")
	}
	return title
}
