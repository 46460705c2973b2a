// Package report renders the state of a crawl.
//
// A Status combines the Work Queue statistics with the most recent crawl
// session. Three writers render it:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter: JSON for scripts and monitoring
//   - MarkdownWriter: Markdown for sharing, built with nao1215/markdown
//
// Writers implement the Writer interface and can be combined with
// MultiWriter.
package report
