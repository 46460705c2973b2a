// Package content normalizes fetched response bodies before they are
// stored as content records.
//
// Hidden services serve pages in whatever encoding their operators chose,
// often without declaring it. Decode converts a body to UTF-8 using the
// Content-Type header, a byte order mark or a <meta charset> tag, in the
// order the HTML5 encoding sniffing algorithm prescribes. Title pulls the
// text of the first <title> element out of an HTML document.
package content
