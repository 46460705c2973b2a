package model

import "net/http"

// FetchResponse is the outcome of one fetch through the gateway.
// Body and MimeType are empty when the response did not carry them.
type FetchResponse struct {
	// StatusCode is the HTTP status code, or 0 if no response was received.
	StatusCode int

	// Host is the normalized base URL that was fetched.
	Host string

	// Path is the request path that was fetched.
	Path string

	// Body is the response body decoded to UTF-8, possibly truncated.
	Body string

	// MimeType is the response media type without parameters.
	MimeType string

	// Title is the HTML <title>, if the body was HTML.
	Title string

	// Timestamp is the fetch completion time in unix milliseconds.
	Timestamp int64
}

// Successful reports whether the fetch counts as a successful attempt.
// Only HTTP 200 is a success; redirects have already been followed.
func (r *FetchResponse) Successful() bool {
	return r.StatusCode == http.StatusOK
}

// ToContentRecord builds the ContentRecord of this attempt.
// The success flag is taken from the status code before missing fields
// are replaced with PlaceholderMissing, so the placeholders never
// influence it.
func (r *FetchResponse) ToContentRecord(locationID int64) ContentRecord {
	record := ContentRecord{
		LocationID: locationID,
		ScrapedAt:  r.Timestamp,
		Success:    r.Successful(),
		StatusCode: r.StatusCode,
		MimeType:   r.MimeType,
		Title:      r.Title,
		Body:       r.Body,
	}

	if record.Body == "" {
		record.Body = PlaceholderMissing
	}
	if record.MimeType == "" {
		record.MimeType = PlaceholderMissing
	}

	return record
}
