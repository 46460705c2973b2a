package model

// PlaceholderMissing is stored in place of a body or MIME type that the
// fetch response did not carry. Consumers of ContentRecord can rely on
// both fields being non-empty.
const PlaceholderMissing = "[MISSING]"

// ContentRecord is the stored payload of one fetch attempt of a Location.
// Records are append-only: every attempt adds a new row.
type ContentRecord struct {
	// ID is the store-assigned identifier.
	ID int64 `json:"id"`

	// LocationID references the fetched Location.
	LocationID int64 `json:"location_id"`

	// ScrapedAt is the fetch timestamp in unix milliseconds.
	ScrapedAt int64 `json:"scraped_at"`

	// Success is true if the fetch returned HTTP 200.
	Success bool `json:"success"`

	// StatusCode is the HTTP status code, or 0 for transport failures.
	StatusCode int `json:"status_code"`

	// MimeType is the media type of the response without parameters.
	MimeType string `json:"mime_type"`

	// Title is the HTML <title> of the page, empty for other content.
	Title string `json:"title,omitempty"`

	// Body is the response body decoded to UTF-8.
	Body string `json:"body"`
}
