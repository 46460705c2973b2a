package model

import "strings"

// NeverScraped is the lastScrapedAt value of a Location that has not been
// attempted yet. Seed ingestion inserts Locations with this value so they
// are picked up by the next pending query.
const NeverScraped int64 = 0

// DefaultPath is the path assigned to a URI that has no path component.
const DefaultPath = "/"

// Host is a normalized base URL (scheme and authority, lower-cased).
// Hosts are created on first sighting and never mutated afterwards.
type Host struct {
	// ID is the store-assigned identifier.
	ID int64 `json:"id"`

	// BaseURL is the normalized "scheme://authority" string and the unique key.
	BaseURL string `json:"base_url"`
}

// Location is one crawlable resource, identified by its host and path.
// Exactly one Location exists per (Host, Path) pair.
type Location struct {
	// ID is the store-assigned identifier.
	ID int64 `json:"id"`

	// HostID references the owning Host.
	HostID int64 `json:"host_id"`

	// Host is the normalized base URL of the owning Host.
	// Backends fill it in on reads so callers do not need a second lookup.
	Host string `json:"host"`

	// Path is the request path, always starting with "/".
	Path string `json:"path"`

	// LastScrapedAt is the unix timestamp in milliseconds of the last fetch
	// attempt. NeverScraped (0) means the Location has never been attempted.
	LastScrapedAt int64 `json:"last_scraped_at"`

	// LastSuccessfulAt is the unix timestamp in milliseconds of the last
	// successful fetch. It is only ever advanced by a successful attempt.
	LastSuccessfulAt int64 `json:"last_successful_at"`

	// CreatedAt orders Locations for FIFO dispatch. It is assigned once,
	// on first insert, and is strictly increasing within a store.
	CreatedAt int64 `json:"created_at"`
}

// URL returns the absolute URL of the Location.
func (l Location) URL() string {
	return JoinURL(l.Host, l.Path)
}

// IsPending returns true if the Location has never been attempted.
func (l Location) IsPending() bool {
	return l.LastScrapedAt <= NeverScraped
}

// NormalizeHost lower-cases a base URL and strips a trailing slash.
func NormalizeHost(host string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), "/")
}

// NormalizePath returns path, or DefaultPath if path is empty.
// A missing leading slash is added.
func NormalizePath(path string) string {
	if path == "" {
		return DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

// JoinURL joins a normalized base URL and a path into an absolute URL.
func JoinURL(host, path string) string {
	return NormalizeHost(host) + NormalizePath(path)
}
