package model

import (
	"errors"
	"strings"
)

// OnionURI errors.
var (
	// ErrInvalidOnionURI is returned when a URI does not point at an onion host.
	ErrInvalidOnionURI = errors.New("invalid onion URI")
	// ErrUnsupportedScheme is returned for schemes other than http and https.
	ErrUnsupportedScheme = errors.New("unsupported URI scheme: expected http or https")
)

// OnionVersion represents the version of an onion address.
type OnionVersion int

const (
	// OnionVersionUnknown indicates an address that is neither a v2 nor a
	// checksum-valid v3 address. Such hosts are still crawled.
	OnionVersionUnknown OnionVersion = 0
	// OnionVersionV2 indicates a v2 onion address (16 characters, deprecated).
	OnionVersionV2 OnionVersion = 2
	// OnionVersionV3 indicates a v3 onion address with a valid checksum.
	OnionVersionV3 OnionVersion = 3
)

const (
	// onionSuffix is the .onion TLD suffix.
	onionSuffix = ".onion"
	// wwwPrefix is stripped from extracted hosts.
	wwwPrefix = "www."
	// unknownStr is the string representation for unknown values.
	unknownStr = "unknown"
)

// String returns the string representation of the OnionVersion.
func (v OnionVersion) String() string {
	switch v {
	case OnionVersionV2:
		return "v2"
	case OnionVersionV3:
		return "v3"
	default:
		return unknownStr
	}
}

// OnionURI is a crawl target found in seed text, split into host and path.
// It is an immutable value object; use NewOnionURI to build one.
type OnionURI struct {
	scheme  string
	host    string
	path    string
	version OnionVersion
}

// NewOnionURI builds an OnionURI from its parts. Scheme and host are
// lower-cased, a leading "www." is dropped and an empty path becomes "/".
// Version is informational only; callers that do not validate addresses
// pass OnionVersionUnknown.
func NewOnionURI(scheme, host, path string, version OnionVersion) (OnionURI, error) {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if scheme != "http" && scheme != "https" {
		return OnionURI{}, ErrUnsupportedScheme
	}

	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimPrefix(host, wwwPrefix)
	if !strings.HasSuffix(host, onionSuffix) || len(host) == len(onionSuffix) {
		return OnionURI{}, ErrInvalidOnionURI
	}

	return OnionURI{
		scheme:  scheme,
		host:    host,
		path:    NormalizePath(path),
		version: version,
	}, nil
}

// MustNewOnionURI creates a new OnionURI or panics if invalid.
// Use only for known-valid URIs in tests or initialization.
func MustNewOnionURI(scheme, host, path string) OnionURI {
	u, err := NewOnionURI(scheme, host, path, OnionVersionUnknown)
	if err != nil {
		panic(err)
	}
	return u
}

// Scheme returns "http" or "https".
func (u OnionURI) Scheme() string {
	return u.scheme
}

// Host returns the lower-cased onion host name, including the .onion suffix.
func (u OnionURI) Host() string {
	return u.host
}

// Path returns the request path, "/" when the URI had none.
func (u OnionURI) Path() string {
	return u.path
}

// Version returns the detected onion address version.
func (u OnionURI) Version() OnionVersion {
	return u.version
}

// BaseURL returns the normalized "scheme://host" string stored as Host.
func (u OnionURI) BaseURL() string {
	return u.scheme + "://" + u.host
}

// String returns the absolute URL.
func (u OnionURI) String() string {
	return u.BaseURL() + u.path
}

// IsZero returns true if this is a zero value (empty) OnionURI.
func (u OnionURI) IsZero() bool {
	return u.host == ""
}

// Equals returns true if two OnionURI values address the same Location.
// The version is not compared.
func (u OnionURI) Equals(other OnionURI) bool {
	return u.BaseURL() == other.BaseURL() && u.path == other.path
}
