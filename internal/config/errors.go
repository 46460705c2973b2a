package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidTimeout is returned when the fetch timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidSlots is returned when the slot count is not positive.
	ErrInvalidSlots = errors.New("invalid slots: must be at least 1")

	// ErrInvalidHopDepth is returned when the hop depth is negative.
	ErrInvalidHopDepth = errors.New("invalid hop depth: must be non-negative")

	// ErrInvalidTorPort is returned when the Tor port is outside 1-65535.
	ErrInvalidTorPort = errors.New("invalid tor port: must be between 1 and 65535")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 to keep the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrUnsupportedDatabaseURL is returned for database URLs that are not
	// postgres:// or postgresql://. SQLite is configured with the database
	// directory instead.
	ErrUnsupportedDatabaseURL = errors.New("unsupported database URL: expected postgres:// or postgresql://")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
