// Package config holds the crawler configuration: defaults, validation,
// the optional .onionspider YAML file and the XDG directories used for
// the database.
package config
