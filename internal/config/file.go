package config

import "time"

// TorFile is the tor section of the configuration file.
type TorFile struct {
	// Proxy is an external SOCKS5 proxy address. Setting it implies External.
	Proxy string `yaml:"proxy,omitempty"`

	// Port is the SOCKS port of a local Tor daemon.
	Port int `yaml:"port,omitempty"`

	// External disables the embedded Tor daemon.
	External *bool `yaml:"external,omitempty"`

	// StartupTimeout bounds the embedded daemon's bootstrap, e.g. "3m".
	StartupTimeout time.Duration `yaml:"startupTimeout,omitempty"`
}

// CrawlFile is the crawl section of the configuration file.
type CrawlFile struct {
	Slots       int           `yaml:"slots,omitempty"`
	HopDepth    *int          `yaml:"hopDepth,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	UserAgent   string        `yaml:"userAgent,omitempty"`
	MaxBodySize int64         `yaml:"maxBodySize,omitempty"`

	// Seeds are seed files read on every crawl, before any --seed flags.
	Seeds []string `yaml:"seeds,omitempty"`
}

// DatabaseFile is the database section of the configuration file.
type DatabaseFile struct {
	// Dir is the SQLite database directory.
	Dir string `yaml:"dir,omitempty"`

	// URL selects PostgreSQL.
	URL string `yaml:"url,omitempty"`
}

// File represents the structure of the .onionspider configuration file.
type File struct {
	Tor      TorFile      `yaml:"tor,omitempty"`
	Crawl    CrawlFile    `yaml:"crawl,omitempty"`
	Database DatabaseFile `yaml:"database,omitempty"`

	Metrics struct {
		// Addr is the listen address of the metrics server.
		Addr string `yaml:"addr,omitempty"`
	} `yaml:"metrics,omitempty"`

	Log struct {
		JSON    *bool `yaml:"json,omitempty"`
		Verbose *bool `yaml:"verbose,omitempty"`
	} `yaml:"log,omitempty"`
}

// Apply copies every value set in the file onto c. Unset values keep
// what c already had, so callers apply the file over the defaults and
// CLI flags over the result.
func (f *File) Apply(c *Config) {
	if f.Tor.Proxy != "" {
		c.TorProxyAddress = f.Tor.Proxy
		c.UseExternalTor = true
	}
	if f.Tor.Port != 0 {
		c.TorPort = f.Tor.Port
	}
	if f.Tor.External != nil {
		c.UseExternalTor = *f.Tor.External
	}
	if f.Tor.StartupTimeout != 0 {
		c.TorStartupTimeout = f.Tor.StartupTimeout
	}

	if f.Crawl.Slots != 0 {
		c.Slots = f.Crawl.Slots
	}
	if f.Crawl.HopDepth != nil {
		c.HopDepth = *f.Crawl.HopDepth
	}
	if f.Crawl.Timeout != 0 {
		c.Timeout = f.Crawl.Timeout
	}
	if f.Crawl.UserAgent != "" {
		c.UserAgent = f.Crawl.UserAgent
	}
	if f.Crawl.MaxBodySize != 0 {
		c.MaxBodySize = f.Crawl.MaxBodySize
	}
	if len(f.Crawl.Seeds) > 0 {
		c.SeedFiles = append(append([]string(nil), f.Crawl.Seeds...), c.SeedFiles...)
	}

	if f.Database.Dir != "" {
		c.DBDir = f.Database.Dir
	}
	if f.Database.URL != "" {
		c.DatabaseURL = f.Database.URL
	}

	if f.Metrics.Addr != "" {
		c.MetricsAddr = f.Metrics.Addr
	}

	if f.Log.JSON != nil {
		c.LogJSON = *f.Log.JSON
	}
	if f.Log.Verbose != nil {
		c.Verbose = *f.Log.Verbose
	}
}
