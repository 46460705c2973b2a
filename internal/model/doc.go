// Package model defines the core data structures used throughout onionspider.
//
// This package contains the following main types:
//   - OnionURI: A crawl target extracted from seed text
//   - Host and Location: The persisted crawl frontier
//   - ContentRecord: One stored fetch attempt of a Location
//   - FetchResponse: The outcome of a single fetch through the gateway
//   - CrawlSession: Bookkeeping for one crawl run
//
// The models live in their own package because the queue backends, the
// gateway and the scheduler all exchange them.
package model
