// Package tor provides the network side of the crawler.
//
// Client dials through a Tor SOCKS5 proxy (golang.org/x/net/proxy) and
// builds HTTP clients for onion services. CheckConnection probes the proxy
// with a SOCKS5 handshake before a crawl starts. EmbeddedTor runs a
// private daemon through tornago for hosts without a system Tor.
//
// Gateway is the Fetch Gateway used by the scheduler: a fixed number of
// slots, one GET per Fetch, no retry. Responses carry the status code,
// the media type, a UTF-8 body and a timestamp in unix milliseconds.
//
// The onion helpers validate v3 checksums (SHA3-256) and classify hosts
// as v3, v2 or unknown.
package tor
