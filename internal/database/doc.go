// Package database provides the SQL backends of the crawl Work Queue.
//
// Two backends share one implementation of queue.WorkQueue:
//   - CrawlDB stores everything in a single SQLite file (modernc.org/sqlite,
//     no CGO) and is the default for a single crawler process.
//   - PostgresDB stores the same schema in PostgreSQL (lib/pq) so that
//     several processes can share one frontier.
//
// Schemas are versioned with golang-migrate. The migration files are
// embedded in the binary and applied every time a backend is opened.
//
// The schema has four tables:
//   - hosts: one row per normalized base URL
//   - locations: one row per (host, path), carrying the scrape timestamps
//   - contents: one row per fetch attempt (append-only)
//   - crawl_sessions: one row per run of the crawl command
package database
