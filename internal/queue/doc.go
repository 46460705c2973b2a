// Package queue defines the Work Queue: the durable record of discovered
// Locations and their crawl state.
//
// The WorkQueue interface is the only way the scheduler touches
// persistence. Backends live in separate packages (internal/database for
// SQLite and PostgreSQL, internal/queue/memory for tests) and are all
// checked against the shared suite in internal/queue/queuetest.
//
// # Pagination
//
// QueryPending is offset-paginated and ordered by creation time. Callers
// keep their own offset and advance it by the number of rows returned.
// hasMore only reports whether the page was non-empty; an empty page does
// not mean the queue is exhausted for good.
package queue
