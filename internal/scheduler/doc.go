// Package scheduler drives a crawl over a WorkQueue.
//
// A Scheduler first ingests seed text, upserting every onion URI it finds
// as a never-attempted Location. Run then keeps every fetch slot of the
// gateway busy: one worker per slot pulls the next Location from a shared
// frontier, fetches it, and folds the outcome back into the queue.
//
// # Frontier
//
// The frontier is a FIFO page cache over QueryPending. A single mutex
// guards both the cache and the read offset, and a worker that finds the
// cache empty refills it while holding that mutex, so refill and dequeue
// are one step. The offset only grows, by the number of rows each read
// returned, and is never reset.
//
// Every read passes the session start as PendingQuery.StableSince.
// Locations attempted during the session therefore keep matching the
// query, and the rows before the offset never change underneath it.
//
// # Fold-back
//
// A fetch is successful only for HTTP 200. The Location is upserted first,
// with the response timestamp and the success flag, and only then is the
// ContentRecord appended. Missing bodies and MIME types are stored as
// model.PlaceholderMissing. Transport failures are stored as attempts with
// status code 0. A crash between the two writes leaves a Location marked
// attempted without content.
//
// # Termination
//
// Run returns StatusNoPendingData without fetching anything when the first
// read is empty. Otherwise a worker exits as soon as a refill comes back
// empty, and Run returns StatusExhausted once every worker has exited.
package scheduler
