// Package queuestore provides a persistent FIFO queue of nullable strings
// backed by one relational table per instance.
//
//	seq_id (PK, auto increment) | content_digest | content (NULL) | write_ts
//
// Rows are never updated. FIFO order is seq_id ascending, which is insertion
// order. Removal of the head reads the first row after a position and deletes
// it by seq_id in the same transaction; if the delete affects no row another
// poller took it first and the next candidate is read.
//
// The core operations (SizeAfter, ElementAfter, RemoveAfter, ...) address
// rows by position and back the queue methods (Add, Peek, Poll, ...) and the
// cursor package. Like the map store, each has an owning form and an OpTx
// form taking a transaction handle and a continuation.
//
// Content matching is by digest: NULL, empty and blank contents are equal.
package queuestore
