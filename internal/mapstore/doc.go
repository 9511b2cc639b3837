// Package mapstore provides a persistent string → nullable string map backed
// by one relational table per instance.
//
// Rows are keyed by the digest of the key:
//
//	key_digest (PK) | map_key | map_value (NULL) | value_digest | write_ts
//
// Writes are last-write-wins. Put reads the current row and then inserts or
// updates it inside one transaction, so concurrent puts on one key serialize
// on the engine's row lock. Write statements go through the retry executor.
//
// Every operation comes in two forms: Op(ctx, ...) owns its transaction, and
// OpTx(ctx, tx, ..., next) participates in tx (or owns one when tx is nil)
// and runs the continuation next inside the same transaction before
// returning. See package txn.
//
// A blank key cannot be written: blank texts all share the empty digest.
// Values are different: a NULL value, an empty value and a blank value share
// the empty value digest, so ContainsValue cannot tell them apart.
package mapstore
