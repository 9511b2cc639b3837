// Package cursor walks a sequential source with keyset pagination: each step
// asks for the first row after the last one seen instead of paging by offset.
//
// An Iterator opened with Open runs every step in its own short transaction,
// so rows added or removed by other writers between steps are seen according
// to the engine's read-committed semantics. OpenTx walks inside one caller
// transaction. Iterators are forward-only and not safe for concurrent use.
package cursor

import (
	"context"

	"github.com/roach88/sqlcoll/internal/record"
	"github.com/roach88/sqlcoll/internal/txn"
)

// Head is the position before the first row.
const Head int64 = -1

// Source is a table whose rows are ordered by a unique, increasing id.
type Source interface {
	// ElementAfterTx returns the first entry with SeqID > after, or nil.
	ElementAfterTx(ctx context.Context, tx *txn.Tx, after int64, next txn.Next[*record.QueueEntry]) (*record.QueueEntry, error)
	// RemoveByTx deletes the entry with the given id and returns it, or nil.
	RemoveByTx(ctx context.Context, tx *txn.Tx, seqID int64, next txn.Next[*record.QueueEntry]) (*record.QueueEntry, error)
}

// Iterator is a forward-only cursor over a Source.
type Iterator struct {
	src          Source
	tx           *txn.Tx
	current      *record.QueueEntry
	lastReturned *record.QueueEntry
}

// Open returns an iterator positioned on the first entry of src. Each step
// owns its transaction.
func Open(ctx context.Context, src Source) (*Iterator, error) {
	return OpenTx(ctx, src, nil)
}

// OpenTx returns an iterator whose steps all participate in tx. A nil tx is
// the same as Open.
func OpenTx(ctx context.Context, src Source, tx *txn.Tx) (*Iterator, error) {
	it := &Iterator{src: src, tx: tx}
	first, err := src.ElementAfterTx(ctx, tx, Head, nil)
	if err != nil {
		return nil, err
	}
	it.current = first
	return it, nil
}

// HasNext reports whether Next will return an entry.
func (it *Iterator) HasNext() bool {
	return it.current != nil
}

// Next returns the content of the current entry and advances the cursor. It
// returns record.ErrNoSuchElement when the iterator is exhausted.
func (it *Iterator) Next(ctx context.Context) (*string, error) {
	e, err := it.NextEntry(ctx)
	if err != nil {
		return nil, err
	}
	return e.Content, nil
}

// NextEntry is Next returning the whole entry.
func (it *Iterator) NextEntry(ctx context.Context) (*record.QueueEntry, error) {
	if it.current == nil {
		return nil, record.ErrNoSuchElement
	}
	following, err := it.src.ElementAfterTx(ctx, it.tx, it.current.SeqID, nil)
	if err != nil {
		return nil, err
	}
	it.lastReturned, it.current = it.current, following
	return it.lastReturned, nil
}

// Remove deletes the entry last returned by Next. It returns
// record.ErrIllegalState if Next was not called since the last Remove.
func (it *Iterator) Remove(ctx context.Context) error {
	if it.lastReturned == nil {
		return record.ErrIllegalState
	}
	if _, err := it.src.RemoveByTx(ctx, it.tx, it.lastReturned.SeqID, nil); err != nil {
		return err
	}
	it.lastReturned = nil
	return nil
}
