package queuestore

import (
	"context"

	"github.com/roach88/sqlcoll/internal/cursor"
	"github.com/roach88/sqlcoll/internal/record"
	"github.com/roach88/sqlcoll/internal/txn"
)

// Add appends content to the tail of the queue.
func (s *Store) Add(ctx context.Context, content *string) (bool, error) {
	return s.AddTx(ctx, nil, content, nil)
}

// AddTx is Add inside tx.
func (s *Store) AddTx(ctx context.Context, tx *txn.Tx, content *string, next txn.Next[bool]) (bool, error) {
	return s.AddAllTx(ctx, tx, []*string{content}, next)
}

// Offer is Add. The queue is unbounded, so it only fails on storage errors.
func (s *Store) Offer(ctx context.Context, content *string) (bool, error) {
	return s.Add(ctx, content)
}

// OfferTx is Offer inside tx.
func (s *Store) OfferTx(ctx context.Context, tx *txn.Tx, content *string, next txn.Next[bool]) (bool, error) {
	return s.AddTx(ctx, tx, content, next)
}

// Peek returns the head of the queue without removing it. ok is false when
// the queue is empty.
func (s *Store) Peek(ctx context.Context) (content *string, ok bool, err error) {
	return contentOf(s.PeekTx(ctx, nil, nil))
}

// PeekTx returns the head entry, or nil.
func (s *Store) PeekTx(ctx context.Context, tx *txn.Tx, next txn.Next[*record.QueueEntry]) (*record.QueueEntry, error) {
	return s.ElementAfterTx(ctx, tx, Head, next)
}

// Poll removes and returns the head of the queue. ok is false when the
// queue is empty.
func (s *Store) Poll(ctx context.Context) (content *string, ok bool, err error) {
	return contentOf(s.PollTx(ctx, nil, nil))
}

// PollTx removes and returns the head entry, or nil.
func (s *Store) PollTx(ctx context.Context, tx *txn.Tx, next txn.Next[*record.QueueEntry]) (*record.QueueEntry, error) {
	return s.RemoveAfterTx(ctx, tx, Head, next)
}

// Element is Peek failing with record.ErrNoSuchElement on an empty queue.
func (s *Store) Element(ctx context.Context) (*string, error) {
	return required(s.ElementTx(ctx, nil, nil))
}

// ElementTx is Element inside tx. next only runs when there is a head.
func (s *Store) ElementTx(ctx context.Context, tx *txn.Tx, next txn.Next[*record.QueueEntry]) (*record.QueueEntry, error) {
	return s.PeekTx(ctx, tx, requireNext(next))
}

// Remove is Poll failing with record.ErrNoSuchElement on an empty queue.
func (s *Store) Remove(ctx context.Context) (*string, error) {
	return required(s.RemoveTx(ctx, nil, nil))
}

// RemoveTx is Remove inside tx. next only runs when there is a head.
func (s *Store) RemoveTx(ctx context.Context, tx *txn.Tx, next txn.Next[*record.QueueEntry]) (*record.QueueEntry, error) {
	return s.PollTx(ctx, tx, requireNext(next))
}

// RemoveValue removes the earliest entry with the given content and reports
// whether there was one.
func (s *Store) RemoveValue(ctx context.Context, content *string) (bool, error) {
	e, err := s.RemoveFirstMatch(ctx, content)
	return e != nil, err
}

// RemoveValueTx is RemoveValue inside tx.
func (s *Store) RemoveValueTx(ctx context.Context, tx *txn.Tx, content *string, next txn.Next[*record.QueueEntry]) (bool, error) {
	e, err := s.RemoveFirstMatchTx(ctx, tx, content, next)
	return e != nil, err
}

// RemoveAll removes every entry whose content is one of contents and reports
// whether the queue changed.
func (s *Store) RemoveAll(ctx context.Context, contents []*string) (bool, error) {
	return s.RemoveAllTx(ctx, nil, contents, nil)
}

// RemoveAllTx is RemoveAll inside tx.
func (s *Store) RemoveAllTx(ctx context.Context, tx *txn.Tx, contents []*string, next txn.Next[[]record.QueueEntry]) (bool, error) {
	removed, err := s.RemoveAllMatchesTx(ctx, tx, contents, MatchIn, next)
	return len(removed) != 0, err
}

// RetainAll removes every entry whose content is not one of contents and
// reports whether the queue changed. An empty contents slice keeps the queue
// as is.
func (s *Store) RetainAll(ctx context.Context, contents []*string) (bool, error) {
	return s.RetainAllTx(ctx, nil, contents, nil)
}

// RetainAllTx is RetainAll inside tx.
func (s *Store) RetainAllTx(ctx context.Context, tx *txn.Tx, contents []*string, next txn.Next[[]record.QueueEntry]) (bool, error) {
	removed, err := s.RemoveAllMatchesTx(ctx, tx, contents, MatchNotIn, next)
	return len(removed) != 0, err
}

// Size returns the number of entries.
func (s *Store) Size(ctx context.Context) (int, error) {
	return s.SizeAfter(ctx, Head)
}

// SizeTx is Size inside tx.
func (s *Store) SizeTx(ctx context.Context, tx *txn.Tx, next txn.Next[int]) (int, error) {
	return s.SizeAfterTx(ctx, tx, Head, next)
}

// IsEmpty reports whether the queue has no entries.
func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	n, err := s.Size(ctx)
	return n == 0, err
}

// Iterator returns a cursor over the queue in FIFO order. Each step runs in
// its own transaction.
func (s *Store) Iterator(ctx context.Context) (*cursor.Iterator, error) {
	return cursor.Open(ctx, s)
}

// IteratorTx returns a cursor whose steps participate in tx.
func (s *Store) IteratorTx(ctx context.Context, tx *txn.Tx) (*cursor.Iterator, error) {
	return cursor.OpenTx(ctx, s, tx)
}

// ForEach calls fn for every entry in FIFO order inside one transaction. It
// owns the transaction when tx is nil. An error from fn stops the walk and
// is returned.
func (s *Store) ForEach(ctx context.Context, tx *txn.Tx, fn func(ctx context.Context, tx *txn.Tx, e record.QueueEntry) error) error {
	return txn.Do(ctx, s.coord, tx, func(tx *txn.Tx) error {
		it, err := cursor.OpenTx(ctx, s, tx)
		if err != nil {
			return err
		}
		for it.HasNext() {
			e, err := it.NextEntry(ctx)
			if err != nil {
				return err
			}
			if err := fn(ctx, tx, *e); err != nil {
				return err
			}
		}
		return nil
	})
}

func contentOf(e *record.QueueEntry, err error) (*string, bool, error) {
	if err != nil || e == nil {
		return nil, false, err
	}
	return e.Content, true, nil
}

func required(e *record.QueueEntry, err error) (*string, error) {
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, record.ErrNoSuchElement
	}
	return e.Content, nil
}

// requireNext wraps next to fail with record.ErrNoSuchElement when the peeked
// entry is nil, so an owning call on an empty queue reports the error too.
func requireNext(next txn.Next[*record.QueueEntry]) txn.Next[*record.QueueEntry] {
	return func(ctx context.Context, tx *txn.Tx, e *record.QueueEntry) error {
		if e == nil {
			return record.ErrNoSuchElement
		}
		return next.Call(ctx, tx, e)
	}
}
