package queuestore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/roach88/sqlcoll/internal/digest"
	"github.com/roach88/sqlcoll/internal/record"
	"github.com/roach88/sqlcoll/internal/retry"
	"github.com/roach88/sqlcoll/internal/sqldialect"
	"github.com/roach88/sqlcoll/internal/txn"
)

// AddAll appends contents in order. It returns false without issuing a
// statement for an empty input, otherwise whether any row was inserted.
func (s *Store) AddAll(ctx context.Context, contents []*string) (bool, error) {
	return s.AddAllTx(ctx, nil, contents, nil)
}

// AddAllTx is AddAll inside tx. next runs for an empty input too.
func (s *Store) AddAllTx(ctx context.Context, tx *txn.Tx, contents []*string, next txn.Next[bool]) (bool, error) {
	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) (bool, error) {
		if len(contents) == 0 {
			return false, next.Call(ctx, tx, false)
		}
		ts := s.now().UnixMilli()
		var inserted int64
		for start := 0; start < len(contents); start += batchSize {
			batch := contents[start:min(start+batchSize, len(contents))]
			n, err := s.insert(ctx, tx, batch, ts)
			if err != nil {
				return false, errors.Wrap(err, "insert entries")
			}
			inserted += n
		}
		changed := inserted > 0
		return changed, next.Call(ctx, tx, changed)
	})
}

// RemoveAfter deletes and returns the first entry positioned after seqID, or
// returns nil if there is none. RemoveAfter(Head) polls the queue.
func (s *Store) RemoveAfter(ctx context.Context, seqID int64) (*record.QueueEntry, error) {
	return s.RemoveAfterTx(ctx, nil, seqID, nil)
}

// RemoveAfterTx is RemoveAfter inside tx.
func (s *Store) RemoveAfterTx(ctx context.Context, tx *txn.Tx, seqID int64, next txn.Next[*record.QueueEntry]) (*record.QueueEntry, error) {
	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) (*record.QueueEntry, error) {
		e, err := s.takeFirst(ctx, tx, seqID, func(after int64) (*record.QueueEntry, error) {
			return s.elementAfter(ctx, tx, after)
		})
		if err != nil {
			return nil, err
		}
		return e, next.Call(ctx, tx, e)
	})
}

// RemoveBy deletes and returns the entry with the given seqID, or returns nil
// if it doesn't exist.
func (s *Store) RemoveBy(ctx context.Context, seqID int64) (*record.QueueEntry, error) {
	return s.RemoveByTx(ctx, nil, seqID, nil)
}

// RemoveByTx is RemoveBy inside tx.
func (s *Store) RemoveByTx(ctx context.Context, tx *txn.Tx, seqID int64, next txn.Next[*record.QueueEntry]) (*record.QueueEntry, error) {
	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) (*record.QueueEntry, error) {
		e, err := s.ElementByTx(ctx, tx, seqID, nil)
		if err != nil {
			return nil, err
		}
		if e != nil {
			n, err := s.deleteByIDs(ctx, tx, []any{e.SeqID})
			if err != nil {
				return nil, err
			}
			if n == 0 {
				e = nil
			}
		}
		return e, next.Call(ctx, tx, e)
	})
}

// RemoveFirstMatch deletes and returns the earliest entry with the given
// content, or returns nil if there is none.
func (s *Store) RemoveFirstMatch(ctx context.Context, content *string) (*record.QueueEntry, error) {
	return s.RemoveFirstMatchTx(ctx, nil, content, nil)
}

// RemoveFirstMatchTx is RemoveFirstMatch inside tx.
func (s *Store) RemoveFirstMatchTx(ctx context.Context, tx *txn.Tx, content *string, next txn.Next[*record.QueueEntry]) (*record.QueueEntry, error) {
	d := digest.Of(content)
	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) (*record.QueueEntry, error) {
		e, err := s.takeFirst(ctx, tx, Head, func(after int64) (*record.QueueEntry, error) {
			return s.firstMatch(ctx, tx, after, d)
		})
		if err != nil {
			return nil, err
		}
		return e, next.Call(ctx, tx, e)
	})
}

// RemoveAllMatches deletes the entries whose content is (MatchIn) or is not
// (MatchNotIn) one of contents, and returns them in FIFO order. An empty
// contents slice removes nothing in either mode.
func (s *Store) RemoveAllMatches(ctx context.Context, contents []*string, m Match) ([]record.QueueEntry, error) {
	return s.RemoveAllMatchesTx(ctx, nil, contents, m, nil)
}

// RemoveAllMatchesTx is RemoveAllMatches inside tx.
func (s *Store) RemoveAllMatchesTx(ctx context.Context, tx *txn.Tx, contents []*string, m Match, next txn.Next[[]record.QueueEntry]) ([]record.QueueEntry, error) {
	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) ([]record.QueueEntry, error) {
		removed := []record.QueueEntry{}
		if digests := contentDigests(contents); len(digests) != 0 {
			op := "IN"
			if m == MatchNotIn {
				op = "NOT IN"
			}
			matches, err := s.query(ctx, tx, `SELECT seq_id, content FROM `+s.quoted()+
				` WHERE content_digest `+op+` (`+sqldialect.Placeholders(len(digests))+`) ORDER BY seq_id ASC`, digests...)
			if err != nil {
				return nil, errors.Wrapf(err, "select entries %s", m)
			}
			if err := s.deleteEntries(ctx, tx, matches); err != nil {
				return nil, err
			}
			removed = matches
		}
		return removed, next.Call(ctx, tx, removed)
	})
}

// Clear deletes every entry and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	return s.ClearTx(ctx, nil, nil)
}

// ClearTx is Clear inside tx.
func (s *Store) ClearTx(ctx context.Context, tx *txn.Tx, next txn.Next[int64]) (int64, error) {
	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) (int64, error) {
		res, err := retry.Do(ctx, s.retry, func() (sql.Result, error) {
			return tx.ExecContext(ctx, `DELETE FROM `+s.quoted())
		})
		if err != nil {
			return 0, errors.Wrap(err, "clear queue")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, errors.Wrap(err, "clear queue")
		}
		return n, next.Call(ctx, tx, n)
	})
}

// takeFirst deletes the entry returned by find. When the delete affects no
// row the entry was taken by a concurrent writer and find is asked for the
// next candidate after it.
func (s *Store) takeFirst(ctx context.Context, tx *txn.Tx, after int64, find func(after int64) (*record.QueueEntry, error)) (*record.QueueEntry, error) {
	for {
		e, err := find(after)
		if err != nil || e == nil {
			return nil, err
		}
		n, err := s.deleteByIDs(ctx, tx, []any{e.SeqID})
		if err != nil {
			return nil, err
		}
		if n == 1 {
			return e, nil
		}
		after = e.SeqID
	}
}

// deleteEntries deletes entries by seq_id in batches.
func (s *Store) deleteEntries(ctx context.Context, tx *txn.Tx, entries []record.QueueEntry) error {
	for start := 0; start < len(entries); start += batchSize {
		batch := entries[start:min(start+batchSize, len(entries))]
		ids := make([]any, len(batch))
		for i, e := range batch {
			ids[i] = e.SeqID
		}
		if _, err := s.deleteByIDs(ctx, tx, ids); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) deleteByIDs(ctx context.Context, tx *txn.Tx, ids []any) (int64, error) {
	query := `DELETE FROM ` + s.quoted() + ` WHERE seq_id IN (` + sqldialect.Placeholders(len(ids)) + `)`
	res, err := retry.Do(ctx, s.retry, func() (sql.Result, error) {
		return tx.ExecContext(ctx, query, ids...)
	})
	if err != nil {
		return 0, errors.Wrap(err, "delete entries")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "delete entries")
}

func (s *Store) insert(ctx context.Context, tx *txn.Tx, contents []*string, ts int64) (int64, error) {
	var (
		b    strings.Builder
		args = make([]any, 0, 3*len(contents))
	)
	b.WriteString(`INSERT INTO ` + s.quoted() + ` (content_digest, content, write_ts) VALUES `)
	for i, c := range contents {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?)")
		args = append(args, digest.Of(c), nullable(c), ts)
	}

	res, err := retry.Do(ctx, s.retry, func() (sql.Result, error) {
		return tx.ExecContext(ctx, b.String(), args...)
	})
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullable(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
