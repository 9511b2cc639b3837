package queuestore

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/roach88/sqlcoll/internal/digest"
	"github.com/roach88/sqlcoll/internal/record"
	"github.com/roach88/sqlcoll/internal/sqldialect"
	"github.com/roach88/sqlcoll/internal/txn"
)

// SizeAfter counts the entries positioned after seqID. SizeAfter(Head) is
// the queue length.
func (s *Store) SizeAfter(ctx context.Context, seqID int64) (int, error) {
	return s.SizeAfterTx(ctx, nil, seqID, nil)
}

// SizeAfterTx is SizeAfter inside tx.
func (s *Store) SizeAfterTx(ctx context.Context, tx *txn.Tx, seqID int64, next txn.Next[int]) (int, error) {
	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) (int, error) {
		var n int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+s.quoted()+` WHERE seq_id > ?`, seqID).Scan(&n)
		if err != nil {
			return 0, errors.Wrap(err, "count entries")
		}
		return n, next.Call(ctx, tx, n)
	})
}

// ElementAfter returns the first entry positioned after seqID, or nil.
func (s *Store) ElementAfter(ctx context.Context, seqID int64) (*record.QueueEntry, error) {
	return s.ElementAfterTx(ctx, nil, seqID, nil)
}

// ElementAfterTx is ElementAfter inside tx.
func (s *Store) ElementAfterTx(ctx context.Context, tx *txn.Tx, seqID int64, next txn.Next[*record.QueueEntry]) (*record.QueueEntry, error) {
	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) (*record.QueueEntry, error) {
		e, err := s.elementAfter(ctx, tx, seqID)
		if err != nil {
			return nil, err
		}
		return e, next.Call(ctx, tx, e)
	})
}

// ElementBy returns the entry with the given seqID, or nil.
func (s *Store) ElementBy(ctx context.Context, seqID int64) (*record.QueueEntry, error) {
	return s.ElementByTx(ctx, nil, seqID, nil)
}

// ElementByTx is ElementBy inside tx.
func (s *Store) ElementByTx(ctx context.Context, tx *txn.Tx, seqID int64, next txn.Next[*record.QueueEntry]) (*record.QueueEntry, error) {
	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) (*record.QueueEntry, error) {
		e, err := s.queryOne(ctx, tx, `SELECT seq_id, content FROM `+s.quoted()+` WHERE seq_id = ?`, seqID)
		if err != nil {
			return nil, errors.Wrap(err, "select by id")
		}
		return e, next.Call(ctx, tx, e)
	})
}

// Contains reports whether any entry has the given content.
func (s *Store) Contains(ctx context.Context, content *string) (bool, error) {
	return s.ContainsTx(ctx, nil, content, nil)
}

// ContainsTx is Contains inside tx.
func (s *Store) ContainsTx(ctx context.Context, tx *txn.Tx, content *string, next txn.Next[bool]) (bool, error) {
	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) (bool, error) {
		e, err := s.firstMatch(ctx, tx, Head, digest.Of(content))
		if err != nil {
			return false, err
		}
		found := e != nil
		return found, next.Call(ctx, tx, found)
	})
}

// ContainsAll reports whether every one of contents is in the queue. It is
// true for an empty input.
func (s *Store) ContainsAll(ctx context.Context, contents []*string) (bool, error) {
	return s.ContainsAllTx(ctx, nil, contents, nil)
}

// ContainsAllTx is ContainsAll inside tx.
func (s *Store) ContainsAllTx(ctx context.Context, tx *txn.Tx, contents []*string, next txn.Next[bool]) (bool, error) {
	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) (bool, error) {
		digests := contentDigests(contents)
		var found int
		if len(digests) != 0 {
			err := tx.QueryRowContext(ctx, `SELECT COUNT(DISTINCT content_digest) FROM `+s.quoted()+
				` WHERE content_digest IN (`+sqldialect.Placeholders(len(digests))+`)`, digests...).Scan(&found)
			if err != nil {
				return false, errors.Wrap(err, "count matching digests")
			}
		}
		all := found == len(digests)
		return all, next.Call(ctx, tx, all)
	})
}

// Entries returns a snapshot of every entry in FIFO order.
func (s *Store) Entries(ctx context.Context) ([]record.QueueEntry, error) {
	return s.EntriesTx(ctx, nil, nil)
}

// EntriesTx is Entries inside tx.
func (s *Store) EntriesTx(ctx context.Context, tx *txn.Tx, next txn.Next[[]record.QueueEntry]) ([]record.QueueEntry, error) {
	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) ([]record.QueueEntry, error) {
		entries, err := s.query(ctx, tx, `SELECT seq_id, content FROM `+s.quoted()+` ORDER BY seq_id ASC`)
		if err != nil {
			return nil, errors.Wrap(err, "select entries")
		}
		return entries, next.Call(ctx, tx, entries)
	})
}

func (s *Store) elementAfter(ctx context.Context, tx *txn.Tx, seqID int64) (*record.QueueEntry, error) {
	e, err := s.queryOne(ctx, tx, `SELECT seq_id, content FROM `+s.quoted()+
		` WHERE seq_id > ? ORDER BY seq_id ASC LIMIT 1`, seqID)
	if err != nil {
		return nil, errors.Wrap(err, "select next entry")
	}
	return e, nil
}

// firstMatch returns the earliest entry after seqID whose content digest is d.
func (s *Store) firstMatch(ctx context.Context, tx *txn.Tx, seqID int64, d string) (*record.QueueEntry, error) {
	e, err := s.queryOne(ctx, tx, `SELECT seq_id, content FROM `+s.quoted()+
		` WHERE content_digest = ? AND seq_id > ? ORDER BY seq_id ASC LIMIT 1`, d, seqID)
	if err != nil {
		return nil, errors.Wrap(err, "select matching entry")
	}
	return e, nil
}

func (s *Store) queryOne(ctx context.Context, tx *txn.Tx, query string, args ...any) (*record.QueueEntry, error) {
	var (
		e       record.QueueEntry
		content sql.NullString
	)
	err := tx.QueryRowContext(ctx, query, args...).Scan(&e.SeqID, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	if content.Valid {
		e.Content = &content.String
	}
	return &e, nil
}

func (s *Store) query(ctx context.Context, tx *txn.Tx, query string, args ...any) ([]record.QueueEntry, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []record.QueueEntry{}
	for rows.Next() {
		var (
			e       record.QueueEntry
			content sql.NullString
		)
		if err := rows.Scan(&e.SeqID, &content); err != nil {
			return nil, errors.Wrap(err, "scan entry")
		}
		if content.Valid {
			e.Content = &content.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// contentDigests returns the distinct digests of contents as statement
// arguments.
func contentDigests(contents []*string) []any {
	seen := make(map[string]struct{}, len(contents))
	out := make([]any, 0, len(contents))
	for _, c := range contents {
		d := digest.Of(c)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
