package mapstore

import (
	"context"
	"database/sql"
	"sort"

	"github.com/pkg/errors"

	"github.com/roach88/sqlcoll/internal/digest"
	"github.com/roach88/sqlcoll/internal/record"
	"github.com/roach88/sqlcoll/internal/retry"
	"github.com/roach88/sqlcoll/internal/sqldialect"
	"github.com/roach88/sqlcoll/internal/txn"
)

// Put stores value under key and returns the previous value. existed is
// false if the key had no entry.
func (s *Store) Put(ctx context.Context, key string, value *string) (prev *string, existed bool, err error) {
	e, err := s.PutTx(ctx, nil, key, value, nil)
	if err != nil || e == nil {
		return nil, false, err
	}
	return e.Value, true, nil
}

// PutTx is Put inside tx. It returns the previous entry, or nil. next sees
// the previous entry after the write.
func (s *Store) PutTx(ctx context.Context, tx *txn.Tx, key string, value *string, next txn.Next[*record.MapEntry]) (*record.MapEntry, error) {
	if digest.IsBlank(key) {
		return nil, record.ErrBlankKey
	}
	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) (*record.MapEntry, error) {
		prev, err := s.GetTx(ctx, tx, key, nil)
		if err != nil {
			return nil, err
		}
		if err := s.write(ctx, tx, record.MapEntry{Key: key, Value: value}); err != nil {
			return nil, errors.Wrapf(err, "put %q", key)
		}
		return prev, next.Call(ctx, tx, prev)
	})
}

// PutAll stores every entry of m in one transaction and returns the values
// that were replaced.
func (s *Store) PutAll(ctx context.Context, m map[string]*string) (map[string]*string, error) {
	prev, err := s.PutAllTx(ctx, nil, m, nil)
	if err != nil {
		return nil, err
	}
	return record.ToMap(prev), nil
}

// PutAllTx is PutAll inside tx. Keys are written in sorted order; a blank
// key fails the whole call.
func (s *Store) PutAllTx(ctx context.Context, tx *txn.Tx, m map[string]*string, next txn.Next[[]record.MapEntry]) ([]record.MapEntry, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		if digest.IsBlank(k) {
			return nil, record.ErrBlankKey
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) ([]record.MapEntry, error) {
		replaced := []record.MapEntry{}
		for _, k := range keys {
			prev, err := s.PutTx(ctx, tx, k, m[k], nil)
			if err != nil {
				return nil, err
			}
			if prev != nil {
				replaced = append(replaced, *prev)
			}
		}
		return replaced, next.Call(ctx, tx, replaced)
	})
}

// Remove deletes the entry for key and returns its value. existed is false
// if there was none.
func (s *Store) Remove(ctx context.Context, key string) (prev *string, existed bool, err error) {
	e, err := s.RemoveTx(ctx, nil, key, nil)
	if err != nil || e == nil {
		return nil, false, err
	}
	return e.Value, true, nil
}

// RemoveTx is Remove inside tx.
func (s *Store) RemoveTx(ctx context.Context, tx *txn.Tx, key string, next txn.Next[*record.MapEntry]) (*record.MapEntry, error) {
	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) (*record.MapEntry, error) {
		removed, err := s.RemoveAllMatchesTx(ctx, tx, []string{key}, nil)
		if err != nil {
			return nil, err
		}
		var e *record.MapEntry
		if len(removed) != 0 {
			e = &removed[0]
		}
		return e, next.Call(ctx, tx, e)
	})
}

// RemoveAllMatches deletes the entries for keys and returns them. An empty
// keys slice matches every entry.
func (s *Store) RemoveAllMatches(ctx context.Context, keys []string) (map[string]*string, error) {
	removed, err := s.RemoveAllMatchesTx(ctx, nil, keys, nil)
	if err != nil {
		return nil, err
	}
	return record.ToMap(removed), nil
}

// RemoveAllMatchesTx is RemoveAllMatches inside tx. Only entries read inside
// tx are deleted.
func (s *Store) RemoveAllMatchesTx(ctx context.Context, tx *txn.Tx, keys []string, next txn.Next[[]record.MapEntry]) ([]record.MapEntry, error) {
	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) ([]record.MapEntry, error) {
		var (
			matches []record.MapEntry
			err     error
		)
		if len(keys) == 0 {
			matches, err = s.selectAll(ctx, tx)
		} else {
			matches, err = s.selectByKeys(ctx, tx, keys)
		}
		if err != nil {
			return nil, err
		}
		if err := s.deleteEntries(ctx, tx, matches); err != nil {
			return nil, err
		}
		return matches, next.Call(ctx, tx, matches)
	})
}

// Clear deletes every entry.
func (s *Store) Clear(ctx context.Context) error {
	return s.ClearTx(ctx, nil, nil)
}

// ClearTx is Clear inside tx. next sees the deleted entries.
func (s *Store) ClearTx(ctx context.Context, tx *txn.Tx, next txn.Next[[]record.MapEntry]) error {
	_, err := s.RemoveAllMatchesTx(ctx, tx, nil, next)
	return err
}

// write upserts the row of e. A concurrent writer inserting the same key
// between the read and the write turns into an update rather than a
// duplicate key error.
func (s *Store) write(ctx context.Context, tx *txn.Tx, e record.MapEntry) error {
	query := tx.Dialect().MapUpsert(s.table)
	args := []any{e.KeyDigest(), e.Key, nullable(e.Value), e.ValueDigest(), s.now().UnixMilli()}

	_, err := retry.Do(ctx, s.retry, func() (sql.Result, error) {
		return tx.ExecContext(ctx, query, args...)
	})
	return err
}

func (s *Store) deleteEntries(ctx context.Context, tx *txn.Tx, entries []record.MapEntry) error {
	for start := 0; start < len(entries); start += deleteChunk {
		end := min(start+deleteChunk, len(entries))
		args := make([]any, 0, end-start)
		for _, e := range entries[start:end] {
			args = append(args, e.KeyDigest())
		}
		query := `DELETE FROM ` + s.quoted() + ` WHERE key_digest IN (` + sqldialect.Placeholders(len(args)) + `)`
		_, err := retry.Do(ctx, s.retry, func() (sql.Result, error) {
			return tx.ExecContext(ctx, query, args...)
		})
		if err != nil {
			return errors.Wrap(err, "delete entries")
		}
	}
	return nil
}

// nullable converts a nullable value into a statement argument.
func nullable(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
