package mapstore

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/roach88/sqlcoll/internal/digest"
	"github.com/roach88/sqlcoll/internal/record"
	"github.com/roach88/sqlcoll/internal/sqldialect"
	"github.com/roach88/sqlcoll/internal/txn"
)

// Size returns the number of entries.
func (s *Store) Size(ctx context.Context) (int, error) {
	return s.SizeTx(ctx, nil, nil)
}

// SizeTx is Size inside tx.
func (s *Store) SizeTx(ctx context.Context, tx *txn.Tx, next txn.Next[int]) (int, error) {
	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) (int, error) {
		var n int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+s.quoted()).Scan(&n)
		if err != nil {
			return 0, errors.Wrap(err, "count entries")
		}
		return n, next.Call(ctx, tx, n)
	})
}

// IsEmpty reports whether the map has no entries.
func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	n, err := s.Size(ctx)
	return n == 0, err
}

// Get returns the value stored under key. ok is false if there is no entry;
// a nil value with ok true is a stored NULL.
func (s *Store) Get(ctx context.Context, key string) (value *string, ok bool, err error) {
	e, err := s.GetTx(ctx, nil, key, nil)
	if err != nil || e == nil {
		return nil, false, err
	}
	return e.Value, true, nil
}

// GetTx returns the entry stored under key, or nil. next sees the same entry.
func (s *Store) GetTx(ctx context.Context, tx *txn.Tx, key string, next txn.Next[*record.MapEntry]) (*record.MapEntry, error) {
	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) (*record.MapEntry, error) {
		entries, err := s.selectByKeys(ctx, tx, []string{key})
		if err != nil {
			return nil, err
		}
		var e *record.MapEntry
		if len(entries) != 0 {
			e = &entries[0]
		}
		return e, next.Call(ctx, tx, e)
	})
}

// GetAll returns the entries stored under any of keys. Missing keys are
// absent from the result.
func (s *Store) GetAll(ctx context.Context, keys []string) (map[string]*string, error) {
	entries, err := s.GetAllTx(ctx, nil, keys, nil)
	if err != nil {
		return nil, err
	}
	return record.ToMap(entries), nil
}

// GetAllTx is GetAll inside tx. An empty keys slice issues no query.
func (s *Store) GetAllTx(ctx context.Context, tx *txn.Tx, keys []string, next txn.Next[[]record.MapEntry]) ([]record.MapEntry, error) {
	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) ([]record.MapEntry, error) {
		entries, err := s.selectByKeys(ctx, tx, keys)
		if err != nil {
			return nil, err
		}
		return entries, next.Call(ctx, tx, entries)
	})
}

// ContainsKey reports whether an entry exists for key.
func (s *Store) ContainsKey(ctx context.Context, key string) (bool, error) {
	return s.ContainsKeyTx(ctx, nil, key, nil)
}

// ContainsKeyTx is ContainsKey inside tx.
func (s *Store) ContainsKeyTx(ctx context.Context, tx *txn.Tx, key string, next txn.Next[bool]) (bool, error) {
	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) (bool, error) {
		entries, err := s.selectByKeys(ctx, tx, []string{key})
		if err != nil {
			return false, err
		}
		found := len(entries) != 0
		return found, next.Call(ctx, tx, found)
	})
}

// ContainsValue reports whether any entry holds value. Matching is by value
// digest, so NULL, empty and blank values are indistinguishable.
func (s *Store) ContainsValue(ctx context.Context, value *string) (bool, error) {
	matches, err := s.ContainsValueTx(ctx, nil, value, nil)
	return len(matches) != 0, err
}

// ContainsValueTx returns the entries whose value digest matches value.
func (s *Store) ContainsValueTx(ctx context.Context, tx *txn.Tx, value *string, next txn.Next[[]record.MapEntry]) ([]record.MapEntry, error) {
	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) ([]record.MapEntry, error) {
		entries, err := s.query(ctx, tx, `SELECT map_key, map_value FROM `+s.quoted()+
			` WHERE value_digest = ? ORDER BY map_key ASC`, digest.Of(value))
		if err != nil {
			return nil, errors.Wrap(err, "select by value")
		}
		return entries, next.Call(ctx, tx, entries)
	})
}

// Entries returns a snapshot of all entries ordered by key.
func (s *Store) Entries(ctx context.Context) ([]record.MapEntry, error) {
	return s.EntriesTx(ctx, nil, nil)
}

// EntriesTx is Entries inside tx.
func (s *Store) EntriesTx(ctx context.Context, tx *txn.Tx, next txn.Next[[]record.MapEntry]) ([]record.MapEntry, error) {
	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) ([]record.MapEntry, error) {
		entries, err := s.selectAll(ctx, tx)
		if err != nil {
			return nil, err
		}
		return entries, next.Call(ctx, tx, entries)
	})
}

// Keys returns a snapshot of all keys in order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	return s.KeysTx(ctx, nil, nil)
}

// KeysTx is Keys inside tx.
func (s *Store) KeysTx(ctx context.Context, tx *txn.Tx, next txn.Next[[]string]) ([]string, error) {
	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) ([]string, error) {
		entries, err := s.selectAll(ctx, tx)
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(entries))
		for _, e := range entries {
			keys = append(keys, e.Key)
		}
		return keys, next.Call(ctx, tx, keys)
	})
}

// Values returns a snapshot of all values, in key order.
func (s *Store) Values(ctx context.Context) ([]*string, error) {
	return s.ValuesTx(ctx, nil, nil)
}

// ValuesTx is Values inside tx.
func (s *Store) ValuesTx(ctx context.Context, tx *txn.Tx, next txn.Next[[]*string]) ([]*string, error) {
	return txn.Run(ctx, s.coord, tx, func(tx *txn.Tx) ([]*string, error) {
		entries, err := s.selectAll(ctx, tx)
		if err != nil {
			return nil, err
		}
		values := make([]*string, 0, len(entries))
		for _, e := range entries {
			values = append(values, e.Value)
		}
		return values, next.Call(ctx, tx, values)
	})
}

func (s *Store) selectAll(ctx context.Context, tx *txn.Tx) ([]record.MapEntry, error) {
	entries, err := s.query(ctx, tx, `SELECT map_key, map_value FROM `+s.quoted()+` ORDER BY map_key ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "select entries")
	}
	return entries, nil
}

// selectByKeys returns the entries for keys, ordered by key.
func (s *Store) selectByKeys(ctx context.Context, tx *txn.Tx, keys []string) ([]record.MapEntry, error) {
	digests := keyDigests(keys)
	if len(digests) == 0 {
		return []record.MapEntry{}, nil
	}
	args := make([]any, len(digests))
	for i, d := range digests {
		args[i] = d
	}
	entries, err := s.query(ctx, tx, `SELECT map_key, map_value FROM `+s.quoted()+
		` WHERE key_digest IN (`+sqldialect.Placeholders(len(args))+`) ORDER BY map_key ASC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select by keys")
	}
	return entries, nil
}

func (s *Store) query(ctx context.Context, tx *txn.Tx, query string, args ...any) ([]record.MapEntry, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []record.MapEntry{}
	for rows.Next() {
		var (
			key   string
			value sql.NullString
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, errors.Wrap(err, "scan entry")
		}
		e := record.MapEntry{Key: key}
		if value.Valid {
			e.Value = &value.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// keyDigests returns the distinct digests of keys in input order. Blank keys
// are skipped: no row can carry the empty digest.
func keyDigests(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		d := digest.String(k)
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
