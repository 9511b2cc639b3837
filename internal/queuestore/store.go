package queuestore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/roach88/sqlcoll/internal/cursor"
	"github.com/roach88/sqlcoll/internal/retry"
	"github.com/roach88/sqlcoll/internal/sqldialect"
	"github.com/roach88/sqlcoll/internal/txn"
)

// Head is the position before the first entry.
const Head = cursor.Head

// batchSize bounds the rows bound into one INSERT or DELETE.
const batchSize = 250

// Match selects how RemoveAllMatches compares contents.
type Match int

const (
	// MatchIn removes entries whose content is in the given set.
	MatchIn Match = iota
	// MatchNotIn removes entries whose content is not in the given set.
	MatchNotIn
)

func (m Match) String() string {
	switch m {
	case MatchIn:
		return "in"
	case MatchNotIn:
		return "not-in"
	}
	return "unknown"
}

// Options configures a Store.
type Options struct {
	// ID names the backing table. A random UUID is used when empty.
	ID string
	// Retry is the policy for write statements. Zero value means retry.Default.
	Retry retry.Policy
	// Now supplies write timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Store is a persistent queue. It is safe for concurrent use.
type Store struct {
	coord *txn.Coordinator
	id    string
	table string
	retry retry.Policy
	now   func() time.Time
}

var _ cursor.Source = (*Store)(nil)

// New returns a Store and creates its table if it doesn't exist.
func New(ctx context.Context, coord *txn.Coordinator, opts Options) (*Store, error) {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Store{
		coord: coord,
		id:    opts.ID,
		table: sqldialect.TableName("queue", opts.ID),
		retry: opts.Retry,
		now:   opts.Now,
	}

	err := txn.Do(ctx, coord, nil, func(tx *txn.Tx) error {
		for _, stmt := range coord.Dialect().QueueTableDDL(s.table) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create queue table %s", s.table)
	}

	log.WithFields(log.Fields{"id": s.id, "table": s.table}).Debug("queue store ready")
	return s, nil
}

// ID returns the instance identifier.
func (s *Store) ID() string { return s.id }

// Table returns the name of the backing table.
func (s *Store) Table() string { return s.table }

// Drop deletes the backing table. The Store is unusable afterwards.
func (s *Store) Drop(ctx context.Context) error {
	err := txn.Do(ctx, s.coord, nil, func(tx *txn.Tx) error {
		_, err := tx.ExecContext(ctx, sqldialect.DropTableSQL(tx.Dialect(), s.table))
		return err
	})
	return errors.Wrapf(err, "drop queue table %s", s.table)
}

func (s *Store) quoted() string {
	return s.coord.Dialect().Quote(s.table)
}
