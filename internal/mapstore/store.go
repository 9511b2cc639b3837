package mapstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/roach88/sqlcoll/internal/retry"
	"github.com/roach88/sqlcoll/internal/sqldialect"
	"github.com/roach88/sqlcoll/internal/txn"
)

// deleteChunk bounds the number of digests bound into one DELETE.
const deleteChunk = 500

// Options configures a Store.
type Options struct {
	// ID names the backing table. A random UUID is used when empty.
	ID string
	// Retry is the policy for write statements. Zero value means retry.Default.
	Retry retry.Policy
	// Now supplies write timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Store is a persistent map. It is safe for concurrent use; each owning call
// runs on its own connection.
type Store struct {
	coord *txn.Coordinator
	id    string
	table string
	retry retry.Policy
	now   func() time.Time
}

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
		table: sqldialect.TableName("map", opts.ID),
		retry: opts.Retry,
		now:   opts.Now,
	}

	err := txn.Do(ctx, coord, nil, func(tx *txn.Tx) error {
		for _, stmt := range coord.Dialect().MapTableDDL(s.table) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create map table %s", s.table)
	}

	log.WithFields(log.Fields{"id": s.id, "table": s.table}).Debug("map store ready")
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
	return errors.Wrapf(err, "drop map table %s", s.table)
}

// quoted returns the quoted table name for statements.
func (s *Store) quoted() string {
	return s.coord.Dialect().Quote(s.table)
}
