package txn

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/roach88/sqlcoll/internal/sqldialect"
)

// ErrTxDone is returned by statements issued on a handle whose owner has
// already committed or rolled back.
var ErrTxDone = sql.ErrTxDone

// Provider supplies raw connections on demand. *sql.DB satisfies it.
type Provider interface {
	Conn(ctx context.Context) (*sql.Conn, error)
}

// Coordinator opens owning transactions against a Provider.
type Coordinator struct {
	provider Provider
	dialect  sqldialect.Dialect
	opts     *sql.TxOptions
}

// NewCoordinator returns a Coordinator. opts may be nil for the driver's
// default isolation level.
func NewCoordinator(p Provider, d sqldialect.Dialect, opts *sql.TxOptions) *Coordinator {
	return &Coordinator{provider: p, dialect: d, opts: opts}
}

// Dialect returns the dialect of the coordinated database.
func (c *Coordinator) Dialect() sqldialect.Dialect {
	return c.dialect
}

// Tx is a transaction handle. Statements accept '?' placeholders.
type Tx struct {
	tx      *sql.Tx
	dialect sqldialect.Dialect
}

// ExecContext executes a statement inside the transaction.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.Rebind(query), args...)
}

// QueryContext runs a query inside the transaction.
func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.Rebind(query), args...)
}

// QueryRowContext runs a single-row query inside the transaction.
func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.Rebind(query), args...)
}

// Dialect returns the dialect statements are rebound with.
func (t *Tx) Dialect() sqldialect.Dialect {
	return t.dialect
}

// Next is a continuation run inside the transaction of the operation it was
// passed to, after the operation's own statements and before it returns.
// peek is the operation's result. A non-nil error aborts the transaction.
type Next[T any] func(ctx context.Context, tx *Tx, peek T) error

// Call invokes n, or does nothing if n is nil.
func (n Next[T]) Call(ctx context.Context, tx *Tx, peek T) error {
	if n == nil {
		return nil
	}
	return n(ctx, tx, peek)
}

// Run executes body in a transaction.
//
// If tx is non-nil the call participates: body runs on tx and nothing is
// committed or rolled back here. Otherwise the call owns a new transaction:
// it is committed if body succeeds and rolled back if body fails or panics.
// A rollback failure is logged and the body's error is returned. The
// connection is released in every case.
func Run[T any](ctx context.Context, c *Coordinator, tx *Tx, body func(*Tx) (T, error)) (T, error) {
	if tx != nil {
		return body(tx)
	}
	return runOwned(ctx, c, body)
}

// Do is Run for bodies without a result.
func Do(ctx context.Context, c *Coordinator, tx *Tx, body func(*Tx) error) error {
	_, err := Run(ctx, c, tx, func(tx *Tx) (struct{}, error) {
		return struct{}{}, body(tx)
	})
	return err
}

func runOwned[T any](ctx context.Context, c *Coordinator, body func(*Tx) (T, error)) (_ T, err error) {
	var zero T

	conn, err := c.provider.Conn(ctx)
	if err != nil {
		return zero, errors.Wrap(err, "acquire connection")
	}
	defer conn.Close()

	sqlTx, err := conn.BeginTx(ctx, c.opts)
	if err != nil {
		return zero, errors.Wrap(err, "begin transaction")
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.WithFields(log.Fields{"err": rbErr, "cause": err}).Warn("rollback failed")
		}
		rollbacksTotal.Inc()
	}()

	v, err := body(&Tx{tx: sqlTx, dialect: c.dialect})
	if err != nil {
		return zero, err
	}
	if err = sqlTx.Commit(); err != nil {
		return zero, errors.Wrap(err, "commit transaction")
	}
	committed = true
	commitsTotal.Inc()

	return v, nil
}
