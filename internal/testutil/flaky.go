package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlcoll/internal/sqldialect"
	"github.com/roach88/sqlcoll/internal/txn"
)

// ErrTransient is returned by the statements a FlakyDB fails.
var ErrTransient = errors.New("transient write failure")

var flakyDrivers atomic.Int64

// FlakyDB is a SQLite database whose first Failures statements containing
// Match fail with ErrTransient before reaching the engine.
type FlakyDB struct {
	*sql.DB
	Match    string
	failures atomic.Int64
	failed   atomic.Int64
}

// Failed reports how many statements were failed so far.
func (f *FlakyDB) Failed() int {
	return int(f.failed.Load())
}

func (f *FlakyDB) fail(query string) bool {
	if !strings.Contains(query, f.Match) {
		return false
	}
	if f.failures.Add(-1) < 0 {
		return false
	}
	f.failed.Add(1)
	return true
}

// NewFlakyCoordinator opens a temporary SQLite database behind a FlakyDB and
// returns a Coordinator over it.
func NewFlakyCoordinator(t *testing.T, match string, failures int) (*txn.Coordinator, *FlakyDB) {
	t.Helper()

	f := &FlakyDB{Match: match}
	f.failures.Store(int64(failures))

	name := fmt.Sprintf("sqlite3_flaky_%d", flakyDrivers.Add(1))
	sql.Register(name, &flakyDriver{base: &sqlite3.SQLiteDriver{}, db: f})

	dsn := filepath.Join(t.TempDir(), "flaky.db") + "?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open(name, dsn)
	require.NoError(t, err, "sql.Open() failed")
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	f.DB = db

	dialect, err := sqldialect.Lookup(sqldialect.SQLite)
	require.NoError(t, err)
	return txn.NewCoordinator(db, dialect, nil), f
}

type flakyDriver struct {
	base *sqlite3.SQLiteDriver
	db   *FlakyDB
}

func (d *flakyDriver) Open(dsn string) (driver.Conn, error) {
	c, err := d.base.Open(dsn)
	if err != nil {
		return nil, err
	}
	return &flakyConn{SQLiteConn: c.(*sqlite3.SQLiteConn), db: d.db}, nil
}

type flakyConn struct {
	*sqlite3.SQLiteConn
	db *FlakyDB
}

func (c *flakyConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if c.db.fail(query) {
		return nil, ErrTransient
	}
	return c.SQLiteConn.ExecContext(ctx, query, args)
}
