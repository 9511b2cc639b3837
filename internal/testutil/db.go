// Package testutil holds helpers shared by the store tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlcoll/internal/sqldb"
	"github.com/roach88/sqlcoll/internal/sqldialect"
	"github.com/roach88/sqlcoll/internal/txn"
)

// OpenSQLite opens a SQLite database in a temporary directory, closed when
// the test ends.
func OpenSQLite(t *testing.T) *sqldb.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sqldb.Open(context.Background(), sqldb.Config{Driver: sqldialect.SQLite, DSN: path})
	require.NoError(t, err, "sqldb.Open() failed")
	t.Cleanup(func() { db.Close() })
	return db
}

// NewCoordinator opens a temporary SQLite database and returns a
// Coordinator over it, together with the database for direct assertions.
func NewCoordinator(t *testing.T) (*txn.Coordinator, *sqldb.DB) {
	t.Helper()
	db := OpenSQLite(t)
	return txn.NewCoordinator(db, db.Dialect, nil), db
}

// Str returns a pointer to s, for nullable values in table tests.
func Str(s string) *string {
	return &s
}
