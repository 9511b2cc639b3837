// Package sqldb opens the *sql.DB pools handed to the stores as their
// connection provider.
//
// Drivers for SQLite (github.com/mattn/go-sqlite3), MySQL
// (github.com/go-sql-driver/mysql) and PostgreSQL (github.com/lib/pq) are
// registered by this package.
//
// # SQLite Configuration
//
// SQLite DSNs get these connection parameters unless already present:
//   - _journal_mode=WAL: concurrent reads during writes
//   - _synchronous=NORMAL: balance durability/performance
//   - _busy_timeout=5000: wait for locks up to 5 seconds
//   - _foreign_keys=on
//   - _txlock=immediate: BEGIN takes the write lock, so read-then-write
//     transactions serialize instead of failing on lock upgrade
//
// Parameters are applied through the DSN, so every pooled connection gets them.
package sqldb

import (
	"context"
	"database/sql"
	"net/url"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/roach88/sqlcoll/internal/sqldialect"
)

var sqliteDefaults = map[string]string{
	"_journal_mode": "WAL",
	"_synchronous":  "NORMAL",
	"_busy_timeout": "5000",
	"_foreign_keys": "on",
	"_txlock":       "immediate",
}

// Config selects and tunes a database.
type Config struct {
	// Driver is a database/sql driver name: sqlite3, mysql or postgres.
	Driver string
	// DSN is the driver specific data source name. For sqlite3 it is a file path.
	DSN string
	// MaxOpenConns limits the pool. Zero means 1 for SQLite (single writer)
	// and unlimited otherwise.
	MaxOpenConns int
}

// DB is a connection pool paired with the dialect of its engine.
// It satisfies txn.Provider through the embedded *sql.DB.
type DB struct {
	*sql.DB
	Dialect sqldialect.Dialect
}

// Open opens and pings a database. For SQLite the file is created if it
// doesn't exist.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	dialect, err := sqldialect.Lookup(cfg.Driver)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	dsn := cfg.DSN
	maxOpen := cfg.MaxOpenConns
	if dialect.Name() == sqldialect.SQLite {
		dsn = sqliteDSN(dsn)
		if maxOpen == 0 {
			maxOpen = 1
		}
	}

	db, err := sql.Open(dialect.Name(), dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connect to database")
	}

	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}

	log.WithFields(log.Fields{
		"driver":         dialect.Name(),
		"max_open_conns": maxOpen,
	}).Debug("opened database")

	return &DB{DB: db, Dialect: dialect}, nil
}

// Close closes the pool. It is safe on a nil or never-opened DB.
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	return db.DB.Close()
}

// sqliteDSN adds the default connection parameters missing from dsn.
func sqliteDSN(dsn string) string {
	path, rawQuery, _ := strings.Cut(dsn, "?")
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return dsn
	}
	for k, v := range sqliteDefaults {
		if !values.Has(k) {
			values.Set(k, v)
		}
	}
	return path + "?" + values.Encode()
}
