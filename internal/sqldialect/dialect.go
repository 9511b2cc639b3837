// Package sqldialect isolates the SQL differences between the supported
// engines: identifier quoting, placeholder syntax and table DDL.
//
// Statements elsewhere are written with '?' placeholders and unquoted column
// names; Rebind and Quote adapt them to the engine.
package sqldialect

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Dialect describes one SQL engine.
type Dialect interface {
	// Name is the database/sql driver name.
	Name() string
	// Quote quotes an identifier.
	Quote(ident string) string
	// Rebind rewrites '?' placeholders into the engine's syntax.
	Rebind(query string) string
	// MapTableDDL returns the statements creating a map table and its indexes.
	MapTableDDL(table string) []string
	// QueueTableDDL returns the statements creating a queue table and its indexes.
	QueueTableDDL(table string) []string
	// MapUpsert returns the statement writing one map row, replacing the value
	// of an existing row with the same key digest. Its placeholders are
	// key_digest, map_key, map_value, value_digest, write_ts.
	MapUpsert(table string) string
}

// Driver names accepted by Lookup.
const (
	SQLite   = "sqlite3"
	MySQL    = "mysql"
	Postgres = "postgres"
)

// Lookup returns the Dialect registered for a driver name.
func Lookup(driver string) (Dialect, error) {
	switch driver {
	case SQLite, "sqlite":
		return sqliteDialect{}, nil
	case MySQL:
		return mysqlDialect{}, nil
	case Postgres, "pgx", "postgresql":
		return postgresDialect{}, nil
	}
	return nil, errors.Errorf("unsupported driver %q", driver)
}

var unsafeIdent = regexp.MustCompile(`[^A-Za-z0-9_]`)

// TableName builds the per-instance table name for a collection kind and id.
// Characters outside [A-Za-z0-9_] are replaced with '_'.
func TableName(kind, id string) string {
	return "t_" + kind + "_" + unsafeIdent.ReplaceAllString(id, "_")
}

// DropTableSQL returns the statement dropping a table.
func DropTableSQL(d Dialect, table string) string {
	return "DROP TABLE IF EXISTS " + d.Quote(table)
}

// Placeholders returns n comma separated '?' placeholders.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string               { return SQLite }
func (sqliteDialect) Quote(ident string) string  { return quoteWith(ident, `"`) }
func (sqliteDialect) Rebind(query string) string { return query }

func (d sqliteDialect) MapTableDDL(table string) []string {
	q := d.Quote(table)
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  key_digest   TEXT    NOT NULL PRIMARY KEY,
  map_key      TEXT    NOT NULL,
  map_value    TEXT,
  value_digest TEXT    NOT NULL,
  write_ts     INTEGER NOT NULL
)`, q),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (map_key)`, d.Quote(table+"_key_idx"), q),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (value_digest)`, d.Quote(table+"_value_digest_idx"), q),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (write_ts)`, d.Quote(table+"_ts_idx"), q),
	}
}

func (d sqliteDialect) QueueTableDDL(table string) []string {
	q := d.Quote(table)
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  seq_id         INTEGER PRIMARY KEY AUTOINCREMENT,
  content_digest TEXT    NOT NULL,
  content        TEXT,
  write_ts       INTEGER NOT NULL
)`, q),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (content_digest)`, d.Quote(table+"_digest_idx"), q),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (write_ts)`, d.Quote(table+"_ts_idx"), q),
	}
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string               { return MySQL }
func (mysqlDialect) Quote(ident string) string  { return quoteWith(ident, "`") }
func (mysqlDialect) Rebind(query string) string { return query }

// MySQL has no CREATE INDEX IF NOT EXISTS, so indexes are declared inline.
// map_key is capped at 768 characters, the utf8mb4 limit of an InnoDB index key.
func (d mysqlDialect) MapTableDDL(table string) []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  key_digest   VARCHAR(32)  NOT NULL PRIMARY KEY,
  map_key      VARCHAR(768) NOT NULL,
  map_value    MEDIUMTEXT,
  value_digest VARCHAR(32)  NOT NULL,
  write_ts     BIGINT       NOT NULL,
  KEY idx_key (map_key),
  KEY idx_value_digest (value_digest),
  KEY idx_ts (write_ts)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`, d.Quote(table))}
}

func (d mysqlDialect) QueueTableDDL(table string) []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  seq_id         BIGINT      NOT NULL AUTO_INCREMENT PRIMARY KEY,
  content_digest VARCHAR(32) NOT NULL,
  content        MEDIUMTEXT,
  write_ts       BIGINT      NOT NULL,
  KEY idx_digest (content_digest),
  KEY idx_ts (write_ts)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`, d.Quote(table))}
}

type postgresDialect struct{}

func (postgresDialect) Name() string              { return Postgres }
func (postgresDialect) Quote(ident string) string { return quoteWith(ident, `"`) }

// Rebind numbers placeholders: "a = ? AND b = ?" becomes "a = $1 AND b = $2".
func (postgresDialect) Rebind(query string) string {
	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

func (d postgresDialect) MapTableDDL(table string) []string {
	q := d.Quote(table)
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  key_digest   VARCHAR(32)  NOT NULL PRIMARY KEY,
  map_key      TEXT         NOT NULL,
  map_value    TEXT,
  value_digest VARCHAR(32)  NOT NULL,
  write_ts     BIGINT       NOT NULL
)`, q),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (map_key)`, d.Quote(table+"_key_idx"), q),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (value_digest)`, d.Quote(table+"_value_digest_idx"), q),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (write_ts)`, d.Quote(table+"_ts_idx"), q),
	}
}

func (d postgresDialect) QueueTableDDL(table string) []string {
	q := d.Quote(table)
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  seq_id         BIGSERIAL   PRIMARY KEY,
  content_digest VARCHAR(32) NOT NULL,
  content        TEXT,
  write_ts       BIGINT      NOT NULL
)`, q),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (content_digest)`, d.Quote(table+"_digest_idx"), q),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (write_ts)`, d.Quote(table+"_ts_idx"), q),
	}
}

const mapInsert = `INSERT INTO %s (key_digest, map_key, map_value, value_digest, write_ts) VALUES (?, ?, ?, ?, ?)`

// onConflictUpsert is the SQLite and PostgreSQL form.
func onConflictUpsert(quoted string) string {
	return fmt.Sprintf(mapInsert+` ON CONFLICT (key_digest) DO UPDATE SET `+
		`map_value = excluded.map_value, value_digest = excluded.value_digest, write_ts = excluded.write_ts`, quoted)
}

func (d sqliteDialect) MapUpsert(table string) string   { return onConflictUpsert(d.Quote(table)) }
func (d postgresDialect) MapUpsert(table string) string { return onConflictUpsert(d.Quote(table)) }

func (d mysqlDialect) MapUpsert(table string) string {
	return fmt.Sprintf(mapInsert+` ON DUPLICATE KEY UPDATE `+
		`map_value = VALUES(map_value), value_digest = VALUES(value_digest), write_ts = VALUES(write_ts)`, d.Quote(table))
}

func quoteWith(ident, q string) string {
	return q + strings.ReplaceAll(ident, q, q+q) + q
}
