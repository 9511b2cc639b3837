// Package config loads runtime settings from flags, the environment and
// .env files.
//
// Every key can be set as a flag (--max-open-conns) or as an environment
// variable with the SQLCOLL prefix (SQLCOLL_MAX_OPEN_CONNS). Flags win.
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/sqlcoll/internal/logging"
	"github.com/roach88/sqlcoll/internal/retry"
	"github.com/roach88/sqlcoll/internal/sqldb"
	"github.com/roach88/sqlcoll/internal/sqldialect"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "sqlcoll"

// Keys.
const (
	KeyDriver        = "driver"
	KeyDSN           = "dsn"
	KeyMaxOpenConns  = "max-open-conns"
	KeyRetryAttempts = "retry-attempts"
	KeyRetryInterval = "retry-interval"
	KeyLogLevel      = "log-level"
	KeyLogFormat     = "log-format"
)

// DefaultDSN is the SQLite database used when no DSN is configured.
const DefaultDSN = "sqlcoll.db"

// Config is the resolved configuration of a process.
type Config struct {
	DB    sqldb.Config
	Retry Retry
	Log   logging.Config
}

// Retry configures the retry policy of store writes.
type Retry struct {
	Attempts int
	Interval time.Duration
}

// Policy returns the retry policy described by r.
func (r Retry) Policy() retry.Policy {
	return retry.Policy{ShouldRetry: retry.MaxAttempts(r.Attempts), Interval: r.Interval}
}

// LoadEnv loads .env files into the process environment. Missing files are
// ignored and variables already set are kept.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env", ".env.local"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// New returns a viper instance reading SQLCOLL_* environment variables, with
// defaults for every key.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyDriver, sqldialect.SQLite)
	v.SetDefault(KeyDSN, DefaultDSN)
	v.SetDefault(KeyMaxOpenConns, 0)
	v.SetDefault(KeyRetryAttempts, retry.DefaultAttempts)
	v.SetDefault(KeyRetryInterval, retry.DefaultInterval)
	v.SetDefault(KeyLogLevel, logging.DefaultLevel)
	v.SetDefault(KeyLogFormat, logging.DefaultFormat)
	return v
}

// SetupFlags declares the configuration flags on cmd as persistent flags.
func SetupFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String(KeyDriver, sqldialect.SQLite, "Database driver (sqlite3, mysql, postgres)")
	f.String(KeyDSN, DefaultDSN, "Data source name; a file path for sqlite3")
	f.Int(KeyMaxOpenConns, 0, "Connection pool size (0: driver default)")
	f.Int(KeyRetryAttempts, retry.DefaultAttempts, "Attempts per write statement")
	f.Duration(KeyRetryInterval, retry.DefaultInterval, "Pause between write attempts")
	f.String(KeyLogLevel, logging.DefaultLevel, "Logging level (trace, debug, info, warn, error)")
	f.String(KeyLogFormat, logging.DefaultFormat, "Logging format (text, json, color)")
}

// BindFlags binds the persistent flags of cmd to v.
func BindFlags(v *viper.Viper, cmd *cobra.Command) error {
	return v.BindPFlags(cmd.PersistentFlags())
}

// Load resolves and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		DB: sqldb.Config{
			Driver:       v.GetString(KeyDriver),
			DSN:          v.GetString(KeyDSN),
			MaxOpenConns: v.GetInt(KeyMaxOpenConns),
		},
		Retry: Retry{
			Attempts: v.GetInt(KeyRetryAttempts),
			Interval: v.GetDuration(KeyRetryInterval),
		},
		Log: logging.Config{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
	}

	if _, err := sqldialect.Lookup(cfg.DB.Driver); err != nil {
		return Config{}, errors.Wrap(err, KeyDriver)
	}
	if cfg.DB.DSN == "" {
		return Config{}, errors.Errorf("%s must not be empty", KeyDSN)
	}
	if cfg.DB.MaxOpenConns < 0 {
		return Config{}, errors.Errorf("%s must not be negative", KeyMaxOpenConns)
	}
	if cfg.Retry.Attempts < 1 {
		return Config{}, errors.Errorf("%s must be at least 1", KeyRetryAttempts)
	}
	return cfg, nil
}
