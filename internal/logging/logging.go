// Package logging configures the process-wide logrus logger.
package logging

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Config configures handling of application log events.
type Config struct {
	// Level is one of trace, debug, info, warn, error, fatal.
	Level string
	// Format is one of text, json, color.
	Format string
}

// Defaults used when a Config field is empty.
const (
	DefaultLevel  = "warn"
	DefaultFormat = "text"
)

// Init configures the standard logger.
func Init(cfg Config) error {
	if cfg.Level == "" {
		cfg.Level = DefaultLevel
	}
	if cfg.Format == "" {
		cfg.Format = DefaultFormat
	}

	switch cfg.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text":
		log.SetFormatter(&log.TextFormatter{})
	case "color":
		log.SetFormatter(&log.TextFormatter{ForceColors: true})
	default:
		return errors.Errorf("unrecognized log format %q", cfg.Format)
	}

	lvl, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return errors.Wrap(err, "unrecognized log level")
	}
	log.SetLevel(lvl)
	return nil
}
