// Package store persists the notarization transaction journal.
package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"docnotary/config"
	"docnotary/notarization"
)

// Store is a notarization.Journal backed by a database
type Store interface {
	notarization.Journal
	Close()
}

// New opens the journal backend selected by cfg.Driver.
// It returns nil when no driver is configured.
func New(ctx context.Context, cfg config.DatabaseConfig, logger *log.Logger) (Store, error) {
	switch cfg.Driver {
	case "":
		return nil, nil
	case "postgres":
		s, err := NewPostgresStore(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := NewSQLiteStore(cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
