// Package storage selects the CacheStore backend named in config.
package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/phuslu/log"

	"github.com/TobiSchelling/dartq/internal/config"
	"github.com/TobiSchelling/dartq/internal/database"
	"github.com/TobiSchelling/dartq/internal/filing"
	"github.com/TobiSchelling/dartq/internal/storage/badger"
	"github.com/TobiSchelling/dartq/internal/storage/postgres"
)

// Store is a CacheStore that owns releasable resources.
type Store interface {
	filing.CacheStore
	// Count returns the number of cached line items for an entity.
	Count(ctx context.Context, entityID string) (int, error)
	Close() error
}

// sqliteStore serves the cache from the shared SQLite database. The caller
// owns db, so Close is a no-op.
type sqliteStore struct {
	*database.DB
}

func (s sqliteStore) Count(ctx context.Context, entityID string) (int, error) {
	return s.CountCached(ctx, entityID)
}

func (sqliteStore) Close() error { return nil }

// Open returns the cache backend configured by cfg.Storage.Type. db is the
// SQLite database used for the sqlite backend.
func Open(ctx context.Context, cfg *config.Config, db *database.DB) (Store, error) {
	switch cfg.Storage.Type {
	case "", "sqlite":
		if db == nil {
			return nil, fmt.Errorf("sqlite storage requires an open database")
		}
		log.Debug().Str("path", db.Path()).Msg("using sqlite cache")
		return sqliteStore{db}, nil

	case "badger":
		dir := filepath.Join(cfg.GetDataDir(), "cache.badger")
		log.Debug().Str("path", dir).Msg("using badger cache")
		return badger.Open(dir)

	case "postgres":
		url := cfg.PostgresURL()
		if url == "" {
			return nil, fmt.Errorf("postgres storage: %s is not set", cfg.Storage.PostgresURLEnv)
		}
		log.Debug().Msg("using postgres cache")
		return postgres.Open(ctx, url)
	}
	return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
}
