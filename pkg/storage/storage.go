// Package storage opens the merkle.Storer selected by configuration.
package storage

import (
	"context"
	"fmt"

	"github.com/papercomputeco/foodlens/pkg/config"
	"github.com/papercomputeco/foodlens/pkg/merkle"
	"github.com/papercomputeco/foodlens/pkg/storage/inmemory"
	"github.com/papercomputeco/foodlens/pkg/storage/redis"
	"github.com/papercomputeco/foodlens/pkg/storage/sqlite"
)

// Open returns the configured store, or nil for the "none" backend.
func Open(ctx context.Context, cfg config.Storage) (merkle.Storer, error) {
	switch cfg.Backend {
	case config.StorageNone:
		return nil, nil
	case "", config.StorageMemory:
		return inmemory.NewDriver(), nil
	case config.StorageSQLite:
		d, err := sqlite.NewDriver(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite storage: %w", err)
		}
		return d, nil
	case config.StorageRedis:
		d, err := redis.NewDriver(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open Redis storage: %w", err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
