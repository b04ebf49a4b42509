package core

import (
	"context"
	"fmt"
	"io"

	"herdbook/internal/config"
	"herdbook/internal/infra/persistence/memory"
	"herdbook/internal/infra/persistence/postgres"
	"herdbook/internal/infra/persistence/sqlite"
)

// OpenPersistentStore selects a backend from cfg. An empty driver selects
// sqlite. Durable stores implement io.Closer; see CloseStore.
func OpenPersistentStore(ctx context.Context, cfg config.Storage, engine *RulesEngine) (PersistentStore, error) {
	switch cfg.Driver {
	case config.StorageMemory:
		return memory.NewStore(engine), nil
	case config.StorageSQLite, "":
		store, err := sqlite.NewStore(cfg.SQLitePath, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// CloseStore releases resources held by store, if any.
func CloseStore(store PersistentStore) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
