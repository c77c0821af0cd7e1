package core

import (
	"context"
	"fmt"

	"gradebook/internal/config"
	"gradebook/internal/infra/persistence/memory"
	"gradebook/internal/infra/persistence/postgres"
	"gradebook/internal/infra/persistence/sqlite"
	"gradebook/pkg/domain"
)

// OpenPersistentStore selects a backend from cfg.Driver, defaulting to sqlite.
//
//	memory:   process memory only (tests / ephemeral)
//	sqlite:   embedded database file at cfg.SQLitePath
//	postgres: server database at cfg.PostgresDSN
func OpenPersistentStore(ctx context.Context, cfg config.Storage) (domain.PersistentStore, error) {
	switch cfg.Driver {
	case config.StorageMemory:
		return memory.NewStore(), nil
	case "", config.StorageSQLite:
		return sqlite.NewStore(ctx, cfg.SQLitePath)
	case config.StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
