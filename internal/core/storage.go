package core

import (
	"context"
	"fmt"
	"os"

	"genesim/internal/infra/persistence/memory"
	"genesim/internal/infra/persistence/postgres"
	"genesim/internal/infra/persistence/sqlite"
	"genesim/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// PersistentStore is the durable record of a run.
type PersistentStore = domain.PersistentStore

// StorageConfig selects and locates a backend. Empty fields fall back to the
// backend defaults.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// StorageConfigFromEnv reads the storage selection from the environment.
//
//	GENESIM_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	GENESIM_SQLITE_PATH: path to sqlite file (default ./genesim.db)
//	GENESIM_POSTGRES_DSN: postgres DSN when driver=postgres
func StorageConfigFromEnv() StorageConfig {
	return StorageConfig{
		Driver:      StorageDriver(os.Getenv("GENESIM_STORAGE_DRIVER")),
		SQLitePath:  os.Getenv("GENESIM_SQLITE_PATH"),
		PostgresDSN: os.Getenv("GENESIM_POSTGRES_DSN"),
	}
}

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
func OpenPersistentStore(ctx context.Context) (PersistentStore, error) {
	return OpenStore(ctx, StorageConfigFromEnv())
}

// OpenStore opens the backend named by cfg.
func OpenStore(ctx context.Context, cfg StorageConfig) (PersistentStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = sqlite.DefaultPath
		}
		return sqlite.NewStore(ctx, path)
	case StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
