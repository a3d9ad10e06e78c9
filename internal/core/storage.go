package core

import (
	"fmt"
	"os"

	"github.com/tannerln7/GrowTrialLab-sub001/internal/infra/persistence/memory"
	"github.com/tannerln7/GrowTrialLab-sub001/internal/infra/persistence/postgres"
	"github.com/tannerln7/GrowTrialLab-sub001/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	GROWTRIAL_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	GROWTRIAL_SQLITE_PATH: path to sqlite file (default ./growtrial.db)
//	GROWTRIAL_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(engine *RulesEngine) (PersistentStore, error) {
	driver := os.Getenv("GROWTRIAL_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	return OpenStorageDriver(StorageDriver(driver), engine)
}

// OpenStorageDriver opens the named backend, reading backend-specific
// settings from the environment.
func OpenStorageDriver(driver StorageDriver, engine *RulesEngine) (PersistentStore, error) {
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return sqlite.NewStore(os.Getenv("GROWTRIAL_SQLITE_PATH"), engine)
	case StoragePostgres:
		return postgres.NewStore(os.Getenv("GROWTRIAL_POSTGRES_DSN"), engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
