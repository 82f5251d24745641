package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"rfq-tracker/internal/config"
	"rfq-tracker/internal/rfq"
)

// SQLiteFileName is the store file created inside data_dir.
const SQLiteFileName = "rfq.db"

// NewStoreFromConfig opens the store selected by cfg.Type. SQLite stores are
// migrated to the latest schema. Any error here means the store is unreachable.
func NewStoreFromConfig(ctx context.Context, cfg config.DatabaseConfig) (rfq.Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return openMigratedSQLite(filepath.Join(cfg.DataDir, SQLiteFileName))
	case "memory":
		return openMigratedSQLite(":memory:")
	case "mongo":
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("mongo_uri required for mongo database")
		}
		return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

func openMigratedSQLite(path string) (*SQLiteStore, error) {
	store, err := NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, err
	}
	if err := store.CheckMigrations(); err != nil {
		store.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}
	return store, nil
}
