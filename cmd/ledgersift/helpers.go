package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/ledgersift/ledgersift/internal/config"
	"github.com/ledgersift/ledgersift/internal/importer"
	"github.com/ledgersift/ledgersift/internal/storage"
)

// openStorage opens the configured database. The caller owns the returned
// store and must close it.
func openStorage() (*storage.SQLiteStorage, error) {
	dbPath := config.ExpandPath(viper.GetString("database.path"))
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".local", "share", "ledgersift", "ledgersift.db")
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

// openMigratedStorage opens the database and brings the schema up to date.
func openMigratedStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := openStorage()
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return store, nil
}

// newImportService wires the import pipeline on top of the given store.
func newImportService(ctx context.Context, store *storage.SQLiteStorage) *importer.Service {
	registry := importer.NewRegistry(nil, importer.DefaultTTL)
	registry.StartSweeper(ctx, time.Minute)
	return importer.NewService(store, registry)
}

func currentUser() string {
	return viper.GetString("user")
}

func currentCompany() string {
	return viper.GetString("company")
}
