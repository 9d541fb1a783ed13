package cmd

import (
	"errors"
	"fmt"

	"github.com/rubiojr/places/pkg/config"
	"github.com/rubiojr/places/pkg/engine"
	"github.com/rubiojr/places/pkg/storage"
)

// openStore loads the config and opens the database, turning the locked
// case into a user-facing message naming the other process.
func openStore(configPath string) (*config.Config, *storage.Store, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	store, err := storage.Open(cfg.DBPath())
	if err != nil {
		if errors.Is(err, storage.ErrDatabaseLocked) {
			return nil, nil, fmt.Errorf("database %s is already open in another process; close it and retry", cfg.DBPath())
		}
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	return cfg, store, nil
}

// loadEngine opens the store and builds a ready cache.
func loadEngine(configPath string) (*config.Config, *storage.Store, *engine.Engine, error) {
	cfg, store, err := openStore(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	eng := engine.New(store)
	if err := eng.Load(); err != nil {
		if cerr := store.Close(); cerr != nil {
			fmt.Printf("Warning: failed to close store: %v\n", cerr)
		}
		return nil, nil, nil, fmt.Errorf("loading cache: %w", err)
	}

	return cfg, store, eng, nil
}
