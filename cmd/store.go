package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/vltavalabs/leadscout/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	opts := store.OptionsFromConfig(cfg.Progress)

	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "data/leadscout.db"
		}
		return store.NewSQLite(path, opts)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, opts)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore initializes and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
