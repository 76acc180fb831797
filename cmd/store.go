package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/terralab/geostat/internal/store"
)

// initStore opens the configured run store and applies migrations.
func initStore(ctx context.Context) (store.Store, func(), error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "geostat.db"
		}
		st, err := store.NewSQLite(dsn)
		if err != nil {
			return nil, nil, eris.Wrap(err, "open sqlite store")
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, nil, eris.Wrap(err, "migrate sqlite store")
		}
		return st, func() { _ = st.Close() }, nil
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return nil, nil, eris.Wrap(err, "open postgres store")
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, nil, eris.Wrap(err, "migrate postgres store")
		}
		return st, func() { _ = st.Close() }, nil
	default:
		return nil, nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
