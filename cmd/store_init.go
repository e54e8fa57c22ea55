package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/db"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/store"
)

// initStore opens the configured customer store. The caller closes it.
func initStore(ctx context.Context) (store.Store, error) {
	return openStore(ctx, cfg.Store.Collection)
}

// openStore opens collection (a table on SQL drivers) with the configured
// driver and connection.
func openStore(ctx context.Context, collection string) (store.Store, error) {
	sc := cfg.Store
	switch sc.Driver {
	case "mongo":
		return store.NewMongo(ctx, sc.URI, sc.Database, collection)
	case "postgres":
		return store.NewPostgres(ctx, sc.URI, collection, &db.PoolConfig{MaxConns: sc.MaxConns})
	case "sqlite":
		return store.NewSQLite(sc.URI, collection)
	default:
		return nil, model.NewJobError(model.KindConnection, "init store",
			eris.Errorf("unsupported store driver: %s", sc.Driver))
	}
}
