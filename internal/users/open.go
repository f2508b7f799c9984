package users

import (
	"context"
	"fmt"

	"github.com/jewelcalc/jewelgate/internal/config"
	"github.com/jewelcalc/jewelgate/internal/infra"
)

// Store is an opened Repository together with its health check and cleanup.
type Store struct {
	Repository
	Ping  func(ctx context.Context) error
	Close func()
}

// OpenStore connects the backend selected by cfg.StoreDriver and applies
// its schema.
func OpenStore(ctx context.Context, cfg config.Config) (*Store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		repo := NewPostgresRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return &Store{Repository: repo, Ping: pool.Ping, Close: pool.Close}, nil

	case config.StoreSQLite:
		db, err := infra.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		repo := NewSQLiteRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return &Store{Repository: repo, Ping: db.PingContext, Close: func() { db.Close() }}, nil

	case config.StoreMemory:
		return &Store{
			Repository: NewMemoryRepository(),
			Ping:       func(context.Context) error { return nil },
			Close:      func() {},
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
