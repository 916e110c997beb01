package journal

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"fx_bot/internal/modules/config"
	"fx_bot/internal/modules/journal/service"
	"fx_bot/pkg/db"
	"fx_bot/pkg/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

func newStore(ctx context.Context, lc fx.Lifecycle, cfg *config.Config) (service.Store, error) {
	var (
		store service.Store
		err   error
	)
	switch cfg.Journal.Driver {
	case DriverPostgres:
		store, err = newPostgres(ctx, cfg.Journal.DSN)
	case DriverMemory:
		store = service.NewMemory()
	case DriverSQLite, "":
		store, err = service.NewSQLite(ctx, cfg.Journal.DSN)
	default:
		return nil, fmt.Errorf("unknown journal driver %q", cfg.Journal.Driver)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("[JOURNAL] driver=%s", cfg.Journal.Driver)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}

func newPostgres(ctx context.Context, dsn string) (service.Store, error) {
	poolMaster, err := db.NewPool(ctx, db.PoolConfig{
		DSN: dsn,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create poolMaster: %w", err)
	}

	err = poolMaster.Ping(ctx)
	if err != nil {
		poolMaster.Close()
		return nil, err
	}

	return service.NewPostgres(ctx, db.NewPgTxManager(poolMaster))
}

func Module() fx.Option {
	return fx.Module("journal",
		fx.Provide(
			newStore,
		),
	)
}
