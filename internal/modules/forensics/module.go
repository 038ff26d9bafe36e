package forensics

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	alpaca "magic_bot/internal/modules/alpaca/service"
	"magic_bot/internal/modules/config"
	"magic_bot/internal/modules/forensics/service"
	"magic_bot/pkg/db"
	"magic_bot/pkg/logger"
)

// Без DSN работаем на памяти: решения и equity живут до рестарта.
func newStores(ctx context.Context, cfg *config.Config) (service.Store, service.EquityStore, error) {
	if cfg.DB == "" {
		logger.Warn("forensics_store_memory no DATABASE_DSN configured")
		return service.NewMemStore(), service.NewMemEquityStore(), nil
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{DSN: cfg.DB})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create poolMaster: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, nil, err
	}
	txm := db.NewPgTxManager(pool)
	return service.NewPgStore(txm), service.NewPgEquityStore(txm), nil
}

func Module() fx.Option {
	return fx.Module("forensics",
		fx.Provide(
			newStores,
			service.NewForensics,
			func(broker *alpaca.Client, store service.EquityStore) *service.EquityTracker {
				return service.NewEquityTracker(broker, store)
			},
		),
	)
}
