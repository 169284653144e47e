package repo

import (
	"context"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/infra/credentials"
)

// OpenStore selects Postgres when DATABASE_URL is set and the local SQLite
// file otherwise. The returned backend persists credential settings next to
// the assets.
func OpenStore(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (domain.AssetStore, credentials.Backend, error) {
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		runner := infra.NewSQLRunner(pool, logger)
		store := NewPostgresAssetStore(runner, pool.Close, logger)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, credentials.NewSQLBackend(runner), nil
	}

	store, err := OpenSQLiteAssetStore(cfg.StorePath, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, store, nil
}
