package app

import (
	"context"
	"fmt"

	"orbitwatch/internal/config"
	"orbitwatch/internal/storage/migrations"
	pgstore "orbitwatch/internal/storage/postgres"
)

// Migrate applies the embedded schema migrations to the configured
// backends. Migrations are idempotent; reapplying is safe.
func (a *App) Migrate(ctx context.Context) error {
	if a.Config.Storage.Backend != config.BackendPostgres {
		return fmt.Errorf("migrate requires storage.backend=%s", config.BackendPostgres)
	}

	pool, err := pgstore.NewPool(ctx, a.Config.Storage.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return fmt.Errorf("postgres migrations: %w", err)
	}
	a.Logger.Info().Msg("postgres migrations applied")

	if dsn := a.Config.Storage.ClickhouseDSN; dsn != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
		if err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		defer conn.Close()
		a.Logger.Info().Msg("clickhouse migrations applied")
	}

	return nil
}
