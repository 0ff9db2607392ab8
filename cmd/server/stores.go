package main

import (
	"context"
	"fmt"

	"solana-token-guard/internal/config"
	"solana-token-guard/internal/storage"
	chstore "solana-token-guard/internal/storage/clickhouse"
	"solana-token-guard/internal/storage/memory"
	"solana-token-guard/internal/storage/migrations"
	pgstore "solana-token-guard/internal/storage/postgres"
)

// engineStores holds the record and event stores the engine runs on.
type engineStores struct {
	holders storage.HolderRecordStore
	vaults  storage.RewardsVaultStore
	claims  storage.ClaimCommitter
	events  storage.EngineEventStore
}

// createStores opens memory or Postgres/ClickHouse stores, applying the
// embedded migrations to the latter.
func createStores(ctx context.Context, rt *config.Runtime) (*engineStores, func(), error) {
	mode, err := rt.StorageMode()
	if err != nil {
		return nil, nil, err
	}

	if mode == "memory" {
		holders := memory.NewHolderRecordStore()
		vaults := memory.NewRewardsVaultStore()
		stores := &engineStores{
			holders: holders,
			vaults:  vaults,
			claims:  memory.NewClaimCommitter(holders, vaults),
			events:  memory.NewEngineEventStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL: holder records and vaults
	pool, err := pgstore.NewPoolWithObserver(ctx, rt.PostgresDSN, recordPostgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	// ClickHouse: engine events
	chConn, err := migrations.RunClickhouseMigrations(ctx, rt.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
	}

	stores := &engineStores{
		holders: pgstore.NewHolderRecordStore(pool),
		vaults:  pgstore.NewRewardsVaultStore(pool),
		claims:  pgstore.NewClaimCommitter(pool),
		events:  timedEventStore{EngineEventStore: chstore.NewEngineEventStore(chConn)},
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}
