package main

import (
	"context"
	"time"

	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/observability"
	"solana-token-guard/internal/oracle"
	"solana-token-guard/internal/orchestrator"
	"solana-token-guard/internal/storage"
)

// metricsObserver feeds engine events into the Prometheus collectors.
type metricsObserver struct{}

var _ orchestrator.Observer = metricsObserver{}

func (metricsObserver) ObserveEvent(e *domain.EngineEvent, elapsed time.Duration) {
	observability.RecordEngineEvent(e)
	observability.RecordOperationLatency(e.Kind, elapsed.Seconds())
}

func (metricsObserver) ObserveEventStoreError(error) {
	observability.RecordEventStoreError()
}

// recordQuote returns a FeedWatcher callback that exports every verdict.
func recordQuote(priceDecimals uint8) func(oracle.Feed, domain.PriceQuote, error) {
	return func(_ oracle.Feed, q domain.PriceQuote, err error) {
		observability.RecordOracleQuote(q.Price, priceDecimals, q.PublishSlot, oracle.RejectReason(err))
	}
}

func recordRPC(method string, elapsed time.Duration, _ error) {
	observability.RecordRPCLatency(method, elapsed.Seconds())
}

func recordPostgres(operation string, elapsed time.Duration, err error) {
	observability.RecordDBQuery("postgres", operation, elapsed.Seconds(), err)
}

// timedEventStore times event store calls as ClickHouse queries.
type timedEventStore struct {
	storage.EngineEventStore
}

var _ storage.EngineEventStore = timedEventStore{}

func (s timedEventStore) Insert(ctx context.Context, e *domain.EngineEvent) error {
	start := time.Now()
	err := s.EngineEventStore.Insert(ctx, e)
	observability.RecordDBQuery("clickhouse", "insert", time.Since(start).Seconds(), err)
	return err
}

func (s timedEventStore) GetByAuthority(ctx context.Context, authority string) ([]*domain.EngineEvent, error) {
	start := time.Now()
	events, err := s.EngineEventStore.GetByAuthority(ctx, authority)
	observability.RecordDBQuery("clickhouse", "select", time.Since(start).Seconds(), err)
	return events, err
}
