package clickhouse

import (
	"context"
	"fmt"

	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/storage"
)

// EngineEventStore implements storage.EngineEventStore using ClickHouse.
type EngineEventStore struct {
	conn *Conn
}

// NewEngineEventStore creates a new EngineEventStore.
func NewEngineEventStore(conn *Conn) *EngineEventStore {
	return &EngineEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EngineEventStore = (*EngineEventStore)(nil)

const engineEventColumns = `
	event_id, kind, outcome, authority, counterparty,
	amount, price, reward, stage, reason, timestamp, sequence
`

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *EngineEventStore) Insert(ctx context.Context, e *domain.EngineEvent) error {
	return s.InsertBulk(ctx, []*domain.EngineEvent{e})
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EngineEventStore) InsertBulk(ctx context.Context, events []*domain.EngineEvent) error {
	if len(events) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[e.EventID] = struct{}{}
	}

	// MergeTree does not enforce uniqueness; check existing rows first.
	for _, e := range events {
		exists, err := s.exists(ctx, e.EventID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO engine_events (`+engineEventColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			e.EventID, e.Kind, e.Outcome, e.Authority, e.Counterparty,
			e.Amount, e.Price, e.Reward, e.Stage, e.Reason, e.Timestamp, e.Sequence,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByAuthority retrieves all events of authority, ordered by (timestamp, sequence) ASC.
func (s *EngineEventStore) GetByAuthority(ctx context.Context, authority string) ([]*domain.EngineEvent, error) {
	query := `
		SELECT ` + engineEventColumns + `
		FROM engine_events
		WHERE authority = ?
		ORDER BY timestamp ASC, sequence ASC, event_id ASC
	`

	rows, err := s.conn.Query(ctx, query, authority)
	if err != nil {
		return nil, fmt.Errorf("query by authority: %w", err)
	}
	defer rows.Close()

	return scanEngineEvents(rows)
}

// GetByTimeRange retrieves events within [start, end] (inclusive), ordered by (timestamp, sequence) ASC.
func (s *EngineEventStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.EngineEvent, error) {
	query := `
		SELECT ` + engineEventColumns + `
		FROM engine_events
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, sequence ASC, event_id ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanEngineEvents(rows)
}

// exists checks if an event with the given ID exists.
func (s *EngineEventStore) exists(ctx context.Context, eventID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM engine_events WHERE event_id = ?`, eventID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanEngineEvents scans multiple rows.
func scanEngineEvents(rows chRows) ([]*domain.EngineEvent, error) {
	var events []*domain.EngineEvent

	for rows.Next() {
		var e domain.EngineEvent
		err := rows.Scan(
			&e.EventID, &e.Kind, &e.Outcome, &e.Authority, &e.Counterparty,
			&e.Amount, &e.Price, &e.Reward, &e.Stage, &e.Reason, &e.Timestamp, &e.Sequence,
		)
		if err != nil {
			return nil, fmt.Errorf("scan engine event row: %w", err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate engine event rows: %w", err)
	}

	return events, nil
}
