package memory

import (
	"context"
	"sort"
	"sync"

	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/storage"
)

// EngineEventStore is an in-memory implementation of storage.EngineEventStore.
type EngineEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.EngineEvent // keyed by event_id
}

// NewEngineEventStore creates a new in-memory engine event store.
func NewEngineEventStore() *EngineEventStore {
	return &EngineEventStore{
		data: make(map[string]*domain.EngineEvent),
	}
}

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *EngineEventStore) Insert(_ context.Context, e *domain.EngineEvent) error {
	if e == nil || e.EventID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.EventID]; exists {
		return storage.ErrDuplicateKey
	}

	eventCopy := *e
	s.data[e.EventID] = &eventCopy
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EngineEventStore) InsertBulk(_ context.Context, events []*domain.EngineEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: check for duplicates (existing + intra-batch)
	batchKeys := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[e.EventID] = struct{}{}
	}

	// Second pass: insert all
	for _, e := range events {
		eventCopy := *e
		s.data[e.EventID] = &eventCopy
	}
	return nil
}

// GetByAuthority retrieves all events of authority, ordered by (timestamp, sequence) ASC.
func (s *EngineEventStore) GetByAuthority(_ context.Context, authority string) ([]*domain.EngineEvent, error) {
	return s.filter(func(e *domain.EngineEvent) bool {
		return e.Authority == authority
	}), nil
}

// GetByTimeRange retrieves events within [start, end] (inclusive), ordered by (timestamp, sequence) ASC.
func (s *EngineEventStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.EngineEvent, error) {
	return s.filter(func(e *domain.EngineEvent) bool {
		return e.Timestamp >= start && e.Timestamp <= end
	}), nil
}

func (s *EngineEventStore) filter(keep func(*domain.EngineEvent) bool) []*domain.EngineEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EngineEvent
	for _, e := range s.data {
		if keep(e) {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		if result[i].Sequence != result[j].Sequence {
			return result[i].Sequence < result[j].Sequence
		}
		return result[i].EventID < result[j].EventID
	})

	return result
}

// Verify interface compliance at compile time.
var _ storage.EngineEventStore = (*EngineEventStore)(nil)
