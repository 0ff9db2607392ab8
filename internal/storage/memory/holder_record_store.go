package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/storage"
)

// HolderRecordStore is an in-memory implementation of storage.HolderRecordStore.
type HolderRecordStore struct {
	mu   sync.RWMutex
	data map[domain.Pubkey]*domain.HolderRecord // keyed by authority
}

// NewHolderRecordStore creates a new in-memory holder record store.
func NewHolderRecordStore() *HolderRecordStore {
	return &HolderRecordStore{
		data: make(map[domain.Pubkey]*domain.HolderRecord),
	}
}

// Insert adds a new record. Returns ErrDuplicateKey if the authority already has one.
func (s *HolderRecordStore) Insert(_ context.Context, r *domain.HolderRecord) error {
	if r == nil || r.Authority.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.Authority]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	recordCopy := *r
	s.data[r.Authority] = &recordCopy
	return nil
}

// Get retrieves the record owned by authority. Returns ErrNotFound if not exists.
func (s *HolderRecordStore) Get(_ context.Context, authority domain.Pubkey) (*domain.HolderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[authority]
	if !exists {
		return nil, storage.ErrNotFound
	}

	recordCopy := *r
	return &recordCopy, nil
}

// Update replaces the whole record. Returns ErrNotFound if not exists.
func (s *HolderRecordStore) Update(_ context.Context, r *domain.HolderRecord) error {
	if r == nil || r.Authority.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateLocked(r)
}

func (s *HolderRecordStore) updateLocked(r *domain.HolderRecord) error {
	if _, exists := s.data[r.Authority]; !exists {
		return storage.ErrNotFound
	}
	recordCopy := *r
	s.data[r.Authority] = &recordCopy
	return nil
}

// GetAll retrieves all records ordered by authority.
func (s *HolderRecordStore) GetAll(_ context.Context) ([]*domain.HolderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.HolderRecord, 0, len(s.data))
	for _, r := range s.data {
		recordCopy := *r
		result = append(result, &recordCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return bytes.Compare(result[i].Authority[:], result[j].Authority[:]) < 0
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.HolderRecordStore = (*HolderRecordStore)(nil)
