package memory

import (
	"context"
	"sync"

	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/storage"
)

// RewardsVaultStore is an in-memory implementation of storage.RewardsVaultStore.
type RewardsVaultStore struct {
	mu   sync.RWMutex
	data map[domain.Pubkey]*domain.RewardsVault // keyed by mint
}

// NewRewardsVaultStore creates a new in-memory rewards vault store.
func NewRewardsVaultStore() *RewardsVaultStore {
	return &RewardsVaultStore{
		data: make(map[domain.Pubkey]*domain.RewardsVault),
	}
}

// Insert adds a new vault for mint. Returns ErrDuplicateKey if mint already has one.
func (s *RewardsVaultStore) Insert(_ context.Context, mint domain.Pubkey, v *domain.RewardsVault) error {
	if v == nil || mint.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[mint]; exists {
		return storage.ErrDuplicateKey
	}

	vaultCopy := *v
	s.data[mint] = &vaultCopy
	return nil
}

// Get retrieves the vault of mint. Returns ErrNotFound if not exists.
func (s *RewardsVaultStore) Get(_ context.Context, mint domain.Pubkey) (*domain.RewardsVault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, exists := s.data[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}

	vaultCopy := *v
	return &vaultCopy, nil
}

// Update replaces the whole vault. Returns ErrNotFound if not exists.
func (s *RewardsVaultStore) Update(_ context.Context, mint domain.Pubkey, v *domain.RewardsVault) error {
	if v == nil || mint.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateLocked(mint, v)
}

func (s *RewardsVaultStore) updateLocked(mint domain.Pubkey, v *domain.RewardsVault) error {
	if _, exists := s.data[mint]; !exists {
		return storage.ErrNotFound
	}
	vaultCopy := *v
	s.data[mint] = &vaultCopy
	return nil
}

// Verify interface compliance at compile time.
var _ storage.RewardsVaultStore = (*RewardsVaultStore)(nil)
