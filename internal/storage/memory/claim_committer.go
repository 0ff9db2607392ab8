package memory

import (
	"context"

	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/storage"
)

// ClaimCommitter writes claim results to a memory holder store and vault store
// under both locks.
type ClaimCommitter struct {
	holders *HolderRecordStore
	vaults  *RewardsVaultStore
}

// NewClaimCommitter creates a ClaimCommitter over the given stores.
func NewClaimCommitter(holders *HolderRecordStore, vaults *RewardsVaultStore) *ClaimCommitter {
	return &ClaimCommitter{holders: holders, vaults: vaults}
}

// CommitClaim replaces the holder record and the vault of mint together.
func (c *ClaimCommitter) CommitClaim(_ context.Context, r *domain.HolderRecord, mint domain.Pubkey, v *domain.RewardsVault) error {
	if r == nil || v == nil || r.Authority.IsZero() || mint.IsZero() {
		return storage.ErrInvalidInput
	}

	// Lock order: holders, then vaults.
	c.holders.mu.Lock()
	defer c.holders.mu.Unlock()
	c.vaults.mu.Lock()
	defer c.vaults.mu.Unlock()

	if _, exists := c.holders.data[r.Authority]; !exists {
		return storage.ErrNotFound
	}
	if _, exists := c.vaults.data[mint]; !exists {
		return storage.ErrNotFound
	}

	if err := c.holders.updateLocked(r); err != nil {
		return err
	}
	return c.vaults.updateLocked(mint, v)
}

// Verify interface compliance at compile time.
var _ storage.ClaimCommitter = (*ClaimCommitter)(nil)
