package postgres

import (
	"context"
	"fmt"

	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/storage"
)

// ClaimCommitter implements storage.ClaimCommitter with a single transaction.
type ClaimCommitter struct {
	pool *Pool
}

// NewClaimCommitter creates a new ClaimCommitter.
func NewClaimCommitter(pool *Pool) *ClaimCommitter {
	return &ClaimCommitter{pool: pool}
}

// Compile-time interface check.
var _ storage.ClaimCommitter = (*ClaimCommitter)(nil)

// CommitClaim replaces the holder record and the vault of mint in one transaction.
func (c *ClaimCommitter) CommitClaim(ctx context.Context, r *domain.HolderRecord, mint domain.Pubkey, v *domain.RewardsVault) error {
	if r == nil || v == nil || r.Authority.IsZero() || mint.IsZero() {
		return storage.ErrInvalidInput
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := updateHolderRecord(ctx, tx, r); err != nil {
		return err
	}
	if err := updateRewardsVault(ctx, tx, mint, v); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit claim tx: %w", err)
	}
	return nil
}
