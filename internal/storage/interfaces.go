package storage

import (
	"context"

	"solana-token-guard/internal/domain"
)

// HolderRecordStore provides access to holder_records storage.
type HolderRecordStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if the authority already has one.
	Insert(ctx context.Context, r *domain.HolderRecord) error

	// Get retrieves the record owned by authority. Returns ErrNotFound if not exists.
	Get(ctx context.Context, authority domain.Pubkey) (*domain.HolderRecord, error)

	// Update replaces the whole record. Returns ErrNotFound if not exists.
	Update(ctx context.Context, r *domain.HolderRecord) error

	// GetAll retrieves all records ordered by authority.
	GetAll(ctx context.Context) ([]*domain.HolderRecord, error)
}

// RewardsVaultStore provides access to rewards_vaults storage, one vault per mint.
type RewardsVaultStore interface {
	// Insert adds a new vault for mint. Returns ErrDuplicateKey if mint already has one.
	Insert(ctx context.Context, mint domain.Pubkey, v *domain.RewardsVault) error

	// Get retrieves the vault of mint. Returns ErrNotFound if not exists.
	Get(ctx context.Context, mint domain.Pubkey) (*domain.RewardsVault, error)

	// Update replaces the whole vault. Returns ErrNotFound if not exists.
	Update(ctx context.Context, mint domain.Pubkey, v *domain.RewardsVault) error
}

// ClaimCommitter persists the two records a reward claim changes.
type ClaimCommitter interface {
	// CommitClaim replaces the holder record and the vault of mint together.
	// On error neither is written. Returns ErrNotFound if either is missing.
	CommitClaim(ctx context.Context, r *domain.HolderRecord, mint domain.Pubkey, v *domain.RewardsVault) error
}

// EngineEventStore provides access to engine_events storage (append-only).
type EngineEventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
	Insert(ctx context.Context, e *domain.EngineEvent) error

	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, events []*domain.EngineEvent) error

	// GetByAuthority retrieves all events of authority, ordered by (timestamp, sequence) ASC.
	GetByAuthority(ctx context.Context, authority string) ([]*domain.EngineEvent, error)

	// GetByTimeRange retrieves events within [start, end] (inclusive), ordered by (timestamp, sequence) ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.EngineEvent, error)
}
