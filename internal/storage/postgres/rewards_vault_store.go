package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/storage"
)

// RewardsVaultStore implements storage.RewardsVaultStore using PostgreSQL.
type RewardsVaultStore struct {
	pool *Pool
}

// NewRewardsVaultStore creates a new RewardsVaultStore.
func NewRewardsVaultStore(pool *Pool) *RewardsVaultStore {
	return &RewardsVaultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RewardsVaultStore = (*RewardsVaultStore)(nil)

// Insert adds a new vault for mint. Returns ErrDuplicateKey if mint already has one.
func (s *RewardsVaultStore) Insert(ctx context.Context, mint domain.Pubkey, v *domain.RewardsVault) error {
	if v == nil || mint.IsZero() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO rewards_vaults (
			mint, authority, total_rewards_issued, last_update_timestamp
		) VALUES ($1, $2, $3::text::numeric, $4)
	`

	_, err := s.pool.Exec(ctx, query,
		mint.String(),
		v.Authority.String(),
		formatU64(v.TotalRewardsIssued),
		v.LastUpdateTimestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert rewards vault: %w", err)
	}
	return nil
}

// Get retrieves the vault of mint. Returns ErrNotFound if not exists.
func (s *RewardsVaultStore) Get(ctx context.Context, mint domain.Pubkey) (*domain.RewardsVault, error) {
	query := `
		SELECT authority, total_rewards_issued::text, last_update_timestamp
		FROM rewards_vaults
		WHERE mint = $1
	`

	v, err := scanRewardsVault(s.pool.QueryRow(ctx, query, mint.String()))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get rewards vault: %w", err)
	}
	return v, nil
}

// Update replaces the whole vault. Returns ErrNotFound if not exists.
func (s *RewardsVaultStore) Update(ctx context.Context, mint domain.Pubkey, v *domain.RewardsVault) error {
	if v == nil || mint.IsZero() {
		return storage.ErrInvalidInput
	}
	return updateRewardsVault(ctx, s.pool, mint, v)
}

func updateRewardsVault(ctx context.Context, db execer, mint domain.Pubkey, v *domain.RewardsVault) error {
	query := `
		UPDATE rewards_vaults SET
			authority = $2,
			total_rewards_issued = $3::text::numeric,
			last_update_timestamp = $4,
			updated_at = NOW()
		WHERE mint = $1
	`

	tag, err := db.Exec(ctx, query,
		mint.String(),
		v.Authority.String(),
		formatU64(v.TotalRewardsIssued),
		v.LastUpdateTimestamp,
	)
	if err != nil {
		return fmt.Errorf("update rewards vault: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanRewardsVault scans a single row into RewardsVault.
func scanRewardsVault(row pgx.Row) (*domain.RewardsVault, error) {
	var (
		v                 domain.RewardsVault
		authority, issued string
	)

	if err := row.Scan(&authority, &issued, &v.LastUpdateTimestamp); err != nil {
		return nil, err
	}

	var err error
	if v.Authority, err = parsePubkey("authority", authority); err != nil {
		return nil, err
	}
	if v.TotalRewardsIssued, err = parseU64("total_rewards_issued", issued); err != nil {
		return nil, err
	}
	return &v, nil
}
