package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/storage"
)

// HolderRecordStore implements storage.HolderRecordStore using PostgreSQL.
type HolderRecordStore struct {
	pool *Pool
}

// NewHolderRecordStore creates a new HolderRecordStore.
func NewHolderRecordStore(pool *Pool) *HolderRecordStore {
	return &HolderRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.HolderRecordStore = (*HolderRecordStore)(nil)

const holderColumns = `
	authority, rewards_earned::text, last_claim_timestamp, last_transfer_timestamp,
	daily_transaction_count::text, last_transaction_day
`

// Insert adds a new record. Returns ErrDuplicateKey if the authority already has one.
func (s *HolderRecordStore) Insert(ctx context.Context, r *domain.HolderRecord) error {
	if r == nil || r.Authority.IsZero() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO holder_records (
			authority, rewards_earned, last_claim_timestamp, last_transfer_timestamp,
			daily_transaction_count, last_transaction_day
		) VALUES ($1, $2::text::numeric, $3, $4, $5::text::numeric, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		r.Authority.String(),
		formatU64(r.RewardsEarned),
		r.LastClaimTimestamp,
		r.LastTransferTimestamp,
		formatU64(r.DailyTransactionCount),
		r.LastTransactionDay,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert holder record: %w", err)
	}
	return nil
}

// Get retrieves the record owned by authority. Returns ErrNotFound if not exists.
func (s *HolderRecordStore) Get(ctx context.Context, authority domain.Pubkey) (*domain.HolderRecord, error) {
	query := `SELECT ` + holderColumns + ` FROM holder_records WHERE authority = $1`

	r, err := scanHolderRecord(s.pool.QueryRow(ctx, query, authority.String()))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get holder record: %w", err)
	}
	return r, nil
}

// Update replaces the whole record. Returns ErrNotFound if not exists.
func (s *HolderRecordStore) Update(ctx context.Context, r *domain.HolderRecord) error {
	if r == nil || r.Authority.IsZero() {
		return storage.ErrInvalidInput
	}
	return updateHolderRecord(ctx, s.pool, r)
}

// GetAll retrieves all records ordered by authority.
func (s *HolderRecordStore) GetAll(ctx context.Context) ([]*domain.HolderRecord, error) {
	query := `SELECT ` + holderColumns + ` FROM holder_records ORDER BY authority ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query holder records: %w", err)
	}
	defer rows.Close()

	var result []*domain.HolderRecord
	for rows.Next() {
		r, err := scanHolderRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan holder record: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holder records: %w", err)
	}
	return result, nil
}

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func updateHolderRecord(ctx context.Context, db execer, r *domain.HolderRecord) error {
	query := `
		UPDATE holder_records SET
			rewards_earned = $2::text::numeric,
			last_claim_timestamp = $3,
			last_transfer_timestamp = $4,
			daily_transaction_count = $5::text::numeric,
			last_transaction_day = $6,
			updated_at = NOW()
		WHERE authority = $1
	`

	tag, err := db.Exec(ctx, query,
		r.Authority.String(),
		formatU64(r.RewardsEarned),
		r.LastClaimTimestamp,
		r.LastTransferTimestamp,
		formatU64(r.DailyTransactionCount),
		r.LastTransactionDay,
	)
	if err != nil {
		return fmt.Errorf("update holder record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanHolderRecord scans a single row into HolderRecord.
func scanHolderRecord(row pgx.Row) (*domain.HolderRecord, error) {
	var (
		r                     domain.HolderRecord
		authority, earned, dc string
	)

	err := row.Scan(
		&authority,
		&earned,
		&r.LastClaimTimestamp,
		&r.LastTransferTimestamp,
		&dc,
		&r.LastTransactionDay,
	)
	if err != nil {
		return nil, err
	}

	if r.Authority, err = parsePubkey("authority", authority); err != nil {
		return nil, err
	}
	if r.RewardsEarned, err = parseU64("rewards_earned", earned); err != nil {
		return nil, err
	}
	if r.DailyTransactionCount, err = parseU64("daily_transaction_count", dc); err != nil {
		return nil, err
	}
	return &r, nil
}
