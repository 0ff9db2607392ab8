// Package ledger defines the token ledger the engine moves value through,
// plus an in-memory implementation used by the host and tests.
package ledger

import (
	"context"
	"errors"

	"solana-token-guard/internal/domain"
)

// Ledger errors.
var (
	ErrAccountNotFound   = errors.New("token account not found")
	ErrMintNotFound      = errors.New("mint not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrOwnerMismatch     = errors.New("authority does not own source account")
	ErrMintAuthority     = errors.New("authority is not the mint authority")
	ErrMintMismatch      = errors.New("accounts belong to different mints")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
)

// Ledger is the external value-movement primitive. Each call is atomic:
// it either applies fully or returns an error with no effect.
type Ledger interface {
	// Transfer moves amount from one token account to another under authority.
	Transfer(ctx context.Context, from, to, authority domain.Pubkey, amount uint64) error

	// MintTo creates amount new tokens of mint in destination.
	MintTo(ctx context.Context, mint, destination, authority domain.Pubkey, amount uint64) error

	// Balance returns the token balance of account.
	Balance(ctx context.Context, account domain.Pubkey) (uint64, error)

	// Owner returns the owning authority of account.
	Owner(ctx context.Context, account domain.Pubkey) (domain.Pubkey, error)
}
