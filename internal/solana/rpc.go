package solana

import "context"

// RPCClient defines the Solana RPC HTTP calls the engine host needs.
type RPCClient interface {
	// GetAccountInfo retrieves an account with its data decoded.
	// Returns nil, nil if the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetTokenAccountBalance retrieves the balance of an SPL token account.
	GetTokenAccountBalance(ctx context.Context, account string) (*TokenAmount, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (int64, error)
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Slot       uint64 // context slot the account was read at
	Lamports   uint64
	Owner      string
	Data       []byte
	Executable bool
	RentEpoch  uint64
}

// TokenAmount is an SPL token balance.
type TokenAmount struct {
	Slot           uint64
	Amount         uint64 // raw minor units
	Decimals       uint8
	UIAmountString string
}
