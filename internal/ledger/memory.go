package ledger

import (
	"context"
	"fmt"
	"sync"

	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/fixedpoint"
)

type mintState struct {
	authority domain.Pubkey
	decimals  uint8
	supply    uint64
}

type tokenAccount struct {
	mint    domain.Pubkey
	owner   domain.Pubkey
	balance uint64
}

// Memory is an in-memory Ledger. All operations hold a single lock.
type Memory struct {
	mu       sync.RWMutex
	mints    map[domain.Pubkey]*mintState
	accounts map[domain.Pubkey]*tokenAccount
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		mints:    make(map[domain.Pubkey]*mintState),
		accounts: make(map[domain.Pubkey]*tokenAccount),
	}
}

// CreateMint registers a mint controlled by authority.
func (m *Memory) CreateMint(mint, authority domain.Pubkey, decimals uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.mints[mint]; ok {
		return fmt.Errorf("%w: mint %s", ErrAccountExists, mint)
	}
	m.mints[mint] = &mintState{authority: authority, decimals: decimals}
	return nil
}

// CreateAccount opens a zero-balance token account of mint owned by owner.
func (m *Memory) CreateAccount(account, mint, owner domain.Pubkey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.mints[mint]; !ok {
		return fmt.Errorf("%w: %s", ErrMintNotFound, mint)
	}
	if _, ok := m.accounts[account]; ok {
		return fmt.Errorf("%w: account %s", ErrAccountExists, account)
	}
	m.accounts[account] = &tokenAccount{mint: mint, owner: owner}
	return nil
}

// Supply returns the minted supply of mint.
func (m *Memory) Supply(mint domain.Pubkey) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ms, ok := m.mints[mint]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMintNotFound, mint)
	}
	return ms.supply, nil
}

// Transfer implements Ledger.
func (m *Memory) Transfer(_ context.Context, from, to, authority domain.Pubkey, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.accounts[from]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, from)
	}
	dst, ok := m.accounts[to]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, to)
	}
	if src.owner != authority {
		return fmt.Errorf("%w: %s", ErrOwnerMismatch, from)
	}
	if src.mint != dst.mint {
		return ErrMintMismatch
	}

	newSrc, err := fixedpoint.Sub(src.balance, amount)
	if err != nil {
		return fmt.Errorf("%w: balance %d, amount %d", ErrInsufficientFunds, src.balance, amount)
	}
	if from == to {
		return nil
	}
	newDst, err := fixedpoint.Add(dst.balance, amount)
	if err != nil {
		return fmt.Errorf("destination balance: %w", err)
	}

	src.balance = newSrc
	dst.balance = newDst
	return nil
}

// MintTo implements Ledger.
func (m *Memory) MintTo(_ context.Context, mint, destination, authority domain.Pubkey, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.mints[mint]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMintNotFound, mint)
	}
	if ms.authority != authority {
		return fmt.Errorf("%w: %s", ErrMintAuthority, authority)
	}
	dst, ok := m.accounts[destination]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, destination)
	}
	if dst.mint != mint {
		return ErrMintMismatch
	}

	supply, err := fixedpoint.Add(ms.supply, amount)
	if err != nil {
		return fmt.Errorf("mint supply: %w", err)
	}
	balance, err := fixedpoint.Add(dst.balance, amount)
	if err != nil {
		return fmt.Errorf("destination balance: %w", err)
	}

	ms.supply = supply
	dst.balance = balance
	return nil
}

// Balance implements Ledger.
func (m *Memory) Balance(_ context.Context, account domain.Pubkey) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acc, ok := m.accounts[account]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, account)
	}
	return acc.balance, nil
}

// Owner implements Ledger.
func (m *Memory) Owner(_ context.Context, account domain.Pubkey) (domain.Pubkey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acc, ok := m.accounts[account]
	if !ok {
		return domain.Pubkey{}, fmt.Errorf("%w: %s", ErrAccountNotFound, account)
	}
	return acc.owner, nil
}

var _ Ledger = (*Memory)(nil)
