package ledger

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/fixedpoint"
)

var (
	mintKey   = domain.Pubkey{0xA}
	otherMint = domain.Pubkey{0xB}
	deployer  = domain.Pubkey{0x1}
	alice     = domain.Pubkey{0x2}
	bob       = domain.Pubkey{0x3}
	aliceATA  = domain.Pubkey{0x12}
	bobATA    = domain.Pubkey{0x13}
	strayATA  = domain.Pubkey{0x14}
)

func setupLedger(t *testing.T) *Memory {
	t.Helper()
	l := NewMemory()
	require.NoError(t, l.CreateMint(mintKey, deployer, 6))
	require.NoError(t, l.CreateMint(otherMint, deployer, 6))
	require.NoError(t, l.CreateAccount(aliceATA, mintKey, alice))
	require.NoError(t, l.CreateAccount(bobATA, mintKey, bob))
	require.NoError(t, l.CreateAccount(strayATA, otherMint, bob))
	require.NoError(t, l.MintTo(context.Background(), mintKey, aliceATA, deployer, 1_000))
	return l
}

func TestMemory_Transfer(t *testing.T) {
	ctx := context.Background()
	l := setupLedger(t)

	require.NoError(t, l.Transfer(ctx, aliceATA, bobATA, alice, 400))

	a, err := l.Balance(ctx, aliceATA)
	require.NoError(t, err)
	b, err := l.Balance(ctx, bobATA)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), a)
	assert.Equal(t, uint64(400), b)
}

func TestMemory_TransferFailuresLeaveBalances(t *testing.T) {
	ctx := context.Background()
	l := setupLedger(t)

	tests := []struct {
		name      string
		from, to  domain.Pubkey
		authority domain.Pubkey
		amount    uint64
		wantErr   error
	}{
		{"insufficient", aliceATA, bobATA, alice, 1_001, ErrInsufficientFunds},
		{"wrong owner", aliceATA, bobATA, bob, 1, ErrOwnerMismatch},
		{"unknown source", domain.Pubkey{0x99}, bobATA, alice, 1, ErrAccountNotFound},
		{"unknown destination", aliceATA, domain.Pubkey{0x99}, alice, 1, ErrAccountNotFound},
		{"mint mismatch", aliceATA, strayATA, alice, 1, ErrMintMismatch},
		{"zero amount", aliceATA, bobATA, alice, 0, ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.Transfer(ctx, tt.from, tt.to, tt.authority, tt.amount)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			a, _ := l.Balance(ctx, aliceATA)
			b, _ := l.Balance(ctx, bobATA)
			assert.Equal(t, uint64(1_000), a)
			assert.Equal(t, uint64(0), b)
		})
	}
}

func TestMemory_MintTo(t *testing.T) {
	ctx := context.Background()
	l := setupLedger(t)

	require.NoError(t, l.MintTo(ctx, mintKey, bobATA, deployer, 50))
	b, err := l.Balance(ctx, bobATA)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), b)

	supply, err := l.Supply(mintKey)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_050), supply)

	err = l.MintTo(ctx, mintKey, bobATA, alice, 1)
	assert.True(t, errors.Is(err, ErrMintAuthority), "got %v", err)

	err = l.MintTo(ctx, mintKey, strayATA, deployer, 1)
	assert.True(t, errors.Is(err, ErrMintMismatch), "got %v", err)

	err = l.MintTo(ctx, domain.Pubkey{0x77}, bobATA, deployer, 1)
	assert.True(t, errors.Is(err, ErrMintNotFound), "got %v", err)
}

func TestMemory_MintOverflow(t *testing.T) {
	ctx := context.Background()
	l := setupLedger(t)

	err := l.MintTo(ctx, mintKey, bobATA, deployer, math.MaxUint64)
	assert.True(t, errors.Is(err, fixedpoint.ErrOverflow), "got %v", err)

	b, _ := l.Balance(ctx, bobATA)
	assert.Equal(t, uint64(0), b)
}

func TestMemory_Owner(t *testing.T) {
	ctx := context.Background()
	l := setupLedger(t)

	owner, err := l.Owner(ctx, aliceATA)
	require.NoError(t, err)
	assert.Equal(t, alice, owner)

	_, err = l.Owner(ctx, domain.Pubkey{0x99})
	assert.True(t, errors.Is(err, ErrAccountNotFound))
}

func TestMemory_CreateDuplicates(t *testing.T) {
	l := setupLedger(t)

	assert.True(t, errors.Is(l.CreateMint(mintKey, deployer, 6), ErrAccountExists))
	assert.True(t, errors.Is(l.CreateAccount(aliceATA, mintKey, alice), ErrAccountExists))
	assert.True(t, errors.Is(l.CreateAccount(domain.Pubkey{0x55}, domain.Pubkey{0x66}, alice), ErrMintNotFound))
}

func TestMemory_ConcurrentTransfersConserveSupply(t *testing.T) {
	ctx := context.Background()
	l := setupLedger(t)
	require.NoError(t, l.MintTo(ctx, mintKey, bobATA, deployer, 1_000))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = l.Transfer(ctx, aliceATA, bobATA, alice, 3)
		}()
		go func() {
			defer wg.Done()
			_ = l.Transfer(ctx, bobATA, aliceATA, bob, 2)
		}()
	}
	wg.Wait()

	a, _ := l.Balance(ctx, aliceATA)
	b, _ := l.Balance(ctx, bobATA)
	assert.Equal(t, uint64(2_000), a+b)
}
