// Package stub provides an in-memory solana.RPCClient for tests and offline runs.
package stub

import (
	"context"
	"errors"
	"sync"

	"solana-token-guard/internal/solana"
)

// ErrNotFound is returned for unknown token accounts.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient over maps. Safe for concurrent use.
type RPCClient struct {
	mu       sync.RWMutex
	accounts map[string]*solana.AccountInfo
	balances map[string]*solana.TokenAmount
	slot     int64
	calls    int

	// Err, when set, is returned by every call.
	Err error
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		accounts: make(map[string]*solana.AccountInfo),
		balances: make(map[string]*solana.TokenAmount),
	}
}

// SetAccount stores data for pubkey at slot.
func (c *RPCClient) SetAccount(pubkey string, data []byte, slot uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[pubkey] = &solana.AccountInfo{Slot: slot, Data: append([]byte(nil), data...)}
	if int64(slot) > c.slot {
		c.slot = int64(slot)
	}
}

// SetBalance stores the token balance of account.
func (c *RPCClient) SetBalance(account string, amount uint64, decimals uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[account] = &solana.TokenAmount{Amount: amount, Decimals: decimals}
}

// Calls returns the number of RPC calls served.
func (c *RPCClient) Calls() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls
}

// GetAccountInfo returns the stored account, or nil if none.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.Err != nil {
		return nil, c.Err
	}

	info, ok := c.accounts[pubkey]
	if !ok {
		return nil, nil
	}
	infoCopy := *info
	infoCopy.Data = append([]byte(nil), info.Data...)
	return &infoCopy, nil
}

// GetTokenAccountBalance returns the stored balance or ErrNotFound.
func (c *RPCClient) GetTokenAccountBalance(_ context.Context, account string) (*solana.TokenAmount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.Err != nil {
		return nil, c.Err
	}

	bal, ok := c.balances[account]
	if !ok {
		return nil, ErrNotFound
	}
	balCopy := *bal
	return &balCopy, nil
}

// GetSlot returns the highest slot seen by SetAccount.
func (c *RPCClient) GetSlot(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.Err != nil {
		return 0, c.Err
	}
	return c.slot, nil
}

var _ solana.RPCClient = (*RPCClient)(nil)
