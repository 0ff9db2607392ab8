package oracle

import (
	"context"
	"errors"
	"fmt"

	"solana-token-guard/internal/solana"
)

// ErrFeedNotFound is returned when the price feed account does not exist.
var ErrFeedNotFound = errors.New("price feed account not found")

// Feed is one snapshot of a price feed account's raw data.
type Feed struct {
	Account string
	Data    []byte
	Slot    uint64 // context slot the data was read at
}

// FeedSource provides raw price feed snapshots.
// The adapter never fetches; hosts use a FeedSource and pass Data in.
type FeedSource interface {
	Fetch(ctx context.Context) (*Feed, error)
}

// RPCFeedSource reads the feed account with getAccountInfo.
type RPCFeedSource struct {
	rpc     solana.RPCClient
	account string
}

// NewRPCFeedSource creates a feed source for account.
func NewRPCFeedSource(rpc solana.RPCClient, account string) *RPCFeedSource {
	return &RPCFeedSource{rpc: rpc, account: account}
}

// Fetch returns the current account data.
func (s *RPCFeedSource) Fetch(ctx context.Context) (*Feed, error) {
	info, err := s.rpc.GetAccountInfo(ctx, s.account)
	if err != nil {
		return nil, fmt.Errorf("get price feed %s: %w", s.account, err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrFeedNotFound, s.account)
	}
	return &Feed{Account: s.account, Data: info.Data, Slot: info.Slot}, nil
}

// StaticFeedSource always returns the same data. Used for offline hosts
// replaying a recorded price.
type StaticFeedSource struct {
	feed Feed
}

// NewStaticFeedSource creates a source returning data at slot.
func NewStaticFeedSource(account string, data []byte, slot uint64) *StaticFeedSource {
	return &StaticFeedSource{feed: Feed{
		Account: account,
		Data:    append([]byte(nil), data...),
		Slot:    slot,
	}}
}

// Fetch returns a copy of the fixed snapshot.
func (s *StaticFeedSource) Fetch(_ context.Context) (*Feed, error) {
	f := s.feed
	f.Data = append([]byte(nil), s.feed.Data...)
	return &f, nil
}

var (
	_ FeedSource = (*RPCFeedSource)(nil)
	_ FeedSource = (*StaticFeedSource)(nil)
)
