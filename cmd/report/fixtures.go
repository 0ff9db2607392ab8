package main

import (
	"context"
	"errors"
	"fmt"

	"solana-token-guard/internal/config"
	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/ledger"
	"solana-token-guard/internal/oracle"
	"solana-token-guard/internal/orchestrator"
	"solana-token-guard/internal/storage"
	"solana-token-guard/internal/storage/memory"
)

// fixtureStart is the first timestamp of the demo session.
const fixtureStart int64 = 1704067200

func fixtureKey(b byte) domain.Pubkey {
	var pk domain.Pubkey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

var (
	fixtureMint     = fixtureKey(0x01)
	fixtureDeployer = fixtureKey(0x02)
	fixtureTreasury = fixtureKey(0x03)
	fixtureAlice    = fixtureKey(0x04)
	fixtureAliceAcc = fixtureKey(0x05)
	fixtureBob      = fixtureKey(0x06)
	fixtureBobAcc   = fixtureKey(0x07)
)

func fixtureFeed(expo int32, price int64) []byte {
	return oracle.EncodePriceAccount(oracle.PriceAccount{
		Exponent:       expo,
		AggPrice:       price,
		AggStatus:      domain.TradingStatusTrading,
		AggPublishSlot: 1,
	})
}

// loadFixtureEvents runs a short demo session through a real engine on
// memory stores and records its audit events into events.
func loadFixtureEvents(ctx context.Context, events storage.EngineEventStore) error {
	policy := config.DefaultPolicy()

	book := ledger.NewMemory()
	if err := book.CreateMint(fixtureMint, fixtureDeployer, policy.Decimals); err != nil {
		return err
	}
	for _, acc := range []struct{ account, owner domain.Pubkey }{
		{fixtureTreasury, fixtureDeployer},
		{fixtureAliceAcc, fixtureAlice},
		{fixtureBobAcc, fixtureBob},
	} {
		if err := book.CreateAccount(acc.account, fixtureMint, acc.owner); err != nil {
			return err
		}
	}

	holders := memory.NewHolderRecordStore()
	vaults := memory.NewRewardsVaultStore()
	engine, err := orchestrator.New(orchestrator.Options{
		Policy:  policy,
		Mint:    fixtureMint,
		Holders: holders,
		Vaults:  vaults,
		Claims:  memory.NewClaimCommitter(holders, vaults),
		Ledger:  book,
		Events:  events,
	})
	if err != nil {
		return err
	}

	dollar := fixtureFeed(-8, 100_000_000)
	transfer := func(auth, from, to domain.Pubkey, amount uint64, feed []byte, at int64) error {
		_, err := engine.SecureTransfer(ctx, orchestrator.TransferRequest{
			Principal:    auth,
			Authority:    auth,
			From:         from,
			To:           to,
			RawPriceFeed: feed,
			Amount:       amount,
			Now:          fixtureStart + at,
		})
		return err
	}
	claim := func(auth, account domain.Pubkey, at int64) error {
		_, err := engine.ClaimRewards(ctx, auth, auth, account, fixtureStart+at)
		return err
	}
	initHolder := func(auth domain.Pubkey, at int64) error {
		_, err := engine.InitializeRewards(ctx, auth, auth, fixtureStart+at)
		return err
	}

	steps := []struct {
		name   string
		reject error // expected rejection, nil for success
		run    func() error
	}{
		{"init token", nil, func() error {
			_, err := engine.InitializeToken(ctx, fixtureDeployer, fixtureDeployer, fixtureTreasury, fixtureStart)
			return err
		}},
		{"init deployer", nil, func() error { return initHolder(fixtureDeployer, 0) }},
		{"init alice", nil, func() error { return initHolder(fixtureAlice, 60) }},
		{"init bob", nil, func() error { return initHolder(fixtureBob, 120) }},
		{"fund alice", nil, func() error {
			return transfer(fixtureDeployer, fixtureTreasury, fixtureAliceAcc, 5_000_000_000, dollar, 300)
		}},
		{"fund bob", nil, func() error {
			return transfer(fixtureDeployer, fixtureTreasury, fixtureBobAcc, 2_000_000_000, dollar, 360)
		}},
		{"alice below minimum", orchestrator.ErrLimitExceeded, func() error {
			return transfer(fixtureAlice, fixtureAliceAcc, fixtureBobAcc, 1_000_000, fixtureFeed(-6, 50), 600)
		}},
		{"alice pays bob", nil, func() error {
			return transfer(fixtureAlice, fixtureAliceAcc, fixtureBobAcc, 250_000_000, dollar, 900)
		}},
		{"bob claims early", orchestrator.ErrState, func() error { return claim(fixtureBob, fixtureBobAcc, 1000) }},
		{"alice claims after 30 days", nil, func() error {
			return claim(fixtureAlice, fixtureAliceAcc, 60+policy.MinHoldingPeriodSeconds)
		}},
	}

	for _, s := range steps {
		err := s.run()
		switch {
		case s.reject == nil && err != nil:
			return fmt.Errorf("%s: %w", s.name, err)
		case s.reject != nil && !errors.Is(err, s.reject):
			return fmt.Errorf("%s: expected %v, got %v", s.name, s.reject, err)
		}
	}
	return nil
}
