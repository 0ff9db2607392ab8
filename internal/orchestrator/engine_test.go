package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-guard/internal/config"
	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/holder"
	"solana-token-guard/internal/ledger"
	"solana-token-guard/internal/limits"
	"solana-token-guard/internal/oracle"
	"solana-token-guard/internal/storage"
	"solana-token-guard/internal/storage/memory"
)

const (
	t0          int64  = 1704067200 // 2024-01-01 00:00 UTC
	startAmount uint64 = 1_000_000_000
	minHolding  int64  = 2_592_000
)

var (
	mint      = domain.Pubkey{0xA1}
	deployer  = domain.Pubkey{0xD0}
	treasury  = domain.Pubkey{0x7E}
	alice     = domain.Pubkey{0x01}
	aliceAcct = domain.Pubkey{0x11}
	bob       = domain.Pubkey{0x02}
	bobAcct   = domain.Pubkey{0x12}
)

type recordingObserver struct {
	mu          sync.Mutex
	events      []*domain.EngineEvent
	storeErrors int
}

func (o *recordingObserver) ObserveEvent(e *domain.EngineEvent, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	eventCopy := *e
	o.events = append(o.events, &eventCopy)
}

func (o *recordingObserver) ObserveEventStoreError(error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.storeErrors++
}

func (o *recordingObserver) last() *domain.EngineEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.events) == 0 {
		return nil
	}
	return o.events[len(o.events)-1]
}

type failingEventStore struct {
	storage.EngineEventStore
}

func (failingEventStore) Insert(context.Context, *domain.EngineEvent) error {
	return errors.New("clickhouse unavailable")
}

type failingUpdateStore struct {
	*memory.HolderRecordStore
}

func (failingUpdateStore) Update(context.Context, *domain.HolderRecord) error {
	return errors.New("postgres unavailable")
}

type fixture struct {
	engine   *Engine
	ledger   *ledger.Memory
	holders  *memory.HolderRecordStore
	vaults   *memory.RewardsVaultStore
	events   *memory.EngineEventStore
	observer *recordingObserver
}

// newBareFixture sets up the ledger accounts without running any engine operation.
func newBareFixture(t *testing.T, events storage.EngineEventStore) *fixture {
	t.Helper()

	l := ledger.NewMemory()
	require.NoError(t, l.CreateMint(mint, deployer, 6))
	require.NoError(t, l.CreateAccount(treasury, mint, deployer))
	require.NoError(t, l.CreateAccount(aliceAcct, mint, alice))
	require.NoError(t, l.CreateAccount(bobAcct, mint, bob))

	holders := memory.NewHolderRecordStore()
	vaults := memory.NewRewardsVaultStore()
	memEvents := memory.NewEngineEventStore()
	if events == nil {
		events = memEvents
	}
	obs := &recordingObserver{}

	e, err := New(Options{
		Policy:   config.DefaultPolicy(),
		Mint:     mint,
		Holders:  holders,
		Vaults:   vaults,
		Claims:   memory.NewClaimCommitter(holders, vaults),
		Ledger:   l,
		Events:   events,
		Observer: obs,
	})
	require.NoError(t, err)

	return &fixture{engine: e, ledger: l, holders: holders, vaults: vaults, events: memEvents, observer: obs}
}

// newFixture initializes the token at t0, funds alice and initializes her record.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := newBareFixture(t, nil)
	ctx := context.Background()

	_, err := f.engine.InitializeToken(ctx, deployer, deployer, treasury, t0)
	require.NoError(t, err)
	require.NoError(t, f.ledger.Transfer(ctx, treasury, aliceAcct, deployer, startAmount))

	_, err = f.engine.InitializeRewards(ctx, alice, alice, t0)
	require.NoError(t, err)
	return f
}

func (f *fixture) balance(t *testing.T, account domain.Pubkey) uint64 {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), account)
	require.NoError(t, err)
	return b
}

func (f *fixture) record(t *testing.T, authority domain.Pubkey) *domain.HolderRecord {
	t.Helper()
	r, err := f.holders.Get(context.Background(), authority)
	require.NoError(t, err)
	return r
}

// dollarFeed quotes $1.00 (normalized 1_000_000).
func dollarFeed() []byte {
	return oracle.EncodePriceAccount(oracle.PriceAccount{
		Exponent:       -8,
		AggPrice:       100_000_000,
		AggConfidence:  500_000,
		AggStatus:      domain.TradingStatusTrading,
		AggPublishSlot: 1,
	})
}

func transfer(amount uint64, now int64) TransferRequest {
	return TransferRequest{
		Principal:    alice,
		Authority:    alice,
		From:         aliceAcct,
		To:           bobAcct,
		RawPriceFeed: dollarFeed(),
		Amount:       amount,
		Now:          now,
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Policy: config.DefaultPolicy()})
	assert.Error(t, err)

	policy := config.DefaultPolicy()
	policy.MaxDailyTransactions = 0
	_, err = New(Options{Policy: policy})
	assert.Error(t, err)
}

func TestInitializeToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	supply, err := f.ledger.Supply(mint)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPolicy().TotalSupply, supply)

	vault, err := f.engine.Vault(ctx)
	require.NoError(t, err)
	assert.Equal(t, deployer, vault.Authority)
	assert.Equal(t, uint64(0), vault.TotalRewardsIssued)
	assert.Equal(t, t0, vault.LastUpdateTimestamp)

	// Create-once: the second call mints nothing.
	_, err = f.engine.InitializeToken(ctx, deployer, deployer, treasury, t0+1)
	assert.True(t, errors.Is(err, holder.ErrAlreadyInitialized), "got %v", err)
	assert.True(t, errors.Is(err, ErrState))

	supply, err = f.ledger.Supply(mint)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPolicy().TotalSupply, supply)
}

func TestInitializeToken_Unauthorized(t *testing.T) {
	f := newBareFixture(t, nil)

	_, err := f.engine.InitializeToken(context.Background(), alice, deployer, treasury, t0)
	assert.True(t, errors.Is(err, ErrUnauthorized), "got %v", err)

	// Signer matches but is not the mint authority.
	_, err = f.engine.InitializeToken(context.Background(), alice, alice, aliceAcct, t0)
	assert.True(t, errors.Is(err, ErrLedgerFailure), "got %v", err)
	assert.True(t, errors.Is(err, ledger.ErrMintAuthority), "got %v", err)

	_, err = f.engine.Vault(context.Background())
	assert.True(t, errors.Is(err, storage.ErrNotFound), "vault must not exist, got %v", err)
}

func TestInitializeRewards(t *testing.T) {
	f := newFixture(t)

	rec := f.record(t, alice)
	assert.Equal(t, domain.HolderRecord{Authority: alice, LastClaimTimestamp: t0}, *rec)

	_, err := f.engine.InitializeRewards(context.Background(), alice, alice, t0+10)
	assert.True(t, errors.Is(err, holder.ErrAlreadyInitialized), "got %v", err)
	assert.True(t, errors.Is(err, ErrState))

	// The existing record is untouched.
	assert.Equal(t, t0, f.record(t, alice).LastClaimTimestamp)

	_, err = f.engine.InitializeRewards(context.Background(), alice, bob, t0)
	assert.True(t, errors.Is(err, ErrUnauthorized), "got %v", err)
}

func TestSecureTransfer_Succeeds(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.SecureTransfer(context.Background(), transfer(1_000_000, t0+60))
	require.NoError(t, err)

	assert.Equal(t, uint64(1_000_000), res.Price.Price)
	assert.Equal(t, uint64(1), res.Record.DailyTransactionCount)
	assert.Equal(t, domain.DayIndex(t0+60), res.Record.LastTransactionDay)
	assert.Equal(t, t0+60, res.Record.LastTransferTimestamp)
	assert.Equal(t, res.Record, *f.record(t, alice))

	assert.Equal(t, startAmount-1_000_000, f.balance(t, aliceAcct))
	assert.Equal(t, uint64(1_000_000), f.balance(t, bobAcct))

	ev := f.observer.last()
	require.NotNil(t, ev)
	assert.Equal(t, domain.EventKindTransfer, ev.Kind)
	assert.Equal(t, domain.OutcomeOK, ev.Outcome)
	assert.Equal(t, uint64(1_000_000), ev.Price)
	assert.Len(t, ev.EventID, 64)

	stored, err := f.events.GetByAuthority(context.Background(), alice.String())
	require.NoError(t, err)
	assert.Len(t, stored, 2) // init holder + transfer
}

func TestSecureTransfer_BelowMinimumDoesNotCount(t *testing.T) {
	f := newFixture(t)

	// Normalized price 50: 1_000_000 * 50 / 10^6 = 50 < 5000.
	req := transfer(1_000_000, t0+5)
	req.RawPriceFeed = oracle.EncodePriceAccount(oracle.PriceAccount{
		Exponent:       -6,
		AggPrice:       50,
		AggStatus:      domain.TradingStatusTrading,
		AggPublishSlot: 1,
	})

	_, err := f.engine.SecureTransfer(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLimitExceeded), "got %v", err)
	assert.True(t, errors.Is(err, limits.ErrBelowMinimum), "got %v", err)

	var terr *TransferError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, StageLimits, terr.Stage)

	rec := f.record(t, alice)
	assert.Equal(t, uint64(0), rec.DailyTransactionCount)
	assert.Equal(t, int64(0), rec.LastTransferTimestamp)
	assert.Equal(t, startAmount, f.balance(t, aliceAcct))

	ev := f.observer.last()
	assert.Equal(t, domain.OutcomeRejected, ev.Outcome)
	assert.Equal(t, string(StageLimits), ev.Stage)
	assert.Equal(t, uint64(50), ev.Price)
}

func TestSecureTransfer_Unauthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*TransferRequest)
	}{
		{"signer differs", func(r *TransferRequest) { r.Principal = bob }},
		{"no signer", func(r *TransferRequest) { r.Principal = domain.Pubkey{} }},
		{"source owned by someone else", func(r *TransferRequest) { r.From = bobAcct; r.To = aliceAcct }},
		{"unknown source account", func(r *TransferRequest) { r.From = domain.Pubkey{0xEE} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := transfer(1_000_000, t0+60)
			tt.mutate(&req)

			_, err := f.engine.SecureTransfer(ctx, req)
			assert.True(t, errors.Is(err, ErrUnauthorized), "got %v", err)
		})
	}

	assert.Equal(t, uint64(0), f.record(t, alice).DailyTransactionCount)
	assert.Equal(t, startAmount, f.balance(t, aliceAcct))
}

func TestSecureTransfer_HolderNotInitialized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.Transfer(ctx, treasury, bobAcct, deployer, startAmount))

	req := transfer(1_000_000, t0+60)
	req.Principal, req.Authority, req.From, req.To = bob, bob, bobAcct, aliceAcct

	_, err := f.engine.SecureTransfer(ctx, req)
	assert.True(t, errors.Is(err, ErrState), "got %v", err)
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
	assert.Equal(t, startAmount, f.balance(t, bobAcct))
}

func TestSecureTransfer_OracleRejections(t *testing.T) {
	f := newFixture(t)

	halted := oracle.PriceAccount{
		Exponent:       -8,
		AggPrice:       100_000_000,
		AggStatus:      domain.TradingStatusHalted,
		AggPublishSlot: 1,
	}
	wide := halted
	wide.AggStatus = domain.TradingStatusTrading
	wide.AggConfidence = 1_000_001

	tests := []struct {
		name    string
		feed    []byte
		wantErr error
	}{
		{"garbage", []byte("not a price account"), oracle.ErrUnparseable},
		{"halted", oracle.EncodePriceAccount(halted), oracle.ErrNotTrading},
		{"wide confidence", oracle.EncodePriceAccount(wide), oracle.ErrLowConfidence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := transfer(1_000_000, t0+60)
			req.RawPriceFeed = tt.feed

			_, err := f.engine.SecureTransfer(context.Background(), req)
			assert.True(t, errors.Is(err, ErrOracle), "got %v", err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	assert.Equal(t, uint64(0), f.record(t, alice).DailyTransactionCount)
}

func TestSecureTransfer_DailyLimitAndReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	maxDaily := config.DefaultPolicy().MaxDailyTransactions

	for i := uint64(0); i < maxDaily; i++ {
		_, err := f.engine.SecureTransfer(ctx, transfer(10_000, t0+int64(i)))
		require.NoError(t, err, "transfer %d", i)
	}

	_, err := f.engine.SecureTransfer(ctx, transfer(10_000, t0+100))
	assert.True(t, errors.Is(err, limits.ErrDailyLimitExceeded), "got %v", err)
	assert.Equal(t, maxDaily, f.record(t, alice).DailyTransactionCount)

	// Next day the window resets.
	nextDay := t0 + domain.SecondsPerDay
	res, err := f.engine.SecureTransfer(ctx, transfer(10_000, nextDay))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Record.DailyTransactionCount)
	assert.Equal(t, domain.DayIndex(nextDay), res.Record.LastTransactionDay)

	assert.Equal(t, startAmount-(maxDaily+1)*10_000, f.balance(t, aliceAcct))
}

func TestSecureTransfer_LedgerFailureLeavesRecord(t *testing.T) {
	f := newFixture(t)

	// Above the balance but within the policy.
	_, err := f.engine.SecureTransfer(context.Background(), transfer(startAmount+1, t0+60))
	assert.True(t, errors.Is(err, ErrLedgerFailure), "got %v", err)
	assert.True(t, errors.Is(err, ledger.ErrInsufficientFunds), "got %v", err)

	rec := f.record(t, alice)
	assert.Equal(t, uint64(0), rec.DailyTransactionCount)
	assert.Equal(t, int64(0), rec.LastTransferTimestamp)
}

func TestSecureTransfer_RecordSaveFailureRevertsLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := New(Options{
		Policy:  config.DefaultPolicy(),
		Mint:    mint,
		Holders: failingUpdateStore{f.holders},
		Vaults:  f.vaults,
		Claims:  memory.NewClaimCommitter(f.holders, f.vaults),
		Ledger:  f.ledger,
		Events:  f.events,
	})
	require.NoError(t, err)

	_, err = e.SecureTransfer(ctx, transfer(1_000_000, t0+60))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorage), "got %v", err)

	assert.Equal(t, startAmount, f.balance(t, aliceAcct))
	assert.Equal(t, uint64(0), f.balance(t, bobAcct))
	assert.Equal(t, uint64(0), f.record(t, alice).DailyTransactionCount)
}

func TestSecureTransfer_EventStoreFailureIsNotFatal(t *testing.T) {
	f := newBareFixture(t, failingEventStore{})
	ctx := context.Background()

	_, err := f.engine.InitializeToken(ctx, deployer, deployer, treasury, t0)
	require.NoError(t, err)
	require.NoError(t, f.ledger.Transfer(ctx, treasury, aliceAcct, deployer, startAmount))
	_, err = f.engine.InitializeRewards(ctx, alice, alice, t0)
	require.NoError(t, err)

	_, err = f.engine.SecureTransfer(ctx, transfer(1_000_000, t0+60))
	require.NoError(t, err)

	assert.Equal(t, 3, f.observer.storeErrors)
	assert.Equal(t, uint64(1), f.record(t, alice).DailyTransactionCount)
}

func TestClaimRewards_HoldingPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.ClaimRewards(ctx, alice, alice, aliceAcct, t0+minHolding-1)
	assert.True(t, errors.Is(err, holder.ErrHoldingPeriodNotMet), "got %v", err)
	assert.True(t, errors.Is(err, ErrState))
	assert.Equal(t, startAmount, f.balance(t, aliceAcct))

	res, err := f.engine.ClaimRewards(ctx, alice, alice, aliceAcct, t0+minHolding)
	require.NoError(t, err)

	// 1e9 * 500 * 2_592_000 / 10_000 / 31_536_000
	assert.Equal(t, uint64(4_109_589), res.Reward)
	assert.Equal(t, uint64(minHolding), res.HoldingPeriod)
	assert.Equal(t, startAmount, res.Balance)

	assert.Equal(t, startAmount+res.Reward, f.balance(t, aliceAcct))

	rec := f.record(t, alice)
	assert.Equal(t, res.Reward, rec.RewardsEarned)
	assert.Equal(t, t0+minHolding, rec.LastClaimTimestamp)

	vault, err := f.engine.Vault(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Reward, vault.TotalRewardsIssued)
	assert.Equal(t, t0+minHolding, vault.LastUpdateTimestamp)

	supply, err := f.ledger.Supply(mint)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPolicy().TotalSupply+res.Reward, supply)

	ev := f.observer.last()
	assert.Equal(t, domain.EventKindClaim, ev.Kind)
	assert.Equal(t, res.Reward, ev.Reward)

	// A new holding period starts at the claim.
	_, err = f.engine.ClaimRewards(ctx, alice, alice, aliceAcct, t0+minHolding+1)
	assert.True(t, errors.Is(err, holder.ErrHoldingPeriodNotMet), "got %v", err)
}

func TestClaimRewards_ZeroReward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.InitializeRewards(ctx, bob, bob, t0)
	require.NoError(t, err)

	res, err := f.engine.ClaimRewards(ctx, bob, bob, bobAcct, t0+minHolding)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), res.Reward)

	rec := f.record(t, bob)
	assert.Equal(t, t0+minHolding, rec.LastClaimTimestamp)
	assert.Equal(t, uint64(0), rec.RewardsEarned)

	supply, err := f.ledger.Supply(mint)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPolicy().TotalSupply, supply)
}

func TestClaimRewards_Unauthorized(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.ClaimRewards(context.Background(), alice, alice, bobAcct, t0+minHolding)
	assert.True(t, errors.Is(err, ErrUnauthorized), "got %v", err)
	assert.True(t, errors.Is(err, ledger.ErrOwnerMismatch), "got %v", err)

	_, err = f.engine.ClaimRewards(context.Background(), bob, alice, aliceAcct, t0+minHolding)
	assert.True(t, errors.Is(err, ErrUnauthorized), "got %v", err)

	assert.Equal(t, t0, f.record(t, alice).LastClaimTimestamp)
}

func TestClaimRewards_TokenNotInitialized(t *testing.T) {
	f := newBareFixture(t, nil)
	ctx := context.Background()

	_, err := f.engine.InitializeRewards(ctx, alice, alice, t0)
	require.NoError(t, err)

	_, err = f.engine.ClaimRewards(ctx, alice, alice, aliceAcct, t0+minHolding)
	assert.True(t, errors.Is(err, ErrState), "got %v", err)
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
	assert.Equal(t, t0, f.record(t, alice).LastClaimTimestamp)
}

func TestTransferError_Message(t *testing.T) {
	err := &TransferError{Stage: StageLimits, Err: limits.ErrExceedsMax}
	assert.Equal(t, "limits: transaction amount exceeds maximum size", err.Error())
	assert.True(t, errors.Is(err, ErrLimitExceeded))
	assert.False(t, errors.Is(err, ErrOracle))
}
