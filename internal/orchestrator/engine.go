// Package orchestrator composes the oracle adapter, limit validator, reward
// calculator and holder state machine into the engine's operations.
//
// Every operation checks first, moves value through the ledger second, and
// writes records last; a failed step leaves all records untouched.
// Callers serialize operations that touch the same records.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"solana-token-guard/internal/config"
	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/holder"
	"solana-token-guard/internal/ledger"
	"solana-token-guard/internal/limits"
	"solana-token-guard/internal/oracle"
	"solana-token-guard/internal/rewards"
	"solana-token-guard/internal/storage"
)

// Observer receives every audit event the engine emits.
type Observer interface {
	ObserveEvent(e *domain.EngineEvent, elapsed time.Duration)
	ObserveEventStoreError(err error)
}

// Options for creating an Engine.
type Options struct {
	Policy config.Policy
	Mint   domain.Pubkey // token deployment the engine serves

	// Required collaborators
	Holders storage.HolderRecordStore
	Vaults  storage.RewardsVaultStore
	Claims  storage.ClaimCommitter
	Ledger  ledger.Ledger

	// Optional
	Events   storage.EngineEventStore
	Observer Observer
	Logger   *zap.Logger
}

// Engine runs the token operations.
type Engine struct {
	policy config.Policy
	mint   domain.Pubkey

	holders storage.HolderRecordStore
	vaults  storage.RewardsVaultStore
	claims  storage.ClaimCommitter
	ledger  ledger.Ledger
	events  storage.EngineEventStore

	adapter    *oracle.Adapter
	validator  *limits.Validator
	calculator *rewards.Calculator
	machine    *holder.StateMachine

	observer Observer
	log      *zap.Logger
	sequence atomic.Uint64
}

// New creates an Engine. The policy is validated once here.
func New(opts Options) (*Engine, error) {
	if err := opts.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	if opts.Holders == nil || opts.Vaults == nil || opts.Claims == nil || opts.Ledger == nil {
		return nil, errors.New("holders, vaults, claims and ledger are required")
	}

	adapter, err := oracle.NewAdapter(opts.Policy)
	if err != nil {
		return nil, err
	}
	validator, err := limits.NewValidator(opts.Policy)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	e := &Engine{
		policy:     opts.Policy,
		mint:       opts.Mint,
		holders:    opts.Holders,
		vaults:     opts.Vaults,
		claims:     opts.Claims,
		ledger:     opts.Ledger,
		events:     opts.Events,
		adapter:    adapter,
		validator:  validator,
		calculator: rewards.NewCalculator(),
		machine:    holder.NewStateMachine(opts.Policy),
		observer:   opts.Observer,
		log:        log.Named("engine"),
	}
	// Seeded from the clock: event IDs must not repeat across restarts.
	e.sequence.Store(uint64(time.Now().UnixNano()))
	return e, nil
}

// Policy returns the policy the engine enforces.
func (e *Engine) Policy() config.Policy {
	return e.policy
}

// Mint returns the token deployment the engine serves.
func (e *Engine) Mint() domain.Pubkey {
	return e.mint
}

// TransferRequest is one secure transfer.
type TransferRequest struct {
	Principal    domain.Pubkey // authenticated signer, supplied by the host
	Authority    domain.Pubkey // claimed authority, owner of From and of the holder record
	From         domain.Pubkey
	To           domain.Pubkey
	RawPriceFeed []byte
	Amount       uint64
	Now          int64
}

// TransferResult describes a completed transfer.
type TransferResult struct {
	Price  domain.PriceQuote
	Record domain.HolderRecord
}

// SecureTransfer authorizes, prices, validates, moves and then records a
// transfer, in that fixed order.
func (e *Engine) SecureTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	start := time.Now()
	event := &domain.EngineEvent{
		Kind:         domain.EventKindTransfer,
		Authority:    req.Authority.String(),
		Counterparty: req.To.String(),
		Amount:       req.Amount,
		Timestamp:    req.Now,
	}

	res, terr := e.secureTransfer(ctx, req, event)
	e.finish(ctx, event, start, terr)
	if terr != nil {
		return nil, terr
	}
	return res, nil
}

func (e *Engine) secureTransfer(ctx context.Context, req TransferRequest, event *domain.EngineEvent) (*TransferResult, *TransferError) {
	rec, terr := e.authorize(ctx, req.Principal, req.Authority, req.From)
	if terr != nil {
		return nil, terr
	}

	quote, err := e.adapter.GetNormalizedPrice(req.RawPriceFeed)
	if err != nil {
		return nil, fail(StageOracle, err)
	}
	event.Price = quote.Price

	// Validate against the record as loaded, before any counter moves.
	if err := e.validator.Validate(req.Amount, quote.Price, rec.Counters(), req.Now); err != nil {
		return nil, fail(StageLimits, err)
	}

	next, err := e.machine.ApplyTransfer(*rec, req.Now)
	if err != nil {
		return nil, stateOrArithmetic(err)
	}

	if err := e.ledger.Transfer(ctx, req.From, req.To, req.Authority, req.Amount); err != nil {
		return nil, fail(StageLedger, err)
	}

	if err := e.holders.Update(ctx, &next); err != nil {
		e.revertTransfer(ctx, req, err)
		return nil, fail(StageStorage, err)
	}

	return &TransferResult{Price: quote, Record: next}, nil
}

// revertTransfer moves the amount back when the holder record could not be
// saved, so funds never move without the daily counter advancing. Only a
// failed reversal leaves the two apart, and that is logged at Error.
func (e *Engine) revertTransfer(ctx context.Context, req TransferRequest, cause error) {
	ctx = context.WithoutCancel(ctx)
	owner, err := e.ledger.Owner(ctx, req.To)
	if err == nil {
		err = e.ledger.Transfer(ctx, req.To, req.From, owner, req.Amount)
	}

	fields := []zap.Field{
		zap.String("authority", req.Authority.String()),
		zap.String("from", req.From.String()),
		zap.String("to", req.To.String()),
		zap.Uint64("amount", req.Amount),
		zap.Error(cause),
	}
	if err != nil {
		e.log.Error("holder record not saved and transfer not reverted",
			append(fields, zap.NamedError("revert_error", err))...)
		return
	}
	e.log.Warn("holder record not saved, transfer reverted", fields...)
}

// authorize checks the principal against the claimed authority, loads the
// authority's record and checks that the authority owns account.
func (e *Engine) authorize(ctx context.Context, principal, authority, account domain.Pubkey) (*domain.HolderRecord, *TransferError) {
	if principal.IsZero() || principal != authority {
		return nil, fail(StageAuthorize, fmt.Errorf("signer %s is not authority %s", principal, authority))
	}

	rec, err := e.holders.Get(ctx, authority)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fail(StageState, fmt.Errorf("holder %s not initialized: %w", authority, err))
	}
	if err != nil {
		return nil, fail(StageStorage, err)
	}
	if rec.Authority != principal {
		return nil, fail(StageAuthorize, fmt.Errorf("record owned by %s", rec.Authority))
	}

	owner, err := e.ledger.Owner(ctx, account)
	if err != nil {
		return nil, fail(StageAuthorize, fmt.Errorf("account %s: %w", account, err))
	}
	if owner != authority {
		return nil, fail(StageAuthorize, fmt.Errorf("%w: account %s owned by %s", ledger.ErrOwnerMismatch, account, owner))
	}
	return rec, nil
}

// InitializeRewards creates the holder record of authority.
func (e *Engine) InitializeRewards(ctx context.Context, principal, authority domain.Pubkey, now int64) (*domain.HolderRecord, error) {
	start := time.Now()
	event := &domain.EngineEvent{
		Kind:      domain.EventKindInitHolder,
		Authority: authority.String(),
		Timestamp: now,
	}

	rec, terr := e.initializeRewards(ctx, principal, authority, now)
	e.finish(ctx, event, start, terr)
	if terr != nil {
		return nil, terr
	}
	return rec, nil
}

func (e *Engine) initializeRewards(ctx context.Context, principal, authority domain.Pubkey, now int64) (*domain.HolderRecord, *TransferError) {
	if principal.IsZero() || principal != authority {
		return nil, fail(StageAuthorize, fmt.Errorf("signer %s is not authority %s", principal, authority))
	}

	rec := e.machine.Initialize(authority, now)
	if err := e.holders.Insert(ctx, &rec); err != nil {
		return nil, storageError(err)
	}
	return &rec, nil
}

// InitializeToken creates the rewards vault and mints the total supply to
// treasury. The ledger mint must already exist with authority as its
// mint authority.
func (e *Engine) InitializeToken(ctx context.Context, principal, authority, treasury domain.Pubkey, now int64) (*domain.RewardsVault, error) {
	start := time.Now()
	event := &domain.EngineEvent{
		Kind:         domain.EventKindInitToken,
		Authority:    authority.String(),
		Counterparty: treasury.String(),
		Amount:       e.policy.TotalSupply,
		Timestamp:    now,
	}

	vault, terr := e.initializeToken(ctx, principal, authority, treasury, now)
	e.finish(ctx, event, start, terr)
	if terr != nil {
		return nil, terr
	}
	return vault, nil
}

func (e *Engine) initializeToken(ctx context.Context, principal, authority, treasury domain.Pubkey, now int64) (*domain.RewardsVault, *TransferError) {
	if principal.IsZero() || principal != authority {
		return nil, fail(StageAuthorize, fmt.Errorf("signer %s is not authority %s", principal, authority))
	}

	_, err := e.vaults.Get(ctx, e.mint)
	switch {
	case err == nil:
		return nil, fail(StageState, fmt.Errorf("%w: vault for mint %s", holder.ErrAlreadyInitialized, e.mint))
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fail(StageStorage, err)
	}

	if err := e.ledger.MintTo(ctx, e.mint, treasury, authority, e.policy.TotalSupply); err != nil {
		return nil, fail(StageLedger, err)
	}

	vault := domain.RewardsVault{Authority: authority, LastUpdateTimestamp: now}
	if err := e.vaults.Insert(ctx, e.mint, &vault); err != nil {
		e.log.Error("supply minted but vault was not saved", zap.String("mint", e.mint.String()), zap.Error(err))
		return nil, storageError(err)
	}
	return &vault, nil
}

// ClaimResult describes a completed claim.
type ClaimResult struct {
	Reward        uint64
	HoldingPeriod uint64
	Balance       uint64
	Record        domain.HolderRecord
	Vault         domain.RewardsVault
}

// ClaimRewards mints the reward accrued on tokenAccount since the last claim.
// A zero reward mints nothing but still starts a new holding period.
func (e *Engine) ClaimRewards(ctx context.Context, principal, authority, tokenAccount domain.Pubkey, now int64) (*ClaimResult, error) {
	start := time.Now()
	event := &domain.EngineEvent{
		Kind:         domain.EventKindClaim,
		Authority:    authority.String(),
		Counterparty: tokenAccount.String(),
		Timestamp:    now,
	}

	res, terr := e.claimRewards(ctx, principal, authority, tokenAccount, now, event)
	e.finish(ctx, event, start, terr)
	if terr != nil {
		return nil, terr
	}
	return res, nil
}

func (e *Engine) claimRewards(ctx context.Context, principal, authority, tokenAccount domain.Pubkey, now int64, event *domain.EngineEvent) (*ClaimResult, *TransferError) {
	rec, terr := e.authorize(ctx, principal, authority, tokenAccount)
	if terr != nil {
		return nil, terr
	}

	period, err := e.machine.HoldingPeriod(*rec, now)
	if err != nil {
		return nil, fail(StageState, err)
	}

	balance, err := e.ledger.Balance(ctx, tokenAccount)
	if err != nil {
		return nil, fail(StageLedger, err)
	}
	event.Amount = balance

	reward, err := e.calculator.Calculate(balance, period, e.policy.AnnualRateBps)
	if err != nil {
		return nil, fail(StageArithmetic, err)
	}
	event.Reward = reward

	next, err := e.machine.ApplyClaim(*rec, now, reward)
	if err != nil {
		return nil, stateOrArithmetic(err)
	}

	vault, err := e.vaults.Get(ctx, e.mint)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fail(StageState, fmt.Errorf("token %s not initialized: %w", e.mint, err))
	}
	if err != nil {
		return nil, fail(StageStorage, err)
	}
	nextVault, err := holder.ApplyIssuance(*vault, now, reward)
	if err != nil {
		return nil, stateOrArithmetic(err)
	}

	if reward > 0 {
		if err := e.ledger.MintTo(ctx, e.mint, tokenAccount, vault.Authority, reward); err != nil {
			return nil, fail(StageLedger, err)
		}
	}

	if err := e.claims.CommitClaim(ctx, &next, e.mint, &nextVault); err != nil {
		e.log.Error("reward minted but claim was not saved",
			zap.String("authority", authority.String()),
			zap.Uint64("reward", reward),
			zap.Error(err))
		return nil, fail(StageStorage, err)
	}

	return &ClaimResult{
		Reward:        reward,
		HoldingPeriod: period,
		Balance:       balance,
		Record:        next,
		Vault:         nextVault,
	}, nil
}

// Holder returns the record of authority.
func (e *Engine) Holder(ctx context.Context, authority domain.Pubkey) (*domain.HolderRecord, error) {
	return e.holders.Get(ctx, authority)
}

// Vault returns the rewards vault of the engine's mint.
func (e *Engine) Vault(ctx context.Context) (*domain.RewardsVault, error) {
	return e.vaults.Get(ctx, e.mint)
}
