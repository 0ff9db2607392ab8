// Package holder applies the per-holder record transitions.
package holder

import (
	"errors"
	"fmt"

	"solana-token-guard/internal/config"
	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/fixedpoint"
)

// State errors.
var (
	ErrAlreadyInitialized  = errors.New("holder record already initialized")
	ErrHoldingPeriodNotMet = errors.New("minimum holding period not met")
)

// StateMachine computes holder record transitions. Transitions take a record
// by value and return the successor; on error the caller's record is untouched.
type StateMachine struct {
	minHoldingPeriod int64
}

// NewStateMachine creates a StateMachine for the given policy.
func NewStateMachine(policy config.Policy) *StateMachine {
	return &StateMachine{minHoldingPeriod: policy.MinHoldingPeriodSeconds}
}

// Initialize returns a fresh record for authority. Create-once semantics
// belong to the record store.
func (m *StateMachine) Initialize(authority domain.Pubkey, now int64) domain.HolderRecord {
	return domain.HolderRecord{
		Authority:          authority,
		LastClaimTimestamp: now,
	}
}

// ApplyTransfer counts one transfer at now. It must only be called after the
// limit validator approved the transfer against rec.
func (m *StateMachine) ApplyTransfer(rec domain.HolderRecord, now int64) (domain.HolderRecord, error) {
	today := domain.DayIndex(now)
	if today != rec.LastTransactionDay {
		rec.DailyTransactionCount = 0
		rec.LastTransactionDay = today
	}

	count, err := fixedpoint.Add(rec.DailyTransactionCount, 1)
	if err != nil {
		return domain.HolderRecord{}, fmt.Errorf("daily transaction count: %w", err)
	}
	rec.DailyTransactionCount = count
	rec.LastTransferTimestamp = now
	return rec, nil
}

// HoldingPeriod returns the seconds elapsed since the last claim, or
// ErrHoldingPeriodNotMet when fewer than the policy minimum have passed.
func (m *StateMachine) HoldingPeriod(rec domain.HolderRecord, now int64) (uint64, error) {
	if now < 0 || rec.LastClaimTimestamp < 0 {
		return 0, fmt.Errorf("%w: negative timestamp", ErrHoldingPeriodNotMet)
	}
	if now < rec.LastClaimTimestamp {
		return 0, fmt.Errorf("%w: clock is before last claim", ErrHoldingPeriodNotMet)
	}
	held := now - rec.LastClaimTimestamp
	if held < m.minHoldingPeriod {
		return 0, fmt.Errorf("%w: held %ds, need %ds", ErrHoldingPeriodNotMet, held, m.minHoldingPeriod)
	}
	return uint64(held), nil
}

// ApplyClaim credits reward at now.
func (m *StateMachine) ApplyClaim(rec domain.HolderRecord, now int64, reward uint64) (domain.HolderRecord, error) {
	if _, err := m.HoldingPeriod(rec, now); err != nil {
		return domain.HolderRecord{}, err
	}

	earned, err := fixedpoint.Add(rec.RewardsEarned, reward)
	if err != nil {
		return domain.HolderRecord{}, fmt.Errorf("rewards earned: %w", err)
	}
	rec.RewardsEarned = earned
	rec.LastClaimTimestamp = now
	return rec, nil
}

// ApplyIssuance records reward issued from the vault at now.
func ApplyIssuance(vault domain.RewardsVault, now int64, reward uint64) (domain.RewardsVault, error) {
	total, err := fixedpoint.Add(vault.TotalRewardsIssued, reward)
	if err != nil {
		return domain.RewardsVault{}, fmt.Errorf("total rewards issued: %w", err)
	}
	vault.TotalRewardsIssued = total
	vault.LastUpdateTimestamp = now
	return vault, nil
}
