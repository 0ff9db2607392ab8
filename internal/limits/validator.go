// Package limits decides whether a transfer is within the per-holder policy.
package limits

import (
	"errors"
	"fmt"

	"solana-token-guard/internal/config"
	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/fixedpoint"
)

// Policy rejections.
var (
	ErrBelowMinimum       = errors.New("transaction amount below minimum USD value")
	ErrExceedsMax         = errors.New("transaction amount exceeds maximum size")
	ErrDailyLimitExceeded = errors.New("daily transaction limit exceeded")
)

// Validator checks a transfer against the policy. It never mutates holder state.
type Validator struct {
	minPurchaseUSDCents  uint64
	maxTransactionSize   uint64
	maxDailyTransactions uint64
	priceScale           uint64
}

// NewValidator creates a Validator for the given policy.
func NewValidator(policy config.Policy) (*Validator, error) {
	scale, err := fixedpoint.Pow10(uint32(policy.PriceDecimals))
	if err != nil {
		return nil, fmt.Errorf("price decimals %d: %w", policy.PriceDecimals, err)
	}
	return &Validator{
		minPurchaseUSDCents:  policy.MinPurchaseUSDCents,
		maxTransactionSize:   policy.MaxTransactionSize,
		maxDailyTransactions: policy.MaxDailyTransactions,
		priceScale:           scale,
	}, nil
}

// Validate runs the checks in order and returns the first failure:
// minimum USD value, maximum size, daily limit.
func (v *Validator) Validate(amount, normalizedPrice uint64, holder domain.HolderCounters, now int64) error {
	// amount*price is widened to 128 bits before the division.
	usdValue, err := fixedpoint.Mul64Wide(amount, normalizedPrice).Div64(v.priceScale)
	if err != nil {
		return fmt.Errorf("usd value: %w", err)
	}
	if usdValue.Cmp64(v.minPurchaseUSDCents) < 0 {
		return fmt.Errorf("%w: value %d < %d", ErrBelowMinimum, usdValue.Lo, v.minPurchaseUSDCents)
	}

	if amount > v.maxTransactionSize {
		return fmt.Errorf("%w: %d > %d", ErrExceedsMax, amount, v.maxTransactionSize)
	}

	// A different day means the caller resets the count; no limit applies.
	if holder.LastTransactionDay == domain.DayIndex(now) && holder.DailyTransactionCount >= v.maxDailyTransactions {
		return fmt.Errorf("%w: %d transfers today", ErrDailyLimitExceeded, holder.DailyTransactionCount)
	}

	return nil
}
