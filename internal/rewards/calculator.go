// Package rewards computes time-weighted reward accrual.
package rewards

import (
	"fmt"

	"solana-token-guard/internal/fixedpoint"
)

const (
	// SecondsPerYear is the accrual year (365 days).
	SecondsPerYear = 31_536_000
	// BasisPointsDenominator converts basis points to a fraction.
	BasisPointsDenominator = 10_000
)

// Calculator computes rewards from balance, holding period and annual rate.
// It is pure and safe for concurrent use.
type Calculator struct{}

// NewCalculator creates a Calculator.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Calculate returns
//
//	balance * annualRateBps * holdingPeriodSeconds / 10000 / SecondsPerYear
//
// The full product is formed before any division. Overflow of the 128-bit
// intermediate or of the 64-bit result returns fixedpoint.ErrOverflow.
func (c *Calculator) Calculate(balance, holdingPeriodSeconds, annualRateBps uint64) (uint64, error) {
	product, err := fixedpoint.Mul64Wide(balance, annualRateBps).Mul64(holdingPeriodSeconds)
	if err != nil {
		return 0, fmt.Errorf("reward product: %w", err)
	}

	q, err := product.Div64(BasisPointsDenominator)
	if err != nil {
		return 0, err
	}
	q, err = q.Div64(SecondsPerYear)
	if err != nil {
		return 0, err
	}

	reward, err := q.Uint64()
	if err != nil {
		return 0, fmt.Errorf("reward %d bps over %ds: %w", annualRateBps, holdingPeriodSeconds, err)
	}
	return reward, nil
}
