// Package config holds the token policy constants and process runtime settings.
package config

import "fmt"

// Token identity.
const (
	TokenName   = "Next Gen Crypto"
	TokenSymbol = "NGC"
)

// DefaultPriceFeedAccount is the Pyth SOL/USD price account.
const DefaultPriceFeedAccount = "Gv2NQnFfSQgzqFoGGm4bFX5q6oBKPPXRJQDG3voqfWJt"

// Policy is the immutable set of limits and rates the engine enforces.
// Components receive it by value; tests substitute alternate values.
type Policy struct {
	Decimals    uint8  // token decimals
	TotalSupply uint64 // minted once at token initialization (minor units)

	AnnualRateBps           uint64 // reward rate in basis points per year
	MinHoldingPeriodSeconds int64  // minimum time between reward claims
	TransferCooldownSeconds int64  // carried for record compatibility, not enforced

	MinPurchaseUSDCents  uint64 // minimum transfer value
	MaxTransactionSize   uint64 // absolute ceiling per transfer (minor units)
	MaxDailyTransactions uint64 // transfers allowed per daily window
	PriceDecimals        uint8  // normalized oracle price decimals
	MaxConfidenceNumer   uint64 // confidence/price must not exceed Numer/Denom
	MaxConfidenceDenom   uint64
}

// DefaultPolicy returns the build-time policy of the deployment.
func DefaultPolicy() Policy {
	return Policy{
		Decimals:                6,
		TotalSupply:             1_000_000_000_000_000, // 1 billion with 6 decimals
		AnnualRateBps:           500,                   // 5%
		MinHoldingPeriodSeconds: 2_592_000,             // 30 days
		TransferCooldownSeconds: 300,
		MinPurchaseUSDCents:     5000,              // $50.00
		MaxTransactionSize:      1_000_000_000_000, // 0.1% of total supply
		MaxDailyTransactions:    10,
		PriceDecimals:           6,
		MaxConfidenceNumer:      1,
		MaxConfidenceDenom:      100,
	}
}

// Validate rejects policies the engine cannot enforce consistently.
func (p Policy) Validate() error {
	if p.TotalSupply == 0 {
		return fmt.Errorf("total supply must be positive")
	}
	if p.MaxTransactionSize == 0 || p.MaxTransactionSize > p.TotalSupply {
		return fmt.Errorf("max transaction size must be in (0, total supply]")
	}
	if p.MaxDailyTransactions == 0 {
		return fmt.Errorf("max daily transactions must be positive")
	}
	if p.MinHoldingPeriodSeconds < 0 {
		return fmt.Errorf("min holding period must not be negative")
	}
	if p.AnnualRateBps > 10_000 {
		return fmt.Errorf("annual rate %d bps exceeds 100%%", p.AnnualRateBps)
	}
	if p.MaxConfidenceDenom == 0 {
		return fmt.Errorf("confidence threshold denominator must be positive")
	}
	if p.PriceDecimals > 18 {
		return fmt.Errorf("price decimals %d out of range", p.PriceDecimals)
	}
	return nil
}
