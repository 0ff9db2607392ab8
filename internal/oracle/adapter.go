// Package oracle turns raw price feed accounts into validated USD quotes.
package oracle

import (
	"errors"
	"fmt"

	"solana-token-guard/internal/config"
	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/fixedpoint"
)

// Oracle errors. None are retried here; callers resubmit with a fresh feed.
var (
	ErrUnparseable    = errors.New("price feed unparseable")
	ErrNoCurrentPrice = errors.New("price feed has no current price")
	ErrNotTrading     = errors.New("price feed is not trading")
	ErrLowConfidence  = errors.New("price confidence interval too wide")
	ErrOverflow       = errors.New("price normalization overflow")
)

// Adapter validates and normalizes price feed data. It holds no state.
type Adapter struct {
	priceScale uint64 // 10^PriceDecimals
	confNumer  uint64
	confDenom  uint64
}

// NewAdapter creates an Adapter for the given policy.
func NewAdapter(policy config.Policy) (*Adapter, error) {
	scale, err := fixedpoint.Pow10(uint32(policy.PriceDecimals))
	if err != nil {
		return nil, fmt.Errorf("price decimals %d: %w", policy.PriceDecimals, err)
	}
	if policy.MaxConfidenceDenom == 0 {
		return nil, fmt.Errorf("confidence threshold denominator must be positive")
	}
	return &Adapter{
		priceScale: scale,
		confNumer:  policy.MaxConfidenceNumer,
		confDenom:  policy.MaxConfidenceDenom,
	}, nil
}

// GetNormalizedPrice parses raw feed bytes and returns a quote usable by the
// limit validator. Checks run in a fixed order: structure, presence of a
// current price, confidence, trading status, normalization.
func (a *Adapter) GetNormalizedPrice(raw []byte) (domain.PriceQuote, error) {
	acc, err := ParsePriceAccount(raw)
	if err != nil {
		return domain.PriceQuote{}, err
	}

	if acc.AggPublishSlot == 0 || acc.AggPrice <= 0 {
		return domain.PriceQuote{}, ErrNoCurrentPrice
	}

	// A wide confidence interval is rejected whatever the status says.
	price := uint64(acc.AggPrice)
	if a.confidenceTooLow(acc.AggConfidence, price) {
		return domain.PriceQuote{}, fmt.Errorf("%w: conf=%d price=%d", ErrLowConfidence, acc.AggConfidence, price)
	}

	if acc.AggStatus != domain.TradingStatusTrading {
		return domain.PriceQuote{}, fmt.Errorf("%w: status %s", ErrNotTrading, acc.AggStatus)
	}

	normalized, err := a.normalize(price, acc.Exponent)
	if err != nil {
		return domain.PriceQuote{}, err
	}

	return domain.PriceQuote{
		Price:         normalized,
		Status:        acc.AggStatus,
		PublishSlot:   acc.AggPublishSlot,
		RawPrice:      acc.AggPrice,
		RawConfidence: acc.AggConfidence,
		Exponent:      acc.Exponent,
	}, nil
}

// confidenceTooLow reports conf/price > numer/denom, evaluated exactly as
// conf*denom > price*numer in 128 bits.
func (a *Adapter) confidenceTooLow(conf, price uint64) bool {
	lhs := fixedpoint.Mul64Wide(conf, a.confDenom)
	rhs := fixedpoint.Mul64Wide(price, a.confNumer)
	return lhs.Cmp(rhs) > 0
}

// normalize computes price * 10^decimals / 10^|exponent| with checked steps.
func (a *Adapter) normalize(price uint64, exponent int32) (uint64, error) {
	scaled, err := fixedpoint.Mul(price, a.priceScale)
	if err != nil {
		return 0, fmt.Errorf("%w: price %d", ErrOverflow, price)
	}

	abs := exponent
	if abs < 0 {
		abs = -abs
	}
	divisor, err := fixedpoint.Pow10(uint32(abs))
	if err != nil {
		return 0, fmt.Errorf("%w: exponent %d", ErrOverflow, exponent)
	}

	result, err := fixedpoint.Div(scaled, divisor)
	if err != nil {
		return 0, fmt.Errorf("%w: exponent %d", ErrOverflow, exponent)
	}
	return result, nil
}

// RejectReason returns a short label for an adapter error, or "" for nil.
func RejectReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnparseable):
		return "unparseable"
	case errors.Is(err, ErrNoCurrentPrice):
		return "no_current_price"
	case errors.Is(err, ErrLowConfidence):
		return "low_confidence"
	case errors.Is(err, ErrNotTrading):
		return "not_trading"
	case errors.Is(err, ErrOverflow):
		return "overflow"
	default:
		return "error"
	}
}
