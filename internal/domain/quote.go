package domain

// TradingStatus is the aggregate status reported by the price oracle.
type TradingStatus uint32

// Pyth aggregate price status values.
const (
	TradingStatusUnknown TradingStatus = 0
	TradingStatusTrading TradingStatus = 1
	TradingStatusHalted  TradingStatus = 2
	TradingStatusAuction TradingStatus = 3
	TradingStatusIgnored TradingStatus = 4
)

// String returns the status name.
func (s TradingStatus) String() string {
	switch s {
	case TradingStatusUnknown:
		return "UNKNOWN"
	case TradingStatusTrading:
		return "TRADING"
	case TradingStatusHalted:
		return "HALTED"
	case TradingStatusAuction:
		return "AUCTION"
	case TradingStatusIgnored:
		return "IGNORED"
	default:
		return "INVALID"
	}
}

// PriceQuote is a validated oracle price, produced fresh per request and never persisted.
type PriceQuote struct {
	Price       uint64        // USD, fixed-point with the policy's price decimals
	Status      TradingStatus // always Trading for quotes returned by the adapter
	PublishSlot uint64        // slot of the aggregate the quote came from

	// Feed-native values the quote was derived from.
	RawPrice      int64
	RawConfidence uint64
	Exponent      int32
}
