package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report is the audit report over a time range of engine events.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RangeStart  int64 // unix seconds, inclusive
	RangeEnd    int64 // unix seconds, inclusive

	Summary Summary

	// Per-kind totals (sorted by kind)
	ByKind []KindSummaryRow

	// Rejections by (kind, stage), sorted by count desc then kind, stage
	Rejections []RejectionRow

	// Per-authority activity, sorted by transferred amount desc then authority
	Holders []HolderActivityRow

	// All events in (timestamp, sequence) order
	Events []EventRow
}

// Summary contains overall counts.
type Summary struct {
	TotalEvents      int
	Completed        int
	Rejected         int
	DistinctHolders  int
	TransferredTotal string // token units
	RewardsTotal     string // token units
}

// KindSummaryRow aggregates one operation kind.
type KindSummaryRow struct {
	Kind      string
	Total     int
	Completed int
	Rejected  int
	Amount    string // token units moved or minted by completed operations
	Rewards   string // token units
}

// RejectionRow counts rejections of one kind at one stage.
type RejectionRow struct {
	Kind  string
	Stage string
	Count int
}

// HolderActivityRow summarizes one authority.
type HolderActivityRow struct {
	Authority   string
	Transfers   int
	Claims      int
	Rejections  int
	Transferred string // token units
	Rewards     string // token units
}

// EventRow is one engine event with amounts rendered in display units.
type EventRow struct {
	EventID      string
	Timestamp    int64
	Sequence     uint64
	Kind         string
	Outcome      string
	Authority    string
	Counterparty string
	Amount       string // token units
	Price        string // USD
	Reward       string // token units
	Stage        string
	Reason       string
}

// FormatUnits renders a fixed-point integer with the given decimals,
// e.g. FormatUnits(1_500_000, 6) == "1.500000".
func FormatUnits(v uint64, decimals uint8) string {
	return decimal.NewFromUint64(v).Shift(-int32(decimals)).StringFixed(int32(decimals))
}
