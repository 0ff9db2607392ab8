package domain

// SecondsPerDay is the width of the daily transaction window.
const SecondsPerDay = 86400

// DayIndex maps a unix timestamp (seconds) to its daily window.
func DayIndex(ts int64) int64 {
	return ts / SecondsPerDay
}

// HolderRecord is the per-holder state owned by a single authority.
// Field order matches the on-chain HolderData account layout.
type HolderRecord struct {
	Authority             Pubkey // owning principal
	RewardsEarned         uint64 // cumulative, never decreases
	LastClaimTimestamp    int64  // unix seconds of the last successful claim
	LastTransferTimestamp int64  // unix seconds of the last successful transfer
	DailyTransactionCount uint64 // only meaningful relative to LastTransactionDay
	LastTransactionDay    int64  // DayIndex of the last counted transfer
}

// HolderCounters is the slice of HolderRecord the limit validator reads.
type HolderCounters struct {
	DailyTransactionCount uint64
	LastTransactionDay    int64
}

// Counters returns the daily-window counters of the record.
func (r HolderRecord) Counters() HolderCounters {
	return HolderCounters{
		DailyTransactionCount: r.DailyTransactionCount,
		LastTransactionDay:    r.LastTransactionDay,
	}
}

// RewardsVault tracks aggregate reward issuance for one token deployment.
// Field order matches the on-chain RewardsVault account layout.
type RewardsVault struct {
	Authority           Pubkey // deploying authority, also the mint authority
	TotalRewardsIssued  uint64 // never decreases
	LastUpdateTimestamp int64  // unix seconds
}
