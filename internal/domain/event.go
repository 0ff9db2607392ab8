package domain

// EngineEvent is an append-only audit entry for one engine operation.
// Corresponds to engine_events table in ClickHouse.
type EngineEvent struct {
	EventID      string // deterministic hash
	Kind         string // operation kind
	Outcome      string // "OK" | "REJECTED"
	Authority    string // base58 principal
	Counterparty string // destination account for transfers, token account for claims
	Amount       uint64 // transfer amount (minor units)
	Price        uint64 // normalized price used, 0 if none
	Reward       uint64 // minted reward for claims
	Stage        string // failing stage for rejections
	Reason       string // error text for rejections
	Timestamp    int64  // operation time (unix seconds)
	Sequence     uint64 // per-process ordering tiebreaker
}

// Event kinds.
const (
	EventKindInitToken  = "INIT_TOKEN"
	EventKindInitHolder = "INIT_HOLDER"
	EventKindTransfer   = "TRANSFER"
	EventKindClaim      = "CLAIM"
)

// Event outcomes.
const (
	OutcomeOK       = "OK"
	OutcomeRejected = "REJECTED"
)
