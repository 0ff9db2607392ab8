// Package idhash derives deterministic identifiers for audit records.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeEventID computes a deterministic event_id using SHA256.
// Formula: SHA256(kind|outcome|authority|counterparty|amount|timestamp|sequence)
// Returns hex-encoded hash (64 characters).
func ComputeEventID(
	kind string,
	outcome string,
	authority string,
	counterparty string,
	amount uint64,
	timestamp int64,
	sequence uint64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d|%d|%d",
		kind,
		outcome,
		authority,
		counterparty,
		amount,
		timestamp,
		sequence,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
