package postgres

import (
	"fmt"
	"strconv"

	"solana-token-guard/internal/domain"
)

// u64 columns are NUMERIC(20,0). Values cross the wire as decimal text
// ($n::text::numeric on write, column::text on read) so the full uint64
// range survives without pgtype.Numeric exponent handling.

func formatU64(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseU64(column, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", column, s, err)
	}
	return v, nil
}

func parsePubkey(column, s string) (domain.Pubkey, error) {
	pk, err := domain.ParsePubkey(s)
	if err != nil {
		return domain.Pubkey{}, fmt.Errorf("parse %s: %w", column, err)
	}
	return pk, nil
}
