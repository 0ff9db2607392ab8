package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"
)

var csvHeader = []string{
	"event_id", "timestamp", "sequence", "kind", "outcome", "authority", "counterparty",
	"amount", "price_usd", "reward", "stage", "reason",
}

// RenderCSV renders event rows as CSV string. Reasons are quoted when they
// contain separators.
func RenderCSV(rows []EventRow) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, r := range rows {
		record := []string{
			r.EventID,
			strconv.FormatInt(r.Timestamp, 10),
			strconv.FormatUint(r.Sequence, 10),
			r.Kind,
			r.Outcome,
			r.Authority,
			r.Counterparty,
			r.Amount,
			r.Price,
			r.Reward,
			r.Stage,
			r.Reason,
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}
