package reporting

import (
	"io"

	"github.com/parquet-go/parquet-go"

	"solana-token-guard/internal/domain"
)

// eventRecord is the Parquet row layout of an engine event. Amounts stay in
// minor units so the file round-trips exactly.
type eventRecord struct {
	EventID      string `parquet:"event_id"`
	Timestamp    int64  `parquet:"timestamp"`
	Sequence     uint64 `parquet:"sequence"`
	Kind         string `parquet:"kind,dict"`
	Outcome      string `parquet:"outcome,dict"`
	Authority    string `parquet:"authority"`
	Counterparty string `parquet:"counterparty"`
	Amount       uint64 `parquet:"amount"`
	Price        uint64 `parquet:"price"`
	Reward       uint64 `parquet:"reward"`
	Stage        string `parquet:"stage,dict"`
	Reason       string `parquet:"reason"`
}

// WriteParquet writes events to w as a Parquet file.
func WriteParquet(w io.Writer, events []*domain.EngineEvent) error {
	rows := make([]eventRecord, len(events))
	for i, e := range events {
		rows[i] = eventRecord{
			EventID:      e.EventID,
			Timestamp:    e.Timestamp,
			Sequence:     e.Sequence,
			Kind:         e.Kind,
			Outcome:      e.Outcome,
			Authority:    e.Authority,
			Counterparty: e.Counterparty,
			Amount:       e.Amount,
			Price:        e.Price,
			Reward:       e.Reward,
			Stage:        e.Stage,
			Reason:       e.Reason,
		}
	}
	return parquet.Write(w, rows)
}

// ReadParquet reads events written by WriteParquet.
func ReadParquet(r io.ReaderAt, size int64) ([]*domain.EngineEvent, error) {
	rows, err := parquet.Read[eventRecord](r, size)
	if err != nil {
		return nil, err
	}
	events := make([]*domain.EngineEvent, len(rows))
	for i, row := range rows {
		events[i] = &domain.EngineEvent{
			EventID:      row.EventID,
			Kind:         row.Kind,
			Outcome:      row.Outcome,
			Authority:    row.Authority,
			Counterparty: row.Counterparty,
			Amount:       row.Amount,
			Price:        row.Price,
			Reward:       row.Reward,
			Stage:        row.Stage,
			Reason:       row.Reason,
			Timestamp:    row.Timestamp,
			Sequence:     row.Sequence,
		}
	}
	return events, nil
}
