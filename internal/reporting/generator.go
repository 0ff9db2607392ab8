package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/storage"
)

// Generator produces audit reports from stored engine events.
type Generator struct {
	eventStore    storage.EngineEventStore
	tokenDecimals uint8
	priceDecimals uint8
	now           func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(eventStore storage.EngineEventStore, tokenDecimals, priceDecimals uint8) *Generator {
	return &Generator{
		eventStore:    eventStore,
		tokenDecimals: tokenDecimals,
		priceDecimals: priceDecimals,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Load returns the raw events of [start, end].
func (g *Generator) Load(ctx context.Context, start, end int64) ([]*domain.EngineEvent, error) {
	if end < start {
		return nil, fmt.Errorf("%w: range end %d before start %d", storage.ErrInvalidInput, end, start)
	}
	return g.eventStore.GetByTimeRange(ctx, start, end)
}

// Generate produces the report for events within [start, end].
func (g *Generator) Generate(ctx context.Context, start, end int64) (*Report, error) {
	events, err := g.Load(ctx, start, end)
	if err != nil {
		return nil, err
	}
	r := g.Build(events)
	r.RangeStart = start
	r.RangeEnd = end
	return r, nil
}

// Build produces a report from already loaded events.
func (g *Generator) Build(events []*domain.EngineEvent) *Report {
	type kindAcc struct {
		row     KindSummaryRow
		amount  decimal.Decimal
		rewards decimal.Decimal
	}
	type holderAcc struct {
		row         HolderActivityRow
		transferred decimal.Decimal
		rewards     decimal.Decimal
	}

	kinds := make(map[string]*kindAcc)
	holders := make(map[string]*holderAcc)
	rejections := make(map[[2]string]int)
	transferred := decimal.Zero
	rewardsTotal := decimal.Zero

	summary := Summary{TotalEvents: len(events)}
	rows := make([]EventRow, 0, len(events))

	for _, e := range events {
		rows = append(rows, g.eventRow(e))

		k := kinds[e.Kind]
		if k == nil {
			k = &kindAcc{row: KindSummaryRow{Kind: e.Kind}}
			kinds[e.Kind] = k
		}
		h := holders[e.Authority]
		if h == nil {
			h = &holderAcc{row: HolderActivityRow{Authority: e.Authority}}
			holders[e.Authority] = h
		}
		k.row.Total++

		if e.Outcome == domain.OutcomeRejected {
			summary.Rejected++
			k.row.Rejected++
			h.row.Rejections++
			rejections[[2]string{e.Kind, e.Stage}]++
			continue
		}

		summary.Completed++
		k.row.Completed++
		amount := decimal.NewFromUint64(e.Amount)
		reward := decimal.NewFromUint64(e.Reward)

		switch e.Kind {
		case domain.EventKindTransfer:
			h.row.Transfers++
			h.transferred = h.transferred.Add(amount)
			k.amount = k.amount.Add(amount)
			transferred = transferred.Add(amount)
		case domain.EventKindClaim:
			h.row.Claims++
			h.rewards = h.rewards.Add(reward)
			k.amount = k.amount.Add(reward)
			k.rewards = k.rewards.Add(reward)
			rewardsTotal = rewardsTotal.Add(reward)
		case domain.EventKindInitToken:
			k.amount = k.amount.Add(amount)
		}
	}

	summary.DistinctHolders = len(holders)
	summary.TransferredTotal = g.tokenUnits(transferred)
	summary.RewardsTotal = g.tokenUnits(rewardsTotal)

	byKind := make([]KindSummaryRow, 0, len(kinds))
	for _, k := range kinds {
		k.row.Amount = g.tokenUnits(k.amount)
		k.row.Rewards = g.tokenUnits(k.rewards)
		byKind = append(byKind, k.row)
	}
	sort.Slice(byKind, func(i, j int) bool { return byKind[i].Kind < byKind[j].Kind })

	rejRows := make([]RejectionRow, 0, len(rejections))
	for key, n := range rejections {
		rejRows = append(rejRows, RejectionRow{Kind: key[0], Stage: key[1], Count: n})
	}
	sort.Slice(rejRows, func(i, j int) bool {
		if rejRows[i].Count != rejRows[j].Count {
			return rejRows[i].Count > rejRows[j].Count
		}
		if rejRows[i].Kind != rejRows[j].Kind {
			return rejRows[i].Kind < rejRows[j].Kind
		}
		return rejRows[i].Stage < rejRows[j].Stage
	})

	type sortable struct {
		row         HolderActivityRow
		transferred decimal.Decimal
	}
	hs := make([]sortable, 0, len(holders))
	for _, h := range holders {
		h.row.Transferred = g.tokenUnits(h.transferred)
		h.row.Rewards = g.tokenUnits(h.rewards)
		hs = append(hs, sortable{row: h.row, transferred: h.transferred})
	}
	sort.Slice(hs, func(i, j int) bool {
		if c := hs[i].transferred.Cmp(hs[j].transferred); c != 0 {
			return c > 0
		}
		return hs[i].row.Authority < hs[j].row.Authority
	})
	holderRows := make([]HolderActivityRow, len(hs))
	for i, h := range hs {
		holderRows[i] = h.row
	}

	return &Report{
		GeneratedAt: g.now(),
		Summary:     summary,
		ByKind:      byKind,
		Rejections:  rejRows,
		Holders:     holderRows,
		Events:      rows,
	}
}

func (g *Generator) eventRow(e *domain.EngineEvent) EventRow {
	row := EventRow{
		EventID:      e.EventID,
		Timestamp:    e.Timestamp,
		Sequence:     e.Sequence,
		Kind:         e.Kind,
		Outcome:      e.Outcome,
		Authority:    e.Authority,
		Counterparty: e.Counterparty,
		Amount:       FormatUnits(e.Amount, g.tokenDecimals),
		Reward:       FormatUnits(e.Reward, g.tokenDecimals),
		Stage:        e.Stage,
		Reason:       e.Reason,
	}
	if e.Price != 0 {
		row.Price = FormatUnits(e.Price, g.priceDecimals)
	}
	return row
}

func (g *Generator) tokenUnits(d decimal.Decimal) string {
	return d.Shift(-int32(g.tokenDecimals)).StringFixed(int32(g.tokenDecimals))
}
