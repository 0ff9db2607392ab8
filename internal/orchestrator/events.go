package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/idhash"
)

// finish stamps, logs and stores the audit event of one operation.
// A lost event never changes the operation's result.
func (e *Engine) finish(ctx context.Context, event *domain.EngineEvent, start time.Time, terr *TransferError) {
	event.Outcome = domain.OutcomeOK
	if terr != nil {
		event.Outcome = domain.OutcomeRejected
		event.Stage = string(terr.Stage)
		event.Reason = terr.Err.Error()
	}
	event.Sequence = e.sequence.Add(1)
	event.EventID = idhash.ComputeEventID(
		event.Kind,
		event.Outcome,
		event.Authority,
		event.Counterparty,
		event.Amount,
		event.Timestamp,
		event.Sequence,
	)

	fields := []zap.Field{
		zap.String("kind", event.Kind),
		zap.String("authority", event.Authority),
		zap.Uint64("amount", event.Amount),
	}
	if event.Price != 0 {
		fields = append(fields, zap.Uint64("price", event.Price))
	}
	if event.Kind == domain.EventKindClaim {
		fields = append(fields, zap.Uint64("reward", event.Reward))
	}
	if terr != nil {
		e.log.Warn("operation rejected", append(fields, zap.String("stage", event.Stage), zap.String("reason", event.Reason))...)
	} else {
		e.log.Info("operation completed", fields...)
	}

	if e.events != nil {
		if err := e.events.Insert(ctx, event); err != nil {
			e.log.Error("failed to store engine event", zap.String("event_id", event.EventID), zap.Error(err))
			if e.observer != nil {
				e.observer.ObserveEventStoreError(err)
			}
		}
	}
	if e.observer != nil {
		e.observer.ObserveEvent(event, time.Since(start))
	}
}
