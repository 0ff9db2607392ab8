package orchestrator

import (
	"errors"
	"fmt"

	"solana-token-guard/internal/fixedpoint"
	"solana-token-guard/internal/holder"
	"solana-token-guard/internal/storage"
)

// Stage identifies where an operation failed.
type Stage string

// Operation stages, in the order a transfer passes them.
const (
	StageAuthorize  Stage = "authorize"
	StageOracle     Stage = "oracle"
	StageLimits     Stage = "limits"
	StageState      Stage = "state"
	StageArithmetic Stage = "arithmetic"
	StageLedger     Stage = "ledger"
	StageStorage    Stage = "storage"
)

// Stage sentinels. errors.Is matches a TransferError against both its stage
// sentinel and the component error it wraps.
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrOracle        = errors.New("oracle rejected price feed")
	ErrLimitExceeded = errors.New("transaction limit exceeded")
	ErrState         = errors.New("holder state precondition failed")
	ErrArithmetic    = errors.New("arithmetic overflow")
	ErrLedgerFailure = errors.New("ledger operation failed")
	ErrStorage       = errors.New("record storage failed")
)

// TransferError is returned by every engine operation.
type TransferError struct {
	Stage Stage
	Err   error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap exposes the stage sentinel and the wrapped error.
func (e *TransferError) Unwrap() []error {
	return []error{stageSentinel(e.Stage), e.Err}
}

func stageSentinel(s Stage) error {
	switch s {
	case StageAuthorize:
		return ErrUnauthorized
	case StageOracle:
		return ErrOracle
	case StageLimits:
		return ErrLimitExceeded
	case StageState:
		return ErrState
	case StageArithmetic:
		return ErrArithmetic
	case StageLedger:
		return ErrLedgerFailure
	default:
		return ErrStorage
	}
}

func fail(stage Stage, err error) *TransferError {
	return &TransferError{Stage: stage, Err: err}
}

// stateOrArithmetic classifies errors from state machine transitions.
func stateOrArithmetic(err error) *TransferError {
	if errors.Is(err, fixedpoint.ErrOverflow) {
		return fail(StageArithmetic, err)
	}
	return fail(StageState, err)
}

// storageError maps store errors; create-once violations surface as
// holder.ErrAlreadyInitialized.
func storageError(err error) *TransferError {
	if errors.Is(err, storage.ErrDuplicateKey) {
		return fail(StageState, fmt.Errorf("%w: %v", holder.ErrAlreadyInitialized, err))
	}
	return fail(StageStorage, err)
}
