package workflow

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRunAlreadyActive rejects a StartRun while another run on the
	// same session is in flight.
	ErrRunAlreadyActive = errors.New("a run is already active for this session")

	// ErrNoActiveRun indicates no run exists for the session.
	ErrNoActiveRun = errors.New("no active run for this session")

	// ErrStageNotSuspended indicates a checkpoint resolution for a
	// stage that is not waiting.
	ErrStageNotSuspended = errors.New("stage is not suspended")

	// ErrInvalidDecision indicates an unknown checkpoint decision.
	ErrInvalidDecision = errors.New("invalid checkpoint decision")

	// ErrRegenerationLimit indicates the bounded regenerate budget is
	// spent.
	ErrRegenerationLimit = errors.New("regeneration limit reached")

	// ErrAmbiguousIntent halts a run whose classified intent fell below
	// the confidence floor.
	ErrAmbiguousIntent = errors.New("intent is ambiguous")

	// ErrClosed indicates the orchestrator has shut down.
	ErrClosed = errors.New("orchestrator is closed")
)

// StageError is a fatal failure inside one stage. The run halts and the
// error surfaces to the caller with the stage id and cause.
type StageError struct {
	StageID string
	Cause   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.StageID, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// CheckpointTimeoutError is a checkpoint that was never resolved before
// its timeout. Fatal to the run.
type CheckpointTimeoutError struct {
	StageID string
	Timeout time.Duration
}

func (e *CheckpointTimeoutError) Error() string {
	return fmt.Sprintf("checkpoint %s timed out after %s", e.StageID, e.Timeout)
}
