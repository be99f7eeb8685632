package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/teachd/internal/intent"
	"github.com/fyrsmithlabs/teachd/internal/logging"
)

// checkpointDecision is one resolved checkpoint input.
type checkpointDecision struct {
	decision Decision
	payload  map[string]any
}

// run holds the mutable state of one workflow execution. All fields
// behind mu; snapshot() publishes immutable copies for readers.
type run struct {
	id         string
	sessionID  string
	trigger    string
	subjects   []string
	grades     []int
	recipients []string
	cancel     context.CancelFunc

	mu            sync.Mutex
	status        RunStatus
	progress      float64
	intentResult  *intent.Intent
	draft         string
	artifact      string
	checkpoint    map[string]any
	selectedDate  string
	regenerations int
	stages        []*Stage
	runErr        error
	startedAt     time.Time
	endedAt       *time.Time

	// decisionCh is created fresh for each suspension and read only by
	// the run goroutine.
	decisionCh chan checkpointDecision
}

func newRun(req StartRequest, pipeline []StageSpec, cancel context.CancelFunc) *run {
	stages := make([]*Stage, len(pipeline))
	for i, spec := range pipeline {
		stages[i] = &Stage{
			ID:            spec.ID,
			Name:          spec.Name,
			Kind:          spec.Kind,
			Status:        StatusPending,
			LogEntries:    []LogEntry{},
			SubStepLabels: append([]string(nil), spec.SubStepLabels...),
		}
	}

	return &run{
		id:         uuid.New().String(),
		sessionID:  req.SessionID,
		trigger:    req.Trigger,
		subjects:   append([]string(nil), req.Subjects...),
		grades:     append([]int(nil), req.Grades...),
		recipients: append([]string(nil), req.Recipients...),
		cancel:     cancel,
		status:     RunRunning,
		stages:     stages,
		startedAt:  time.Now(),
	}
}

// snapshot returns an immutable copy of the run's state.
func (r *run) snapshot() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	stages := make([]Stage, len(r.stages))
	for i, st := range r.stages {
		cp := *st
		cp.LogEntries = append([]LogEntry(nil), st.LogEntries...)
		cp.SubStepLabels = append([]string(nil), st.SubStepLabels...)
		if st.StartedAt != nil {
			t := *st.StartedAt
			cp.StartedAt = &t
		}
		if st.EndedAt != nil {
			t := *st.EndedAt
			cp.EndedAt = &t
		}
		stages[i] = cp
	}

	snap := &Snapshot{
		RunID:     r.id,
		SessionID: r.sessionID,
		Status:    r.status,
		Progress:  r.progress,
		Artifact:  r.artifact,
		Stages:    stages,
		StartedAt: r.startedAt,
	}
	if r.intentResult != nil {
		in := *r.intentResult
		snap.Intent = &in
	}
	if r.checkpoint != nil && r.status == RunSuspended {
		cp := make(map[string]any, len(r.checkpoint))
		for k, v := range r.checkpoint {
			cp[k] = v
		}
		snap.Checkpoint = cp
	}
	if r.runErr != nil {
		snap.Error = r.runErr.Error()
	}
	if r.endedAt != nil {
		t := *r.endedAt
		snap.EndedAt = &t
	}
	return snap
}

// deliverDecision validates a resolution attempt and queues it for the
// run goroutine. Delivery happens under mu so a send can never land on
// a suspension that has already expired or failed.
func (r *run) deliverDecision(stageID string, dec Decision, payload map[string]any, maxRegenerations int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var st *Stage
	for _, candidate := range r.stages {
		if candidate.ID == stageID {
			st = candidate
			break
		}
	}
	if st == nil {
		return fmt.Errorf("unknown stage %q", stageID)
	}
	if st.Status != StatusSuspended || r.decisionCh == nil {
		return ErrStageNotSuspended
	}
	if dec == DecisionRegenerate && r.regenerations >= maxRegenerations {
		return ErrRegenerationLimit
	}

	select {
	case r.decisionCh <- checkpointDecision{decision: dec, payload: payload}:
		return nil
	default:
		// Another resolution already queued for this suspension.
		return ErrStageNotSuspended
	}
}

// expireSuspension retires the suspension's channel after a timeout.
// A decision that was queued before expiry is returned so it can still
// be honored; otherwise the channel is unregistered under mu, after
// which deliverDecision rejects further sends.
func (r *run) expireSuspension(ch chan checkpointDecision) (checkpointDecision, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case d := <-ch:
		return d, true
	default:
		r.decisionCh = nil
		return checkpointDecision{}, false
	}
}

// log appends an immutable log entry to a stage.
func (r *run) log(st *Stage, message, reasoning string, metadata map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st.LogEntries = append(st.LogEntries, LogEntry{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Message:   message,
		Reasoning: reasoning,
		Metadata:  metadata,
	})
}

// startStage transitions Pending -> Running.
func (r *run) startStage(st *Stage) {
	r.mu.Lock()
	now := time.Now()
	st.Status = StatusRunning
	st.StartedAt = &now
	r.status = RunRunning
	r.mu.Unlock()

	r.log(st, fmt.Sprintf("Starting %s", st.Name),
		"Stage reached in pipeline order", nil)
}

// completeStage transitions Running -> Completed and updates progress.
func (r *run) completeStage(st *Stage, completed, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	st.Status = StatusCompleted
	st.EndedAt = &now
	r.progress = float64(completed) / float64(total)
}

// suspend transitions a checkpoint stage to Suspended and publishes its
// payload. Returns the fresh decision channel.
func (r *run) suspend(st *Stage, payload map[string]any) chan checkpointDecision {
	r.mu.Lock()
	defer r.mu.Unlock()
	st.Status = StatusSuspended
	r.status = RunSuspended
	r.checkpoint = payload
	r.decisionCh = make(chan checkpointDecision, 1)
	return r.decisionCh
}

// resume transitions a suspended stage back to Running.
func (r *run) resume(st *Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st.Status = StatusRunning
	r.status = RunRunning
	r.checkpoint = nil
	r.decisionCh = nil
}

// fail marks a stage Error and the run terminal with the cause. When the
// cause is an ambiguous intent, downstream stages become Skipped; for
// any other failure they stay Pending.
func (r *run) fail(st *Stage, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	st.Status = StatusError
	st.EndedAt = &now
	r.status = RunError
	r.runErr = cause
	r.endedAt = &now
	r.decisionCh = nil
	r.checkpoint = nil

	if errors.Is(cause, ErrAmbiguousIntent) {
		for _, other := range r.stages {
			if other.Status == StatusPending {
				other.Status = StatusSkipped
			}
		}
	}
}

// failRun marks the run terminal with the cause without touching stage
// state. Used for failures that happen after every stage completed,
// where no stage may legally leave Completed.
func (r *run) failRun(cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.status = RunError
	r.runErr = cause
	r.endedAt = &now
	r.decisionCh = nil
	r.checkpoint = nil
}

// finishCancelled marks the run cancelled. The current stage keeps
// whatever status it had; later stages stay Pending.
func (r *run) finishCancelled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.status = RunCancelled
	r.endedAt = &now
	r.decisionCh = nil
	r.checkpoint = nil
}

// finishCompleted marks the run terminal with its artifact.
func (r *run) finishCompleted(artifact string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.status = RunCompleted
	r.artifact = artifact
	r.endedAt = &now
}

func (r *run) setIntent(in intent.Intent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intentResult = &in
}

func (r *run) setDraft(draft string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draft = draft
}

func (r *run) currentDraft() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draft
}

func (r *run) currentIntent() *intent.Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.intentResult == nil {
		return nil
	}
	in := *r.intentResult
	return &in
}

// execute runs the pipeline to a terminal status. It is the only writer
// of stage state for this run.
func (s *service) execute(ctx context.Context, r *run) {
	total := len(r.stages)
	completed := 0

	for _, st := range r.stages {
		if ctx.Err() != nil {
			r.finishCancelled()
			return
		}

		stageCtx := logging.WithStageID(ctx, st.ID)
		r.startStage(st)
		s.logger.Debug(stageCtx, "stage started")

		var err error
		if st.Kind == KindCheckpoint {
			err = s.runCheckpoint(stageCtx, r, st)
		} else {
			err = s.runAutomated(stageCtx, r, st)
		}
		if err != nil {
			if ctx.Err() != nil {
				r.finishCancelled()
				return
			}
			r.log(st, fmt.Sprintf("%s failed", st.Name), err.Error(), nil)
			s.logger.Warn(stageCtx, "stage failed", zap.Error(err))
			r.fail(st, &StageError{StageID: st.ID, Cause: err})
			return
		}

		completed++
		r.completeStage(st, completed, total)
		s.logger.Debug(stageCtx, "stage completed")
	}

	artifact, err := s.materialize(ctx, r)
	if err != nil {
		if ctx.Err() != nil {
			r.finishCancelled()
			return
		}
		last := r.stages[len(r.stages)-1]
		r.log(last, "Final artifact generation failed", err.Error(), nil)
		r.failRun(fmt.Errorf("final artifact generation: %w", err))
		return
	}

	r.finishCompleted(artifact)
}

// runCheckpoint suspends the stage and waits for a decision, racing the
// signal against the checkpoint timeout and cancellation.
func (s *service) runCheckpoint(ctx context.Context, r *run, st *Stage) error {
	payload := s.checkpointPayload(r, st)

	for {
		ch := r.suspend(st, payload)
		r.log(st, fmt.Sprintf("%s awaiting input", st.Name),
			"Checkpoint suspended until an external decision arrives", payload)

		timer := time.NewTimer(s.config.CheckpointTimeout)

		var d checkpointDecision
		select {
		case d = <-ch:
			timer.Stop()

		case <-timer.C:
			late, ok := r.expireSuspension(ch)
			if !ok {
				return &CheckpointTimeoutError{StageID: st.ID, Timeout: s.config.CheckpointTimeout}
			}
			// A decision was queued just as the timer fired. Its
			// sender was told it succeeded, so honor it.
			d = late

		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}

		r.resume(st)

		switch d.decision {
		case DecisionApprove:
			s.applyApproval(r, st, d.payload)
			return nil

		case DecisionRegenerate:
			next, err := s.regenerate(ctx, r, st)
			if err != nil {
				return err
			}
			payload = next

		case DecisionReject:
			r.log(st, fmt.Sprintf("%s rejected", st.Name),
				"External reviewer rejected the checkpoint", nil)
			return errors.New("rejected by reviewer")

		default:
			return fmt.Errorf("%w: %q", ErrInvalidDecision, d.decision)
		}
	}
}

// applyApproval records an approved checkpoint's outcome.
func (r *run) applySelectedDate(date string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selectedDate = date
}

func (s *service) applyApproval(r *run, st *Stage, payload map[string]any) {
	if st.ID == "schedule" {
		if date, ok := payload["selected_date"].(string); ok && date != "" {
			r.applySelectedDate(date)
		}
	}
	r.log(st, fmt.Sprintf("%s approved", st.Name),
		"External reviewer approved the checkpoint", payload)
}
