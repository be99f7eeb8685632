package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/teachd/internal/generation"
	"github.com/fyrsmithlabs/teachd/internal/intent"
	"github.com/fyrsmithlabs/teachd/internal/logging"
	"github.com/fyrsmithlabs/teachd/internal/memory"
)

// fakeGen is a deterministic generation service that records prompts.
type fakeGen struct {
	mu      sync.Mutex
	prompts []string
	err     error
}

func (f *fakeGen) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.prompts = append(f.prompts, prompt)
	return fmt.Sprintf("generated-%d", len(f.prompts)), nil
}

func (f *fakeGen) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

func newTestOrchestrator(t *testing.T, cfg *Config, gen generation.Service) Service {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.CheckpointTimeout == 0 {
		cfg.CheckpointTimeout = 2 * time.Second
	}
	if gen == nil {
		gen = &fakeGen{}
	}

	svc, err := NewService(cfg,
		intent.NewClassifier(),
		memory.NewService(zap.NewNop()),
		gen, nil, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func waitForStatus(t *testing.T, svc Service, sessionID string, want RunStatus) *Snapshot {
	t.Helper()
	var snap *Snapshot
	require.Eventually(t, func() bool {
		s, err := svc.Status(context.Background(), sessionID)
		if err != nil {
			return false
		}
		snap = s
		return s.Status == want
	}, 5*time.Second, 10*time.Millisecond, "run never reached status %s", want)
	return snap
}

func waitForTerminal(t *testing.T, svc Service, sessionID string) *Snapshot {
	t.Helper()
	var snap *Snapshot
	require.Eventually(t, func() bool {
		s, err := svc.Status(context.Background(), sessionID)
		if err != nil {
			return false
		}
		snap = s
		return s.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond, "run never reached a terminal status")
	return snap
}

func automatedPipeline(ids ...string) []StageSpec {
	specs := make([]StageSpec, len(ids))
	for i, id := range ids {
		kind := KindAutomated
		if strings.HasPrefix(id, "cp-") {
			kind = KindCheckpoint
		}
		specs[i] = StageSpec{ID: id, Name: id, Kind: kind}
	}
	return specs
}

func TestRunCompletesInOrder(t *testing.T) {
	gen := &fakeGen{}
	cfg := DefaultConfig()
	cfg.Pipeline = automatedPipeline("first", "second", "third")
	svc := newTestOrchestrator(t, cfg, gen)

	snap, err := svc.StartRun(context.Background(), StartRequest{
		SessionID: "s1",
		Trigger:   "Create a worksheet for Grade 3 addition",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, snap.RunID)

	final := waitForStatus(t, svc, "s1", RunCompleted)
	assert.InDelta(t, 1.0, final.Progress, 1e-9)
	assert.NotEmpty(t, final.Artifact)

	require.Len(t, final.Stages, 3)
	var prev time.Time
	for _, st := range final.Stages {
		assert.Equal(t, StatusCompleted, st.Status)
		require.NotNil(t, st.StartedAt)
		require.NotNil(t, st.EndedAt)
		assert.False(t, st.StartedAt.Before(prev), "stages must start in order")
		prev = *st.StartedAt
	}
}

func TestProgressAtSuspension(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline = automatedPipeline("first", "cp-approval", "last")
	svc := newTestOrchestrator(t, cfg, nil)

	_, err := svc.StartRun(context.Background(), StartRequest{SessionID: "s1", Trigger: "worksheet please"})
	require.NoError(t, err)

	snap := waitForStatus(t, svc, "s1", RunSuspended)
	assert.InDelta(t, 1.0/3.0, snap.Progress, 1e-9)
	assert.Equal(t, StatusCompleted, snap.Stages[0].Status)
	assert.Equal(t, StatusSuspended, snap.Stages[1].Status)
	assert.Equal(t, StatusPending, snap.Stages[2].Status)
	assert.NotNil(t, snap.Checkpoint)

	require.NoError(t, svc.ResolveCheckpoint(context.Background(), "s1", "cp-approval", DecisionApprove, nil))

	final := waitForStatus(t, svc, "s1", RunCompleted)
	assert.InDelta(t, 1.0, final.Progress, 1e-9)
}

func TestCheckpointTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CheckpointTimeout = 50 * time.Millisecond
	cfg.Pipeline = automatedPipeline("first", "cp-approval", "last")
	svc := newTestOrchestrator(t, cfg, nil)

	_, err := svc.StartRun(context.Background(), StartRequest{SessionID: "s1", Trigger: "worksheet please"})
	require.NoError(t, err)

	final := waitForTerminal(t, svc, "s1")
	assert.Equal(t, RunError, final.Status)
	assert.Contains(t, final.Error, "timed out")

	assert.Equal(t, StatusCompleted, final.Stages[0].Status)
	assert.Equal(t, StatusError, final.Stages[1].Status)
	assert.Equal(t, StatusPending, final.Stages[2].Status)
}

func TestCheckpointReject(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline = automatedPipeline("first", "cp-approval", "last")
	svc := newTestOrchestrator(t, cfg, nil)

	_, err := svc.StartRun(context.Background(), StartRequest{SessionID: "s1", Trigger: "worksheet please"})
	require.NoError(t, err)

	waitForStatus(t, svc, "s1", RunSuspended)
	require.NoError(t, svc.ResolveCheckpoint(context.Background(), "s1", "cp-approval", DecisionReject, nil))

	final := waitForTerminal(t, svc, "s1")
	assert.Equal(t, RunError, final.Status)
	assert.Contains(t, final.Error, "rejected")
	assert.Equal(t, StatusError, final.Stages[1].Status)
	assert.Equal(t, StatusPending, final.Stages[2].Status)
}

func TestCheckpointRegenerate(t *testing.T) {
	gen := &fakeGen{}
	cfg := DefaultConfig()
	cfg.MaxRegenerations = 1
	cfg.Pipeline = []StageSpec{
		{ID: "generate", Name: "Generator", Kind: KindAutomated},
		{ID: "approval", Name: "Feedback Collector", Kind: KindCheckpoint},
	}
	svc := newTestOrchestrator(t, cfg, gen)

	_, err := svc.StartRun(context.Background(), StartRequest{SessionID: "s1", Trigger: "worksheet please"})
	require.NoError(t, err)

	snap := waitForStatus(t, svc, "s1", RunSuspended)
	require.NotNil(t, snap.Checkpoint)
	assert.Equal(t, "generated-1", snap.Checkpoint["content"])
	assert.Equal(t, 0, snap.Checkpoint["regenerations"])

	ctx := context.Background()
	require.NoError(t, svc.ResolveCheckpoint(ctx, "s1", "approval", DecisionRegenerate, nil))

	// The stage re-suspends with the regenerated content.
	require.Eventually(t, func() bool {
		s, err := svc.Status(ctx, "s1")
		if err != nil || s.Status != RunSuspended {
			return false
		}
		n, _ := s.Checkpoint["regenerations"].(int)
		return n == 1
	}, 5*time.Second, 10*time.Millisecond)

	prompts := gen.recorded()
	assert.Contains(t, prompts[len(prompts)-1], "(attempt 1, make it different)")

	// The regeneration budget is spent.
	err = svc.ResolveCheckpoint(ctx, "s1", "approval", DecisionRegenerate, nil)
	assert.ErrorIs(t, err, ErrRegenerationLimit)

	require.NoError(t, svc.ResolveCheckpoint(ctx, "s1", "approval", DecisionApprove, nil))
	waitForStatus(t, svc, "s1", RunCompleted)
}

func TestResolveCheckpointValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline = automatedPipeline("first", "cp-approval")
	svc := newTestOrchestrator(t, cfg, nil)
	ctx := context.Background()

	err := svc.ResolveCheckpoint(ctx, "missing", "cp-approval", DecisionApprove, nil)
	assert.ErrorIs(t, err, ErrNoActiveRun)

	_, err = svc.StartRun(ctx, StartRequest{SessionID: "s1", Trigger: "hi worksheet"})
	require.NoError(t, err)
	waitForStatus(t, svc, "s1", RunSuspended)

	err = svc.ResolveCheckpoint(ctx, "s1", "cp-approval", Decision("ship-it"), nil)
	assert.ErrorIs(t, err, ErrInvalidDecision)

	err = svc.ResolveCheckpoint(ctx, "s1", "first", DecisionApprove, nil)
	assert.ErrorIs(t, err, ErrStageNotSuspended)

	err = svc.ResolveCheckpoint(ctx, "s1", "no-such-stage", DecisionApprove, nil)
	assert.Error(t, err)
}

func TestRunAlreadyActive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline = automatedPipeline("first", "cp-approval")
	svc := newTestOrchestrator(t, cfg, nil)
	ctx := context.Background()

	_, err := svc.StartRun(ctx, StartRequest{SessionID: "s1", Trigger: "worksheet"})
	require.NoError(t, err)
	waitForStatus(t, svc, "s1", RunSuspended)

	_, err = svc.StartRun(ctx, StartRequest{SessionID: "s1", Trigger: "another"})
	assert.ErrorIs(t, err, ErrRunAlreadyActive)

	// A different session runs in parallel.
	_, err = svc.StartRun(ctx, StartRequest{SessionID: "s2", Trigger: "worksheet"})
	assert.NoError(t, err)
}

func TestAmbiguousIntentSkipsDownstream(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline = []StageSpec{
		{ID: "intake", Name: "Orchestrator", Kind: KindAutomated},
		{ID: "classify", Name: "Intent Classifier", Kind: KindAutomated},
		{ID: "generate", Name: "Generator", Kind: KindAutomated},
		{ID: "approval", Name: "Feedback Collector", Kind: KindCheckpoint},
	}
	svc := newTestOrchestrator(t, cfg, nil)

	// Gibberish scores at the classifier floor, well under the
	// confidence threshold.
	_, err := svc.StartRun(context.Background(), StartRequest{SessionID: "s1", Trigger: "xyzzy"})
	require.NoError(t, err)

	final := waitForTerminal(t, svc, "s1")
	assert.Equal(t, RunError, final.Status)
	assert.Contains(t, final.Error, "ambiguous")

	assert.Equal(t, StatusCompleted, final.Stages[0].Status)
	assert.Equal(t, StatusError, final.Stages[1].Status)
	assert.Equal(t, StatusSkipped, final.Stages[2].Status)
	assert.Equal(t, StatusSkipped, final.Stages[3].Status)

	require.NotNil(t, final.Intent)
	assert.Equal(t, intent.TypeGeneralQuery, final.Intent.Type)
}

func TestCancelRunAtCheckpoint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline = automatedPipeline("first", "cp-approval", "last")
	svc := newTestOrchestrator(t, cfg, nil)
	ctx := context.Background()

	_, err := svc.StartRun(ctx, StartRequest{SessionID: "s1", Trigger: "worksheet"})
	require.NoError(t, err)
	waitForStatus(t, svc, "s1", RunSuspended)

	require.NoError(t, svc.CancelRun(ctx, "s1"))

	final := waitForTerminal(t, svc, "s1")
	assert.Equal(t, RunCancelled, final.Status)
	assert.Equal(t, StatusCompleted, final.Stages[0].Status)
	assert.Equal(t, StatusSuspended, final.Stages[1].Status)
	assert.Equal(t, StatusPending, final.Stages[2].Status)

	// Cancelling a finished run is rejected.
	assert.ErrorIs(t, svc.CancelRun(ctx, "s1"), ErrNoActiveRun)
}

func TestGenerationFailureSurfaces(t *testing.T) {
	gen := &fakeGen{err: generation.ErrUnavailable}
	cfg := DefaultConfig()
	cfg.Pipeline = []StageSpec{
		{ID: "generate", Name: "Generator", Kind: KindAutomated},
	}
	svc := newTestOrchestrator(t, cfg, gen)

	_, err := svc.StartRun(context.Background(), StartRequest{SessionID: "s1", Trigger: "worksheet"})
	require.NoError(t, err)

	final := waitForTerminal(t, svc, "s1")
	assert.Equal(t, RunError, final.Status)
	assert.Equal(t, StatusError, final.Stages[0].Status)
	assert.Contains(t, final.Error, "generate")
}

func TestRunLogsCarryCorrelationFields(t *testing.T) {
	logger := logging.NewTestLogger()
	cfg := DefaultConfig()
	cfg.Pipeline = automatedPipeline("only")
	svc, err := NewService(cfg,
		intent.NewClassifier(),
		memory.NewService(zap.NewNop()),
		&fakeGen{}, nil, logger.Logger)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	snap, err := svc.StartRun(context.Background(), StartRequest{SessionID: "s1", Trigger: "worksheet"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return logger.FilterMessage("run completed").Len() == 1
	}, 5*time.Second, 10*time.Millisecond, "run completion was never logged")

	fields := logger.FilterMessage("run completed").All()[0].ContextMap()
	assert.Equal(t, "s1", fields["session.id"])
	assert.Equal(t, snap.RunID, fields["run.id"])

	stages := logger.FilterMessage("stage completed").All()
	require.NotEmpty(t, stages)
	ctxMap := stages[0].ContextMap()
	assert.Equal(t, "only", ctxMap["stage.id"])
	assert.Equal(t, "s1", ctxMap["session.id"])
}

func TestMaterializeFailureKeepsStagesCompleted(t *testing.T) {
	gen := &fakeGen{err: generation.ErrUnavailable}
	cfg := DefaultConfig()
	cfg.Pipeline = automatedPipeline("a", "b")
	svc := newTestOrchestrator(t, cfg, gen)

	_, err := svc.StartRun(context.Background(), StartRequest{SessionID: "s1", Trigger: "worksheet"})
	require.NoError(t, err)

	final := waitForTerminal(t, svc, "s1")
	assert.Equal(t, RunError, final.Status)
	assert.Contains(t, final.Error, "final artifact generation")
	for _, st := range final.Stages {
		assert.Equal(t, StatusCompleted, st.Status)
	}
	assert.InDelta(t, 1.0, final.Progress, 0.001)
}

func TestDecisionDeliveryAfterExpiry(t *testing.T) {
	r := newRun(StartRequest{SessionID: "s1", Trigger: "worksheet"},
		automatedPipeline("cp-approval"), func() {})
	st := r.stages[0]

	// Queued before expiry: the expiring wait still receives it, so the
	// sender's success report stays truthful.
	ch := r.suspend(st, map[string]any{"content": "draft"})
	require.NoError(t, r.deliverDecision("cp-approval", DecisionApprove, nil, 3))
	assert.ErrorIs(t, r.deliverDecision("cp-approval", DecisionReject, nil, 3), ErrStageNotSuspended)

	d, ok := r.expireSuspension(ch)
	require.True(t, ok)
	assert.Equal(t, DecisionApprove, d.decision)

	// Expired empty: the channel is retired and later sends are rejected
	// rather than silently dropped.
	ch = r.suspend(st, map[string]any{"content": "draft"})
	_, ok = r.expireSuspension(ch)
	require.False(t, ok)
	assert.ErrorIs(t, r.deliverDecision("cp-approval", DecisionApprove, nil, 3), ErrStageNotSuspended)
}

func TestSweepRuns(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline = automatedPipeline("only")
	svc := newTestOrchestrator(t, cfg, nil)
	ctx := context.Background()

	_, err := svc.StartRun(ctx, StartRequest{SessionID: "s1", Trigger: "worksheet"})
	require.NoError(t, err)
	waitForStatus(t, svc, "s1", RunCompleted)

	assert.Equal(t, 0, svc.SweepRuns(ctx, time.Hour))
	assert.Equal(t, 1, svc.SweepRuns(ctx, 0))

	_, err = svc.Status(ctx, "s1")
	assert.ErrorIs(t, err, ErrNoActiveRun)
}

func TestStartRunValidation(t *testing.T) {
	svc := newTestOrchestrator(t, nil, nil)
	ctx := context.Background()

	_, err := svc.StartRun(ctx, StartRequest{Trigger: "hi"})
	assert.Error(t, err)

	_, err = svc.StartRun(ctx, StartRequest{SessionID: "s1"})
	assert.Error(t, err)
}

func TestSuggestedDatesSkipWeekends(t *testing.T) {
	// Friday 2026-01-02.
	friday := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	dates := suggestedDates(friday, 3)

	assert.Equal(t, []string{"2026-01-05", "2026-01-06", "2026-01-07"}, dates)
}

func TestStageErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &StageError{StageID: "generate", Cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "generate")
}

func TestDefaultPipelineShape(t *testing.T) {
	pipeline := DefaultPipeline()
	require.NotEmpty(t, pipeline)

	checkpoints := 0
	for _, spec := range pipeline {
		if spec.Kind == KindCheckpoint {
			checkpoints++
		}
	}
	assert.Equal(t, 2, checkpoints)
	assert.Equal(t, "intake", pipeline[0].ID)
	assert.Equal(t, "notify", pipeline[len(pipeline)-1].ID)
}
