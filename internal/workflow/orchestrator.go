package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/teachd/internal/generation"
	"github.com/fyrsmithlabs/teachd/internal/intent"
	"github.com/fyrsmithlabs/teachd/internal/logging"
	"github.com/fyrsmithlabs/teachd/internal/memory"
	"github.com/fyrsmithlabs/teachd/internal/notify"
)

const instrumentationName = "github.com/fyrsmithlabs/teachd/internal/workflow"

// Service provides workflow orchestration operations.
type Service interface {
	// StartRun begins a run for a session. Rejects a second start while
	// one is active.
	StartRun(ctx context.Context, req StartRequest) (*Snapshot, error)

	// Status returns an immutable snapshot of the session's run.
	Status(ctx context.Context, sessionID string) (*Snapshot, error)

	// ResolveCheckpoint delivers a decision to a suspended stage.
	ResolveCheckpoint(ctx context.Context, sessionID, stageID string, decision Decision, payload map[string]any) error

	// CancelRun halts the session's run after the current unit of work.
	CancelRun(ctx context.Context, sessionID string) error

	// SweepRuns removes terminal runs older than the given age. Returns
	// the number removed.
	SweepRuns(ctx context.Context, olderThan time.Duration) int

	// Close cancels all runs and shuts the orchestrator down.
	Close() error
}

// Config configures the orchestrator.
type Config struct {
	// CheckpointTimeout bounds each suspended wait.
	CheckpointTimeout time.Duration

	// MaxRegenerations bounds regenerate decisions per run.
	MaxRegenerations int

	// MinIntentConfidence is the floor below which a run halts as
	// ambiguous.
	MinIntentConfidence int

	// GenerationTimeout bounds each external generation call.
	GenerationTimeout time.Duration

	// Pipeline is the ordered stage list for new runs.
	Pipeline []StageSpec
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		CheckpointTimeout:   30 * time.Second,
		MaxRegenerations:    3,
		MinIntentConfidence: 20,
		GenerationTimeout:   60 * time.Second,
		Pipeline:            DefaultPipeline(),
	}
}

// service implements the Service interface.
type service struct {
	config     *Config
	classifier *intent.Classifier
	memory     *memory.Service
	gen        generation.Service
	notifier   notify.Notifier
	logger     *logging.Logger

	tracer           trace.Tracer
	meter            metric.Meter
	runsStarted      metric.Int64Counter
	runsFinished     metric.Int64Counter
	decisionsCounter metric.Int64Counter

	mu     sync.RWMutex
	runs   map[string]*run
	wg     sync.WaitGroup
	closed bool
}

// NewService creates a workflow orchestrator.
func NewService(cfg *Config, classifier *intent.Classifier, mem *memory.Service, gen generation.Service, notifier notify.Notifier, logger *logging.Logger) (Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if len(cfg.Pipeline) == 0 {
		cfg.Pipeline = DefaultPipeline()
	}
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if mem == nil {
		return nil, errors.New("memory service is required")
	}
	if gen == nil {
		return nil, errors.New("generation service is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger.Underlying())
	}

	s := &service{
		config:     cfg,
		classifier: classifier,
		memory:     mem,
		gen:        gen,
		notifier:   notifier,
		logger:     logger,
		tracer:     otel.Tracer(instrumentationName),
		meter:      otel.Meter(instrumentationName),
		runs:       make(map[string]*run),
	}

	s.initMetrics()

	return s, nil
}

// initMetrics initializes OpenTelemetry metrics.
func (s *service) initMetrics() {
	ctx := context.Background()
	var err error

	s.runsStarted, err = s.meter.Int64Counter(
		"teachd.workflow.runs_started_total",
		metric.WithDescription("Total workflow runs started"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		s.logger.Warn(ctx, "failed to create runs started counter", zap.Error(err))
	}

	s.runsFinished, err = s.meter.Int64Counter(
		"teachd.workflow.runs_finished_total",
		metric.WithDescription("Total workflow runs finished by terminal status"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		s.logger.Warn(ctx, "failed to create runs finished counter", zap.Error(err))
	}

	s.decisionsCounter, err = s.meter.Int64Counter(
		"teachd.workflow.checkpoint_decisions_total",
		metric.WithDescription("Total checkpoint decisions by kind"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		s.logger.Warn(ctx, "failed to create decisions counter", zap.Error(err))
	}
}

// StartRun begins a run for a session.
func (s *service) StartRun(ctx context.Context, req StartRequest) (*Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.start_run")
	defer span.End()

	span.SetAttributes(attribute.String("session_id", req.SessionID))

	if req.SessionID == "" {
		return nil, errors.New("session ID cannot be empty")
	}
	if req.Trigger == "" {
		return nil, errors.New("trigger text cannot be empty")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if existing, ok := s.runs[req.SessionID]; ok && !existing.snapshot().Status.Terminal() {
		s.mu.Unlock()
		span.SetStatus(codes.Error, ErrRunAlreadyActive.Error())
		return nil, ErrRunAlreadyActive
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r := newRun(req, s.config.Pipeline, cancel)
	s.runs[req.SessionID] = r

	s.wg.Add(1)
	s.mu.Unlock()

	// The run goroutine carries its correlation ids in the context so
	// every log line downstream is attributable without repeating them.
	runCtx = logging.WithSessionID(runCtx, req.SessionID)
	runCtx = logging.WithRunID(runCtx, r.id)

	if s.runsStarted != nil {
		s.runsStarted.Add(ctx, 1)
	}
	s.logger.Info(runCtx, "run started", zap.Int("stages", len(r.stages)))

	go func() {
		defer s.wg.Done()
		s.execute(runCtx, r)
		s.finishRun(runCtx, r)
	}()

	snap := r.snapshot()
	span.SetAttributes(attribute.String("run_id", r.id))
	return snap, nil
}

// finishRun records terminal metrics and logging for a run. The run's
// context may already be cancelled; only its correlation values are
// read here.
func (s *service) finishRun(ctx context.Context, r *run) {
	snap := r.snapshot()

	if s.runsFinished != nil {
		s.runsFinished.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("status", string(snap.Status)),
		))
	}

	switch snap.Status {
	case RunCompleted:
		s.logger.Info(ctx, "run completed")
	case RunCancelled:
		s.logger.Info(ctx, "run cancelled")
	default:
		s.logger.Warn(ctx, "run failed", zap.String("error", snap.Error))
	}
}

// Status returns a snapshot of the session's run.
func (s *service) Status(ctx context.Context, sessionID string) (*Snapshot, error) {
	_, span := s.tracer.Start(ctx, "workflow.status")
	defer span.End()

	r, err := s.runFor(sessionID)
	if err != nil {
		return nil, err
	}
	return r.snapshot(), nil
}

// ResolveCheckpoint delivers a decision to a suspended stage.
func (s *service) ResolveCheckpoint(ctx context.Context, sessionID, stageID string, dec Decision, payload map[string]any) error {
	ctx, span := s.tracer.Start(ctx, "workflow.resolve_checkpoint")
	defer span.End()

	span.SetAttributes(
		attribute.String("session_id", sessionID),
		attribute.String("stage_id", stageID),
		attribute.String("decision", string(dec)),
	)

	switch dec {
	case DecisionApprove, DecisionRegenerate, DecisionReject:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDecision, dec)
	}

	r, err := s.runFor(sessionID)
	if err != nil {
		return err
	}

	if err := r.deliverDecision(stageID, dec, payload, s.config.MaxRegenerations); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if s.decisionsCounter != nil {
		s.decisionsCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("decision", string(dec)),
		))
	}
	ctx = logging.WithSessionID(ctx, sessionID)
	s.logger.Info(ctx, "checkpoint resolved",
		zap.String("stage_id", stageID),
		zap.String("decision", string(dec)),
	)
	return nil
}

// CancelRun halts the session's run.
func (s *service) CancelRun(ctx context.Context, sessionID string) error {
	_, span := s.tracer.Start(ctx, "workflow.cancel_run")
	defer span.End()

	span.SetAttributes(attribute.String("session_id", sessionID))

	r, err := s.runFor(sessionID)
	if err != nil {
		return err
	}
	if r.snapshot().Status.Terminal() {
		return ErrNoActiveRun
	}

	r.cancel()
	s.logger.Info(logging.WithSessionID(ctx, sessionID), "run cancellation requested")
	return nil
}

// SweepRuns removes terminal runs older than the given age.
func (s *service) SweepRuns(ctx context.Context, olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for sessionID, r := range s.runs {
		snap := r.snapshot()
		if snap.Status.Terminal() && snap.EndedAt != nil && snap.EndedAt.Before(cutoff) {
			delete(s.runs, sessionID)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info(ctx, "swept old runs", zap.Int("removed", removed))
	}
	return removed
}

// Close cancels all runs and waits for them to stop.
func (s *service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, r := range s.runs {
		r.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *service) runFor(sessionID string) (*run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	r, ok := s.runs[sessionID]
	if !ok {
		return nil, ErrNoActiveRun
	}
	return r, nil
}
