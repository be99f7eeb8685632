package workflow

import (
	"time"

	"github.com/fyrsmithlabs/teachd/internal/intent"
)

// StageKind distinguishes automated stages from human checkpoints.
type StageKind string

const (
	// KindAutomated stages execute without external input.
	KindAutomated StageKind = "automated"

	// KindCheckpoint stages suspend until an external decision arrives
	// or the checkpoint timeout elapses.
	KindCheckpoint StageKind = "checkpoint"
)

// StageStatus is one state of the per-stage state machine.
//
// Transitions: Pending -> Running -> {Completed | Error | Suspended}.
// Suspended resolves back through Running to Completed or ends in Error.
// Skipped is reached directly from Pending when an upstream outcome
// makes the stage moot.
type StageStatus string

const (
	StatusPending   StageStatus = "pending"
	StatusRunning   StageStatus = "running"
	StatusSuspended StageStatus = "suspended"
	StatusSkipped   StageStatus = "skipped"
	StatusCompleted StageStatus = "completed"
	StatusError     StageStatus = "error"
)

// LogEntry is one recorded orchestration event. Immutable once appended.
type LogEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Message   string         `json:"message"`
	Reasoning string         `json:"reasoning,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Stage is one step of a run's pipeline.
type Stage struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Kind          StageKind   `json:"kind"`
	Status        StageStatus `json:"status"`
	StartedAt     *time.Time  `json:"started_at,omitempty"`
	EndedAt       *time.Time  `json:"ended_at,omitempty"`
	LogEntries    []LogEntry  `json:"log_entries"`
	SubStepLabels []string    `json:"sub_step_labels,omitempty"`
}

// StageSpec declares one stage of the pipeline configuration.
type StageSpec struct {
	ID            string
	Name          string
	Kind          StageKind
	SubStepLabels []string
}

// Decision is an external actor's answer to a suspended checkpoint.
type Decision string

const (
	// DecisionApprove accepts the checkpoint payload and continues.
	DecisionApprove Decision = "approve"

	// DecisionRegenerate re-runs the stage's generation and stays
	// suspended. Bounded by the configured regeneration limit.
	DecisionRegenerate Decision = "regenerate"

	// DecisionReject aborts the whole run.
	DecisionReject Decision = "reject"
)

// RunStatus is the overall status of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSuspended RunStatus = "suspended"
	RunCompleted RunStatus = "completed"
	RunError     RunStatus = "error"
	RunCancelled RunStatus = "cancelled"
)

// Terminal reports whether the run has finished.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunError, RunCancelled:
		return true
	}
	return false
}

// Snapshot is an immutable view of a run's state.
type Snapshot struct {
	RunID      string         `json:"run_id"`
	SessionID  string         `json:"session_id"`
	Status     RunStatus      `json:"status"`
	Progress   float64        `json:"progress"`
	Intent     *intent.Intent `json:"intent,omitempty"`
	Artifact   string         `json:"artifact,omitempty"`
	Stages     []Stage        `json:"stages"`
	Checkpoint map[string]any `json:"checkpoint,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	EndedAt    *time.Time     `json:"ended_at,omitempty"`
}

// StartRequest begins a workflow run for a session.
type StartRequest struct {
	SessionID  string
	Trigger    string
	Subjects   []string
	Grades     []int
	Recipients []string
}

// DefaultPipeline returns the standard worksheet pipeline.
func DefaultPipeline() []StageSpec {
	return []StageSpec{
		{
			ID:            "intake",
			Name:          "Orchestrator",
			Kind:          KindAutomated,
			SubStepLabels: []string{"Parsing input", "Identifying workflow", "Setting up coordination", "Initializing agents"},
		},
		{
			ID:            "classify",
			Name:          "Intent Classifier",
			Kind:          KindAutomated,
			SubStepLabels: []string{"Text analysis", "Pattern matching", "Intent confidence scoring", "Context extraction"},
		},
		{
			ID:            "generate",
			Name:          "Worksheet Generator",
			Kind:          KindAutomated,
			SubStepLabels: []string{"Rubric creation", "Guardrails setup", "Content framework", "Quality checks", "Template generation"},
		},
		{
			ID:            "personalise",
			Name:          "Personaliser",
			Kind:          KindAutomated,
			SubStepLabels: []string{"Grade analysis", "Language adaptation", "Difficulty adjustment", "Cultural context", "Learning objectives"},
		},
		{
			ID:            "review",
			Name:          "Judge",
			Kind:          KindAutomated,
			SubStepLabels: []string{"Content review", "Age appropriateness", "Learning objectives", "Quality assurance", "Educational standards check"},
		},
		{
			ID:   "approval",
			Name: "Feedback Collector",
			Kind: KindCheckpoint,
		},
		{
			ID:            "memorise",
			Name:          "Memory Agent",
			Kind:          KindAutomated,
			SubStepLabels: []string{"Pattern extraction", "Preference learning", "Context storage", "Knowledge base update"},
		},
		{
			ID:   "schedule",
			Name: "Scheduler Agent",
			Kind: KindCheckpoint,
		},
		{
			ID:            "notify",
			Name:          "Notifier Agent",
			Kind:          KindAutomated,
			SubStepLabels: []string{"Student list compilation", "Notification dispatch", "Delivery confirmation"},
		},
	}
}
