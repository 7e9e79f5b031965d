package library

import (
	"fmt"
	"time"

	apperrors "github.com/khanhnv2901/jsaudit/internal/shared/errors"
)

// RunStatus represents the lifecycle state of an audit run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Metadata records how a run was configured.
type Metadata struct {
	Workers   int     `json:"workers" yaml:"workers"`
	Registry  string  `json:"registry" yaml:"registry"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

// Run is one audit of a root directory. It owns the ordered outcomes once the
// pipeline has finished.
type Run struct {
	id          string
	root        string
	operator    string
	startedAt   time.Time
	completedAt time.Time
	status      RunStatus
	outcomes    []Outcome
	metadata    Metadata
}

// NewRun creates a pending run for root.
func NewRun(root, operator string) *Run {
	return &Run{
		id:       generateRunID(time.Now()),
		root:     root,
		operator: operator,
		status:   RunStatusPending,
	}
}

// Reconstruct rebuilds a run from persistence.
func Reconstruct(id, root, operator string, startedAt, completedAt time.Time,
	status RunStatus, outcomes []Outcome, metadata Metadata) *Run {
	for i := range outcomes {
		outcomes[i].Index = i
	}
	return &Run{
		id:          id,
		root:        root,
		operator:    operator,
		startedAt:   startedAt,
		completedAt: completedAt,
		status:      status,
		outcomes:    outcomes,
		metadata:    metadata,
	}
}

// Start marks the run as running.
func (r *Run) Start() error {
	if r.status != RunStatusPending {
		return apperrors.ErrRunAlreadyStarted
	}
	r.status = RunStatusRunning
	r.startedAt = time.Now().UTC()
	return nil
}

// Complete stores the final outcomes. A cancelled run keeps only the outcomes
// that were fully computed.
func (r *Run) Complete(outcomes []Outcome, cancelled bool) error {
	if r.status != RunStatusRunning {
		return apperrors.ErrRunNotStarted
	}
	r.outcomes = append([]Outcome(nil), outcomes...)
	r.completedAt = time.Now().UTC()
	r.status = RunStatusCompleted
	if cancelled {
		r.status = RunStatusCancelled
	}
	return nil
}

func (r *Run) ID() string {
	return r.id
}

func (r *Run) Root() string {
	return r.root
}

func (r *Run) Operator() string {
	return r.operator
}

func (r *Run) StartedAt() time.Time {
	return r.startedAt
}

func (r *Run) CompletedAt() time.Time {
	return r.completedAt
}

func (r *Run) Status() RunStatus {
	return r.status
}

func (r *Run) Outcomes() []Outcome {
	// Return a copy to prevent external modification
	out := make([]Outcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

func (r *Run) Metadata() Metadata {
	return r.metadata
}

// SetMetadata replaces the run metadata.
func (r *Run) SetMetadata(m Metadata) {
	r.metadata = m
}

// Duration is the wall time between start and completion, zero until completed.
func (r *Run) Duration() time.Duration {
	if r.startedAt.IsZero() || r.completedAt.IsZero() {
		return 0
	}
	return r.completedAt.Sub(r.startedAt)
}

func (r *Run) Summary() Summary {
	return Summarize(r.outcomes)
}

func generateRunID(now time.Time) string {
	return fmt.Sprintf("run-%s-%06d", now.UTC().Format("20060102150405"), now.Nanosecond()/1000)
}
