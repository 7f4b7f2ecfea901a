package runctx

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/riskprobe/internal/model"
)

// Stage is a pipeline state
type Stage string

const (
	StageInit       Stage = "init"
	StageTriaging   Stage = "triaging"
	StageCollecting Stage = "collecting"
	StageValidating Stage = "validating"
	StageScoring    Stage = "scoring"
	StageNarrating  Stage = "narrating"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// next lists the single legal forward move from each stage. Failed is legal from any open stage.
var next = map[Stage]Stage{
	StageInit:       StageTriaging,
	StageTriaging:   StageCollecting,
	StageCollecting: StageValidating,
	StageValidating: StageScoring,
	StageScoring:    StageNarrating,
	StageNarrating:  StageDone,
}

// Transition records one stage change
type Transition struct {
	From Stage     `json:"from"`
	To   Stage     `json:"to"`
	At   time.Time `json:"at"`
}

// OrchestratorContext is the per-request accumulator threaded through the pipeline.
// It is opened once per request and closed when the pipeline returns.
type OrchestratorContext struct {
	RequestID string
	Subject   model.SubjectProfile
	Logger    *slog.Logger
	StartedAt time.Time

	mu          sync.Mutex
	stage       Stage
	transitions []Transition
	triage      *model.TriageResult
	evidence    []model.EvidenceAtom
	issues      []model.ValidationIssue
	warnings    []string
	failure     error
	closed      bool
}

// Open starts a request context with a fresh request ID
func Open(subject model.SubjectProfile, logger *slog.Logger) *OrchestratorContext {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &OrchestratorContext{
		RequestID: id,
		Subject:   subject,
		Logger:    logger.With("request_id", id),
		StartedAt: time.Now().UTC(),
		stage:     StageInit,
	}
}

// Stage returns the current stage
func (c *OrchestratorContext) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// Advance moves to the given stage if it is the legal successor of the current one
func (c *OrchestratorContext) Advance(to Stage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("advance to %s: context closed", to)
	}
	if next[c.stage] != to {
		return fmt.Errorf("illegal transition %s -> %s", c.stage, to)
	}
	c.record(to)
	return nil
}

// Fail moves to the failed stage from any open stage
func (c *OrchestratorContext) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.stage == StageDone || c.stage == StageFailed {
		return
	}
	c.failure = err
	c.record(StageFailed)
}

func (c *OrchestratorContext) record(to Stage) {
	c.transitions = append(c.transitions, Transition{From: c.stage, To: to, At: time.Now().UTC()})
	c.Logger.Debug("pipeline stage", "from", c.stage, "to", to)
	c.stage = to
}

// Transitions returns the recorded stage changes
func (c *OrchestratorContext) Transitions() []Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Transition(nil), c.transitions...)
}

// Err returns the error passed to Fail, if any
func (c *OrchestratorContext) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

// SetTriage stores the triage decision
func (c *OrchestratorContext) SetTriage(t model.TriageResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.triage = &t
	}
}

// Triage returns the stored triage decision or nil
func (c *OrchestratorContext) Triage() *model.TriageResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.triage == nil {
		return nil
	}
	t := *c.triage
	return &t
}

// AddEvidence appends validated atoms
func (c *OrchestratorContext) AddEvidence(atoms ...model.EvidenceAtom) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.evidence = append(c.evidence, atoms...)
	}
}

// Evidence returns a copy of the accumulated atoms
func (c *OrchestratorContext) Evidence() []model.EvidenceAtom {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.EvidenceAtom(nil), c.evidence...)
}

// AddIssues appends validation issues
func (c *OrchestratorContext) AddIssues(issues ...model.ValidationIssue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.issues = append(c.issues, issues...)
	}
}

// Issues returns a copy of the accumulated validation issues
func (c *OrchestratorContext) Issues() []model.ValidationIssue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.ValidationIssue(nil), c.issues...)
}

// Warn records a data-quality warning and logs it
func (c *OrchestratorContext) Warn(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.warnings = append(c.warnings, msg)
	c.Logger.Warn(msg)
}

// Warnings returns a copy of the recorded warnings
func (c *OrchestratorContext) Warnings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.warnings...)
}

// Close ends the request. Later mutations are ignored. Returns the elapsed time.
func (c *OrchestratorContext) Close() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.Logger.Debug("request closed", "stage", c.stage, "elapsed", time.Since(c.StartedAt))
	}
	return time.Since(c.StartedAt)
}

type ctxKey struct{}

// WithContext attaches oc to ctx
func WithContext(ctx context.Context, oc *OrchestratorContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, oc)
}

// FromContext returns the OrchestratorContext attached to ctx, or nil
func FromContext(ctx context.Context) *OrchestratorContext {
	oc, _ := ctx.Value(ctxKey{}).(*OrchestratorContext)
	return oc
}

// Logger returns the request logger attached to ctx, or fallback
func Logger(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if oc := FromContext(ctx); oc != nil {
		return oc.Logger
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}
