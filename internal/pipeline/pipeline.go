package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppiankov/riskprobe/internal/collect"
	"github.com/ppiankov/riskprobe/internal/connector"
	"github.com/ppiankov/riskprobe/internal/llm"
	"github.com/ppiankov/riskprobe/internal/metrics"
	"github.com/ppiankov/riskprobe/internal/model"
	"github.com/ppiankov/riskprobe/internal/narrative"
	"github.com/ppiankov/riskprobe/internal/query"
	"github.com/ppiankov/riskprobe/internal/runctx"
	"github.com/ppiankov/riskprobe/internal/score"
	"github.com/ppiankov/riskprobe/internal/triage"
	"github.com/ppiankov/riskprobe/internal/validate"
)

var tracer = otel.Tracer("riskprobe.pipeline")

// Analysis outcomes reported to metrics
const (
	outcomeOK       = "ok"
	outcomeDegraded = "degraded"
	outcomeQuota    = "quota_exhausted"
	outcomeInvalid  = "invalid"
)

// Options tunes one analysis
type Options struct {
	// Enhanced deepens the collection strategy one level and returns the evidence atoms
	Enhanced bool
}

// Components are the collaborators the pipeline drives
type Components struct {
	Primary  connector.Connector
	Fallback connector.Connector // nil disables the fallback
	Provider llm.Provider        // nil uses keyword triage and template narratives
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Pipeline orchestrates the complete analysis process
type Pipeline struct {
	classifier *triage.Classifier
	generator  *query.Generator
	collector  *collect.Orchestrator
	normalizer *validate.Normalizer
	scorer     *score.Scorer
	narrator   *narrative.Synthesizer // nil when narration is disabled
	metrics    *metrics.Metrics
	logger     *slog.Logger
	config     model.Config
}

// New creates a pipeline from configuration and its connectors
func New(cfg model.Config, c Components) (*Pipeline, error) {
	if c.Primary == nil {
		return nil, &model.ConfigError{Key: "source.primary", Message: "no primary connector configured"}
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var narrator *narrative.Synthesizer
	if cfg.Narrative.Enabled {
		narrator = narrative.NewSynthesizer(c.Provider, logger)
	}

	return &Pipeline{
		classifier: triage.NewClassifier(c.Provider, logger),
		generator:  query.NewGenerator(),
		collector:  collect.NewOrchestrator(c.Primary, c.Fallback, collect.ConfigFromModel(cfg), c.Metrics, logger),
		normalizer: validate.NewNormalizer(validate.NewAuthorityClassifier(&cfg.Authority), logger),
		scorer:     score.NewScorer(),
		narrator:   narrator,
		metrics:    c.Metrics,
		logger:     logger,
		config:     cfg,
	}, nil
}

// Analyze runs one subject through triage, collection, validation, scoring and narration.
// Invalid input returns *model.InputError and quota exhaustion returns the connector error.
// Any other failure, including a panic, yields a degraded result instead of an error.
func (p *Pipeline) Analyze(ctx context.Context, profile model.SubjectProfile, opts Options) (result *model.AnalysisResult, err error) {
	start := time.Now()

	if verr := profile.Validate(); verr != nil {
		p.metrics.ObserveAnalysis(outcomeInvalid, start)
		return nil, verr
	}

	oc := runctx.Open(profile, p.logger)
	ctx = runctx.WithContext(ctx, oc)

	ctx, span := tracer.Start(ctx, "pipeline.Analyze", trace.WithAttributes(
		attribute.String("riskprobe.request_id", oc.RequestID),
		attribute.Bool("riskprobe.enhanced", opts.Enhanced),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			perr := fmt.Errorf("pipeline panic: %v", r)
			oc.Logger.Error("pipeline panicked", "panic", r)
			result, err = p.degrade(oc, perr), nil
		}

		elapsed := oc.Close()
		outcome := outcomeOK
		switch {
		case err != nil:
			outcome = outcomeQuota
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case result.Degraded:
			outcome = outcomeDegraded
			span.SetStatus(codes.Error, "degraded")
		default:
			span.SetStatus(codes.Ok, "")
		}
		p.metrics.ObserveAnalysis(outcome, start)
		oc.Logger.Info("analysis finished", "outcome", outcome, "duration", elapsed)
		oc.Logger.Debug("stage timeline", "stages", stagePath(oc.Transitions()))
	}()

	result, err = p.run(ctx, oc, opts)
	if err == nil {
		return result, nil
	}

	if connector.IsQuotaExhausted(err) {
		oc.Fail(err)
		oc.Logger.Error("evidence source quota exhausted, aborting", "error", err)
		return nil, err
	}
	return p.degrade(oc, err), nil
}

// stagePath renders transitions as "init>triaging>...>done"
func stagePath(transitions []runctx.Transition) string {
	if len(transitions) == 0 {
		return ""
	}
	stages := []string{string(transitions[0].From)}
	for _, t := range transitions {
		stages = append(stages, string(t.To))
	}
	return strings.Join(stages, ">")
}

// degrade records the failure and builds the minimal fallback answer
func (p *Pipeline) degrade(oc *runctx.OrchestratorContext, cause error) *model.AnalysisResult {
	oc.Fail(cause)
	oc.Logger.Error("analysis degraded", "stage", oc.Stage(), "error", cause)

	result := model.DegradedResult(oc.RequestID, oc.Subject, "analysis degraded: "+cause.Error())
	result.Triage = oc.Triage()
	return result
}

// enter advances the run context and opens a span for the stage
func (p *Pipeline) enter(ctx context.Context, oc *runctx.OrchestratorContext, stage runctx.Stage) (context.Context, trace.Span, error) {
	if err := oc.Advance(stage); err != nil {
		return ctx, nil, err
	}
	ctx, span := tracer.Start(ctx, "pipeline."+string(stage))
	return ctx, span, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (p *Pipeline) run(ctx context.Context, oc *runctx.OrchestratorContext, opts Options) (*model.AnalysisResult, error) {
	profile := oc.Subject

	// 1. Triage
	stageCtx, span, err := p.enter(ctx, oc, runctx.StageTriaging)
	if err != nil {
		return nil, err
	}
	tr := p.classifier.Classify(stageCtx, profile)
	strategy := tr.Strategy
	if opts.Enhanced {
		strategy = strategy.Upgrade()
	}
	tr.Strategy = strategy
	oc.SetTriage(tr)
	span.SetAttributes(
		attribute.String("riskprobe.risk_level", string(tr.RiskLevel)),
		attribute.String("riskprobe.strategy", string(strategy.Name)),
	)
	endSpan(span, nil)
	oc.Logger.Info("triage complete", "risk_level", tr.RiskLevel, "strategy", strategy.Name, "method", tr.Method)

	// 2. Collect evidence
	stageCtx, span, err = p.enter(ctx, oc, runctx.StageCollecting)
	if err != nil {
		return nil, err
	}
	focus := append(append([]string{}, tr.ScrapingPriority...), tr.InvestigationFocus...)
	queries := p.generator.Generate(profile, tr.RiskLevel, focus...)
	oc.Logger.Debug("planned queries", "queries", query.Texts(queries), "max_sources", strategy.MaxSources)
	coll, err := p.collector.Collect(stageCtx, profile, queries, strategy)
	endSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("collect evidence: %w", err)
	}
	if coll.DeadlineExceeded {
		oc.Warn(fmt.Sprintf("collection deadline of %s reached after %d queries", strategy.Timeout, coll.QueriesIssued))
	}
	if coll.SourcesUnavailable > 0 {
		oc.Warn(fmt.Sprintf("%d evidence queries failed and were skipped", coll.SourcesUnavailable))
	}

	// 3. Validate and normalize
	_, span, err = p.enter(ctx, oc, runctx.StageValidating)
	if err != nil {
		return nil, err
	}
	evidence := p.normalizer.Normalize(profile, coll.Batches)
	oc.AddEvidence(evidence.Atoms...)
	oc.AddIssues(evidence.Issues...)
	for _, w := range evidence.Warnings {
		oc.Warn(w)
	}
	span.SetAttributes(attribute.Int("riskprobe.atoms", len(evidence.Atoms)))
	endSpan(span, nil)

	// 4. Score
	_, span, err = p.enter(ctx, oc, runctx.StageScoring)
	if err != nil {
		return nil, err
	}
	atoms := oc.Evidence()
	assessment := p.scorer.Calculate(profile, atoms)

	summary := coll.Summary()

	result := &model.AnalysisResult{
		RequestID:  oc.RequestID,
		Subject:    profile,
		Triage:     oc.Triage(),
		Collection: summary,
		Issues:     oc.Issues(),
		AnalyzedAt: time.Now().UTC(),
	}
	assessment.Apply(result)
	if opts.Enhanced {
		result.Evidence = atoms
	}
	span.SetAttributes(attribute.Int("riskprobe.fraud_score", result.FraudScore))
	endSpan(span, nil)

	// 5. Narrate (after scoring, never affects the score)
	narrCtx, span, err := p.enter(ctx, oc, runctx.StageNarrating)
	if err != nil {
		return nil, err
	}
	if p.narrator != nil {
		span.SetAttributes(attribute.String("riskprobe.narrative_provider", p.narrator.ProviderName()))
		result.Narrative = p.narrator.Explain(narrCtx, result, atoms)
	}
	endSpan(span, nil)

	// 6. Done
	if err := oc.Advance(runctx.StageDone); err != nil {
		return nil, err
	}
	result.Warnings = oc.Warnings()

	oc.Logger.Info("analysis complete",
		"fraud_score", result.FraudScore,
		"risk_level", result.RiskLevel,
		"confidence", result.Confidence,
		"evidence_quality", result.EvidenceQuality,
	)
	return result, nil
}

// IsInputError reports whether err was caused by an invalid subject profile
func IsInputError(err error) bool {
	var ie *model.InputError
	return errors.As(err, &ie)
}
