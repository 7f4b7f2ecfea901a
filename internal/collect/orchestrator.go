package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/riskprobe/internal/connector"
	"github.com/ppiankov/riskprobe/internal/extract"
	"github.com/ppiankov/riskprobe/internal/metrics"
	"github.com/ppiankov/riskprobe/internal/model"
	"github.com/ppiankov/riskprobe/internal/query"
	"github.com/ppiankov/riskprobe/internal/runctx"
	"github.com/ppiankov/riskprobe/internal/validate"
)

// Conclusive-evidence thresholds
const (
	FraudHitThreshold      = 3
	LegitimacyHitThreshold = 5

	// FallbackTrigger is the maximum number of collected results that still triggers the fallback
	FallbackTrigger = 2

	maxFallbackChecks = 2
)

// Termination reasons
const (
	ReasonRegulatorWarning = "regulator_warning"
	ReasonFraudSignals     = "fraud_signals"
	ReasonLegitimacy       = "legitimacy_signals"
)

// Config configures the orchestrator
type Config struct {
	InterQueryDelay   time.Duration
	Parallel          bool
	FallbackDisabled  bool
	MaxFallbackChecks int
}

// ConfigFromModel builds the orchestrator config from application config
func ConfigFromModel(cfg model.Config) Config {
	return Config{
		InterQueryDelay:   cfg.Collection.InterQueryDelay,
		Parallel:          cfg.Collection.Parallel,
		FallbackDisabled:  cfg.Source.Fallback.Disabled,
		MaxFallbackChecks: cfg.Source.Fallback.MaxChecks,
	}
}

// Outcome is what happened to one query
type Outcome struct {
	Query       string                `json:"query"`
	Category    query.Category        `json:"category"`
	Source      string                `json:"source"`
	Results     int                   `json:"results"`
	Signals     extract.SourceSignals `json:"signals"`
	Cached      bool                  `json:"cached"`
	Unavailable bool                  `json:"unavailable"`
	Error       string                `json:"error,omitempty"`
	Duration    time.Duration         `json:"duration"`
}

// Collection is the raw evidence gathered for one request
type Collection struct {
	Batches            []validate.SourceBatch
	Outcomes           []Outcome
	Signals            extract.SourceSignals // Cumulative across completed sources
	QueriesIssued      int
	SourcesUsed        int
	SourcesUnavailable int
	ResultsCollected   int
	EarlyTerminated    bool
	TerminationReason  string
	FallbackUsed       bool
	DeadlineExceeded   bool
}

// Summary converts the collection to its reported form
func (c *Collection) Summary() *model.CollectionSummary {
	queries := make([]string, len(c.Outcomes))
	for i, o := range c.Outcomes {
		queries[i] = o.Query
	}
	return &model.CollectionSummary{
		QueriesIssued:      c.QueriesIssued,
		SourcesUsed:        c.SourcesUsed,
		SourcesUnavailable: c.SourcesUnavailable,
		ResultsCollected:   c.ResultsCollected,
		EarlyTerminated:    c.EarlyTerminated,
		TerminationReason:  c.TerminationReason,
		FallbackUsed:       c.FallbackUsed,
		DeadlineExceeded:   c.DeadlineExceeded,
		Queries:            queries,
	}
}

// Conclusive evaluates the early-termination predicate over cumulative counts.
// The legitimacy branch only applies once results reach threshold.
func Conclusive(s extract.SourceSignals, results, threshold int) (string, bool) {
	switch {
	case s.RegulatorWarning:
		return ReasonRegulatorWarning, true
	case s.FraudHits >= FraudHitThreshold:
		return ReasonFraudSignals, true
	case s.LegitimacyHits >= LegitimacyHitThreshold && results >= threshold:
		return ReasonLegitimacy, true
	}
	return "", false
}

// Orchestrator runs prioritized queries against the connectors under one deadline
type Orchestrator struct {
	primary  connector.Connector
	fallback connector.Connector
	config   Config
	metrics  *metrics.Metrics
	logger   *slog.Logger
	pause    func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates an orchestrator. fallback may be nil.
func NewOrchestrator(primary, fallback connector.Connector, config Config, m *metrics.Metrics, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxFallbackChecks <= 0 || config.MaxFallbackChecks > maxFallbackChecks {
		config.MaxFallbackChecks = maxFallbackChecks
	}
	return &Orchestrator{
		primary:  primary,
		fallback: fallback,
		config:   config,
		metrics:  m,
		logger:   logger,
		pause:    sleepCtx,
	}
}

// Collect executes up to strategy.MaxSources queries in order.
// A quota-exhaustion error aborts collection and is returned wrapped; every
// other connector error marks that source unavailable and collection continues.
func (o *Orchestrator) Collect(ctx context.Context, subject model.SubjectProfile, queries []query.Query, strategy model.Strategy) (*Collection, error) {
	logger := runctx.Logger(ctx, o.logger)

	if strategy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, strategy.Timeout)
		defer cancel()
	}

	if len(queries) > strategy.MaxSources {
		queries = queries[:strategy.MaxSources]
	}

	coll := &Collection{}
	var err error
	if o.config.Parallel {
		err = o.collectParallel(ctx, subject, queries, strategy, coll, logger)
	} else {
		err = o.collectSequential(ctx, subject, queries, strategy, coll, logger)
	}
	if err != nil {
		return coll, err
	}

	// Thin evidence: run the canonical checks through the fallback
	if coll.ResultsCollected <= FallbackTrigger && o.fallback != nil && !o.config.FallbackDisabled {
		if err := o.runFallback(ctx, subject, strategy, coll, logger); err != nil {
			return coll, err
		}
	}

	logger.Info("collection complete",
		"queries", coll.QueriesIssued,
		"sources_used", coll.SourcesUsed,
		"sources_unavailable", coll.SourcesUnavailable,
		"results", coll.ResultsCollected,
		"early_terminated", coll.EarlyTerminated,
		"fallback", coll.FallbackUsed,
	)
	return coll, nil
}

func (o *Orchestrator) collectSequential(ctx context.Context, subject model.SubjectProfile, queries []query.Query, strategy model.Strategy, coll *Collection, logger *slog.Logger) error {
	for i, q := range queries {
		if i > 0 && o.config.InterQueryDelay > 0 {
			if err := o.pause(ctx, o.config.InterQueryDelay); err != nil {
				coll.DeadlineExceeded = true
				logger.Warn("collection deadline reached", "completed", coll.QueriesIssued, "planned", len(queries))
				return nil
			}
		}
		if ctx.Err() != nil {
			coll.DeadlineExceeded = true
			logger.Warn("collection deadline reached", "completed", coll.QueriesIssued, "planned", len(queries))
			return nil
		}

		start := time.Now()
		resp, err := o.primary.Search(ctx, q.Text, searchOptions(subject, strategy))
		if abort := o.record(ctx, coll, o.primary.ID(), q, resp, err, time.Since(start), logger); abort != nil {
			return abort
		}

		if strategy.EarlyTermination {
			if reason, ok := Conclusive(coll.Signals, coll.ResultsCollected, strategy.TerminationThreshold); ok {
				o.terminate(coll, reason, i, len(queries), logger)
				return nil
			}
		}
	}
	return nil
}

// collectParallel issues every query at once under the shared deadline, then
// evaluates the results in query order. Quota exhaustion or a connector panic
// cancels the rest and is returned.
func (o *Orchestrator) collectParallel(ctx context.Context, subject model.SubjectProfile, queries []query.Query, strategy model.Strategy, coll *Collection, logger *slog.Logger) error {
	type answer struct {
		resp     *connector.SearchResponse
		err      error
		duration time.Duration
	}
	answers := make([]answer, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, strategy.MaxSources))
	for i, q := range queries {
		i, q := i, q
		g.Go(func() (gerr error) {
			// A panicking connector cancels the rest and surfaces as an ordinary failure
			defer func() {
				if r := recover(); r != nil {
					gerr = fmt.Errorf("query %q panicked: %v", q.Text, r)
				}
			}()

			start := time.Now()
			resp, err := o.primary.Search(gctx, q.Text, searchOptions(subject, strategy))
			answers[i] = answer{resp: resp, err: err, duration: time.Since(start)}
			if connector.IsQuotaExhausted(err) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		coll.QueriesIssued = len(queries)
		return fmt.Errorf("collect: %w", err)
	}

	for i, q := range queries {
		a := answers[i]
		if abort := o.record(ctx, coll, o.primary.ID(), q, a.resp, a.err, a.duration, logger); abort != nil {
			return abort
		}
		if strategy.EarlyTermination && !coll.EarlyTerminated {
			if reason, ok := Conclusive(coll.Signals, coll.ResultsCollected, strategy.TerminationThreshold); ok {
				// Already issued; report the point where the predicate held
				o.terminate(coll, reason, i, len(queries), logger)
			}
		}
	}
	return nil
}

func (o *Orchestrator) runFallback(ctx context.Context, subject model.SubjectProfile, strategy model.Strategy, coll *Collection, logger *slog.Logger) error {
	checks := query.FallbackQueries(subject.Name)
	if len(checks) > o.config.MaxFallbackChecks {
		checks = checks[:o.config.MaxFallbackChecks]
	}

	logger.Info("thin evidence, invoking fallback source", "results", coll.ResultsCollected, "checks", len(checks))
	coll.FallbackUsed = true
	o.metrics.IncrementFallback()

	for i, q := range checks {
		if i > 0 && o.config.InterQueryDelay > 0 {
			if err := o.pause(ctx, o.config.InterQueryDelay); err != nil {
				coll.DeadlineExceeded = true
				return nil
			}
		}
		if ctx.Err() != nil {
			coll.DeadlineExceeded = true
			return nil
		}

		start := time.Now()
		resp, err := o.fallback.Search(ctx, q.Text, searchOptions(subject, strategy))
		if abort := o.record(ctx, coll, o.fallback.ID(), q, resp, err, time.Since(start), logger); abort != nil {
			return abort
		}
	}
	return nil
}

// record folds one query answer into coll. It returns an error only for quota exhaustion.
func (o *Orchestrator) record(ctx context.Context, coll *Collection, source string, q query.Query, resp *connector.SearchResponse, err error, d time.Duration, logger *slog.Logger) error {
	coll.QueriesIssued++
	outcome := Outcome{Query: q.Text, Category: q.Category, Source: source, Duration: d}

	if err != nil {
		outcome.Unavailable = true
		outcome.Error = err.Error()
		coll.Outcomes = append(coll.Outcomes, outcome)
		coll.SourcesUnavailable++

		if connector.IsQuotaExhausted(err) {
			logger.Error("source quota exhausted, aborting", "source", source, "query", q.Text)
			return fmt.Errorf("collect %q: %w", q.Text, err)
		}
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			coll.DeadlineExceeded = true
		}
		logger.Warn("source unavailable", "source", source, "query", q.Text, "category", connector.GetCategory(err), "error", err)
		return nil
	}

	if resp == nil {
		resp = &connector.SearchResponse{}
	}
	texts := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		texts[i] = r.Text()
	}
	signals := extract.SignalsFor(texts...)

	outcome.Results = len(resp.Results)
	outcome.Signals = signals
	outcome.Cached = resp.Cached
	coll.Outcomes = append(coll.Outcomes, outcome)

	coll.SourcesUsed++
	coll.ResultsCollected += len(resp.Results)
	coll.Signals.Add(signals)
	coll.Batches = append(coll.Batches, validate.SourceBatch{
		Source:     source,
		Query:      q.Text,
		Category:   string(q.Category),
		Results:    resp.Results,
		ObservedAt: fetchedAt(resp),
	})

	logger.Debug("source answered",
		"source", source,
		"query", q.Text,
		"results", len(resp.Results),
		"fraud_hits", signals.FraudHits,
		"legitimacy_hits", signals.LegitimacyHits,
		"cached", resp.Cached,
	)
	return nil
}

func (o *Orchestrator) terminate(coll *Collection, reason string, index, planned int, logger *slog.Logger) {
	coll.EarlyTerminated = true
	coll.TerminationReason = reason
	o.metrics.IncrementEarlyTermination(reason)
	logger.Info("conclusive evidence, stopping collection",
		"reason", reason,
		"after_query", index+1,
		"planned", planned,
		"fraud_hits", coll.Signals.FraudHits,
		"legitimacy_hits", coll.Signals.LegitimacyHits,
	)
}

func searchOptions(subject model.SubjectProfile, strategy model.Strategy) connector.SearchOptions {
	return connector.SearchOptions{MaxResults: strategy.MaxResultsPerSource, Region: subject.Region}
}

func fetchedAt(resp *connector.SearchResponse) time.Time {
	if resp.FetchedAt.IsZero() {
		return time.Now().UTC()
	}
	return resp.FetchedAt
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
