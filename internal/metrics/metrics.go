package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for source calls, the query cache and the pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	SourceQueries       *prometheus.CounterVec
	SourceDuration      *prometheus.HistogramVec
	CacheLookups        *prometheus.CounterVec
	Analyses            *prometheus.CounterVec
	AnalysisDuration    prometheus.Histogram
	EarlyTerminations   *prometheus.CounterVec
	FallbackInvocations prometheus.Counter
}

// New creates a Metrics instance registered on reg.
// Pass prometheus.NewRegistry() in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SourceQueries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riskprobe_source_queries_total",
			Help: "Total number of evidence source calls by outcome",
		}, []string{"source", "outcome"}),
		SourceDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "riskprobe_source_query_duration_seconds",
			Help:    "Duration of evidence source calls including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riskprobe_query_cache_lookups_total",
			Help: "Query cache lookups by result (hit, miss)",
		}, []string{"source", "result"}),
		Analyses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riskprobe_analyses_total",
			Help: "Pipeline runs by outcome (ok, degraded, quota_exhausted, invalid)",
		}, []string{"outcome"}),
		AnalysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskprobe_analysis_duration_seconds",
			Help:    "End-to-end duration of a pipeline run",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60, 90},
		}),
		EarlyTerminations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riskprobe_early_terminations_total",
			Help: "Collections stopped early by the conclusive-evidence predicate",
		}, []string{"reason"}),
		FallbackInvocations: factory.NewCounter(prometheus.CounterOpts{
			Name: "riskprobe_fallback_invocations_total",
			Help: "Times the fallback connector was used for canonical checks",
		}),
	}
}

// ObserveSourceQuery records one source call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSourceQuery(source, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.SourceQueries.WithLabelValues(source, outcome).Inc()
	m.SourceDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
}

// RecordCacheLookup records a cache hit or miss
func (m *Metrics) RecordCacheLookup(source string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(source, result).Inc()
}

// ObserveAnalysis records a pipeline run.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveAnalysis(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Analyses.WithLabelValues(outcome).Inc()
	m.AnalysisDuration.Observe(time.Since(start).Seconds())
}

// IncrementEarlyTermination records an early stop
func (m *Metrics) IncrementEarlyTermination(reason string) {
	if m == nil {
		return
	}
	m.EarlyTerminations.WithLabelValues(reason).Inc()
}

// IncrementFallback records a fallback connector invocation
func (m *Metrics) IncrementFallback() {
	if m == nil {
		return
	}
	m.FallbackInvocations.Inc()
}
