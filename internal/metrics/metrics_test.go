package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveSourceQuery("searchapi", "ok", time.Now())
	m.ObserveSourceQuery("searchapi", "ok", time.Now())
	m.ObserveSourceQuery("searchapi", "quota_exhausted", time.Now())
	m.RecordCacheLookup("searchapi", true)
	m.RecordCacheLookup("searchapi", false)
	m.ObserveAnalysis("ok", time.Now())
	m.IncrementEarlyTermination("fraud_signals")
	m.IncrementFallback()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SourceQueries.WithLabelValues("searchapi", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceQueries.WithLabelValues("searchapi", "quota_exhausted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("searchapi", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("searchapi", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Analyses.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EarlyTerminations.WithLabelValues("fraud_signals")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FallbackInvocations))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveSourceQuery("searchapi", "ok", time.Now())
		m.RecordCacheLookup("searchapi", true)
		m.ObserveAnalysis("ok", time.Now())
		m.IncrementEarlyTermination("fraud_signals")
		m.IncrementFallback()
	})
}
