package connector

import (
	"context"
	"log/slog"
	"time"

	"github.com/ppiankov/riskprobe/internal/metrics"
	"github.com/ppiankov/riskprobe/internal/worker"
)

// retrySleepFunc waits between retries (injectable for tests)
var retrySleepFunc = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

const maxBackoff = 8 * time.Second

// retryPolicy bounds retries of transient failures
type retryPolicy struct {
	MaxRetries  int
	BaseBackoff time.Duration
}

// backoff returns the exponential delay before retry attempt (0-based)
func (p retryPolicy) backoff(attempt int) time.Duration {
	base := p.BaseBackoff
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	d := base << uint(attempt)
	if d > maxBackoff || d <= 0 {
		d = maxBackoff
	}
	return d
}

// callRunner applies rate limiting, per-call timeouts, retries, stats and metrics around one source call
type callRunner struct {
	sourceID    string
	policy      retryPolicy
	callTimeout time.Duration
	limiter     *worker.Limiter
	stats       *Stats
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// run executes call, retrying only transient errors. Quota errors return immediately.
func (r *callRunner) run(ctx context.Context, query string, call func(ctx context.Context) (*SearchResponse, error)) (*SearchResponse, error) {
	start := time.Now()
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx, r.sourceID); err != nil {
				waitErr := NewError(ErrorTransient, r.sourceID, "rate limiter wait aborted", err)
				waitErr.Retryable = false
				lastErr = waitErr
				break
			}
		}

		callCtx := ctx
		cancel := func() {}
		if r.callTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, r.callTimeout)
		}
		resp, err := call(callCtx)
		cancel()

		if err == nil {
			r.stats.recordSuccess()
			r.metrics.ObserveSourceQuery(r.sourceID, "ok", start)
			return resp, nil
		}
		lastErr = err

		if IsQuotaExhausted(err) || !IsRetryable(err) || ctx.Err() != nil {
			break
		}
		if attempt == r.policy.MaxRetries {
			break
		}

		delay := r.policy.backoff(attempt)
		r.stats.recordRetry()
		r.logger.Warn("retrying source call",
			"source", r.sourceID,
			"query", query,
			"attempt", attempt+1,
			"backoff", delay,
			"error", err,
		)
		if serr := retrySleepFunc(ctx, delay); serr != nil {
			break
		}
	}

	if lastErr == nil {
		lastErr = NewError(ErrorInternal, r.sourceID, "no attempt made", nil)
	}

	category := GetCategory(lastErr)
	r.stats.recordError(lastErr, category == ErrorQuotaExhausted)
	r.metrics.ObserveSourceQuery(r.sourceID, string(category), start)
	return nil, lastErr
}
