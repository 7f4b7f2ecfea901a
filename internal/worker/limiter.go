package worker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter implements per-source token-bucket rate limiting.
// One Limiter is shared by every request in the process.
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a limiter allowing one call per interval with the given burst
func NewLimiter(interval time.Duration, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  limitFor(interval),
		defaultBurst: burst,
	}
}

// Wait blocks until the source may be called or ctx is done
func (l *Limiter) Wait(ctx context.Context, source string) error {
	return l.getLimiter(source).Wait(ctx)
}

// getLimiter returns the rate limiter for a source
func (l *Limiter) getLimiter(source string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[source]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[source]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[source] = limiter

	return limiter
}

// SetSourceRate sets a custom interval for a specific source
func (l *Limiter) SetSourceRate(source string, interval time.Duration, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}

	l.limiters[source] = rate.NewLimiter(limitFor(interval), burst)
}

func limitFor(interval time.Duration) rate.Limit {
	if interval <= 0 {
		return rate.Inf
	}
	return rate.Every(interval)
}
