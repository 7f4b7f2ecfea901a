package connector

import (
	"sync"
	"time"
)

// StatsSnapshot is a point-in-time copy of connector statistics
type StatsSnapshot struct {
	Source         string    `json:"source"`
	Queries        int64     `json:"queries"`
	Successes      int64     `json:"successes"`
	Errors         int64     `json:"errors"`
	Retries        int64     `json:"retries"`
	QuotaErrors    int64     `json:"quota_errors"`
	CacheHits      int64     `json:"cache_hits"`
	CacheMisses    int64     `json:"cache_misses"`
	QuotaLimit     int       `json:"quota_limit,omitempty"`
	QuotaUsed      int       `json:"quota_used"`
	QuotaRemaining int       `json:"quota_remaining,omitempty"`
	Available      bool      `json:"available"`
	LastError      string    `json:"last_error,omitempty"`
	LastErrorAt    time.Time `json:"last_error_at,omitempty"`
}

// StatsReporter is implemented by connectors that expose statistics
type StatsReporter interface {
	Stats() StatsSnapshot
}

// Stats accumulates per-connector counters. Safe for concurrent use.
type Stats struct {
	mu   sync.Mutex
	snap StatsSnapshot
}

// NewStats creates counters for a source
func NewStats(source string) *Stats {
	return &Stats{snap: StatsSnapshot{Source: source, Available: true}}
}

func (s *Stats) recordSuccess() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Queries++
	s.snap.Successes++
	s.snap.Available = true
}

func (s *Stats) recordRetry() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Retries++
}

func (s *Stats) recordError(err error, quota bool) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Queries++
	s.snap.Errors++
	s.snap.LastError = err.Error()
	s.snap.LastErrorAt = time.Now().UTC()
	if quota {
		s.snap.QuotaErrors++
		s.snap.Available = false
	}
}

func (s *Stats) recordCache(hit bool) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if hit {
		s.snap.CacheHits++
	} else {
		s.snap.CacheMisses++
	}
}

// Snapshot returns a copy of the counters
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}
