package connector

import (
	"sync"
	"time"
)

// dailyQuota counts calls per UTC day against a configured limit. A limit of 0 only counts.
type dailyQuota struct {
	mu    sync.Mutex
	limit int
	used  int
	day   string
	now   func() time.Time
}

func newDailyQuota(limit int) *dailyQuota {
	return &dailyQuota{limit: limit, now: time.Now}
}

// take reserves one call; false means the quota for today is used up
func (q *dailyQuota) take() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollover()
	if q.limit > 0 && q.used >= q.limit {
		return false
	}
	q.used++
	return true
}

// exhaust marks today's quota as used up after the upstream reported exhaustion
func (q *dailyQuota) exhaust() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollover()
	if q.limit > 0 {
		q.used = q.limit
	}
}

// usage returns calls used today and the limit
func (q *dailyQuota) usage() (int, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollover()
	return q.used, q.limit
}

func (q *dailyQuota) rollover() {
	today := q.now().UTC().Format("2006-01-02")
	if q.day != today {
		q.day = today
		q.used = 0
	}
}
