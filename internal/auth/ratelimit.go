package auth

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type window struct {
	count int
	reset time.Time
}

// RateLimiter counts attempts per key in fixed windows. Keys are held in a
// bounded LRU whose entries expire with their window, so idle clients do
// not accumulate.
type RateLimiter struct {
	mu      sync.Mutex
	max     int
	period  time.Duration
	windows *expirable.LRU[string, *window]
	nowFunc func() time.Time
}

func NewRateLimiter(max int, period time.Duration, capacity int) *RateLimiter {
	return &RateLimiter{
		max:     max,
		period:  period,
		windows: expirable.NewLRU[string, *window](capacity, nil, period),
		nowFunc: time.Now,
	}
}

// Allow records an attempt for key. When the limit is already reached it
// returns false and the time until the window resets.
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	w, ok := l.windows.Get(key)
	if !ok || !now.Before(w.reset) {
		l.windows.Add(key, &window{count: 1, reset: now.Add(l.period)})
		return true, 0
	}
	if w.count >= l.max {
		return false, w.reset.Sub(now)
	}
	w.count++
	return true, 0
}
