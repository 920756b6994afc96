package common

import (
	"sync"
	"time"
)

// RateLimiter ограничивает число команд на subject в скользящем окне.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	events map[string][]time.Time
}

// NewRateLimiter создает limiter; limit <= 0 означает одну команду в окне.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		events: make(map[string][]time.Time),
	}
}

// Allow регистрирует событие и сообщает, укладывается ли оно в лимит.
func (l *RateLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.recent(key, now)
	if len(kept) >= l.limit {
		return false
	}
	l.events[key] = append(kept, now)
	return true
}

// Sweep удаляет ключи без событий в текущем окне.
func (l *RateLimiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key := range l.events {
		if len(l.recent(key, now)) == 0 {
			delete(l.events, key)
			removed++
		}
	}
	return removed
}

// recent отбрасывает устаревшие события ключа; вызывается под mu.
func (l *RateLimiter) recent(key string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	items := l.events[key]
	kept := items[:0]
	for _, ts := range items {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.events[key] = kept
	return kept
}
