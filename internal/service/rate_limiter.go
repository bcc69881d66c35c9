package service

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements per-client submission rate limiting
type RateLimiter struct {
	mu sync.Mutex

	maxSubmissionsPerMinute int
	submissionWindows       map[string]*submissionWindow
}

type submissionWindow struct {
	count     int
	windowEnd time.Time
}

// NewRateLimiter creates a new rate limiter. A limit of zero or less disables it.
func NewRateLimiter(maxSubmissionsPerMinute int) *RateLimiter {
	return &RateLimiter{
		maxSubmissionsPerMinute: maxSubmissionsPerMinute,
		submissionWindows:       make(map[string]*submissionWindow),
	}
}

// CheckSubmissionRate checks if a client can submit more events
func (rl *RateLimiter) CheckSubmissionRate(ctx context.Context, clientID string) error {
	if rl.maxSubmissionsPerMinute <= 0 {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	window, exists := rl.submissionWindows[clientID]

	if !exists || now.After(window.windowEnd) {
		rl.submissionWindows[clientID] = &submissionWindow{
			count:     1,
			windowEnd: now.Add(1 * time.Minute),
		}
		rl.pruneLocked(now)
		return nil
	}

	if window.count >= rl.maxSubmissionsPerMinute {
		return ErrRateLimitExceeded
	}

	window.count++
	return nil
}

// pruneLocked drops expired windows so idle clients do not accumulate
func (rl *RateLimiter) pruneLocked(now time.Time) {
	for id, w := range rl.submissionWindows {
		if now.After(w.windowEnd) {
			delete(rl.submissionWindows, id)
		}
	}
}
