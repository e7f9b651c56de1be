package service

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements per-chat submission rate limiting
type RateLimiter struct {
	mu sync.Mutex

	maxSubmissionsPerMinute int
	submissionWindows       map[string]*submissionWindow
}

type submissionWindow struct {
	count     int
	windowEnd time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(maxSubmissionsPerMinute int) *RateLimiter {
	return &RateLimiter{
		maxSubmissionsPerMinute: maxSubmissionsPerMinute,
		submissionWindows:       make(map[string]*submissionWindow),
	}
}

// CheckSubmissionRate checks if a chat can submit more jobs
func (rl *RateLimiter) CheckSubmissionRate(ctx context.Context, chatID string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	window, exists := rl.submissionWindows[chatID]

	if !exists || now.After(window.windowEnd) {
		// New window or expired window
		rl.submissionWindows[chatID] = &submissionWindow{
			count:     1,
			windowEnd: now.Add(1 * time.Minute),
		}
		return nil
	}

	if window.count >= rl.maxSubmissionsPerMinute {
		return ErrRateLimitExceeded
	}

	window.count++
	return nil
}
