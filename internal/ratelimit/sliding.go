// Package ratelimit provides the sliding-window limiters used to throttle
// contact-form retries and per-client posts to the development relay.
package ratelimit

import (
	"sync"
	"time"
)

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// ViolationInfo tracks rate limit violations for exponential backoff.
type ViolationInfo struct {
	Count         int
	LastViolation time.Time
	BackoffUntil  time.Time
}

// SlidingWindow allows at most maxRequests in any window-long span. Repeated
// violations push the caller into an exponentially growing backoff.
type SlidingWindow struct {
	maxRequests int
	window      time.Duration
	now         Clock

	mu         sync.Mutex
	timestamps []time.Time
	violations ViolationInfo

	baseBackoff       time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
}

// Option configures a SlidingWindow.
type Option func(*SlidingWindow)

// WithClock replaces time.Now.
func WithClock(now Clock) Option {
	return func(sw *SlidingWindow) { sw.now = now }
}

// WithBackoff sets the base and maximum backoff applied after a violation.
// A zero base disables backoff entirely.
func WithBackoff(base, max time.Duration) Option {
	return func(sw *SlidingWindow) {
		sw.baseBackoff = base
		sw.maxBackoff = max
	}
}

// NewSlidingWindow creates a limiter allowing maxRequests per window.
func NewSlidingWindow(maxRequests int, window time.Duration, opts ...Option) *SlidingWindow {
	sw := &SlidingWindow{
		maxRequests:       maxRequests,
		window:            window,
		now:               time.Now,
		timestamps:        make([]time.Time, 0, maxRequests+1),
		baseBackoff:       time.Second,
		maxBackoff:        5 * time.Minute,
		backoffMultiplier: 2.0,
	}
	for _, opt := range opts {
		opt(sw)
	}
	return sw
}

// IsAllowed records an attempt and reports whether it fits in the window.
func (sw *SlidingWindow) IsAllowed() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()

	if now.Before(sw.violations.BackoffUntil) {
		sw.recordViolation(now)
		return false
	}

	sw.evict(now)

	if len(sw.timestamps) >= sw.maxRequests {
		sw.recordViolation(now)
		return false
	}

	sw.forgive(now)
	sw.timestamps = append(sw.timestamps, now)
	return true
}

// Count returns the number of attempts currently inside the window.
func (sw *SlidingWindow) Count() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.evict(sw.now())
	return len(sw.timestamps)
}

// RetryAfter returns how long until the caller may try again. It covers both
// the window and any active backoff.
func (sw *SlidingWindow) RetryAfter() time.Duration {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.evict(now)

	var wait time.Duration
	if len(sw.timestamps) >= sw.maxRequests && len(sw.timestamps) > 0 {
		wait = sw.timestamps[0].Add(sw.window).Sub(now)
	}
	if backoff := sw.violations.BackoffUntil.Sub(now); backoff > wait {
		wait = backoff
	}
	if wait < 0 {
		return 0
	}
	return wait
}

// Violations returns the current violation bookkeeping.
func (sw *SlidingWindow) Violations() ViolationInfo {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.violations
}

// InBackoff reports whether a backoff period is active.
func (sw *SlidingWindow) InBackoff() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.now().Before(sw.violations.BackoffUntil)
}

// Reset clears all attempts and violations.
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.timestamps = sw.timestamps[:0]
	sw.violations = ViolationInfo{}
}

// idleSince reports whether nothing has happened since cutoff. Caller holds mu.
func (sw *SlidingWindow) idleSince(cutoff time.Time) bool {
	if n := len(sw.timestamps); n > 0 && sw.timestamps[n-1].After(cutoff) {
		return false
	}
	return !sw.violations.LastViolation.After(cutoff)
}

// recordViolation must be called with mu held.
func (sw *SlidingWindow) recordViolation(now time.Time) {
	sw.violations.Count++
	sw.violations.LastViolation = now

	if sw.baseBackoff <= 0 {
		return
	}

	backoff := sw.baseBackoff
	for i := 1; i < sw.violations.Count; i++ {
		backoff = time.Duration(float64(backoff) * sw.backoffMultiplier)
		if backoff > sw.maxBackoff {
			backoff = sw.maxBackoff
			break
		}
	}
	sw.violations.BackoffUntil = now.Add(backoff)
}

// forgive clears violations once the caller has behaved for two windows.
// Must be called with mu held.
func (sw *SlidingWindow) forgive(now time.Time) {
	if sw.violations.Count > 0 && now.Sub(sw.violations.LastViolation) > 2*sw.window {
		sw.violations = ViolationInfo{}
	}
}

// evict drops timestamps that fell out of the window. Must be called with mu held.
func (sw *SlidingWindow) evict(now time.Time) {
	cutoff := now.Add(-sw.window)

	keep := 0
	for keep < len(sw.timestamps) && !sw.timestamps[keep].After(cutoff) {
		keep++
	}
	if keep > 0 {
		n := copy(sw.timestamps, sw.timestamps[keep:])
		sw.timestamps = sw.timestamps[:n]
	}
}
