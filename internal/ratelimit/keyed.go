package ratelimit

import (
	"sync"
	"time"
)

// Keyed hands out one SlidingWindow per key, typically a client address.
type Keyed struct {
	maxRequests int
	window      time.Duration
	opts        []Option
	now         Clock

	mu       sync.Mutex
	limiters map[string]*SlidingWindow
}

// NewKeyed creates a per-key limiter. opts are applied to every window it creates.
func NewKeyed(maxRequests int, window time.Duration, opts ...Option) *Keyed {
	k := &Keyed{
		maxRequests: maxRequests,
		window:      window,
		opts:        opts,
		now:         time.Now,
		limiters:    make(map[string]*SlidingWindow),
	}
	probe := &SlidingWindow{now: time.Now}
	for _, opt := range opts {
		opt(probe)
	}
	k.now = probe.now
	return k
}

// Allow records an attempt for key.
func (k *Keyed) Allow(key string) bool {
	return k.get(key).IsAllowed()
}

// RetryAfter returns the wait for key, or zero for an unseen key.
func (k *Keyed) RetryAfter(key string) time.Duration {
	k.mu.Lock()
	sw, ok := k.limiters[key]
	k.mu.Unlock()
	if !ok {
		return 0
	}
	return sw.RetryAfter()
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}

// Prune forgets keys that have been idle for longer than twice the window.
// It returns the number of keys removed.
func (k *Keyed) Prune() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	cutoff := k.now().Add(-2 * k.window)
	removed := 0
	for key, sw := range k.limiters {
		sw.mu.Lock()
		idle := sw.idleSince(cutoff) && !k.now().Before(sw.violations.BackoffUntil)
		sw.mu.Unlock()
		if idle {
			delete(k.limiters, key)
			removed++
		}
	}
	return removed
}

func (k *Keyed) get(key string) *SlidingWindow {
	k.mu.Lock()
	defer k.mu.Unlock()

	sw, ok := k.limiters[key]
	if !ok {
		sw = NewSlidingWindow(k.maxRequests, k.window, k.opts...)
		k.limiters[key] = sw
	}
	return sw
}
