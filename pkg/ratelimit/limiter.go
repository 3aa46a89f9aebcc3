package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"describer/pkg/config"
)

// Limiter gates outgoing API requests
type Limiter interface {
	// Allow reports whether a request may go out right now, consuming a slot if so
	Allow() bool
	// Wait blocks until a request may go out or ctx is done
	Wait(ctx context.Context) error
}

// TokenBucket is a smooth per-minute limiter with bursts
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket allows requestsPerMinute on average with bursts of burst
func NewTokenBucket(requestsPerMinute, burst int) *TokenBucket {
	if burst <= 0 {
		burst = 1
	}
	every := time.Minute / time.Duration(max(requestsPerMinute, 1))
	return &TokenBucket{limiter: rate.NewLimiter(rate.Every(every), burst)}
}

// FromConfig builds the limiter shared by the API clients of one run
func FromConfig(cfg config.RateLimitConfig) *TokenBucket {
	return NewTokenBucket(cfg.RequestsPerMinute, cfg.BurstSize)
}

func (tb *TokenBucket) Allow() bool { return tb.limiter.Allow() }

func (tb *TokenBucket) Wait(ctx context.Context) error { return tb.limiter.Wait(ctx) }

// SlidingWindow allows at most maxRequests in any windowSize period. It
// mirrors the 15 minute windows the social API enforces per endpoint.
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
	}
}

func (sw *SlidingWindow) Allow() bool {
	_, ok := sw.reserve(time.Now())
	return ok
}

// Wait sleeps until the oldest request leaves the window
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		wait, ok := sw.reserve(time.Now())
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve takes a slot if one is free, otherwise reports how long until one is
func (sw *SlidingWindow) reserve(now time.Time) (time.Duration, bool) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	cutoff := now.Add(-sw.windowSize)
	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}
	sw.requests = append(sw.requests[:0], sw.requests[i:]...)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return 0, true
	}

	wait := sw.windowSize - now.Sub(sw.requests[0])
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, false
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}
