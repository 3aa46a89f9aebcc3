package retry

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"

	"describer/pkg/config"
	errs "describer/pkg/errors"
)

// BackoffStrategy yields the pause before the next attempt
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows the delay by Multiplier each attempt, capped at MaxDelay
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// JitterFactor spreads the delay by +/- that fraction (0.0 to 1.0)
	JitterFactor float64
}

// DefaultExponentialBackoff is used by the HTTP clients
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	return jitter(math.Min(delay, float64(eb.MaxDelay)), eb.JitterFactor)
}

// LinearBackoff adds Increment per attempt on top of BaseDelay
type LinearBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Increment    time.Duration
	JitterFactor float64
}

func (lb *LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(lb.BaseDelay + lb.Increment*time.Duration(attempt-1))
	return jitter(math.Min(delay, float64(lb.MaxDelay)), lb.JitterFactor)
}

// ConstantBackoff always waits Delay
type ConstantBackoff struct {
	Delay time.Duration
}

func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// NewBackoff builds the pause between controller attempts. delay is the first
// pause; linear adds delay per attempt and exponential doubles it, both capped
// at maxDelay. A non-positive delay means no pause.
func NewBackoff(kind string, delay, maxDelay time.Duration) BackoffStrategy {
	if delay <= 0 {
		return nil
	}
	if maxDelay < delay {
		maxDelay = delay
	}

	switch strings.ToLower(kind) {
	case config.BackoffLinear:
		return &LinearBackoff{BaseDelay: delay, Increment: delay, MaxDelay: maxDelay}
	case config.BackoffExponential:
		return &ExponentialBackoff{BaseDelay: delay, MaxDelay: maxDelay, Multiplier: 2}
	default:
		return &ConstantBackoff{Delay: delay}
	}
}

func jitter(delay, factor float64) time.Duration {
	if factor > 0 {
		spread := delay * factor
		delay += rand.Float64()*2*spread - spread
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Wait sleeps for delay or until ctx is done
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrorTypeBackoff picks a strategy per remote error type. Rate limits back
// off much harder than network blips.
type ErrorTypeBackoff struct {
	Network     BackoffStrategy
	RateLimit   BackoffStrategy
	ServerError BackoffStrategy
	Default     BackoffStrategy
}

// NewErrorTypeBackoff returns the strategies used by the API clients
func NewErrorTypeBackoff() *ErrorTypeBackoff {
	return &ErrorTypeBackoff{
		Network: &ExponentialBackoff{
			BaseDelay:    1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.2,
		},
		RateLimit: &ExponentialBackoff{
			BaseDelay:    30 * time.Second,
			MaxDelay:     5 * time.Minute,
			Multiplier:   1.5,
			JitterFactor: 0.3,
		},
		ServerError: &ExponentialBackoff{
			BaseDelay:    5 * time.Second,
			MaxDelay:     60 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		Default: DefaultExponentialBackoff(),
	}
}

// For returns the strategy matching errType
func (etb *ErrorTypeBackoff) For(errType errs.ErrorType) BackoffStrategy {
	switch errType {
	case errs.ErrorTypeNetwork:
		return etb.Network
	case errs.ErrorTypeRateLimit:
		return etb.RateLimit
	case errs.ErrorTypeServerError:
		return etb.ServerError
	default:
		return etb.Default
	}
}
