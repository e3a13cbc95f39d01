// Package resilience retries calls to flaky upstream map services with
// exponential backoff and jitter.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retry behaviour.
type Policy struct {
	// Attempts is the total number of tries including the first. Default: 3.
	Attempts int
	// Backoff is the delay before the first retry. Default: 1s.
	Backoff time.Duration
	// MaxBackoff caps the delay. Default: 30s.
	MaxBackoff time.Duration
	// Multiplier grows the delay after each retry. Default: 2.
	Multiplier float64
	// Jitter is the +/- fraction of random spread on each delay. Default: 0.25.
	Jitter float64
	// Retryable overrides IsTransient.
	Retryable func(error) bool
	// Observe is called before each retry sleep.
	Observe func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy suits public Overpass endpoints, which throttle aggressively.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		Backoff:    time.Second,
		MaxBackoff: 30 * time.Second,
		Multiplier: 2,
		Jitter:     0.25,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.Backoff <= 0 {
		p.Backoff = d.Backoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	if p.Multiplier <= 0 {
		p.Multiplier = d.Multiplier
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// attempts run out or ctx is done. The last error is returned.
func Retry[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()

	var zero T
	var err error
	for attempt := 1; ; attempt++ {
		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !p.Retryable(err) || attempt >= p.Attempts {
			return zero, err
		}

		delay := p.delay(attempt)
		if p.Observe != nil {
			p.Observe(attempt, err, delay)
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, err
		case <-t.C:
		}
	}
}

// delay returns the sleep before retry number attempt (1-based).
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.Backoff) * math.Pow(p.Multiplier, float64(attempt-1))
	d = math.Min(d, float64(p.MaxBackoff))
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	return time.Duration(math.Max(0, d))
}

// LogRetries returns an Observe callback that logs at Warn.
func LogRetries(service string) func(int, error, time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		zap.L().Warn("retrying upstream call",
			zap.String("service", service),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}
}
