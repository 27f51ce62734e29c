package ratelimit

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces operations at least one interval apart, with optional
// extra jitter. The first Wait returns immediately. It is safe for
// concurrent use, so one Limiter can gate several workers sharing an
// upstream quota.
type Limiter struct {
	rl       *rate.Limiter
	interval time.Duration
	jitter   float64 // 0.0 to 1.0
}

// NewLimiter creates a limiter allowing one operation per interval.
// Jitter is clamped to [0, 1]. If interval is <= 0, the limiter does not block.
func NewLimiter(interval time.Duration, jitter float64) *Limiter {
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}
	if interval <= 0 {
		return &Limiter{jitter: jitter}
	}
	return &Limiter{
		rl:       rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
		jitter:   jitter,
	}
}

// PerSecond creates a limiter from a requests-per-second rate.
// If rps is <= 0, the limiter does not block.
func PerSecond(rps float64, jitter float64) *Limiter {
	if rps <= 0 {
		return NewLimiter(0, jitter)
	}
	return NewLimiter(time.Duration(float64(time.Second)/rps), jitter)
}

// Interval returns the minimum spacing between operations.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Wait blocks until the next operation may start or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.rl == nil {
		return ctx.Err()
	}
	if err := l.rl.Wait(ctx); err != nil {
		return err
	}
	if l.jitter == 0 {
		return nil
	}

	// Only positive jitter sleeps; the bucket already enforces the minimum.
	extra := time.Duration(float64(l.interval) * l.jitter * rand.Float64())
	if extra <= 0 {
		return nil
	}
	t := time.NewTimer(extra)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
