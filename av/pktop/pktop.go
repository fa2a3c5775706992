// Package pktop paces producers against the wall clock.
package pktop

import (
	"context"
	"time"
)

// NativeRateLimiter holds a producer back so that media time never runs
// ahead of wall time.
type NativeRateLimiter struct {
	mediaTimeStart time.Duration
	wallTimeStart  time.Time
}

func NewNativeRateLimiter() *NativeRateLimiter {
	return &NativeRateLimiter{
		wallTimeStart: time.Now(),
	}
}

// Wait sleeps until media time t is due, or ctx is done.
func (l *NativeRateLimiter) Wait(ctx context.Context, t time.Duration) error {
	diff := t - l.mediaTimeStart
	if diff <= 0 {
		return ctx.Err()
	}
	if wall := time.Since(l.wallTimeStart); wall < diff {
		timer := time.NewTimer(diff - wall)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	l.mediaTimeStart = t
	l.wallTimeStart = time.Now()
	return nil
}
