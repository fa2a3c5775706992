package pktop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterPaces(t *testing.T) {
	l := NewNativeRateLimiter()
	start := time.Now()
	for _, ts := range []time.Duration{10, 20, 20, 40} {
		assert.NoError(t, l.Wait(context.Background(), ts*time.Millisecond))
	}
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestRateLimiterCancel(t *testing.T) {
	l := NewNativeRateLimiter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Wait(ctx, time.Hour)
	assert.Equal(t, context.Canceled, err)
}
