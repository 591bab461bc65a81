package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestSessionLimiter_Burst_Then_Refill(t *testing.T) {
	req := require.New(t)
	now := time.Unix(1_700_000_000, 0)
	limiter := newSessionLimiter(RateLimitConfig{Burst: 3, RefillInterval: time.Second})
	req.NotNil(limiter)

	for range 3 {
		req.True(limiter.AllowN(now, 1))
	}
	req.False(limiter.AllowN(now, 1))

	// Half the interval refills one and a half tokens.
	now = now.Add(time.Second / 2)
	req.True(limiter.AllowN(now, 1))
	req.False(limiter.AllowN(now, 1))

	// Refill never exceeds the burst capacity.
	now = now.Add(time.Hour)
	for range 3 {
		req.True(limiter.AllowN(now, 1))
	}
	req.False(limiter.AllowN(now, 1))
}

func TestSessionLimiter_Clock_Going_Backwards_Adds_Nothing(t *testing.T) {
	req := require.New(t)
	now := time.Unix(1_700_000_000, 0)
	limiter := newSessionLimiter(RateLimitConfig{Burst: 1, RefillInterval: time.Second})

	req.True(limiter.AllowN(now, 1))
	req.False(limiter.AllowN(now.Add(-time.Minute), 1))
}

func TestNewSessionLimiter_Disabled_Without_Burst(t *testing.T) {
	req := require.New(t)
	req.Nil(newSessionLimiter(RateLimitConfig{}))
	req.Nil(newSessionLimiter(RateLimitConfig{Burst: -1, RefillInterval: time.Second}))
	req.NotNil(newSessionLimiter(RateLimitConfig{Burst: 2, RefillInterval: time.Second}))
}

func TestNewSessionLimiter_Rate_And_Burst(t *testing.T) {
	req := require.New(t)

	limiter := newSessionLimiter(RateLimitConfig{Burst: 4, RefillInterval: 2 * time.Second})
	req.Equal(4, limiter.Burst())
	req.InDelta(float64(2), float64(limiter.Limit()), 1e-9)

	// A zero interval falls back to one refill per second.
	limiter = newSessionLimiter(RateLimitConfig{Burst: 1})
	req.Equal(rate.Limit(1), limiter.Limit())
}
