// Package server builds the per-session token bucket that protects the relay
// from chatty clients.
package server

import (
	"time"

	"golang.org/x/time/rate"
)

// newSessionLimiter returns a bucket holding cfg.Burst tokens that refills
// completely every cfg.RefillInterval. It returns nil when rate limiting is
// disabled.
func newSessionLimiter(cfg RateLimitConfig) *rate.Limiter {
	if cfg.Burst <= 0 {
		return nil
	}
	interval := cfg.RefillInterval
	if interval <= 0 {
		interval = defaultRefillInterval
	}
	return rate.NewLimiter(rate.Every(interval/time.Duration(cfg.Burst)), cfg.Burst)
}
