// Package ratelimit bounds how fast each client can hit the mutating
// endpoints, which in turn bounds how fast the bot hammers the target site.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter manages per-client token buckets.
type Limiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

// NewLimiter creates a limiter allowing perMinute requests per client key
// with the given burst.
func NewLimiter(perMinute, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
	}
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = limiter
	}
	return limiter
}

// Allow reports whether the client may proceed.
func (l *Limiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// Tokens returns the client's remaining burst capacity.
func (l *Limiter) Tokens(key string) float64 {
	return l.get(key).Tokens()
}
