package api

import (
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"aucbid/internal/ratelimit"
)

// Activity tracks the last time any request was observed; the idle
// watchdog in main reads it to decide when to shut the service down.
type Activity struct {
	last atomic.Int64
}

// NewActivity returns a tracker primed with the current time.
func NewActivity() *Activity {
	a := &Activity{}
	a.Touch()
	return a
}

// Touch records a request.
func (a *Activity) Touch() {
	a.last.Store(time.Now().Unix())
}

// IdleSince returns how long the service has gone without a request.
func (a *Activity) IdleSince() time.Duration {
	return time.Since(time.Unix(a.last.Load(), 0))
}

// ActivityMiddleware stamps the tracker on every request.
func ActivityMiddleware(a *Activity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a.Touch()
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware enforces the per-client token bucket on the routes
// it wraps.
func RateLimitMiddleware(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientIP(r)) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the caller's address, honoring X-Forwarded-For when a
// proxy sits in front.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
