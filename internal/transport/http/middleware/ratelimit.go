package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"

	"signagehub/internal/cache"
	"signagehub/internal/httputil"
	"signagehub/internal/logging"
)

// Limiter is satisfied by cache.RateLimiter.
type Limiter interface {
	Allow(ctx context.Context, key string) (cache.Decision, error)
	Limit() int
}

// RateLimit throttles callers by client IP within scope. A nil limiter disables
// the middleware and limiter errors let the request through.
func RateLimit(limiter Limiter, scope string, onLimited func(), logger logging.Logger) func(http.Handler) http.Handler {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":" + clientIP(r)
			decision, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.WithField("key", key).WithError(err).Warn("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if !decision.Allowed {
				secs := int(math.Ceil(decision.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				if onLimited != nil {
					onLimited()
				}
				httputil.WriteError(w, http.StatusTooManyRequests, httputil.ErrCodeRateLimited, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP uses RemoteAddr, which chi's RealIP middleware has already rewritten.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
