package api

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/aircare/contract-engine/logger"
	"github.com/aircare/contract-engine/ratelimit"
)

// SubmitRateKey prefixes the limiter key of contract submissions.
const SubmitRateKey = "contract_submit"

// RateLimit rejects requests from a client IP that has used up its attempts.
// Every request that passes counts as an attempt. When the limiter store is
// unavailable the request is let through and the error logged.
func RateLimit(l *ratelimit.Limiter, action string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := action + ":" + clientIP(r)

			err := l.Take(r.Context(), key)
			var limited *ratelimit.LimitedError
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.As(err, &limited):
				seconds := int(math.Ceil(limited.RetryAfter.Seconds()))
				log.Infow("rate limited", "key", key, "retry_after_seconds", seconds)

				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
					Error:   fmt.Sprintf("Te veel pogingen. Probeer het opnieuw over %d seconden.", seconds),
					Code:    "rate_limited",
					Details: map[string]int{"retry_after_seconds": seconds},
				})
			default:
				log.Warnw("rate limiter unavailable, allowing request", "key", key, "error", err)
				next.ServeHTTP(w, r)
			}
		})
	}
}

// clientIP returns the request's remote IP without port. middleware.RealIP
// has already replaced RemoteAddr from X-Forwarded-For when present.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
