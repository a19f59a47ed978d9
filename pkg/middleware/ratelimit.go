package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/ratelimit"
)

// RateLimit rejects requests with 429 once key(r) has used its budget.
// Requests for which key returns "" pass through.
func RateLimit(limiter *ratelimit.Limiter, key func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" || limiter.Allow(k) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(limiter.RetryAfter().Seconds()))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded"}`))
		})
	}
}
