// Package middleware holds the HTTP middleware shared by the grocery and
// analytics servers.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/metrics"
)

// routeLabels maps path prefixes to metric labels. Anything else is
// labelled "other" so stray URLs cannot grow the series count.
var routeLabels = []struct{ prefix, label string }{
	{"/grocery/cart-options/", "/grocery/cart-options/{id}"},
	{"/grocery/carts/", "/grocery/carts/{id}"},
	{"/grocery/cart-options", "/grocery/cart-options"},
	{"/grocery/custom-cart", "/grocery/custom-cart"},
	{"/recipes/generate", "/recipes/generate"},
	{"/api/v1/analytics/snapshots", "/api/v1/analytics/snapshots"},
	{"/api/v1/analytics", "/api/v1/analytics"},
	{"/health/", "/health"},
}

// Metrics counts and times every request by method, route and status.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			defer func() {
				m.HTTPRequestsInFlight.Dec()
				route := normalizePath(r.URL.Path)
				m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.code())).Inc()
				m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) code() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

func normalizePath(path string) string {
	for _, rl := range routeLabels {
		if path == rl.prefix || (strings.HasSuffix(rl.prefix, "/") && strings.HasPrefix(path, rl.prefix)) {
			return rl.label
		}
	}
	return "other"
}
