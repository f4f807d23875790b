package httpapi

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/TheKrainBow/mnk/internal/metrics"
)

// rateLimit guards the routes that start a search. One token bucket is
// shared by every caller since the engine serialises searches anyway.
func rateLimit(limiter *rate.Limiter, route string, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				if m != nil {
					m.RateLimitedTotal.WithLabelValues(route).Inc()
				}
				writeError(w, errRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
