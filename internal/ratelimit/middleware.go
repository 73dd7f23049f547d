package ratelimit

import (
	"net/http"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/metrics"
)

// Middleware rejects requests over the per-IP budget with 429. Only paths
// under /api/ are limited. m may be nil.
func Middleware(l *Limiter, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}
			ip := ClientIP(r)
			if !l.Allow(ip) {
				if m != nil {
					m.RateLimitedTotal.Inc()
				}
				logger.FromContext(r.Context()).Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(apperrors.HTTPStatusCode(apperrors.ErrRateLimited))
				w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
