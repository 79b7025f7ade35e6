package http

import (
	"net/http"
	"time"
)

var knownRoutes = map[string]bool{
	"/auth/v1/user":   true,
	"/auth/v1/logout": true,
	"/rest/v1/users":  true,
	"/rest/v1/cars":   true,
}

// MetricsMiddleware wraps an HTTP handler to record Prometheus metrics.
// It records:
// - request_duration_seconds histogram (by route)
// - requests_total counter (by route and status)
func MetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" || r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			route := routeLabel(r)
			metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
			metrics.RequestsTotal.WithLabelValues(route, statusToLabel(wrapped.status)).Inc()
		})
	}
}

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// routeLabel bounds label cardinality to the known endpoints.
func routeLabel(r *http.Request) string {
	switch {
	case r.URL.Path == "/auth/v1/token":
		if gt := r.URL.Query().Get("grant_type"); gt == "password" || gt == "refresh_token" {
			return "token_" + gt
		}
		return "token"
	case knownRoutes[r.URL.Path]:
		return r.Method + " " + r.URL.Path
	default:
		return "other"
	}
}

// statusToLabel converts HTTP status code to label value
func statusToLabel(code int) string {
	if code >= 200 && code < 400 {
		return "ok"
	}
	return "error"
}
