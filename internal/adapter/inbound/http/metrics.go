package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the dev backend's Prometheus metrics.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	SignInsTotal     *prometheus.CounterVec
	SessionsRevoked  prometheus.Counter
	EventDropsTotal  prometheus.CounterFunc
	RateLimitKeys    prometheus.GaugeFunc
	ThrottledSignIns *prometheus.CounterVec
}

// MetricsSources supplies values read at scrape time. Nil funcs read as 0.
type MetricsSources struct {
	EventDrops    func() int64
	RateLimitKeys func() int
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer, src MetricsSources) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "yazcar",
				Name:      "requests_total",
				Help:      "Total number of dev backend requests",
			},
			[]string{"route", "status"}, // status=ok/error
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "yazcar",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		SignInsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "yazcar",
				Name:      "sign_ins_total",
				Help:      "Sign-in attempts by grant and outcome",
			},
			[]string{"grant", "outcome"}, // outcome=ok/invalid/throttled/error
		),
		SessionsRevoked: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "yazcar",
				Name:      "sessions_revoked_total",
				Help:      "Sessions ended by sign-out",
			},
		),
		ThrottledSignIns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "yazcar",
				Name:      "sign_in_throttled_total",
				Help:      "Sign-in attempts refused by the rate limiter",
			},
			[]string{"key_type"}, // ip/email
		),
		EventDropsTotal: factory.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: "yazcar",
				Name:      "auth_event_drops_total",
				Help:      "Auth events dropped due to backpressure",
			},
			func() float64 {
				if src.EventDrops == nil {
					return 0
				}
				return float64(src.EventDrops())
			},
		),
		RateLimitKeys: factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "yazcar",
				Name:      "rate_limit_keys",
				Help:      "Number of tracked rate limit keys",
			},
			func() float64 {
				if src.RateLimitKeys == nil {
					return 0
				}
				return float64(src.RateLimitKeys())
			},
		),
	}
}
