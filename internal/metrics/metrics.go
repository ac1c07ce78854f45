// Package metrics defines Prometheus instrumentation for the control plane.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the control-plane collectors.
type Metrics struct {
	HealthChecksTotal     *prometheus.CounterVec
	HealthCycleDuration   prometheus.Histogram
	RoutingDecisionsTotal *prometheus.CounterVec
	RoutingFailuresTotal  *prometheus.CounterVec
	FailoversTotal        *prometheus.CounterVec
	RecoveriesTotal       *prometheus.CounterVec
	ExecuteAttemptsTotal  prometheus.Counter
	ActiveFailovers       prometheus.Gauge
}

// New registers and returns the control-plane metrics. Pass a fresh registry
// in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HealthChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proxy_router_health_checks_total",
			Help: "Health classifications performed, by resulting status.",
		}, []string{"status"}),
		HealthCycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "proxy_router_health_cycle_duration_seconds",
			Help:    "Duration of full health assessment cycles.",
			Buckets: prometheus.DefBuckets,
		}),
		RoutingDecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proxy_router_routing_decisions_total",
			Help: "Successful routing decisions, by selected provider.",
		}, []string{"provider"}),
		RoutingFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proxy_router_routing_failures_total",
			Help: "Routing calls that could not select an account, by reason.",
		}, []string{"reason"}),
		FailoversTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proxy_router_failovers_total",
			Help: "Account failovers, by trigger type.",
		}, []string{"type"}),
		RecoveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proxy_router_recoveries_total",
			Help: "Account recoveries, by resolution method.",
		}, []string{"method"}),
		ExecuteAttemptsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "proxy_router_execute_attempts_total",
			Help: "Individual executor attempts made by executeWithFailover.",
		}),
		ActiveFailovers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "proxy_router_active_failovers",
			Help: "Accounts currently failed over out of the routing pool.",
		}),
	}
}
