package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AuthzMetrics holds all Prometheus metrics for the customer service.
type AuthzMetrics struct {
	OperationsTotal *prometheus.CounterVec
	ResyncDuration  prometheus.Histogram
	ResyncFailures  *prometheus.CounterVec
	Tenants         prometheus.Gauge
}

// NewAuthzMetrics creates the metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default handler.
func NewAuthzMetrics(reg prometheus.Registerer) *AuthzMetrics {
	factory := promauto.With(reg)
	return &AuthzMetrics{
		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "customer_authz",
			Subsystem: "customer",
			Name:      "operations_total",
			Help:      "Total number of customer operations by outcome.",
		}, []string{"operation", "outcome"}), // outcome: ok or an error kind
		ResyncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "customer_authz",
			Subsystem: "sync",
			Name:      "resync_duration_seconds",
			Help:      "Time taken to rebuild and push the tenant mapping, lock wait included.",
			Buckets:   prometheus.DefBuckets,
		}),
		ResyncFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "customer_authz",
			Subsystem: "sync",
			Name:      "resync_failures_total",
			Help:      "Total number of failed resyncs by stage.",
		}, []string{"stage"}), // stage: lock, read, push
		Tenants: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "customer_authz",
			Subsystem: "sync",
			Name:      "tenants",
			Help:      "Number of tenants in the last successfully pushed mapping.",
		}),
	}
}
