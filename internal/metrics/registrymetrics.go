package metrics

import "github.com/prometheus/client_golang/prometheus"

// RegistryMetrics holds the registry's own operational metrics, distinct
// from the member-side probe metrics: request volume and latency on the
// registry's HTTP surface, store operation timing, and graph size.
type RegistryMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	StoreOpDuration *prometheus.HistogramVec
	ActiveMembers   *prometheus.GaugeVec
	TopologyEdges   *prometheus.GaugeVec
}

// NewRegistryMetrics registers every registry operational metric.
func NewRegistryMetrics(reg *Registry) *RegistryMetrics {
	return &RegistryMetrics{
		RequestsTotal: reg.Counter(
			"registry_requests_total",
			"Total HTTP requests served by the registry",
			"method", "path", "status",
		),
		RequestDuration: reg.Histogram(
			"registry_request_duration_seconds",
			"Duration of registry HTTP requests",
			DurationBuckets,
			"method", "path",
		),
		StoreOpDuration: reg.Histogram(
			"registry_store_op_duration_seconds",
			"Duration of store backend operations",
			DurationBuckets,
			"op",
		),
		ActiveMembers: reg.Gauge(
			"registry_active_members",
			"Current count of active members known to the registry",
		),
		TopologyEdges: reg.Gauge(
			"registry_topology_edges",
			"Current edge count in the topology graph",
		),
	}
}
