package metrics

import "github.com/prometheus/client_golang/prometheus"

// MemberMetrics holds the member-side collectors whose exposition names
// are part of netring's external contract. Names and label sets must not
// drift.
type MemberMetrics struct {
	ConnectivityTCP         *prometheus.GaugeVec
	ConnectivityHTTP        *prometheus.GaugeVec
	CheckDuration           *prometheus.HistogramVec
	MembersTotal            *prometheus.GaugeVec
	MemberLastSeen          *prometheus.GaugeVec
	BandwidthMbps           *prometheus.GaugeVec
	TracerouteHopsTotal     *prometheus.GaugeVec
	TracerouteMaxHopLatency *prometheus.GaugeVec
}

// NewMemberMetrics registers every member metric against reg.
func NewMemberMetrics(reg *Registry) *MemberMetrics {
	targetLabels := []string{"source_location", "source_instance", "target_location", "target_instance", "target_ip"}
	httpLabels := append(append([]string{}, targetLabels...), "endpoint")

	return &MemberMetrics{
		ConnectivityTCP: reg.Gauge(
			"connectivity_tcp",
			"TCP reachability to a peer, 1 if reachable else 0",
			targetLabels...,
		),
		ConnectivityHTTP: reg.Gauge(
			"connectivity_http",
			"HTTP reachability to a peer endpoint, 1 if reachable else 0",
			httpLabels...,
		),
		CheckDuration: reg.Histogram(
			"check_duration_seconds",
			"Duration of a connectivity check",
			DurationBuckets,
			"check_type", "target_location", "target_instance",
		),
		MembersTotal: reg.Gauge(
			"members_total",
			"Total known peers in the local peer map",
		),
		MemberLastSeen: reg.Gauge(
			"member_last_seen_timestamp",
			"Unix timestamp of the last time a peer was seen in discovery",
			"location", "instance_id",
		),
		BandwidthMbps: reg.Gauge(
			"bandwidth_mbps",
			"Measured bandwidth to a peer in megabits per second",
			targetLabels...,
		),
		TracerouteHopsTotal: reg.Gauge(
			"traceroute_hops_total",
			"Number of hops observed on the route to a peer",
			targetLabels...,
		),
		TracerouteMaxHopLatency: reg.Gauge(
			"traceroute_max_hop_latency_ms",
			"Maximum per-hop latency observed on the route to a peer",
			targetLabels...,
		),
	}
}
