// Package wire defines the JSON payloads exchanged between members, the
// registry, and dashboard clients. Field names are part of the external
// contract and must not be renamed casually.
package wire

import "time"

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	InstanceID string `json:"instance_id,omitempty"`
	Location   string `json:"location"`
	IP         string `json:"ip"`
	Port       int    `json:"port"`
}

// RegisterResponse is returned by POST /register.
type RegisterResponse struct {
	InstanceID string `json:"instance_id"`
	Status     string `json:"status"`
}

// InstanceRequest is the body of POST /heartbeat and POST /deregister.
type InstanceRequest struct {
	InstanceID string `json:"instance_id"`
}

// StatusResponse is the generic {status} or {error} response shape.
type StatusResponse struct {
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Member is one entry returned by GET /members.
type Member struct {
	InstanceID     string  `json:"instance_id"`
	Location       string  `json:"location"`
	IP             string  `json:"ip"`
	Port           int     `json:"port"`
	LastSeen       float64 `json:"last_seen"`
	RegisteredAt   float64 `json:"registered_at"`
	Status         string  `json:"status"`
	DeregisteredAt float64 `json:"deregistered_at,omitempty"`
}

// MembersResponse is returned by GET /members.
type MembersResponse struct {
	Members []Member `json:"members"`
}

// Hop is one traceroute hop entry, latency nil means a timeout ("*").
type Hop struct {
	HopNumber int      `json:"hop_number"`
	IP        string   `json:"ip"`
	LatencyMs *float64 `json:"latency_ms"`
}

// MetricSnapshot is the structured per-member report body, keyed by
// target identity strings such as "<location>:<instance_id>" or
// "<location>:<instance_id>:<endpoint>".
type MetricSnapshot struct {
	ConnectivityTCP        map[string]float64     `json:"connectivity_tcp"`
	ConnectivityHTTP       map[string]float64     `json:"connectivity_http"`
	CheckDurations         map[string]float64     `json:"check_durations"`
	BandwidthTests         map[string]float64     `json:"bandwidth_tests"`
	TracerouteTests        map[string]int         `json:"traceroute_tests"`
	DetailedTracerouteData map[string]RouteReport `json:"detailed_traceroute_data"`
	General                map[string]any         `json:"general"`
}

// RouteReport is the per-route traceroute payload folded into the topology
// engine; Hops is the authoritative per-hop input.
type RouteReport struct {
	Target         string  `json:"target_location"`
	TargetInstance string  `json:"target_instance"`
	Hops           []Hop   `json:"hops"`
	TotalHops      int     `json:"total_hops"`
	MaxHopLatency  float64 `json:"max_hop_latency_ms"`
	BandwidthMbps  float64 `json:"bandwidth_mbps,omitempty"`
}

// ReportMetricsRequest is the body of POST /report_metrics.
type ReportMetricsRequest struct {
	InstanceID string         `json:"instance_id"`
	Metrics    MetricSnapshot `json:"metrics"`
}

// MetricsResponse is returned by GET /metrics on the registry.
type MetricsResponse struct {
	Metrics map[string]MetricSnapshot `json:"metrics"`
}

// HealthResponse is returned by GET /health on both member and registry.
type HealthResponse struct {
	Status         string                `json:"status"`
	Version        string                `json:"version"`
	Component      string                `json:"component"`
	InstanceID     string                `json:"instance_id,omitempty"`
	Location       string                `json:"location,omitempty"`
	MembersCount   int                   `json:"members_count,omitempty"`
	Timestamp      float64               `json:"timestamp"`
	TaskHealth     map[string]TaskHealth `json:"task_health,omitempty"`
	UnhealthyTasks []string              `json:"unhealthy_tasks,omitempty"`
	FaultTolerance *FaultTolerance       `json:"fault_tolerance,omitempty"`
}

// TaskHealth is the per-task entry in HealthResponse.TaskHealth.
type TaskHealth struct {
	LastHeartbeat         float64 `json:"last_heartbeat"`
	SecondsSinceHeartbeat float64 `json:"seconds_since_heartbeat"`
	Status                string  `json:"status"`
}

// FaultTolerance reports the supervisor's configured thresholds.
type FaultTolerance struct {
	TaskTimeoutSeconds           float64 `json:"task_timeout_seconds"`
	HealthMonitorIntervalSeconds float64 `json:"health_monitor_interval_seconds"`
}

// MissingAnalysis is the value of "missing_analysis" returned by
// GET /members_with_analysis.
type MissingAnalysis struct {
	Locations map[string]LocationAnalysis `json:"locations"`
	Alerts    []Alert                     `json:"alerts"`
	Summary   MissingSummary              `json:"summary"`
}

// LocationAnalysis is the per-location entry of a MissingAnalysis.
type LocationAnalysis struct {
	Expected    int    `json:"expected_count"`
	Actual      int    `json:"actual_count"`
	Missing     int    `json:"missing_count"`
	Criticality string `json:"criticality,omitempty"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
}

// MissingSummary carries the global counters behind the global alerts.
type MissingSummary struct {
	CriticalMissing int `json:"critical_missing_locations"`
	TotalMissing    int `json:"total_missing"`
}

// Alert is one emitted alert, at either location or global scope.
type Alert struct {
	Level    string `json:"level"`
	Location string `json:"location,omitempty"`
	Message  string `json:"message"`
}

// MembersWithAnalysisResponse is returned by GET /members_with_analysis.
type MembersWithAnalysisResponse struct {
	Members         []Member        `json:"members"`
	MissingAnalysis MissingAnalysis `json:"missing_analysis"`
	Timestamp       float64         `json:"timestamp"`
}

// UnixFloat renders t the way the wire format expects timestamps: seconds
// since the epoch as a float so sub-second precision survives JSON.
func UnixFloat(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
