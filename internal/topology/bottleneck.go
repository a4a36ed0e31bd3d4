package topology

import "sort"

// InclusionThresholdMs is the default filter: only edges above this
// latency are reported as bottlenecks at all.
const InclusionThresholdMs = 150.0

// SeverityBoundaryMs is the separate cutoff distinguishing high/medium
// severity among the edges that already passed the inclusion filter. The
// two thresholds are intentionally different: the filter surfaces only
// severe bottlenecks, while severity still distinguishes 50ms from 150ms.
const SeverityBoundaryMs = 50.0

// Bottleneck is one flagged edge, annotated with severity.
type Bottleneck struct {
	Edge     Edge   `json:"edge"`
	Severity string `json:"severity"`
}

// Bottlenecks returns every edge whose latency exceeds threshold, sorted
// descending by latency, each annotated high/medium against
// SeverityBoundaryMs.
func (g *Graph) Bottlenecks(threshold float64) []Bottleneck {
	snap := g.Snapshot()
	return bottlenecksFromEdges(snap.Edges, threshold)
}

func bottlenecksFromEdges(edges []Edge, threshold float64) []Bottleneck {
	var out []Bottleneck
	for _, e := range edges {
		if e.LatencyMs <= threshold {
			continue
		}
		severity := "medium"
		if e.LatencyMs > SeverityBoundaryMs {
			severity = "high"
		}
		out = append(out, Bottleneck{Edge: e, Severity: severity})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Edge.LatencyMs > out[j].Edge.LatencyMs })
	return out
}

// bottlenecksForRoute restricts Bottlenecks to a single route_id, used by
// path analysis.
func bottlenecksForRoute(edges []Edge, routeID string, threshold float64) []Bottleneck {
	var filtered []Edge
	for _, e := range edges {
		if e.RouteID == routeID {
			filtered = append(filtered, e)
		}
	}
	return bottlenecksFromEdges(filtered, threshold)
}
