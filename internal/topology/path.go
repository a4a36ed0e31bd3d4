package topology

import "fmt"

// PathResult is the analysis returned for a specific (source, target)
// directed location pair.
type PathResult struct {
	RouteID       string       `json:"route_id"`
	TotalHops     int          `json:"total_hops"`
	MaxHopLatency float64      `json:"max_hop_latency_ms"`
	BandwidthMbps float64      `json:"bandwidth_mbps,omitempty"`
	Nodes         []string     `json:"nodes"`
	EdgeLatencies []float64    `json:"edge_latencies_ms"`
	Bottlenecks   []Bottleneck `json:"bottlenecks"`
}

// PathError is returned when no route exists for the requested pair.
type PathError struct {
	Source, Target string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("no route recorded from %s to %s", e.Source, e.Target)
}

// Path computes the path analysis for (source, target): look up the route
// detail; if absent, error. Otherwise compute a shortest path by
// unit-weight BFS (sufficient since a route materializes exactly one path)
// and report hops, latency, bandwidth, node order, and bottlenecks
// restricted to this route_id.
func (g *Graph) Path(source, target string) (PathResult, error) {
	routeID := RouteID(source, target)

	detail, ok := g.RouteDetail(routeID)
	if !ok {
		return PathResult{}, &PathError{Source: source, Target: target}
	}

	snap := g.Snapshot()
	nodes, edgeLatencies := bfsPath(snap.Edges, source, target)

	return PathResult{
		RouteID:       routeID,
		TotalHops:     detail.TotalHops,
		MaxHopLatency: detail.MaxHopLatency,
		BandwidthMbps: detail.BandwidthMbps,
		Nodes:         nodes,
		EdgeLatencies: edgeLatencies,
		Bottlenecks:   bottlenecksForRoute(snap.Edges, routeID, InclusionThresholdMs),
	}, nil
}

// bfsPath finds the shortest (unit-weight) path from source to target and
// returns the ordered node list plus the latency of each traversed edge.
func bfsPath(edges []Edge, source, target string) ([]string, []float64) {
	adj := make(map[string][]Edge)
	for _, e := range edges {
		adj[e.From] = append(adj[e.From], e)
	}

	type step struct {
		node string
		via  *Edge
		prev string
	}

	visited := map[string]bool{source: true}
	queue := []string{source}
	parent := make(map[string]step)

	found := source == target
	for len(queue) > 0 && !found {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range adj[cur] {
			if visited[e.To] {
				continue
			}
			visited[e.To] = true
			edgeCopy := e
			parent[e.To] = step{node: e.To, via: &edgeCopy, prev: cur}
			if e.To == target {
				found = true
				break
			}
			queue = append(queue, e.To)
		}
	}

	if !found {
		return nil, nil
	}

	var nodes []string
	var latencies []float64
	cur := target
	for cur != source {
		s, ok := parent[cur]
		if !ok {
			return nil, nil
		}
		nodes = append([]string{cur}, nodes...)
		latencies = append([]float64{s.via.LatencyMs}, latencies...)
		cur = s.prev
	}
	nodes = append([]string{source}, nodes...)
	return nodes, latencies
}
