// Package topology implements the registry's directed multigraph of
// locations and routers, built by folding per-member traceroute reports
// into a single shared graph.
package topology

import (
	"fmt"
	"sort"
	"sync"

	"github.com/netring-mesh/netring/internal/wire"
)

// NodeType distinguishes the two node variants the graph holds.
type NodeType string

const (
	NodeLocation NodeType = "location"
	NodeRouter   NodeType = "router"
)

// Node is one vertex: a Location (keyed by its name) or a Router (keyed by
// "router:<hop_ip>").
type Node struct {
	ID        string   `json:"id"`
	Type      NodeType `json:"type"`
	Name      string   `json:"name"`
	HopNumber int      `json:"hop_number,omitempty"`
}

// EdgeType distinguishes the three edge roles in a route.
type EdgeType string

const (
	EdgeHop    EdgeType = "hop"
	EdgeDirect EdgeType = "direct"
	EdgeFinal  EdgeType = "final"
)

// Edge is one directed connection; RouteID is the source of truth for
// which route owns it, there are no back-pointers from routers to routes.
type Edge struct {
	ID        string   `json:"id"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	LatencyMs float64  `json:"latency_ms"`
	RouteID   string   `json:"route_id"`
	HopNumber int      `json:"hop_number,omitempty"`
	Type      EdgeType `json:"edge_type"`
}

// RouteDetail is the per-route index entry kept alongside the graph.
type RouteDetail struct {
	Hops          []wire.Hop `json:"hops"`
	BandwidthMbps float64    `json:"bandwidth_mbps,omitempty"`
	TotalHops     int        `json:"total_hops"`
	MaxHopLatency float64    `json:"max_hop_latency_ms"`
}

// Graph is the registry-local, in-memory topology state. All mutation
// happens under a single mutex; there is no fine-grained per-node locking
// because mutations are small and reads tolerate mild staleness.
type Graph struct {
	mu      sync.Mutex
	nodes   map[string]*Node
	edges   map[string]*Edge
	routes  map[string]RouteDetail
	edgeSeq int

	// OnChange, if set, is invoked after every AddTraceroute,
	// AddRoutePresence and Reset call, outside the lock. Used to drive the
	// live topology websocket.
	OnChange func()
}

// NewGraph creates an empty topology graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:  make(map[string]*Node),
		edges:  make(map[string]*Edge),
		routes: make(map[string]RouteDetail),
	}
}

// RouteID computes the canonical route_id for a source/target pair.
func RouteID(source, target string) string {
	return fmt.Sprintf("%s->%s", source, target)
}

func routerID(ip string) string { return "router:" + ip }

// AddTraceroute folds one member's traceroute report into the shared
// graph, replacing every edge previously recorded under the same route id
// and garbage-collecting routers left with no edges.
func (g *Graph) AddTraceroute(source, target string, hops []wire.Hop, bandwidthMbps float64) {
	g.mu.Lock()
	routeID := RouteID(source, target)

	g.removeRouteEdgesLocked(routeID)
	g.gcRoutersLocked()

	g.ensureLocationLocked(source)
	g.ensureLocationLocked(target)

	maxLatency := 0.0

	if len(hops) == 0 {
		g.addEdgeLocked(source, target, 0, routeID, 0, EdgeDirect)
	} else {
		prev := source
		for _, hop := range hops {
			if hop.IP == "*" || hop.LatencyMs == nil {
				continue
			}
			rID := routerID(hop.IP)
			g.ensureRouterLocked(rID, hop.IP, hop.HopNumber)
			g.addEdgeLocked(prev, rID, *hop.LatencyMs, routeID, hop.HopNumber, EdgeHop)
			if *hop.LatencyMs > maxLatency {
				maxLatency = *hop.LatencyMs
			}
			prev = rID
		}
		g.addEdgeLocked(prev, target, 0, routeID, 0, EdgeFinal)
	}

	g.routes[routeID] = RouteDetail{
		Hops:          hops,
		BandwidthMbps: bandwidthMbps,
		TotalHops:     len(hops),
		MaxHopLatency: maxLatency,
	}
	g.mu.Unlock()

	if g.OnChange != nil {
		g.OnChange()
	}
}

func (g *Graph) ensureLocationLocked(name string) {
	if _, ok := g.nodes[name]; ok {
		return
	}
	g.nodes[name] = &Node{ID: name, Type: NodeLocation, Name: name}
}

func (g *Graph) ensureRouterLocked(id, ip string, hopNumber int) {
	if n, ok := g.nodes[id]; ok {
		n.HopNumber = hopNumber
		return
	}
	g.nodes[id] = &Node{ID: id, Type: NodeRouter, Name: ip, HopNumber: hopNumber}
}

func (g *Graph) addEdgeLocked(from, to string, latency float64, routeID string, hopNumber int, edgeType EdgeType) {
	g.edgeSeq++
	id := fmt.Sprintf("%s#%d", routeID, g.edgeSeq)
	g.edges[id] = &Edge{
		ID: id, From: from, To: to, LatencyMs: latency,
		RouteID: routeID, HopNumber: hopNumber, Type: edgeType,
	}
}

// removeRouteEdgesLocked deletes every edge belonging to routeID.
func (g *Graph) removeRouteEdgesLocked(routeID string) {
	for id, e := range g.edges {
		if e.RouteID == routeID {
			delete(g.edges, id)
		}
	}
}

// gcRoutersLocked removes any router node whose total degree (in-edges
// plus out-edges) has dropped to zero, preventing stale hop routers from
// accumulating across probe cycles.
func (g *Graph) gcRoutersLocked() {
	degree := make(map[string]int)
	for _, e := range g.edges {
		degree[e.From]++
		degree[e.To]++
	}
	for id, n := range g.nodes {
		if n.Type != NodeRouter {
			continue
		}
		if degree[id] == 0 {
			delete(g.nodes, id)
		}
	}
}

// Snapshot is a consistent, lock-free-to-read copy of the graph state.
type Snapshot struct {
	Nodes  []Node                 `json:"nodes"`
	Edges  []Edge                 `json:"edges"`
	Routes map[string]RouteDetail `json:"routes"`
}

// Snapshot takes a point-in-time copy of the graph for rendering/analysis.
func (g *Graph) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	nodes := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, *n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	edges := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		edges = append(edges, *e)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })

	routes := make(map[string]RouteDetail, len(g.routes))
	for k, v := range g.routes {
		routes[k] = v
	}

	return Snapshot{Nodes: nodes, Edges: edges, Routes: routes}
}

// RouteDetail returns the stored detail for routeID and whether it exists.
func (g *Graph) RouteDetail(routeID string) (RouteDetail, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.routes[routeID]
	return d, ok
}

// AddRoutePresence records a route for which only a hop count is known:
// a single direct edge between the two locations, plus a route entry
// carrying the reported count. Used as the fallback when a member reports
// traceroute_tests without per-hop detail.
func (g *Graph) AddRoutePresence(source, target string, totalHops int, bandwidthMbps float64) {
	g.mu.Lock()
	routeID := RouteID(source, target)

	g.removeRouteEdgesLocked(routeID)
	g.gcRoutersLocked()

	g.ensureLocationLocked(source)
	g.ensureLocationLocked(target)
	g.addEdgeLocked(source, target, 0, routeID, 0, EdgeDirect)

	g.routes[routeID] = RouteDetail{
		BandwidthMbps: bandwidthMbps,
		TotalHops:     totalHops,
	}
	g.mu.Unlock()

	if g.OnChange != nil {
		g.OnChange()
	}
}

// Reset drops every node, edge, and route while keeping the graph handle
// (and any OnChange hook) intact.
func (g *Graph) Reset() {
	g.mu.Lock()
	g.nodes = make(map[string]*Node)
	g.edges = make(map[string]*Edge)
	g.routes = make(map[string]RouteDetail)
	g.edgeSeq = 0
	g.mu.Unlock()

	if g.OnChange != nil {
		g.OnChange()
	}
}
