package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netring-mesh/netring/internal/wire"
)

func TestSummarizeCountsAndDensity(t *testing.T) {
	g := NewGraph()
	g.AddTraceroute("dc1", "dc2", []wire.Hop{
		{HopNumber: 1, IP: "10.0.0.1", LatencyMs: latency(1)},
		{HopNumber: 2, IP: "10.0.1.1", LatencyMs: latency(5)},
	}, 0)

	s := Summarize(g.Snapshot())
	assert.Equal(t, 2, s.TotalLocations)
	assert.Equal(t, 2, s.TotalRouters)
	assert.Equal(t, 3, s.TotalEdges)
	assert.Equal(t, 1, s.RoutesAnalyzed)
	// 4 nodes, 3 edges: 3 / (4*3)
	assert.InDelta(t, 0.25, s.GraphDensity, 0.001)
	assert.False(t, s.StronglyConnected, "a one-way route chain must not be strongly connected")
}

func TestSummarizeEmptyGraph(t *testing.T) {
	s := Summarize(NewGraph().Snapshot())
	assert.Equal(t, Summary{}, s)
}

func TestSummarizeStronglyConnected(t *testing.T) {
	g := NewGraph()
	g.AddTraceroute("dc1", "dc2", nil, 0)
	g.AddTraceroute("dc2", "dc1", nil, 0)

	s := Summarize(g.Snapshot())
	assert.True(t, s.StronglyConnected)
	assert.Equal(t, 2, s.RoutesAnalyzed)
}

func TestAddRoutePresenceRecordsDirectEdgeAndHopCount(t *testing.T) {
	g := NewGraph()
	g.AddRoutePresence("dc1", "dc2", 7, 93.5)

	snap := g.Snapshot()
	require.Len(t, snap.Edges, 1)
	assert.Equal(t, EdgeDirect, snap.Edges[0].Type)

	detail, ok := g.RouteDetail(RouteID("dc1", "dc2"))
	require.True(t, ok)
	assert.Equal(t, 7, detail.TotalHops)
	assert.Equal(t, 93.5, detail.BandwidthMbps)
}

func TestAddRoutePresenceDoesNotClobberOtherRoutes(t *testing.T) {
	g := NewGraph()
	g.AddTraceroute("dc1", "dc2", []wire.Hop{
		{HopNumber: 1, IP: "10.0.0.1", LatencyMs: latency(1)},
	}, 0)
	g.AddRoutePresence("dc1", "dc3", 4, 0)

	snap := g.Snapshot()
	assert.Len(t, snap.Routes, 2)

	var routers int
	for _, n := range snap.Nodes {
		if n.Type == NodeRouter {
			routers++
		}
	}
	assert.Equal(t, 1, routers, "the detailed route's router must survive")
}
