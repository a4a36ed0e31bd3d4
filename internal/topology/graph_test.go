package topology

import (
	"testing"

	"github.com/netring-mesh/netring/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func latency(v float64) *float64 { return &v }

func TestAddTracerouteBuildsExpectedEdgeChain(t *testing.T) {
	g := NewGraph()
	hops := []wire.Hop{
		{HopNumber: 1, IP: "10.0.0.1", LatencyMs: latency(1)},
		{HopNumber: 2, IP: "10.0.1.1", LatencyMs: latency(5)},
		{HopNumber: 3, IP: "10.0.0.2", LatencyMs: latency(10)},
	}
	g.AddTraceroute("dc1", "dc2", hops, 0)

	snap := g.Snapshot()
	var locations, routers int
	for _, n := range snap.Nodes {
		if n.Type == NodeLocation {
			locations++
		} else {
			routers++
		}
	}
	assert.Equal(t, 2, locations)
	assert.Equal(t, 3, routers)
	assert.Len(t, snap.Edges, 4)
}

func TestAddTracerouteReplacesAndGarbageCollects(t *testing.T) {
	g := NewGraph()
	hops1 := []wire.Hop{
		{HopNumber: 1, IP: "10.0.0.1", LatencyMs: latency(1)},
		{HopNumber: 2, IP: "10.0.1.1", LatencyMs: latency(5)},
		{HopNumber: 3, IP: "10.0.0.2", LatencyMs: latency(10)},
	}
	g.AddTraceroute("dc1", "dc2", hops1, 0)

	hops2 := []wire.Hop{
		{HopNumber: 1, IP: "10.0.0.1", LatencyMs: latency(1)},
		{HopNumber: 2, IP: "10.0.0.2", LatencyMs: latency(8)},
	}
	g.AddTraceroute("dc1", "dc2", hops2, 0)

	snap := g.Snapshot()
	var routers int
	for _, n := range snap.Nodes {
		if n.Type == NodeRouter {
			routers++
		}
	}
	assert.Equal(t, 2, routers, "stale router for 10.0.1.1 must be garbage collected")

	for _, n := range snap.Nodes {
		assert.NotEqual(t, "router:10.0.1.1", n.ID)
	}
}

func TestAddTracerouteIdempotent(t *testing.T) {
	g := NewGraph()
	hops := []wire.Hop{
		{HopNumber: 1, IP: "10.0.0.1", LatencyMs: latency(1)},
	}
	g.AddTraceroute("dc1", "dc2", hops, 0)
	first := g.Snapshot()

	g.AddTraceroute("dc1", "dc2", hops, 0)
	second := g.Snapshot()

	require.Equal(t, len(first.Nodes), len(second.Nodes))
	require.Equal(t, len(first.Edges), len(second.Edges))
}

func TestBottleneckDualCutoff(t *testing.T) {
	g := NewGraph()
	hops := []wire.Hop{
		{HopNumber: 1, IP: "10.0.0.1", LatencyMs: latency(200)},
		{HopNumber: 2, IP: "10.0.0.2", LatencyMs: latency(160)},
	}
	g.AddTraceroute("dc1", "dc2", hops, 0)

	bottlenecks := g.Bottlenecks(InclusionThresholdMs)
	require.Len(t, bottlenecks, 2)
	assert.Equal(t, "high", bottlenecks[0].Severity)
	assert.Equal(t, 200.0, bottlenecks[0].Edge.LatencyMs)
}

func TestPathAnalysisMissingRoute(t *testing.T) {
	g := NewGraph()
	_, err := g.Path("dc1", "dc2")
	require.Error(t, err)
}

func TestPathAnalysisFound(t *testing.T) {
	g := NewGraph()
	hops := []wire.Hop{
		{HopNumber: 1, IP: "10.0.0.1", LatencyMs: latency(1)},
		{HopNumber: 2, IP: "10.0.0.2", LatencyMs: latency(8)},
	}
	g.AddTraceroute("dc1", "dc2", hops, 12.5)

	result, err := g.Path("dc1", "dc2")
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalHops)
	assert.Equal(t, 12.5, result.BandwidthMbps)
	assert.Equal(t, []string{"dc1", "router:10.0.0.1", "router:10.0.0.2", "dc2"}, result.Nodes)
}
