package topology

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netring-mesh/netring/internal/wire"
)

func TestRenderSVGIsSelfContained(t *testing.T) {
	g := NewGraph()
	g.AddTraceroute("dc1", "dc2", []wire.Hop{
		{HopNumber: 1, IP: "10.0.0.1", LatencyMs: latency(5)},
		{HopNumber: 2, IP: "10.0.0.2", LatencyMs: latency(60)},
	}, 0)

	svg := RenderSVG(g.Snapshot(), 1200, 800)

	assert.True(t, strings.HasPrefix(svg, `<svg xmlns="http://www.w3.org/2000/svg"`))
	assert.True(t, strings.HasSuffix(svg, "</svg>"))
	assert.Contains(t, svg, "zoom-in")
	assert.Contains(t, svg, "zoom-out")
	assert.Contains(t, svg, "edge-good", "5ms hop must render as a good edge")
	assert.Contains(t, svg, "edge-bad", "60ms hop must render as a bad edge")
	assert.Contains(t, svg, "node-location")
	assert.Contains(t, svg, "node-router")
	assert.Contains(t, svg, "<title>")
	assert.Contains(t, svg, "})();", "interaction script must be a closed IIFE")
}

func TestRenderSVGEmptyGraph(t *testing.T) {
	svg := RenderSVG(NewGraph().Snapshot(), 800, 600)
	require.True(t, strings.HasSuffix(svg, "</svg>"))
	assert.NotContains(t, svg, "<line")
	assert.NotContains(t, svg, "<circle")
}

func TestLayoutPlacesLocationsOnCircle(t *testing.T) {
	g := NewGraph()
	g.AddTraceroute("dc1", "dc2", nil, 0)
	g.AddTraceroute("dc2", "dc3", nil, 0)

	positions := Layout(g.Snapshot())

	for _, name := range []string{"dc1", "dc2", "dc3"} {
		p, ok := positions[name]
		require.True(t, ok, "location %s must be placed", name)
		r := math.Hypot(p.X, p.Y)
		assert.InDelta(t, locationRadius, r, 0.001, "location %s must sit on the circle", name)
	}
}

func TestLayoutPlacesEveryNode(t *testing.T) {
	g := NewGraph()
	g.AddTraceroute("dc1", "dc2", []wire.Hop{
		{HopNumber: 1, IP: "10.0.0.1", LatencyMs: latency(1)},
		{HopNumber: 2, IP: "10.0.1.1", LatencyMs: latency(2)},
	}, 0)

	snap := g.Snapshot()
	positions := Layout(snap)
	assert.Len(t, positions, len(snap.Nodes))
}
