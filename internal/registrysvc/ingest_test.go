package registrysvc

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netring-mesh/netring/internal/topology"
	"github.com/netring-mesh/netring/internal/wire"
)

func registerMember(t *testing.T, handler http.Handler, location string) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/register", wire.RegisterRequest{Location: location, IP: "10.0.0.1", Port: 8757})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp wire.RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.InstanceID
}

func TestReportMetricsIngestsDetailedTraceroutes(t *testing.T) {
	svc, handler := newTestService(nil)
	id := registerMember(t, handler, "dc1")

	lat := 5.0
	report := wire.ReportMetricsRequest{
		InstanceID: id,
		Metrics: wire.MetricSnapshot{
			DetailedTracerouteData: map[string]wire.RouteReport{
				"dc2:peer-1": {
					Target: "dc2",
					Hops:   []wire.Hop{{HopNumber: 1, IP: "10.0.0.2", LatencyMs: &lat}},
				},
			},
		},
	}
	rec := doJSON(t, handler, http.MethodPost, "/report_metrics", report)
	require.Equal(t, http.StatusOK, rec.Code)

	detail, ok := svc.graph.RouteDetail(topology.RouteID("dc1", "dc2"))
	require.True(t, ok)
	assert.Equal(t, 1, detail.TotalHops)
}

func TestReportMetricsFallbackTracerouteIngestion(t *testing.T) {
	svc, handler := newTestService(nil)
	id := registerMember(t, handler, "dc1")

	report := wire.ReportMetricsRequest{
		InstanceID: id,
		Metrics: wire.MetricSnapshot{
			TracerouteTests: map[string]int{"dc2:peer-1": 4},
			BandwidthTests:  map[string]float64{"dc2:peer-1": 93.5},
		},
	}
	rec := doJSON(t, handler, http.MethodPost, "/report_metrics", report)
	require.Equal(t, http.StatusOK, rec.Code)

	detail, ok := svc.graph.RouteDetail(topology.RouteID("dc1", "dc2"))
	require.True(t, ok, "hop-count-only report must still register the route")
	assert.Equal(t, 4, detail.TotalHops)
	assert.Equal(t, 93.5, detail.BandwidthMbps)

	snap := svc.graph.Snapshot()
	require.Len(t, snap.Edges, 1)
	assert.Equal(t, topology.EdgeDirect, snap.Edges[0].Type)
}

func TestReportMetricsDetailedDataWinsOverFallback(t *testing.T) {
	svc, handler := newTestService(nil)
	id := registerMember(t, handler, "dc1")

	lat := 3.0
	report := wire.ReportMetricsRequest{
		InstanceID: id,
		Metrics: wire.MetricSnapshot{
			TracerouteTests: map[string]int{"dc2:peer-1": 9},
			DetailedTracerouteData: map[string]wire.RouteReport{
				"dc2:peer-1": {
					Target: "dc2",
					Hops: []wire.Hop{
						{HopNumber: 1, IP: "10.0.0.1", LatencyMs: &lat},
						{HopNumber: 2, IP: "10.0.0.2", LatencyMs: &lat},
					},
				},
			},
		},
	}
	rec := doJSON(t, handler, http.MethodPost, "/report_metrics", report)
	require.Equal(t, http.StatusOK, rec.Code)

	detail, ok := svc.graph.RouteDetail(topology.RouteID("dc1", "dc2"))
	require.True(t, ok)
	assert.Equal(t, 2, detail.TotalHops, "per-hop detail must not be overwritten by the hop-count fallback")
}

func TestTopologyResponseIncludesSummary(t *testing.T) {
	svc, handler := newTestService(nil)
	svc.graph.AddRoutePresence("dc1", "dc2", 3, 0)

	rec := doJSON(t, handler, http.MethodGet, "/topology", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Summary topology.Summary `json:"summary"`
		Nodes   []topology.Node  `json:"nodes"`
		Edges   []topology.Edge  `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Summary.TotalLocations)
	assert.Equal(t, 1, resp.Summary.TotalEdges)
	assert.Equal(t, 1, resp.Summary.RoutesAnalyzed)
	assert.Len(t, resp.Nodes, 2)
	assert.Len(t, resp.Edges, 1)
}
