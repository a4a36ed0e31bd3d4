package registrysvc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/netring-mesh/netring/internal/metrics"
	"github.com/netring-mesh/netring/internal/missing"
	"github.com/netring-mesh/netring/internal/store"
	"github.com/netring-mesh/netring/internal/wire"
)

func newTestService(detector *missing.Detector) (*Service, http.Handler) {
	mem := store.NewMemory()
	reg := metrics.NewRegistry()
	m := metrics.NewRegistryMetrics(reg)
	svc := New(mem, zap.NewNop(), m, nil, detector, 300*time.Second, 60*time.Second)
	return svc, svc.Handler(reg.Handler())
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestMembershipConsistency(t *testing.T) {
	_, handler := newTestService(nil)

	rec := doJSON(t, handler, http.MethodPost, "/register", wire.RegisterRequest{Location: "dc1", IP: "10.0.0.1", Port: 8757})
	require.Equal(t, http.StatusOK, rec.Code)
	var registerResp wire.RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &registerResp))
	require.Equal(t, "registered", registerResp.Status)
	require.NotEmpty(t, registerResp.InstanceID)

	rec = doJSON(t, handler, http.MethodGet, "/members", nil)
	var membersResp wire.MembersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &membersResp))
	require.Len(t, membersResp.Members, 1)
	assert.Equal(t, "active", membersResp.Members[0].Status)
	assert.Equal(t, registerResp.InstanceID, membersResp.Members[0].InstanceID)

	rec = doJSON(t, handler, http.MethodPost, "/deregister", wire.InstanceRequest{InstanceID: registerResp.InstanceID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/members", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &membersResp))
	require.Len(t, membersResp.Members, 1)
	assert.Equal(t, "deregistered", membersResp.Members[0].Status)
}

func TestHeartbeatIdempotence(t *testing.T) {
	_, handler := newTestService(nil)

	rec := doJSON(t, handler, http.MethodPost, "/register", wire.RegisterRequest{Location: "dc1", IP: "10.0.0.1", Port: 8757})
	var registerResp wire.RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &registerResp))

	for i := 0; i < 3; i++ {
		rec = doJSON(t, handler, http.MethodPost, "/heartbeat", wire.InstanceRequest{InstanceID: registerResp.InstanceID})
		require.Equal(t, http.StatusOK, rec.Code)
		time.Sleep(5 * time.Millisecond)
	}

	rec = doJSON(t, handler, http.MethodGet, "/members", nil)
	var membersResp wire.MembersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &membersResp))
	require.Len(t, membersResp.Members, 1)
	assert.Equal(t, "active", membersResp.Members[0].Status)
}

func TestHeartbeatUnknownMemberReturns404(t *testing.T) {
	_, handler := newTestService(nil)
	rec := doJSON(t, handler, http.MethodPost, "/heartbeat", wire.InstanceRequest{InstanceID: "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMissingMemberAlertEndToEnd(t *testing.T) {
	detector := missing.New(missing.Descriptor{
		Locations: map[string]missing.ExpectedLocation{
			"dc1": {ExpectedCount: 3, Criticality: missing.CriticalityHigh},
		},
	})
	_, handler := newTestService(detector)

	doJSON(t, handler, http.MethodPost, "/register", wire.RegisterRequest{Location: "dc1", IP: "10.0.0.1", Port: 8757})

	rec := doJSON(t, handler, http.MethodGet, "/members_with_analysis", nil)
	var resp wire.MembersWithAnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 2, resp.MissingAnalysis.Locations["dc1"].Missing)
	require.Len(t, resp.MissingAnalysis.Alerts, 1)
	assert.Equal(t, "error", resp.MissingAnalysis.Alerts[0].Level)
}

func TestMembersListsEveryRegisteredPeer(t *testing.T) {
	_, handler := newTestService(nil)

	doJSON(t, handler, http.MethodPost, "/register", wire.RegisterRequest{Location: "dc1", IP: "10.0.0.1", Port: 8757})
	doJSON(t, handler, http.MethodPost, "/register", wire.RegisterRequest{Location: "dc2", IP: "10.0.0.2", Port: 8757})

	rec := doJSON(t, handler, http.MethodGet, "/members", nil)
	var resp wire.MembersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Members, 2)
}
