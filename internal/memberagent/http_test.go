package memberagent

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBandwidthTestRoundTrip(t *testing.T) {
	a := &Agent{}
	req := httptest.NewRequest(http.MethodGet, "/bandwidth_test?size=3", nil)
	rec := httptest.NewRecorder()

	a.handleBandwidthTest(rec, req)

	resp := rec.Result()
	defer resp.Body.Close()
	body := rec.Body.Bytes()

	require.Equal(t, 3*1048576, len(body))
	assert.Equal(t, strconv.Itoa(3*1048576), resp.Header.Get("Content-Length"))
}

func TestBandwidthTestClampsAt10MB(t *testing.T) {
	a := &Agent{}
	req := httptest.NewRequest(http.MethodGet, "/bandwidth_test?size=20", nil)
	rec := httptest.NewRecorder()

	a.handleBandwidthTest(rec, req)

	require.Equal(t, 10*1048576, rec.Body.Len())
}

func TestBandwidthTestRejectsMalformedSize(t *testing.T) {
	a := &Agent{}
	req := httptest.NewRequest(http.MethodGet, "/bandwidth_test?size=abc", nil)
	rec := httptest.NewRecorder()

	a.handleBandwidthTest(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBandwidthMbpsCalculation(t *testing.T) {
	mbps := BandwidthMbps(1048576, 1.0)
	assert.InDelta(t, 8.389, mbps, 0.001)
}
