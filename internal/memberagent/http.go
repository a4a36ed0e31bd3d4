package memberagent

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/netring-mesh/netring/internal/metrics"
)

const (
	bandwidthChunk = 1 << 20 // 1 MiB
	bandwidthMaxMB = 10
)

// Handler builds the member's HTTP surface: /health, /metrics,
// /bandwidth_test.
func (a *Agent) Handler(reg *metrics.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.handleHealth)
	mux.Handle("/metrics", reg.Handler())
	mux.HandleFunc("/bandwidth_test", a.handleBandwidthTest)
	return mux
}

func (a *Agent) handleHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := a.HealthSnapshot()
	w.Header().Set("Content-Type", "application/json")
	if snapshot.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(snapshot)
}

// handleBandwidthTest returns exactly min(size,10) MiB of a constant byte
// value, sent without any content encoding. The body has an exactly-known
// length so the requester can compute bandwidth without framing ambiguity.
func (a *Agent) handleBandwidthTest(w http.ResponseWriter, r *http.Request) {
	sizeStr := r.URL.Query().Get("size")
	size, err := strconv.Atoi(sizeStr)
	if err != nil || size <= 0 {
		http.Error(w, `{"error":"invalid size parameter"}`, http.StatusBadRequest)
		return
	}
	if size > bandwidthMaxMB {
		size = bandwidthMaxMB
	}

	totalBytes := size * bandwidthChunk
	chunk := bytes.Repeat([]byte{0x58}, bandwidthChunk)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(totalBytes))
	w.WriteHeader(http.StatusOK)

	remaining := totalBytes
	for remaining > 0 {
		n := remaining
		if n > len(chunk) {
			n = len(chunk)
		}
		if _, err := w.Write(chunk[:n]); err != nil {
			return
		}
		remaining -= n
	}
}
