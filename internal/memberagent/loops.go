package memberagent

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/netring-mesh/netring/internal/traceroute"
	"github.com/netring-mesh/netring/internal/wire"
)

func (a *Agent) heartbeatOnce(ctx context.Context) error {
	req := wire.InstanceRequest{InstanceID: a.instanceID}
	resp, err := a.registryRequest(ctx, http.MethodPost, "/heartbeat", req, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		return a.register(ctx)
	}
	return nil
}

// discoveryOnce rebuilds the local peer map from the registry's active
// membership, excluding self and non-active members.
func (a *Agent) discoveryOnce(ctx context.Context) error {
	var resp wire.MembersResponse
	if _, err := a.registryRequest(ctx, http.MethodGet, "/members", nil, &resp); err != nil {
		return err
	}

	peers := make(map[string]wire.Member)
	for _, m := range resp.Members {
		if m.InstanceID == a.instanceID {
			continue
		}
		if m.Status != "active" {
			continue
		}
		peers[m.InstanceID] = m
	}

	a.peersMu.Lock()
	a.peers = peers
	a.peersMu.Unlock()

	a.metrics.MembersTotal.WithLabelValues().Set(float64(len(peers)))
	for _, p := range peers {
		a.metrics.MemberLastSeen.WithLabelValues(p.Location, p.InstanceID).Set(p.LastSeen)
	}
	return nil
}

func (a *Agent) currentPeers() []wire.Member {
	a.peersMu.RLock()
	defer a.peersMu.RUnlock()
	peers := make([]wire.Member, 0, len(a.peers))
	for _, p := range a.peers {
		peers = append(peers, p)
	}
	return peers
}

// connectivityOnce probes every known peer with one TCP dial and one HTTP
// GET per configured endpoint. Skips entirely when the peer map is empty.
func (a *Agent) connectivityOnce(ctx context.Context) error {
	peers := a.currentPeers()
	if len(peers) == 0 {
		return nil
	}

	tcpTimeout := time.Duration(a.cfg.Checks.TCPTimeout * float64(time.Second))
	httpTimeout := time.Duration(a.cfg.Checks.HTTPTimeout * float64(time.Second))

	for _, p := range peers {
		key := fmt.Sprintf("%s:%s", p.Location, p.InstanceID)

		start := time.Now()
		ok := a.tcpCheck(ctx, p, tcpTimeout)
		duration := time.Since(start).Seconds()

		a.metrics.ConnectivityTCP.WithLabelValues(a.cfg.Location, a.instanceID, p.Location, p.InstanceID, p.IP).Set(boolToFloat(ok))
		a.metrics.CheckDuration.WithLabelValues("tcp", p.Location, p.InstanceID).Observe(duration)

		a.connMu.Lock()
		a.connectivityTCP[key] = boolToFloat(ok)
		a.checkDurations["tcp:"+key] = duration
		a.connMu.Unlock()

		for _, endpoint := range a.cfg.Checks.HTTPEndpoints {
			hstart := time.Now()
			hok := a.httpCheck(ctx, p, endpoint, httpTimeout)
			hduration := time.Since(hstart).Seconds()

			a.metrics.ConnectivityHTTP.WithLabelValues(a.cfg.Location, a.instanceID, p.Location, p.InstanceID, p.IP, endpoint).Set(boolToFloat(hok))
			a.metrics.CheckDuration.WithLabelValues("http", p.Location, p.InstanceID).Observe(hduration)

			a.connMu.Lock()
			a.connectivityHTTP[key+":"+endpoint] = boolToFloat(hok)
			a.checkDurations["http:"+key+":"+endpoint] = hduration
			a.connMu.Unlock()
		}
	}
	return nil
}

func (a *Agent) tcpCheck(ctx context.Context, p wire.Member, timeout time.Duration) bool {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	d := net.Dialer{}
	conn, err := d.DialContext(dialCtx, "tcp", fmt.Sprintf("%s:%d", p.IP, p.Port))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func (a *Agent) httpCheck(ctx context.Context, p wire.Member, endpoint string, timeout time.Duration) bool {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	url := fmt.Sprintf("http://%s:%d%s", p.IP, p.Port, endpoint)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 400
}

// bandwidthOnce measures download throughput from every peer's
// /bandwidth_test endpoint: wall time from request start to full body read.
func (a *Agent) bandwidthOnce(ctx context.Context) error {
	peers := a.currentPeers()
	sizeMB := a.cfg.Tests.BandwidthTestSizeMB
	if sizeMB <= 0 {
		sizeMB = 1
	}

	for _, p := range peers {
		url := fmt.Sprintf("http://%s:%d/bandwidth_test?size=%d", p.IP, p.Port, sizeMB)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			continue
		}

		start := time.Now()
		resp, err := a.httpClient.Do(req)
		if err != nil {
			a.logger.Warn("bandwidth test failed", zap.String("peer", p.InstanceID), zap.Error(err))
			continue
		}
		n, _ := io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		duration := time.Since(start).Seconds()
		if duration <= 0 {
			continue
		}

		mbps := BandwidthMbps(n, duration)

		a.metrics.BandwidthMbps.WithLabelValues(a.cfg.Location, a.instanceID, p.Location, p.InstanceID, p.IP).Set(mbps)

		key := fmt.Sprintf("%s:%s", p.Location, p.InstanceID)
		a.bandwidthMu.Lock()
		a.bandwidthMbps[key] = mbps
		a.bandwidthMu.Unlock()
	}
	return nil
}

// BandwidthMbps computes megabits-per-second from a byte count and
// duration in seconds.
func BandwidthMbps(bytes int64, durationSeconds float64) float64 {
	return float64(bytes) * 8 / (durationSeconds * 1_000_000)
}

// tracerouteOnce runs the host traceroute binary against every peer's IP
// and retains the full hop array for the next metric report.
func (a *Agent) tracerouteOnce(ctx context.Context) error {
	peers := a.currentPeers()
	for _, p := range peers {
		result, err := traceroute.Run(ctx, p.IP)
		if err != nil {
			a.logger.Warn("traceroute failed", zap.String("peer", p.InstanceID), zap.Error(err))
			continue
		}

		a.metrics.TracerouteHopsTotal.WithLabelValues(a.cfg.Location, a.instanceID, p.Location, p.InstanceID, p.IP).Set(float64(result.TotalHops))
		a.metrics.TracerouteMaxHopLatency.WithLabelValues(a.cfg.Location, a.instanceID, p.Location, p.InstanceID, p.IP).Set(result.MaxHopLatency)

		a.bandwidthMu.Lock()
		bandwidth := a.bandwidthMbps[fmt.Sprintf("%s:%s", p.Location, p.InstanceID)]
		a.bandwidthMu.Unlock()

		key := fmt.Sprintf("%s:%s", p.Location, p.InstanceID)
		a.tracerouteMu.Lock()
		a.tracerouteData[key] = wire.RouteReport{
			Target:         p.Location,
			TargetInstance: p.InstanceID,
			Hops:           result.Hops,
			TotalHops:      result.TotalHops,
			MaxHopLatency:  result.MaxHopLatency,
			BandwidthMbps:  bandwidth,
		}
		a.tracerouteHops[key] = result.TotalHops
		a.tracerouteMu.Unlock()
	}
	return nil
}

// reportOnce serializes all current local metric state and posts it to the
// registry.
func (a *Agent) reportOnce(ctx context.Context) error {
	a.connMu.Lock()
	connTCP := copyFloatMap(a.connectivityTCP)
	connHTTP := copyFloatMap(a.connectivityHTTP)
	durations := copyFloatMap(a.checkDurations)
	a.connMu.Unlock()

	a.bandwidthMu.Lock()
	bandwidth := copyFloatMap(a.bandwidthMbps)
	a.bandwidthMu.Unlock()

	a.tracerouteMu.Lock()
	hops := copyIntMap(a.tracerouteHops)
	detailed := make(map[string]wire.RouteReport, len(a.tracerouteData))
	for k, v := range a.tracerouteData {
		detailed[k] = v
	}
	a.tracerouteMu.Unlock()

	report := wire.ReportMetricsRequest{
		InstanceID: a.instanceID,
		Metrics: wire.MetricSnapshot{
			ConnectivityTCP:        connTCP,
			ConnectivityHTTP:       connHTTP,
			CheckDurations:         durations,
			BandwidthTests:         bandwidth,
			TracerouteTests:        hops,
			DetailedTracerouteData: detailed,
			General:                map[string]any{},
		},
	}

	reportCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := a.registryRequest(reportCtx, http.MethodPost, "/report_metrics", report, nil)
	return err
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func copyFloatMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyIntMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
