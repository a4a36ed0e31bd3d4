// Package memberagent implements the member side of netring: registration
// against the registry, the six supervised periodic loops, and the
// member's own HTTP surface.
package memberagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/netring-mesh/netring/internal/config"
	"github.com/netring-mesh/netring/internal/metrics"
	"github.com/netring-mesh/netring/internal/supervisor"
	"github.com/netring-mesh/netring/internal/wire"
)

// Agent is one running member instance.
type Agent struct {
	cfg         config.MemberConfig
	logger      *zap.Logger
	metrics     *metrics.MemberMetrics
	httpClient  *http.Client
	registryURL string

	instanceID string
	selfIP     string

	sup *supervisor.Supervisor

	peersMu sync.RWMutex
	peers   map[string]wire.Member

	tracerouteMu   sync.Mutex
	tracerouteData map[string]wire.RouteReport

	bandwidthMu   sync.Mutex
	bandwidthMbps map[string]float64

	connMu           sync.Mutex
	connectivityTCP  map[string]float64
	connectivityHTTP map[string]float64
	checkDurations   map[string]float64
	tracerouteHops   map[string]int
}

// New constructs an Agent from configuration; it does not perform network
// I/O until Run is called.
func New(cfg config.MemberConfig, logger *zap.Logger, reg *metrics.Registry, selfIP string) *Agent {
	memberMetrics := metrics.NewMemberMetrics(reg)

	taskTimeout := config.Duration(cfg.Intervals.TaskTimeout)
	monitorInterval := config.Duration(cfg.Intervals.MonitorInterval)

	return &Agent{
		cfg:              cfg,
		logger:           logger,
		metrics:          memberMetrics,
		httpClient:       &http.Client{Timeout: 10 * time.Second},
		registryURL:      cfg.Registry.URL,
		selfIP:           selfIP,
		sup:              supervisor.New(logger, taskTimeout, monitorInterval),
		peers:            make(map[string]wire.Member),
		tracerouteData:   make(map[string]wire.RouteReport),
		bandwidthMbps:    make(map[string]float64),
		connectivityTCP:  make(map[string]float64),
		connectivityHTTP: make(map[string]float64),
		checkDurations:   make(map[string]float64),
		tracerouteHops:   make(map[string]int),
	}
}

// Run registers against the registry, spawns the six supervised loops and
// the watchdog, and blocks until ctx is cancelled. On shutdown it
// deregisters first so the final POST completes over a live session, then
// closes the HTTP session, cancels every loop, and awaits termination.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.register(ctx); err != nil {
		return fmt.Errorf("initial registration failed: %w", err)
	}
	a.logger.Info("registered with registry", zap.String("instance_id", a.instanceID))

	runCtx, cancel := context.WithCancel(ctx)

	a.spawnLoop(runCtx, "heartbeat", config.Duration(a.cfg.Intervals.HeartbeatInterval), 0, a.heartbeatOnce)
	a.spawnLoop(runCtx, "discovery", config.Duration(a.cfg.Intervals.PollInterval), 0, a.discoveryOnce)
	a.spawnLoop(runCtx, "connectivity", config.Duration(a.cfg.Intervals.CheckInterval), 0, a.connectivityOnce)
	a.spawnLoop(runCtx, "bandwidth", config.Duration(a.cfg.Intervals.BandwidthTestInterval), config.Duration(a.cfg.Intervals.BandwidthTestDelay), a.bandwidthOnce)
	a.spawnLoop(runCtx, "traceroute", config.Duration(a.cfg.Intervals.TracerouteInterval), config.Duration(a.cfg.Intervals.TracerouteDelay), a.tracerouteOnce)
	a.spawnLoop(runCtx, "report", config.Duration(a.cfg.Intervals.ReportInterval), config.Duration(a.cfg.Intervals.ReportDelay), a.reportOnce)

	go a.sup.RunWatchdog(runCtx)

	<-ctx.Done()

	a.logger.Info("shutdown signalled, deregistering")
	deregisterCtx, deregisterCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := a.deregister(deregisterCtx); err != nil {
		a.logger.Warn("deregister failed during shutdown", zap.Error(err))
	}
	deregisterCancel()

	a.httpClient.CloseIdleConnections()
	cancel()
	a.sup.Wait()

	return nil
}

// spawnLoop registers one periodic probe under the supervisor. An error
// from fn returns out of the body so the resilient runner owns recovery:
// it logs, sleeps its backoff, and re-enters. The initial delay applies
// only to the first entry; a body re-entered after an error or watchdog
// restart resumes ticking immediately.
func (a *Agent) spawnLoop(ctx context.Context, name string, interval, initialDelay time.Duration, fn func(ctx context.Context) error) {
	var started atomic.Bool
	body := func(ctx context.Context, heartbeat func()) error {
		if initialDelay > 0 && started.CompareAndSwap(false, true) {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(initialDelay):
			}
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			heartbeat()
			if err := fn(ctx); err != nil {
				return fmt.Errorf("%s iteration: %w", name, err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	}
	a.sup.Spawn(ctx, name, body)
}

// HealthSnapshot builds the body of GET /health.
func (a *Agent) HealthSnapshot() wire.HealthResponse {
	snapshot := a.sup.Snapshot()
	taskTimeout := a.cfg.Intervals.TaskTimeout

	taskHealth := make(map[string]wire.TaskHealth, len(snapshot))
	var unhealthy []string
	for name, status := range snapshot {
		st := "healthy"
		if !status.Healthy {
			st = "unhealthy"
			unhealthy = append(unhealthy, name)
		}
		taskHealth[name] = wire.TaskHealth{
			LastHeartbeat:         wire.UnixFloat(status.LastHeartbeat),
			SecondsSinceHeartbeat: status.Age.Seconds(),
			Status:                st,
		}
	}

	overall := "healthy"
	if len(unhealthy) > 0 {
		overall = "unhealthy"
	}

	a.peersMu.RLock()
	peerCount := len(a.peers)
	a.peersMu.RUnlock()

	return wire.HealthResponse{
		Status:       overall,
		Version:      "1.0",
		Component:    "member",
		InstanceID:   a.instanceID,
		Location:     a.cfg.Location,
		MembersCount: peerCount,
		Timestamp:    wire.UnixFloat(time.Now()),
		TaskHealth:   taskHealth,
		UnhealthyTasks: unhealthy,
		FaultTolerance: &wire.FaultTolerance{
			TaskTimeoutSeconds:           taskTimeout,
			HealthMonitorIntervalSeconds: a.cfg.Intervals.MonitorInterval,
		},
	}
}

func (a *Agent) registryRequest(ctx context.Context, method, path string, body any, out any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.registryURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return resp, fmt.Errorf("decode response from %s: %w", path, err)
		}
	}
	return resp, nil
}

func (a *Agent) register(ctx context.Context) error {
	req := wire.RegisterRequest{
		InstanceID: a.cfg.InstanceID,
		Location:   a.cfg.Location,
		IP:         a.selfIP,
		Port:       a.cfg.Server.Port,
	}
	var resp wire.RegisterResponse
	httpResp, err := a.registryRequest(ctx, http.MethodPost, "/register", req, &resp)
	if err != nil {
		return err
	}
	if httpResp.StatusCode >= 300 {
		return fmt.Errorf("register returned status %d", httpResp.StatusCode)
	}
	a.instanceID = resp.InstanceID
	return nil
}

func (a *Agent) deregister(ctx context.Context) error {
	req := wire.InstanceRequest{InstanceID: a.instanceID}
	_, err := a.registryRequest(ctx, http.MethodPost, "/deregister", req, nil)
	return err
}
