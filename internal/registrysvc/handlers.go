package registrysvc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/netring-mesh/netring/internal/store"
	"github.com/netring-mesh/netring/internal/topology"
	"github.com/netring-mesh/netring/internal/wire"
)

// Handler builds the registry's full HTTP surface.
func (s *Service) Handler(metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/register", s.handleRegister)
	mux.HandleFunc("/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("/deregister", s.handleDeregister)
	mux.HandleFunc("/members", s.handleMembers)
	mux.HandleFunc("/report_metrics", s.handleReportMetrics)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.Handle("/internal/metrics", metricsHandler)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/clear_redis", s.handleClearRedis)
	mux.HandleFunc("/members_with_analysis", s.handleMembersWithAnalysis)
	mux.HandleFunc("/topology", s.handleTopology)
	mux.HandleFunc("/topology/svg", s.handleTopologySVG)
	mux.HandleFunc("/topology/path", s.handleTopologyPath)
	if s.hub != nil {
		mux.Handle("/ws/topology", s.hub)
	}
	return s.metricsMiddleware(mux)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, wire.StatusResponse{Error: msg})
}

func (s *Service) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req wire.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json body")
		return
	}
	if req.Location == "" || req.IP == "" || req.Port == 0 {
		writeError(w, http.StatusBadRequest, "location, ip, and port are required")
		return
	}

	id := req.InstanceID
	if id == "" {
		var err error
		id, err = generateInstanceID()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to assign instance id")
			return
		}
	}

	now := float64FromTime(time.Now())
	member := wire.Member{
		InstanceID:   id,
		Location:     req.Location,
		IP:           req.IP,
		Port:         req.Port,
		RegisteredAt: now,
		LastSeen:     now,
	}

	ctx := r.Context()
	if err := s.store.HSet(ctx, store.MemberKey(id), memberToHash(member), s.memberTTL); err != nil {
		s.logger.Error("register hset failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store write failed")
		return
	}
	if err := s.store.SAdd(ctx, store.ActiveMembersKey, id, 0); err != nil {
		s.logger.Error("register sadd failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store write failed")
		return
	}

	writeJSON(w, http.StatusOK, wire.RegisterResponse{InstanceID: id, Status: "registered"})
}

func (s *Service) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req wire.InstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json body")
		return
	}

	ctx := r.Context()
	key := store.MemberKey(req.InstanceID)
	fields, ok, err := s.store.HGetAll(ctx, key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store read failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "unknown member")
		return
	}

	fields["last_seen"] = formatFloat(float64FromTime(time.Now()))
	if err := s.store.HSet(ctx, key, fields, s.memberTTL); err != nil {
		writeError(w, http.StatusInternalServerError, "store write failed")
		return
	}

	writeJSON(w, http.StatusOK, wire.StatusResponse{Status: "ok"})
}

func (s *Service) handleDeregister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req wire.InstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json body")
		return
	}

	ctx := r.Context()
	fields, ok, err := s.store.HGetAll(ctx, store.MemberKey(req.InstanceID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store read failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "unknown member")
		return
	}

	fields["deregistered_at"] = formatFloat(float64FromTime(time.Now()))
	if err := s.store.HSet(ctx, store.DeregisteredKey(req.InstanceID), fields, store.DeregisteredTTL); err != nil {
		writeError(w, http.StatusInternalServerError, "store write failed")
		return
	}
	if err := s.store.SAdd(ctx, store.DeregisteredMembersKey, req.InstanceID, store.DeregisteredTTL); err != nil {
		writeError(w, http.StatusInternalServerError, "store write failed")
		return
	}
	if err := s.store.Del(ctx, store.MemberKey(req.InstanceID)); err != nil {
		writeError(w, http.StatusInternalServerError, "store write failed")
		return
	}
	if err := s.store.SRem(ctx, store.ActiveMembersKey, req.InstanceID); err != nil {
		writeError(w, http.StatusInternalServerError, "store write failed")
		return
	}

	writeJSON(w, http.StatusOK, wire.StatusResponse{Status: "deregistered"})
}

func (s *Service) handleMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	active, err := s.ActiveMembers(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list active members")
		return
	}
	deregistered, err := s.DeregisteredMembers(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list deregistered members")
		return
	}

	members := make([]wire.Member, 0, len(active)+len(deregistered))
	members = append(members, active...)
	members = append(members, deregistered...)

	if s.metrics != nil {
		s.metrics.ActiveMembers.WithLabelValues().Set(float64(len(active)))
	}

	writeJSON(w, http.StatusOK, wire.MembersResponse{Members: members})
}

func (s *Service) handleReportMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req wire.ReportMetricsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json body")
		return
	}
	if req.InstanceID == "" {
		writeError(w, http.StatusBadRequest, "instance_id is required")
		return
	}

	ctx := r.Context()
	data, err := json.Marshal(req.Metrics)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode metrics")
		return
	}
	if err := s.store.HSet(ctx, store.MetricsKey(req.InstanceID), map[string]string{"snapshot": string(data)}, store.MetricsTTL); err != nil {
		writeError(w, http.StatusInternalServerError, "store write failed")
		return
	}
	if err := s.store.SAdd(ctx, store.ReportingMembersKey, req.InstanceID, store.MetricsTTL); err != nil {
		writeError(w, http.StatusInternalServerError, "store write failed")
		return
	}

	sourceLocation := s.resolveMemberLocation(ctx, req.InstanceID)
	s.ingestTraceroutes(sourceLocation, req.Metrics)

	writeJSON(w, http.StatusOK, wire.StatusResponse{Status: "ok"})
}

// resolveMemberLocation looks up the reporting member's own location, the
// source side of every route it reports, falling back to its instance id
// if the member record has already expired.
func (s *Service) resolveMemberLocation(ctx context.Context, instanceID string) string {
	location, ok, err := s.store.HGet(ctx, store.MemberKey(instanceID), "location")
	if err != nil || !ok || location == "" {
		return instanceID
	}
	return location
}

// ingestTraceroutes synchronously feeds detailed_traceroute_data into the
// topology engine: each entry's target location becomes the target side of
// a route whose source is the reporting member's own location. Targets
// that appear only in traceroute_tests (hop count, no per-hop detail)
// fall back to a route-presence entry so they still contribute to the
// graph.
func (s *Service) ingestTraceroutes(sourceLocation string, snapshot wire.MetricSnapshot) {
	for _, route := range snapshot.DetailedTracerouteData {
		s.graph.AddTraceroute(sourceLocation, route.Target, route.Hops, route.BandwidthMbps)
	}

	for key, totalHops := range snapshot.TracerouteTests {
		if _, ok := snapshot.DetailedTracerouteData[key]; ok {
			continue
		}
		target, _, found := strings.Cut(key, ":")
		if !found {
			target = key
		}
		if target == "" {
			continue
		}
		s.graph.AddRoutePresence(sourceLocation, target, totalHops, snapshot.BandwidthTests[key])
	}
}

// handleMetrics returns the stored per-member metric snapshots as JSON
// (distinct from the Prometheus text exposition, which lives at
// /internal/metrics here).
func (s *Service) handleMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ids, err := s.store.SMembers(ctx, store.ReportingMembersKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reporting members")
		return
	}

	snapshots := make(map[string]wire.MetricSnapshot, len(ids))
	for _, id := range ids {
		fields, ok, err := s.store.HGetAll(ctx, store.MetricsKey(id))
		if err != nil || !ok {
			continue
		}
		raw, ok := fields["snapshot"]
		if !ok {
			continue
		}
		var snapshot wire.MetricSnapshot
		if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
			s.logger.Warn("failed to decode stored metric snapshot", zap.String("id", id), zap.Error(err))
			continue
		}
		snapshots[id] = snapshot
	}

	writeJSON(w, http.StatusOK, wire.MetricsResponse{Metrics: snapshots})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "healthy"
	code := http.StatusOK
	if !s.health.IsHealthy(ctx) {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, wire.HealthResponse{
		Status:    status,
		Version:   "1.0",
		Component: "registry",
		Timestamp: float64FromTime(time.Now()),
	})
}

func (s *Service) handleClearRedis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	n, err := s.store.FlushPrefix(r.Context(), store.KeyPrefix)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "flush failed")
		return
	}
	s.graph.Reset()
	writeJSON(w, http.StatusOK, map[string]any{"status": "cleared", "keys_deleted": n})
}

func (s *Service) handleMembersWithAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	active, err := s.ActiveMembers(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list active members")
		return
	}
	deregistered, err := s.DeregisteredMembers(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list deregistered members")
		return
	}
	members := make([]wire.Member, 0, len(active)+len(deregistered))
	members = append(members, active...)
	members = append(members, deregistered...)

	var analysis wire.MissingAnalysis
	if s.detector != nil {
		analysis = s.detector.Analyze(active)
	}

	writeJSON(w, http.StatusOK, wire.MembersWithAnalysisResponse{
		Members:         members,
		MissingAnalysis: analysis,
		Timestamp:       float64FromTime(time.Now()),
	})
}

func (s *Service) handleTopology(w http.ResponseWriter, r *http.Request) {
	snap := s.graph.Snapshot()
	bottlenecks := s.graph.Bottlenecks(topology.InclusionThresholdMs)

	if s.metrics != nil {
		s.metrics.TopologyEdges.WithLabelValues().Set(float64(len(snap.Edges)))
	}

	resp := map[string]any{
		"summary":     topology.Summarize(snap),
		"nodes":       snap.Nodes,
		"edges":       snap.Edges,
		"bottlenecks": bottlenecks,
	}
	if s.hub != nil {
		resp["live_clients"] = s.hub.Stats().CurrentConnections
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleTopologySVG(w http.ResponseWriter, r *http.Request) {
	width := queryInt(r, "width", 1200)
	height := queryInt(r, "height", 800)

	snap := s.graph.Snapshot()
	svg := topology.RenderSVG(snap, width, height)

	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(svg))
}

func (s *Service) handleTopologyPath(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	target := r.URL.Query().Get("target")
	if source == "" || target == "" {
		writeError(w, http.StatusBadRequest, "source and target are required")
		return
	}

	result, err := s.graph.Path(source, target)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func float64FromTime(t time.Time) float64 {
	return wire.UnixFloat(t)
}
