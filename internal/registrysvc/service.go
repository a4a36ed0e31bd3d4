// Package registrysvc implements the registry side of netring: the
// membership store endpoints, topology ingestion, missing-member
// analysis, and the cleanup loop.
package registrysvc

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/netring-mesh/netring/internal/health"
	"github.com/netring-mesh/netring/internal/live"
	"github.com/netring-mesh/netring/internal/metrics"
	"github.com/netring-mesh/netring/internal/missing"
	"github.com/netring-mesh/netring/internal/store"
	"github.com/netring-mesh/netring/internal/topology"
	"github.com/netring-mesh/netring/internal/wire"
)

// Service holds all registry-side state: the external store, the
// in-memory topology graph, and the optional missing-member detector.
type Service struct {
	store   store.Store
	logger  *zap.Logger
	metrics *metrics.RegistryMetrics
	graph   *topology.Graph
	hub     *live.Hub
	health  *health.Health

	detector        *missing.Detector
	memberTTL       time.Duration
	cleanupInterval time.Duration
}

// New constructs a Service. detector may be nil when missing-member
// detection is disabled in configuration.
func New(st store.Store, logger *zap.Logger, m *metrics.RegistryMetrics, hub *live.Hub, detector *missing.Detector, memberTTL, cleanupInterval time.Duration) *Service {
	graph := topology.NewGraph()

	h := health.New()
	h.Register("store", health.PingChecker("store", st.Ping))

	svc := &Service{
		store:           st,
		logger:          logger,
		metrics:         m,
		graph:           graph,
		hub:             hub,
		health:          h,
		detector:        detector,
		memberTTL:       memberTTL,
		cleanupInterval: cleanupInterval,
	}
	if hub != nil {
		graph.OnChange = func() {
			hub.Broadcast("topology_update", graph.Snapshot())
		}
	}
	return svc
}

func generateInstanceID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate instance id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func memberToHash(m wire.Member) map[string]string {
	return map[string]string{
		"instance_id":   m.InstanceID,
		"location":      m.Location,
		"ip":            m.IP,
		"port":          strconv.Itoa(m.Port),
		"registered_at": formatFloat(m.RegisteredAt),
		"last_seen":     formatFloat(m.LastSeen),
	}
}

func hashToMember(id string, fields map[string]string) (wire.Member, error) {
	port, _ := strconv.Atoi(fields["port"])
	registeredAt, err := strconv.ParseFloat(fields["registered_at"], 64)
	if err != nil {
		return wire.Member{}, fmt.Errorf("parse registered_at: %w", err)
	}
	lastSeen, err := strconv.ParseFloat(fields["last_seen"], 64)
	if err != nil {
		return wire.Member{}, fmt.Errorf("parse last_seen: %w", err)
	}
	return wire.Member{
		InstanceID:   id,
		Location:     fields["location"],
		IP:           fields["ip"],
		Port:         port,
		RegisteredAt: registeredAt,
		LastSeen:     lastSeen,
	}, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ActiveMembers reconciles the active_members set against the store,
// dropping dangling ids, and returns the resolved member records.
func (s *Service) ActiveMembers(ctx context.Context) ([]wire.Member, error) {
	ids, err := s.store.SMembers(ctx, store.ActiveMembersKey)
	if err != nil {
		return nil, fmt.Errorf("list active members: %w", err)
	}

	var members []wire.Member
	for _, id := range ids {
		fields, ok, err := s.store.HGetAll(ctx, store.MemberKey(id))
		if err != nil {
			s.logger.Warn("reading member hash failed during scan", zap.String("id", id), zap.Error(err))
			continue
		}
		if !ok {
			if err := s.store.SRem(ctx, store.ActiveMembersKey, id); err != nil {
				s.logger.Warn("removing dangling active member failed", zap.String("id", id), zap.Error(err))
			}
			continue
		}
		m, err := hashToMember(id, fields)
		if err != nil {
			s.logger.Warn("parsing member hash failed", zap.String("id", id), zap.Error(err))
			continue
		}
		m.Status = "active"
		members = append(members, m)
	}
	return members, nil
}

// DeregisteredMembers resolves the deregistered_members set similarly.
func (s *Service) DeregisteredMembers(ctx context.Context) ([]wire.Member, error) {
	ids, err := s.store.SMembers(ctx, store.DeregisteredMembersKey)
	if err != nil {
		return nil, fmt.Errorf("list deregistered members: %w", err)
	}

	var members []wire.Member
	for _, id := range ids {
		fields, ok, err := s.store.HGetAll(ctx, store.DeregisteredKey(id))
		if err != nil {
			s.logger.Warn("reading deregistered hash failed during scan", zap.String("id", id), zap.Error(err))
			continue
		}
		if !ok {
			if err := s.store.SRem(ctx, store.DeregisteredMembersKey, id); err != nil {
				s.logger.Warn("removing dangling deregistered member failed", zap.String("id", id), zap.Error(err))
			}
			continue
		}
		m, err := hashToMember(id, fields)
		if err != nil {
			continue
		}
		if deregAt, ok := fields["deregistered_at"]; ok {
			if f, err := strconv.ParseFloat(deregAt, 64); err == nil {
				m.DeregisteredAt = f
			}
		}
		m.Status = "deregistered"
		members = append(members, m)
	}
	return members, nil
}
