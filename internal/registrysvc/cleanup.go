package registrysvc

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/netring-mesh/netring/internal/store"
)

// RunCleanup scans the three membership sets every cleanup interval,
// reconciling dangling entries and expiring old records. On any store
// failure it logs and continues rather than aborting the scan.
func (s *Service) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanupOnce(ctx)
		}
	}
}

func (s *Service) cleanupOnce(ctx context.Context) {
	_ = s.timeStoreOp("cleanup_scan", func() error {
		s.cleanupActiveMembers(ctx)
		s.cleanupDeregisteredMembers(ctx)
		s.cleanupReportingMembers(ctx)
		return nil
	})
}

func (s *Service) cleanupActiveMembers(ctx context.Context) {
	ids, err := s.store.SMembers(ctx, store.ActiveMembersKey)
	if err != nil {
		s.logger.Warn("cleanup: list active members failed", zap.Error(err))
		return
	}
	now := time.Now()
	for _, id := range ids {
		fields, ok, err := s.store.HGetAll(ctx, store.MemberKey(id))
		if err != nil {
			s.logger.Warn("cleanup: read member failed", zap.String("id", id), zap.Error(err))
			continue
		}
		stale := !ok
		if ok {
			if lastSeen, err := strconv.ParseFloat(fields["last_seen"], 64); err == nil {
				if now.Sub(timeFromFloat(lastSeen)) > s.memberTTL {
					stale = true
				}
			}
		}
		if !stale {
			continue
		}
		if err := s.store.Del(ctx, store.MemberKey(id)); err != nil {
			s.logger.Warn("cleanup: delete stale member failed", zap.String("id", id), zap.Error(err))
		}
		if err := s.store.SRem(ctx, store.ActiveMembersKey, id); err != nil {
			s.logger.Warn("cleanup: remove stale member from set failed", zap.String("id", id), zap.Error(err))
		}
	}
}

func (s *Service) cleanupDeregisteredMembers(ctx context.Context) {
	ids, err := s.store.SMembers(ctx, store.DeregisteredMembersKey)
	if err != nil {
		s.logger.Warn("cleanup: list deregistered members failed", zap.Error(err))
		return
	}
	now := time.Now()
	for _, id := range ids {
		fields, ok, err := s.store.HGetAll(ctx, store.DeregisteredKey(id))
		if err != nil {
			s.logger.Warn("cleanup: read deregistered member failed", zap.String("id", id), zap.Error(err))
			continue
		}
		if !ok {
			if err := s.store.SRem(ctx, store.DeregisteredMembersKey, id); err != nil {
				s.logger.Warn("cleanup: remove dangling deregistered member failed", zap.String("id", id), zap.Error(err))
			}
			continue
		}
		deregAt, err := strconv.ParseFloat(fields["deregistered_at"], 64)
		if err != nil || now.Sub(timeFromFloat(deregAt)) > store.DeregisteredTTL {
			if err := s.store.Del(ctx, store.DeregisteredKey(id)); err != nil {
				s.logger.Warn("cleanup: delete deregistered member failed", zap.String("id", id), zap.Error(err))
			}
			if err := s.store.SRem(ctx, store.DeregisteredMembersKey, id); err != nil {
				s.logger.Warn("cleanup: remove expired deregistered member failed", zap.String("id", id), zap.Error(err))
			}
		}
	}
}

func (s *Service) cleanupReportingMembers(ctx context.Context) {
	ids, err := s.store.SMembers(ctx, store.ReportingMembersKey)
	if err != nil {
		s.logger.Warn("cleanup: list reporting members failed", zap.Error(err))
		return
	}
	for _, id := range ids {
		_, ok, err := s.store.HGetAll(ctx, store.MetricsKey(id))
		if err != nil {
			s.logger.Warn("cleanup: read metrics failed", zap.String("id", id), zap.Error(err))
			continue
		}
		if !ok {
			if err := s.store.SRem(ctx, store.ReportingMembersKey, id); err != nil {
				s.logger.Warn("cleanup: remove expired reporting member failed", zap.String("id", id), zap.Error(err))
			}
		}
	}
}

func timeFromFloat(f float64) time.Time {
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
