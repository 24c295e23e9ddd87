package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iload-dev/iload-api/internal/models"
	appErrors "github.com/iload-dev/iload-api/pkg/errors"
)

type dashboardRepository interface {
	Stats(ctx context.Context) (*models.DashboardStats, error)
}

// DashboardService aggregates admin dashboard counters, served from cache
// when possible.
type DashboardService struct {
	repo     dashboardRepository
	cache    *CacheService
	metrics  *MetricsService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewDashboardService wires the dashboard service.
func NewDashboardService(repo dashboardRepository, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if cacheTTL <= 0 {
		cacheTTL = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{repo: repo, cache: cache, metrics: metrics, cacheTTL: cacheTTL, logger: logger}
}

const dashboardStatsKey = "dashboard:stats"

// Stats returns entity and conflict counters for the admin dashboard.
func (s *DashboardService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	var cached models.DashboardStats
	if hit, _ := s.cache.Get(ctx, dashboardStatsKey, &cached); hit {
		return &cached, nil
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dashboard stats")
	}
	stats.GeneratedAt = time.Now().UTC()
	_ = s.cache.Set(ctx, dashboardStatsKey, stats, s.cacheTTL)
	return stats, nil
}

// Metrics returns a runtime metrics snapshot. It is never cached.
func (s *DashboardService) Metrics() models.SystemMetrics {
	if s.metrics == nil {
		return models.SystemMetrics{}
	}
	return s.metrics.Snapshot()
}
