package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/stem-dashboard-api/internal/models"
	appErrors "github.com/noah-isme/stem-dashboard-api/pkg/errors"
)

const summaryCacheKey = "summary:overview"

type summaryRepository interface {
	Summary(ctx context.Context) (*models.DashboardSummary, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// SummaryService serves the dashboard statistics, reading through the cache.
type SummaryService struct {
	repo    summaryRepository
	cache   summaryCache
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewSummaryService constructs a SummaryService. cache may be nil.
func NewSummaryService(repo summaryRepository, cache summaryCache, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *SummaryService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SummaryService{repo: repo, cache: cache, metrics: metrics, ttl: ttl, logger: logger, now: time.Now}
}

// Summary returns the current statistics and whether they came from cache.
func (s *SummaryService) Summary(ctx context.Context) (*models.DashboardSummary, bool, error) {
	if s.cache != nil {
		var cached models.DashboardSummary
		hit, err := s.cache.Get(ctx, summaryCacheKey, &cached)
		if err != nil {
			s.logger.Warn("summary cache read failed", zap.Error(err))
		} else if hit {
			return &cached, true, nil
		}
	}

	start := s.now()
	summary, err := s.repo.Summary(ctx)
	s.metrics.ObserveDBQuery("summary", s.now().Sub(start))
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute summary")
	}
	summary.GeneratedAt = s.now().UTC()

	if s.cache != nil {
		if err := s.cache.Set(ctx, summaryCacheKey, summary, s.ttl); err != nil {
			s.logger.Warn("summary cache write failed", zap.Error(err))
		}
	}
	return summary, false, nil
}
