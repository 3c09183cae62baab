package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/repository"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

// CacheService wraps the cache repository with a default TTL and an enabled
// switch. A nil receiver degrades to a no-op so callers never branch on
// whether caching is configured.
type CacheService struct {
	repo       *repository.CacheRepository
	enabled    bool
	defaultTTL time.Duration
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewCacheService constructs CacheService.
func NewCacheService(repo *repository.CacheRepository, enabled bool, defaultTTL time.Duration, metrics *MetricsService, logger *zap.Logger) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, enabled: enabled, defaultTTL: defaultTTL, metrics: metrics, logger: logger}
}

// Get loads the cached value into dest. The boolean reports a hit; cache
// errors are logged and treated as misses.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if s == nil || !s.enabled || s.repo == nil {
		return false, nil
	}
	err := s.repo.Get(ctx, key, dest)
	if err == nil {
		s.metrics.RecordCacheOperation(true)
		return true, nil
	}
	s.metrics.RecordCacheOperation(false)
	if errors.Is(err, appErrors.ErrCacheMiss) {
		return false, nil
	}
	s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	return false, err
}

// Set stores value under key. A zero ttl uses the configured default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if s == nil || !s.enabled || s.repo == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if err := s.repo.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Invalidate drops all cached entries matching the pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if s == nil || !s.enabled || s.repo == nil {
		return nil
	}
	return s.repo.DeleteByPattern(ctx, pattern)
}
