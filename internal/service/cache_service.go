package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/levelup-edu/levelup-api/pkg/errors"
	"github.com/levelup-edu/levelup-api/pkg/jobs"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// courseRewardsKey is the cache key of a course's reward stats listing.
func courseRewardsKey(courseID int64) string {
	return fmt.Sprintf("rewards:course:%d", courseID)
}

// CacheService wraps a CacheRepository with metrics and fail-open semantics: cache errors are
// logged and reported as misses so callers fall back to the database.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
	retries    *jobs.Queue

	mu          sync.Mutex
	generations map[string]uint64
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{
		repo:        repo,
		metrics:     metrics,
		defaultTTL:  defaultTTL,
		logger:      logger,
		enabled:     enabled,
		generations: make(map[string]uint64),
	}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get fills dest from the cache and reports whether it was a hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

// Set stores value under key. A non-positive ttl uses the default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Generation returns the invalidation counter of key. Pair it with SetIfFresh to avoid
// caching a value read before a concurrent invalidation.
func (s *CacheService) Generation(key string) uint64 {
	if !s.Enabled() {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[key]
}

// SetIfFresh stores value only while key has not been invalidated since gen was read. An
// invalidation racing the write removes the entry again. Reports whether the value was kept.
func (s *CacheService) SetIfFresh(ctx context.Context, key string, value interface{}, ttl time.Duration, gen uint64) bool {
	if !s.Enabled() || s.Generation(key) != gen {
		return false
	}
	s.Set(ctx, key, value, ttl)
	if s.Generation(key) == gen {
		return true
	}
	if err := s.repo.DeleteByPattern(ctx, key); err != nil {
		s.logger.Warn("stale cache entry not removed", zap.String("key", key), zap.Error(err))
	}
	return false
}

// StartRetries runs a worker pool that retries failed invalidations in the background.
func (s *CacheService) StartRetries(ctx context.Context, workers int) {
	if !s.Enabled() {
		return
	}
	s.retries = jobs.NewQueue("cache-invalidation", func(ctx context.Context, job jobs.Job) error {
		return s.repo.DeleteByPattern(ctx, job.Key)
	}, jobs.QueueConfig{Workers: workers, Logger: s.logger})
	s.retries.Start(ctx)
}

// StopRetries stops the retry workers.
func (s *CacheService) StopRetries() {
	if s == nil || s.retries == nil {
		return
	}
	s.retries.Stop()
}

// Invalidate removes cached values matching pattern. A failed delete is handed to the retry
// queue when it is running.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) {
	if !s.Enabled() {
		return
	}
	s.mu.Lock()
	s.generations[pattern]++
	s.mu.Unlock()
	err := s.repo.DeleteByPattern(ctx, pattern)
	if err == nil {
		return
	}
	s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	if s.retries == nil || !s.retries.Running() {
		return
	}
	if err := s.retries.Enqueue(jobs.Job{Key: pattern}); err != nil {
		s.logger.Error("cache invalidation not retried", zap.String("pattern", pattern), zap.Error(err))
	}
}
