package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/levelup-edu/levelup-api/internal/dto"
	"github.com/levelup-edu/levelup-api/internal/models"
	"github.com/levelup-edu/levelup-api/internal/repository"
	appErrors "github.com/levelup-edu/levelup-api/pkg/errors"
	"github.com/levelup-edu/levelup-api/pkg/sanitize"
)

type rewardRepository interface {
	Create(ctx context.Context, reward *models.Reward) error
	FindByID(ctx context.Context, id int64) (*models.Reward, error)
	FindUsage(ctx context.Context, id int64) (*dto.RewardUsage, error)
	ListUsageByCourse(ctx context.Context, courseID int64) ([]dto.RewardUsage, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

type redemptionRepository interface {
	Redeem(ctx context.Context, rewardID int64, studentEmail string) (*dto.RedeemResult, error)
	FindDetailByID(ctx context.Context, id int64) (*dto.RedemptionDetail, error)
	ListByReward(ctx context.Context, rewardID int64) ([]dto.RedemptionDetail, error)
	ListByStudent(ctx context.Context, studentEmail string) ([]dto.RedemptionDetail, error)
	UpdateStatus(ctx context.Context, id int64, status models.RedemptionStatus) (*dto.RedemptionUpdate, error)
}

// Redemption outcomes reported to metrics.
const (
	redeemOutcomeSuccess      = "success"
	redeemOutcomeUnavailable  = "unavailable"
	redeemOutcomeInsufficient = "insufficient_points"
	redeemOutcomeError        = "error"
)

// RewardConfig governs the reward stats cache.
type RewardConfig struct {
	CacheTTL time.Duration
}

// RewardService manages course rewards and their redemptions.
type RewardService struct {
	rewards     rewardRepository
	redemptions redemptionRepository
	courses     courseAccessReader
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	config      RewardConfig
}

// NewRewardService constructs a RewardService. A nil cache disables caching.
func NewRewardService(rewards rewardRepository, redemptions redemptionRepository, courses courseAccessReader, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config RewardConfig) *RewardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RewardService{
		rewards:     rewards,
		redemptions: redemptions,
		courses:     courses,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		config:      config,
	}
}

func rewardNotFound() *appErrors.Error {
	return appErrors.Clone(appErrors.ErrNotFound, "reward not found")
}

func (s *RewardService) loadUsage(ctx context.Context, id int64) (*dto.RewardUsage, error) {
	start := time.Now()
	usage, err := s.rewards.FindUsage(ctx, id)
	s.metrics.ObserveDBQuery("reward_stats", time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rewardNotFound()
		}
		return nil, appErrors.Internal(err, "failed to load reward")
	}
	return usage, nil
}

// ownedReward loads a reward whose course belongs to the calling instructor.
func (s *RewardService) ownedReward(ctx context.Context, claims *models.JWTClaims, id int64) (*models.Reward, error) {
	if err := requireInstructor(claims); err != nil {
		return nil, err
	}
	reward, err := s.rewards.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rewardNotFound()
		}
		return nil, appErrors.Internal(err, "failed to load reward")
	}
	if _, err := ownedCourse(ctx, s.courses, claims, reward.CourseID); err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, rewardNotFound()
		}
		return nil, err
	}
	return reward, nil
}

func (s *RewardService) invalidateCourse(ctx context.Context, courseID int64) {
	s.cache.Invalidate(ctx, courseRewardsKey(courseID))
}

// CreateReward adds a reward to one of the caller's courses. Rewards are active and of the
// unspecified type unless the request says otherwise.
func (s *RewardService) CreateReward(ctx context.Context, claims *models.JWTClaims, req dto.CreateRewardRequest) (*models.Reward, error) {
	if err := requireInstructor(claims); err != nil {
		return nil, err
	}
	req.Name = sanitize.Text(req.Name)
	req.Description = sanitize.OptionalText(req.Description)
	req.Type = sanitize.OptionalText(req.Type)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid reward payload")
	}
	if _, err := ownedCourse(ctx, s.courses, claims, req.CourseID); err != nil {
		return nil, err
	}

	reward := &models.Reward{
		CourseID:      req.CourseID,
		Name:          req.Name,
		Description:   req.Description,
		Cost:          req.Cost,
		QuantityLimit: req.QuantityLimit,
		Type:          models.RewardTypeUnspecified,
		Active:        true,
	}
	if req.Type != nil {
		reward.Type = *req.Type
	}
	if req.Active != nil {
		reward.Active = *req.Active
	}
	if err := s.rewards.Create(ctx, reward); err != nil {
		return nil, appErrors.Internal(err, "failed to create reward")
	}
	s.invalidateCourse(ctx, reward.CourseID)
	s.logger.Info("reward created", zap.Int64("reward_id", reward.ID), zap.Int64("course_id", reward.CourseID), zap.Int("cost", reward.Cost))
	return reward, nil
}

// GetRewardIfAvailable returns the reward when it can currently be redeemed and nil when it is
// inactive or sold out. A missing reward is NotFound.
func (s *RewardService) GetRewardIfAvailable(ctx context.Context, id int64) (*models.Reward, error) {
	usage, err := s.loadUsage(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := usage.Availability(usage.Redeemed); !ok {
		return nil, nil
	}
	return &usage.Reward, nil
}

// GetRewardIfAvailableFor is GetRewardIfAvailable scoped to the caller: rewards of a course
// the caller neither owns nor is registered in read as NotFound.
func (s *RewardService) GetRewardIfAvailableFor(ctx context.Context, claims *models.JWTClaims, id int64) (*models.Reward, error) {
	if claims == nil || claims.Email == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	usage, err := s.loadUsage(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := visibleCourse(ctx, s.courses, claims, usage.CourseID); err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, rewardNotFound()
		}
		return nil, err
	}
	if _, ok := usage.Availability(usage.Redeemed); !ok {
		return nil, nil
	}
	return &usage.Reward, nil
}

// GetRewardStats returns availability figures for a reward in a course visible to the caller.
func (s *RewardService) GetRewardStats(ctx context.Context, claims *models.JWTClaims, id int64) (*dto.RewardStats, error) {
	if claims == nil || claims.Email == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	usage, err := s.loadUsage(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := visibleCourse(ctx, s.courses, claims, usage.CourseID); err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, rewardNotFound()
		}
		return nil, err
	}
	stats := dto.NewRewardStats(*usage)
	return &stats, nil
}

// ListCourseRewards returns stats for every reward of a visible course. The second result
// reports whether the list was served from cache.
func (s *RewardService) ListCourseRewards(ctx context.Context, claims *models.JWTClaims, courseID int64) ([]dto.RewardStats, bool, error) {
	if _, err := visibleCourse(ctx, s.courses, claims, courseID); err != nil {
		return nil, false, err
	}

	key := courseRewardsKey(courseID)
	var cached []dto.RewardStats
	if s.cache.Get(ctx, key, &cached) {
		return cached, true, nil
	}

	gen := s.cache.Generation(key)
	start := time.Now()
	usages, err := s.rewards.ListUsageByCourse(ctx, courseID)
	s.metrics.ObserveDBQuery("course_reward_stats", time.Since(start))
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to list rewards")
	}
	stats := make([]dto.RewardStats, 0, len(usages))
	for _, usage := range usages {
		stats = append(stats, dto.NewRewardStats(usage))
	}
	s.cache.SetIfFresh(ctx, key, stats, s.config.CacheTTL, gen)
	return stats, false, nil
}

// SetRewardActive toggles whether one of the caller's rewards can be redeemed.
func (s *RewardService) SetRewardActive(ctx context.Context, claims *models.JWTClaims, id int64, req dto.UpdateRewardRequest) (*dto.RewardStats, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "active is required")
	}
	reward, err := s.ownedReward(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	if err := s.rewards.SetActive(ctx, id, *req.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rewardNotFound()
		}
		return nil, appErrors.Internal(err, "failed to update reward")
	}
	s.invalidateCourse(ctx, reward.CourseID)

	usage, err := s.loadUsage(ctx, id)
	if err != nil {
		return nil, err
	}
	stats := dto.NewRewardStats(*usage)
	return &stats, nil
}

// RedeemReward buys a reward for the calling student. Availability and balance are rechecked
// under row locks in the same database transaction that records the debit.
func (s *RewardService) RedeemReward(ctx context.Context, claims *models.JWTClaims, rewardID int64) (*dto.RedeemResult, error) {
	if err := requireStudent(claims); err != nil {
		return nil, err
	}
	reward, err := s.rewards.FindByID(ctx, rewardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rewardNotFound()
		}
		return nil, appErrors.Internal(err, "failed to load reward")
	}
	registered, err := s.courses.IsRegistered(ctx, claims.Email, reward.CourseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check registration")
	}
	if !registered {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not registered for this course")
	}

	result, err := s.redemptions.Redeem(ctx, rewardID, claims.Email)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRewardUnavailable):
			s.metrics.RecordRedemption(redeemOutcomeUnavailable)
			return nil, appErrors.Clone(appErrors.ErrRewardUnavailable, "reward unavailable")
		case errors.Is(err, repository.ErrInsufficientPoints):
			s.metrics.RecordRedemption(redeemOutcomeInsufficient)
			return nil, appErrors.Clone(appErrors.ErrInsufficientPoints, "insufficient points")
		case errors.Is(err, sql.ErrNoRows):
			return nil, rewardNotFound()
		}
		s.metrics.RecordRedemption(redeemOutcomeError)
		return nil, appErrors.Internal(err, "failed to redeem reward")
	}

	s.metrics.RecordRedemption(redeemOutcomeSuccess)
	s.invalidateCourse(ctx, reward.CourseID)
	s.logger.Info("reward redeemed",
		zap.Int64("reward_id", rewardID),
		zap.Int64("redemption_id", result.Redemption.ID),
		zap.String("student", claims.Email),
		zap.Int("balance", result.Balance),
	)
	return result, nil
}

// ListRewardRedemptions returns redemptions of one of the caller's rewards.
func (s *RewardService) ListRewardRedemptions(ctx context.Context, claims *models.JWTClaims, rewardID int64) ([]dto.RedemptionDetail, error) {
	if _, err := s.ownedReward(ctx, claims, rewardID); err != nil {
		return nil, err
	}
	items, err := s.redemptions.ListByReward(ctx, rewardID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list redemptions")
	}
	return items, nil
}

// ListStudentRedemptions returns the calling student's redemptions.
func (s *RewardService) ListStudentRedemptions(ctx context.Context, claims *models.JWTClaims) ([]dto.RedemptionDetail, error) {
	if err := requireStudent(claims); err != nil {
		return nil, err
	}
	items, err := s.redemptions.ListByStudent(ctx, claims.Email)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list redemptions")
	}
	return items, nil
}

// UpdateRedemptionStatus fulfils or cancels a pending redemption of one of the caller's
// rewards. Cancelling refunds the cost.
func (s *RewardService) UpdateRedemptionStatus(ctx context.Context, claims *models.JWTClaims, redemptionID int64, req dto.UpdateRedemptionRequest) (*dto.RedemptionUpdate, error) {
	if err := requireInstructor(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "action must be fulfill or cancel")
	}

	notFound := appErrors.Clone(appErrors.ErrNotFound, "redemption not found")
	detail, err := s.redemptions.FindDetailByID(ctx, redemptionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound
		}
		return nil, appErrors.Internal(err, "failed to load redemption")
	}
	if _, err := ownedCourse(ctx, s.courses, claims, detail.CourseID); err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, notFound
		}
		return nil, err
	}

	status := models.RedemptionFulfilled
	if req.Action == dto.ActionCancel {
		status = models.RedemptionCancelled
	}
	result, err := s.redemptions.UpdateStatus(ctx, redemptionID, status)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRedemptionProcessed):
			return nil, appErrors.Clone(appErrors.ErrConflict, "redemption already processed")
		case errors.Is(err, sql.ErrNoRows):
			return nil, notFound
		}
		return nil, appErrors.Internal(err, "failed to update redemption")
	}

	s.invalidateCourse(ctx, detail.CourseID)
	s.logger.Info("redemption updated", zap.Int64("redemption_id", redemptionID), zap.String("status", string(status)))
	return result, nil
}
