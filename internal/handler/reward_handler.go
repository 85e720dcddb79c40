package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/levelup-edu/levelup-api/internal/dto"
	"github.com/levelup-edu/levelup-api/internal/middleware"
	"github.com/levelup-edu/levelup-api/internal/models"
	"github.com/levelup-edu/levelup-api/pkg/response"
)

type rewardService interface {
	CreateReward(ctx context.Context, claims *models.JWTClaims, req dto.CreateRewardRequest) (*models.Reward, error)
	GetRewardStats(ctx context.Context, claims *models.JWTClaims, id int64) (*dto.RewardStats, error)
	ListCourseRewards(ctx context.Context, claims *models.JWTClaims, courseID int64) ([]dto.RewardStats, bool, error)
	SetRewardActive(ctx context.Context, claims *models.JWTClaims, id int64, req dto.UpdateRewardRequest) (*dto.RewardStats, error)
	ListRewardRedemptions(ctx context.Context, claims *models.JWTClaims, rewardID int64) ([]dto.RedemptionDetail, error)
	UpdateRedemptionStatus(ctx context.Context, claims *models.JWTClaims, redemptionID int64, req dto.UpdateRedemptionRequest) (*dto.RedemptionUpdate, error)
}

// RewardHandler exposes reward catalogue and redemption management endpoints.
type RewardHandler struct {
	service rewardService
}

// NewRewardHandler builds a new handler.
func NewRewardHandler(svc rewardService) *RewardHandler {
	return &RewardHandler{service: svc}
}

// Create godoc
// @Summary Create a reward in one of the caller's courses
// @Tags Rewards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateRewardRequest true "Reward payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.ErrorBody
// @Router /rewards [post]
func (h *RewardHandler) Create(c *gin.Context) {
	var req dto.CreateRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid reward payload"))
		return
	}
	reward, err := h.service.CreateReward(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reward)
}

// ListByCourse godoc
// @Summary List rewards of a course with availability
// @Tags Rewards
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /rewards/course/{courseId} [get]
func (h *RewardHandler) ListByCourse(c *gin.Context) {
	start := time.Now()
	courseID, err := pathID(c, "courseId")
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, hit, err := h.service.ListCourseRewards(c.Request.Context(), claimsFromContext(c), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	middleware.SetProcessingTime(c, start)
	response.JSON(c, http.StatusOK, stats, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get reward stats
// @Tags Rewards
// @Produce json
// @Security BearerAuth
// @Param rewardId path int true "Reward ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorBody
// @Router /rewards/{rewardId} [get]
func (h *RewardHandler) Get(c *gin.Context) {
	id, err := pathID(c, "rewardId")
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, err := h.service.GetRewardStats(c.Request.Context(), claimsFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats)
}

// SetActive godoc
// @Summary Activate or deactivate a reward
// @Tags Rewards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param rewardId path int true "Reward ID"
// @Param payload body dto.UpdateRewardRequest true "Active flag"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorBody
// @Router /rewards/{rewardId} [patch]
func (h *RewardHandler) SetActive(c *gin.Context) {
	id, err := pathID(c, "rewardId")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid reward update"))
		return
	}
	stats, err := h.service.SetRewardActive(c.Request.Context(), claimsFromContext(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats)
}

// Redemptions godoc
// @Summary List redemptions of a reward
// @Tags Rewards
// @Produce json
// @Security BearerAuth
// @Param rewardId path int true "Reward ID"
// @Success 200 {object} response.Envelope
// @Router /rewards/{rewardId}/redemptions [get]
func (h *RewardHandler) Redemptions(c *gin.Context) {
	id, err := pathID(c, "rewardId")
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.service.ListRewardRedemptions(c.Request.Context(), claimsFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items)
}

// UpdateRedemption godoc
// @Summary Fulfil or cancel a pending redemption
// @Description Cancelling refunds the reward cost
// @Tags Rewards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param redemptionId path int true "Redemption ID"
// @Param payload body dto.UpdateRedemptionRequest true "Action"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.ErrorBody
// @Router /redemptions/{redemptionId} [patch]
func (h *RewardHandler) UpdateRedemption(c *gin.Context) {
	id, err := pathID(c, "redemptionId")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateRedemptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid redemption update"))
		return
	}
	result, err := h.service.UpdateRedemptionStatus(c.Request.Context(), claimsFromContext(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
