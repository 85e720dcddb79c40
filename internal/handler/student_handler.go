package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/levelup-edu/levelup-api/internal/dto"
	"github.com/levelup-edu/levelup-api/internal/models"
	"github.com/levelup-edu/levelup-api/pkg/response"
)

type studentCourseService interface {
	RegisterStudent(ctx context.Context, claims *models.JWTClaims, req dto.RegisterCourseRequest) (*models.Course, error)
	ListStudentCourses(ctx context.Context, claims *models.JWTClaims) ([]models.Course, error)
}

type studentSubmissionService interface {
	AttendQuest(ctx context.Context, claims *models.JWTClaims, req dto.AttendQuestRequest) (*models.Submission, error)
	ListAvailableQuests(ctx context.Context, claims *models.JWTClaims, courseID int64) ([]models.Quest, error)
	ListStudentSubmissions(ctx context.Context, claims *models.JWTClaims) ([]dto.StudentSubmission, error)
}

type studentLedgerService interface {
	GetStudentPoints(ctx context.Context, claims *models.JWTClaims) (*dto.PointsBalance, error)
	ListStudentTransactions(ctx context.Context, claims *models.JWTClaims) ([]models.Transaction, error)
	GetClaimedSubmissionIDs(ctx context.Context, claims *models.JWTClaims) ([]int64, error)
}

type studentRewardService interface {
	GetRewardIfAvailableFor(ctx context.Context, claims *models.JWTClaims, id int64) (*models.Reward, error)
	RedeemReward(ctx context.Context, claims *models.JWTClaims, rewardID int64) (*dto.RedeemResult, error)
	ListStudentRedemptions(ctx context.Context, claims *models.JWTClaims) ([]dto.RedemptionDetail, error)
}

// StudentHandler exposes the student-facing endpoints.
type StudentHandler struct {
	courses     studentCourseService
	submissions studentSubmissionService
	ledger      studentLedgerService
	rewards     studentRewardService
}

// NewStudentHandler builds a new handler.
func NewStudentHandler(courses studentCourseService, submissions studentSubmissionService, ledger studentLedgerService, rewards studentRewardService) *StudentHandler {
	return &StudentHandler{courses: courses, submissions: submissions, ledger: ledger, rewards: rewards}
}

// RegisterCourse godoc
// @Summary Join a course by its code
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.RegisterCourseRequest true "Course code"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Router /student/register-course [post]
func (h *StudentHandler) RegisterCourse(c *gin.Context) {
	var req dto.RegisterCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid registration payload"))
		return
	}
	course, err := h.courses.RegisterStudent(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Courses godoc
// @Summary List the caller's registered courses
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /student/courses [get]
func (h *StudentHandler) Courses(c *gin.Context) {
	courses, err := h.courses.ListStudentCourses(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses)
}

// AvailableQuests godoc
// @Summary List quests the caller can still attend
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /student/courses/{courseId}/quests [get]
func (h *StudentHandler) AvailableQuests(c *gin.Context) {
	courseID, err := pathID(c, "courseId")
	if err != nil {
		response.Error(c, err)
		return
	}
	quests, err := h.submissions.ListAvailableQuests(c.Request.Context(), claimsFromContext(c), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quests)
}

// AttendQuest godoc
// @Summary Submit attendance for a quest
// @Description 409 when the quest was already attended or has expired
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.AttendQuestRequest true "Quest"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Router /student/attend-quest [post]
func (h *StudentHandler) AttendQuest(c *gin.Context) {
	var req dto.AttendQuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid attendance payload"))
		return
	}
	submission, err := h.submissions.AttendQuest(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// Submissions godoc
// @Summary List the caller's submissions
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /student/submissions [get]
func (h *StudentHandler) Submissions(c *gin.Context) {
	items, err := h.submissions.ListStudentSubmissions(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items)
}

// Points godoc
// @Summary Get the caller's points balance
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /student/points [get]
func (h *StudentHandler) Points(c *gin.Context) {
	balance, err := h.ledger.GetStudentPoints(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, balance)
}

// Transactions godoc
// @Summary List the caller's ledger entries
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /student/transactions [get]
func (h *StudentHandler) Transactions(c *gin.Context) {
	items, err := h.ledger.ListStudentTransactions(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items)
}

// ClaimedSubmissions godoc
// @Summary List ids of the caller's credited submissions
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /student/claimed-submissions [get]
func (h *StudentHandler) ClaimedSubmissions(c *gin.Context) {
	ids, err := h.ledger.GetClaimedSubmissionIDs(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ids)
}

// Reward godoc
// @Summary Get a reward if it can currently be redeemed
// @Description reward is null when the reward is inactive or sold out; rewards of other courses are 404
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param rewardId path int true "Reward ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorBody
// @Router /student/rewards/{rewardId} [get]
func (h *StudentHandler) Reward(c *gin.Context) {
	id, err := pathID(c, "rewardId")
	if err != nil {
		response.Error(c, err)
		return
	}
	reward, err := h.rewards.GetRewardIfAvailableFor(c.Request.Context(), claimsFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"available": reward != nil, "reward": reward})
}

// Redeem godoc
// @Summary Redeem a reward with points
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param rewardId path int true "Reward ID"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Router /student/rewards/{rewardId}/redeem [post]
func (h *StudentHandler) Redeem(c *gin.Context) {
	id, err := pathID(c, "rewardId")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.rewards.RedeemReward(c.Request.Context(), claimsFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Redemptions godoc
// @Summary List the caller's redemptions
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /student/redemptions [get]
func (h *StudentHandler) Redemptions(c *gin.Context) {
	items, err := h.rewards.ListStudentRedemptions(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items)
}
