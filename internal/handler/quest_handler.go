package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/levelup-edu/levelup-api/internal/dto"
	"github.com/levelup-edu/levelup-api/internal/models"
	"github.com/levelup-edu/levelup-api/pkg/response"
)

type questService interface {
	CreateQuest(ctx context.Context, claims *models.JWTClaims, req dto.CreateQuestRequest) (*models.Quest, error)
	ListCourseQuests(ctx context.Context, claims *models.JWTClaims, courseID int64) ([]models.Quest, error)
	ListInstructorQuests(ctx context.Context, claims *models.JWTClaims) ([]dto.QuestWithCourse, error)
	GetQuest(ctx context.Context, claims *models.JWTClaims, id int64) (*models.Quest, error)
	DeleteQuest(ctx context.Context, claims *models.JWTClaims, id int64) error
	ListQuestSubmissions(ctx context.Context, claims *models.JWTClaims, questID int64) (*dto.QuestSubmissions, error)
}

type submissionVerifier interface {
	VerifySubmission(ctx context.Context, claims *models.JWTClaims, questID, submissionID int64, req dto.VerifySubmissionRequest) (*dto.VerificationResult, error)
}

// QuestHandler exposes quest authoring and verification endpoints.
type QuestHandler struct {
	quests   questService
	verifier submissionVerifier
}

// NewQuestHandler builds a new handler.
func NewQuestHandler(quests questService, verifier submissionVerifier) *QuestHandler {
	return &QuestHandler{quests: quests, verifier: verifier}
}

// verifyResponse is the body of a successful verification.
type verifyResponse struct {
	Message     string                  `json:"message"`
	Status      models.SubmissionStatus `json:"status"`
	Transaction *models.Transaction     `json:"transaction,omitempty"`
}

// Create godoc
// @Summary Create a quest
// @Tags Quests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateQuestRequest true "Quest payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /quests [post]
func (h *QuestHandler) Create(c *gin.Context) {
	var req dto.CreateQuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid quest payload"))
		return
	}
	quest, err := h.quests.CreateQuest(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, quest)
}

// ListByCourse godoc
// @Summary List quests of a course
// @Tags Quests
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /quests/course/{courseId} [get]
func (h *QuestHandler) ListByCourse(c *gin.Context) {
	courseID, err := pathID(c, "courseId")
	if err != nil {
		response.Error(c, err)
		return
	}
	quests, err := h.quests.ListCourseQuests(c.Request.Context(), claimsFromContext(c), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quests)
}

// ListMine godoc
// @Summary List quests across the caller's courses
// @Tags Quests
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /quests/instructor [get]
func (h *QuestHandler) ListMine(c *gin.Context) {
	quests, err := h.quests.ListInstructorQuests(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quests)
}

// Get godoc
// @Summary Get a quest
// @Tags Quests
// @Produce json
// @Security BearerAuth
// @Param questId path int true "Quest ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorBody
// @Router /quests/{questId} [get]
func (h *QuestHandler) Get(c *gin.Context) {
	id, err := pathID(c, "questId")
	if err != nil {
		response.Error(c, err)
		return
	}
	quest, err := h.quests.GetQuest(c.Request.Context(), claimsFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quest)
}

// Delete godoc
// @Summary Delete a quest
// @Tags Quests
// @Security BearerAuth
// @Param questId path int true "Quest ID"
// @Success 204
// @Failure 404 {object} response.ErrorBody
// @Router /quests/{questId} [delete]
func (h *QuestHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "questId")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.quests.DeleteQuest(c.Request.Context(), claimsFromContext(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Submissions godoc
// @Summary List submissions for a quest
// @Tags Quests
// @Produce json
// @Security BearerAuth
// @Param questId path int true "Quest ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorBody
// @Router /quests/{questId}/submissions [get]
func (h *QuestHandler) Submissions(c *gin.Context) {
	id, err := pathID(c, "questId")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.quests.ListQuestSubmissions(c.Request.Context(), claimsFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Verify godoc
// @Summary Approve or reject a pending submission
// @Description Approval credits the quest points to the student exactly once. A submission that is no longer pending answers 409
// @Tags Quests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param questId path int true "Quest ID"
// @Param submissionId path int true "Submission ID"
// @Param payload body dto.VerifySubmissionRequest true "Verification action"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Router /quests/{questId}/submissions/{submissionId} [patch]
func (h *QuestHandler) Verify(c *gin.Context) {
	questID, err := pathID(c, "questId")
	if err != nil {
		response.Error(c, err)
		return
	}
	submissionID, err := pathID(c, "submissionId")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.VerifySubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid verification payload"))
		return
	}

	result, err := h.verifier.VerifySubmission(c.Request.Context(), claimsFromContext(c), questID, submissionID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, verifyResponse{
		Message:     "submission " + string(result.Submission.Status),
		Status:      result.Submission.Status,
		Transaction: result.Transaction,
	})
}
