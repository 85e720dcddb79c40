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
	"github.com/levelup-edu/levelup-api/pkg/database"
	appErrors "github.com/levelup-edu/levelup-api/pkg/errors"
)

type submissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	FindByID(ctx context.Context, id int64) (*models.Submission, error)
	ExistsForStudent(ctx context.Context, studentEmail string, questID int64) (bool, error)
	ListByStudent(ctx context.Context, studentEmail string) ([]dto.StudentSubmission, error)
	Verify(ctx context.Context, params dto.VerifySubmissionParams) (*dto.VerificationResult, error)
}

type availableQuestLister interface {
	questReader
	ListAvailableForStudent(ctx context.Context, courseID int64, studentEmail string, now time.Time) ([]models.Quest, error)
}

// SubmissionService drives the attend → verify lifecycle of quest submissions.
type SubmissionService struct {
	quests      availableQuestLister
	courses     courseAccessReader
	submissions submissionRepository
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService.
func NewSubmissionService(quests availableQuestLister, courses courseAccessReader, submissions submissionRepository, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SubmissionService{
		quests:      quests,
		courses:     courses,
		submissions: submissions,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// AttendQuest records a pending submission for the calling student.
func (s *SubmissionService) AttendQuest(ctx context.Context, claims *models.JWTClaims, req dto.AttendQuestRequest) (*models.Submission, error) {
	if err := requireStudent(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "questId is required")
	}

	quest, err := loadQuest(ctx, s.quests, req.QuestID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if quest.Expired(now) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "quest expired")
	}

	registered, err := s.courses.IsRegistered(ctx, claims.Email, quest.CourseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check registration")
	}
	if !registered {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not registered for this course")
	}

	exists, err := s.submissions.ExistsForStudent(ctx, claims.Email, quest.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check submission")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "already attended")
	}

	submission := &models.Submission{
		StudentEmail:   claims.Email,
		QuestID:        quest.ID,
		SubmissionDate: now,
		Status:         models.SubmissionPending,
	}
	if err := s.submissions.Create(ctx, submission); err != nil {
		if database.IsUniqueViolation(err, database.ConstraintSubmissionUnique) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "already attended")
		}
		return nil, appErrors.Internal(err, "failed to create submission")
	}
	return submission, nil
}

// VerifySubmission approves or rejects a pending submission on one of the caller's quests.
// Approval credits the quest's points atomically with the status change.
func (s *SubmissionService) VerifySubmission(ctx context.Context, claims *models.JWTClaims, questID, submissionID int64, req dto.VerifySubmissionRequest) (*dto.VerificationResult, error) {
	if err := requireInstructor(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "action must be approve or reject")
	}

	quest, err := ownedQuest(ctx, s.quests, s.courses, claims, questID)
	if err != nil {
		return nil, err
	}

	submission, err := s.submissions.FindByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Internal(err, "failed to load submission")
	}
	if submission.QuestID != quest.ID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
	}

	status := models.SubmissionRejected
	if req.Action == dto.ActionApprove {
		status = models.SubmissionApproved
	}

	result, err := s.submissions.Verify(ctx, dto.VerifySubmissionParams{
		SubmissionID: submissionID,
		VerifiedBy:   claims.Email,
		Status:       status,
		Points:       quest.Points,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSubmissionProcessed):
			return nil, appErrors.Clone(appErrors.ErrConflict, "submission already processed")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Internal(err, "failed to verify submission")
	}

	s.metrics.RecordSubmissionVerified(string(status))
	if result.Transaction != nil {
		s.metrics.RecordPointsAwarded(result.Transaction.Points)
	}
	s.logger.Info("submission verified",
		zap.Int64("submission_id", submissionID),
		zap.String("status", string(status)),
		zap.String("verified_by", claims.Email),
	)
	return result, nil
}

// ListAvailableQuests returns the course's quests the calling student can still attend.
func (s *SubmissionService) ListAvailableQuests(ctx context.Context, claims *models.JWTClaims, courseID int64) ([]models.Quest, error) {
	if err := requireStudent(claims); err != nil {
		return nil, err
	}
	if _, err := visibleCourse(ctx, s.courses, claims, courseID); err != nil {
		return nil, err
	}
	quests, err := s.quests.ListAvailableForStudent(ctx, courseID, claims.Email, s.now())
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list quests")
	}
	return quests, nil
}

// ListStudentSubmissions returns the calling student's submissions with quest context.
func (s *SubmissionService) ListStudentSubmissions(ctx context.Context, claims *models.JWTClaims) ([]dto.StudentSubmission, error) {
	if err := requireStudent(claims); err != nil {
		return nil, err
	}
	items, err := s.submissions.ListByStudent(ctx, claims.Email)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list submissions")
	}
	return items, nil
}
