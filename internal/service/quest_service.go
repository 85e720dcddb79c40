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
	appErrors "github.com/levelup-edu/levelup-api/pkg/errors"
	"github.com/levelup-edu/levelup-api/pkg/sanitize"
)

type questReader interface {
	FindByID(ctx context.Context, id int64) (*models.Quest, error)
}

type questRepository interface {
	questReader
	Create(ctx context.Context, quest *models.Quest) error
	ListByCourse(ctx context.Context, courseID int64) ([]models.Quest, error)
	ListByInstructor(ctx context.Context, instructorEmail string) ([]dto.QuestWithCourse, error)
	DeleteOwned(ctx context.Context, id int64, instructorEmail string) (bool, error)
}

type questSubmissionLister interface {
	ListByQuest(ctx context.Context, questID int64) ([]dto.SubmissionDetail, error)
}

var errQuestNotFound = appErrors.Clone(appErrors.ErrNotFound, "quest not found")

func loadQuest(ctx context.Context, repo questReader, id int64) (*models.Quest, error) {
	quest, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(errQuestNotFound, "")
		}
		return nil, appErrors.Internal(err, "failed to load quest")
	}
	return quest, nil
}

// ownedQuest loads a quest whose course belongs to the calling instructor. A quest in someone
// else's course is indistinguishable from a missing one.
func ownedQuest(ctx context.Context, quests questReader, courses courseAccessReader, claims *models.JWTClaims, id int64) (*models.Quest, error) {
	if err := requireInstructor(claims); err != nil {
		return nil, err
	}
	quest, err := loadQuest(ctx, quests, id)
	if err != nil {
		return nil, err
	}
	if _, err := ownedCourse(ctx, courses, claims, quest.CourseID); err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(errQuestNotFound, "")
		}
		return nil, err
	}
	return quest, nil
}

// QuestService manages quests inside courses.
type QuestService struct {
	quests      questRepository
	courses     courseAccessReader
	submissions questSubmissionLister
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewQuestService constructs a QuestService.
func NewQuestService(quests questRepository, courses courseAccessReader, submissions questSubmissionLister, validate *validator.Validate, logger *zap.Logger) *QuestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &QuestService{
		quests:      quests,
		courses:     courses,
		submissions: submissions,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateQuest adds a quest to one of the caller's courses.
func (s *QuestService) CreateQuest(ctx context.Context, claims *models.JWTClaims, req dto.CreateQuestRequest) (*models.Quest, error) {
	if err := requireInstructor(claims); err != nil {
		return nil, err
	}
	req.Title = sanitize.Text(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid quest payload")
	}
	now := s.now()
	if req.ExpirationDate != nil && !req.ExpirationDate.After(now) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "expirationDate must be in the future")
	}
	if _, err := ownedCourse(ctx, s.courses, claims, req.CourseID); err != nil {
		return nil, err
	}

	quest := &models.Quest{
		CourseID:       req.CourseID,
		CreatedBy:      claims.Email,
		Title:          req.Title,
		Points:         req.Points,
		CreatedDate:    now,
		ExpirationDate: req.ExpirationDate,
	}
	if err := s.quests.Create(ctx, quest); err != nil {
		return nil, appErrors.Internal(err, "failed to create quest")
	}
	s.logger.Info("quest created", zap.Int64("quest_id", quest.ID), zap.Int64("course_id", quest.CourseID), zap.Int("points", quest.Points))
	return quest, nil
}

// ListCourseQuests returns a visible course's quests, newest first.
func (s *QuestService) ListCourseQuests(ctx context.Context, claims *models.JWTClaims, courseID int64) ([]models.Quest, error) {
	if _, err := visibleCourse(ctx, s.courses, claims, courseID); err != nil {
		return nil, err
	}
	quests, err := s.quests.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list quests")
	}
	return quests, nil
}

// ListInstructorQuests returns quests across the caller's courses with a course summary.
func (s *QuestService) ListInstructorQuests(ctx context.Context, claims *models.JWTClaims) ([]dto.QuestWithCourse, error) {
	if err := requireInstructor(claims); err != nil {
		return nil, err
	}
	quests, err := s.quests.ListByInstructor(ctx, claims.Email)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list quests")
	}
	return quests, nil
}

// GetQuest returns a quest whose course is visible to the caller.
func (s *QuestService) GetQuest(ctx context.Context, claims *models.JWTClaims, id int64) (*models.Quest, error) {
	if claims == nil || claims.Email == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	quest, err := loadQuest(ctx, s.quests, id)
	if err != nil {
		return nil, err
	}
	if _, err := visibleCourse(ctx, s.courses, claims, quest.CourseID); err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(errQuestNotFound, "")
		}
		return nil, err
	}
	return quest, nil
}

// DeleteQuest removes a quest from one of the caller's courses. Ownership is enforced by the
// delete statement itself.
func (s *QuestService) DeleteQuest(ctx context.Context, claims *models.JWTClaims, id int64) error {
	if err := requireInstructor(claims); err != nil {
		return err
	}
	deleted, err := s.quests.DeleteOwned(ctx, id, claims.Email)
	if err != nil {
		return appErrors.Internal(err, "failed to delete quest")
	}
	if !deleted {
		return appErrors.Clone(errQuestNotFound, "")
	}
	s.logger.Info("quest deleted", zap.Int64("quest_id", id), zap.String("instructor", claims.Email))
	return nil
}

// ListQuestSubmissions returns a quest of the caller together with its submissions.
func (s *QuestService) ListQuestSubmissions(ctx context.Context, claims *models.JWTClaims, questID int64) (*dto.QuestSubmissions, error) {
	quest, err := ownedQuest(ctx, s.quests, s.courses, claims, questID)
	if err != nil {
		return nil, err
	}
	submissions, err := s.submissions.ListByQuest(ctx, questID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list submissions")
	}
	return &dto.QuestSubmissions{Quest: *quest, Submissions: submissions}, nil
}
