package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"math/big"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/levelup-edu/levelup-api/internal/dto"
	"github.com/levelup-edu/levelup-api/internal/models"
	"github.com/levelup-edu/levelup-api/pkg/database"
	appErrors "github.com/levelup-edu/levelup-api/pkg/errors"
	"github.com/levelup-edu/levelup-api/pkg/sanitize"
)

// courseCodeAlphabet omits characters that are easy to misread (0/O, 1/I/L).
const courseCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

type courseRepository interface {
	courseAccessReader
	Create(ctx context.Context, course *models.Course) error
	FindByCode(ctx context.Context, code string) (*models.Course, error)
	ListByInstructor(ctx context.Context, instructorEmail string) ([]models.Course, error)
	ListByStudent(ctx context.Context, studentEmail string) ([]models.Course, error)
	Register(ctx context.Context, registration *models.Registration) error
}

type instructorStudentLister interface {
	ListByInstructor(ctx context.Context, instructorEmail string) ([]dto.InstructorStudent, error)
}

// CourseConfig tunes course code generation.
type CourseConfig struct {
	CodeLength      int
	CodeMaxAttempts int
}

// CourseService manages courses and student registration.
type CourseService struct {
	repo         courseRepository
	students     instructorStudentLister
	validator    *validator.Validate
	logger       *zap.Logger
	config       CourseConfig
	generateCode func(length int) (string, error)
}

// NewCourseService constructs a CourseService.
func NewCourseService(repo courseRepository, students instructorStudentLister, validate *validator.Validate, logger *zap.Logger, config CourseConfig) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.CodeLength <= 0 {
		config.CodeLength = 6
	}
	if config.CodeMaxAttempts <= 0 {
		config.CodeMaxAttempts = 5
	}
	return &CourseService{
		repo:         repo,
		students:     students,
		validator:    validate,
		logger:       logger,
		config:       config,
		generateCode: randomCourseCode,
	}
}

func randomCourseCode(length int) (string, error) {
	max := big.NewInt(int64(len(courseCodeAlphabet)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(courseCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// CreateCourse inserts a course owned by the caller under a freshly generated code. Only a
// collision on the course-code constraint triggers another attempt.
func (s *CourseService) CreateCourse(ctx context.Context, claims *models.JWTClaims, req dto.CreateCourseRequest) (*models.Course, error) {
	if err := requireInstructor(claims); err != nil {
		return nil, err
	}
	req.Title = sanitize.Text(req.Title)
	req.Description = sanitize.OptionalText(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "title is required")
	}

	for attempt := 1; attempt <= s.config.CodeMaxAttempts; attempt++ {
		code, err := s.generateCode(s.config.CodeLength)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to generate course code")
		}
		course := &models.Course{
			CourseCode:      code,
			InstructorEmail: claims.Email,
			Title:           req.Title,
			Description:     req.Description,
		}
		err = s.repo.Create(ctx, course)
		if err == nil {
			s.logger.Info("course created", zap.Int64("course_id", course.ID), zap.String("instructor", claims.Email))
			return course, nil
		}
		if !database.IsUniqueViolation(err, database.ConstraintCourseCode) {
			return nil, appErrors.Internal(err, "failed to create course")
		}
		s.logger.Debug("course code collision", zap.String("code", code), zap.Int("attempt", attempt))
	}

	return nil, appErrors.Clone(appErrors.ErrConflict, "failed to generate unique course code")
}

// GetCourse returns a course visible to the caller.
func (s *CourseService) GetCourse(ctx context.Context, claims *models.JWTClaims, id int64) (*models.Course, error) {
	return visibleCourse(ctx, s.repo, claims, id)
}

// ListInstructorCourses returns the caller's own courses.
func (s *CourseService) ListInstructorCourses(ctx context.Context, claims *models.JWTClaims) ([]models.Course, error) {
	if err := requireInstructor(claims); err != nil {
		return nil, err
	}
	courses, err := s.repo.ListByInstructor(ctx, claims.Email)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list courses")
	}
	return courses, nil
}

// ListStudentCourses returns the courses the calling student is registered in.
func (s *CourseService) ListStudentCourses(ctx context.Context, claims *models.JWTClaims) ([]models.Course, error) {
	if err := requireStudent(claims); err != nil {
		return nil, err
	}
	courses, err := s.repo.ListByStudent(ctx, claims.Email)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list courses")
	}
	return courses, nil
}

// RegisterStudent enrolls the calling student into the course identified by its code.
func (s *CourseService) RegisterStudent(ctx context.Context, claims *models.JWTClaims, req dto.RegisterCourseRequest) (*models.Course, error) {
	if err := requireStudent(claims); err != nil {
		return nil, err
	}
	req.CourseCode = strings.ToUpper(strings.TrimSpace(req.CourseCode))
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "courseCode is required")
	}

	course, err := s.repo.FindByCode(ctx, req.CourseCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}

	registered, err := s.repo.IsRegistered(ctx, claims.Email, course.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check registration")
	}
	if registered {
		return nil, appErrors.Clone(appErrors.ErrConflict, "already registered")
	}

	if err := s.repo.Register(ctx, &models.Registration{StudentEmail: claims.Email, CourseID: course.ID}); err != nil {
		if database.IsUniqueViolation(err, database.ConstraintRegistrationUnique) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "already registered")
		}
		return nil, appErrors.Internal(err, "failed to register for course")
	}
	return course, nil
}

// ListInstructorStudents returns students registered in any of the caller's courses.
func (s *CourseService) ListInstructorStudents(ctx context.Context, claims *models.JWTClaims) ([]dto.InstructorStudent, error) {
	if err := requireInstructor(claims); err != nil {
		return nil, err
	}
	students, err := s.students.ListByInstructor(ctx, claims.Email)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list students")
	}
	return students, nil
}
