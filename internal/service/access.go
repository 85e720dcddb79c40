package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/levelup-edu/levelup-api/internal/models"
	appErrors "github.com/levelup-edu/levelup-api/pkg/errors"
)

// courseAccessReader is the slice of course persistence needed to authorise course-scoped reads.
type courseAccessReader interface {
	FindByID(ctx context.Context, id int64) (*models.Course, error)
	IsRegistered(ctx context.Context, studentEmail string, courseID int64) (bool, error)
}

func requireInstructor(claims *models.JWTClaims) error {
	if claims == nil || claims.Email == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if !claims.IsInstructor() {
		return appErrors.Clone(appErrors.ErrForbidden, "instructor role required")
	}
	return nil
}

func requireStudent(claims *models.JWTClaims) error {
	if claims == nil || claims.Email == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if !claims.IsStudent() {
		return appErrors.Clone(appErrors.ErrForbidden, "student role required")
	}
	return nil
}

func loadCourse(ctx context.Context, repo courseAccessReader, id int64) (*models.Course, error) {
	course, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	return course, nil
}

// ownedCourse returns the course when the instructor owns it. Foreign courses are reported as
// missing so their existence is not disclosed.
func ownedCourse(ctx context.Context, repo courseAccessReader, claims *models.JWTClaims, id int64) (*models.Course, error) {
	if err := requireInstructor(claims); err != nil {
		return nil, err
	}
	course, err := loadCourse(ctx, repo, id)
	if err != nil {
		return nil, err
	}
	if course.InstructorEmail != claims.Email {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return course, nil
}

// visibleCourse returns the course when the caller owns it or is registered in it.
func visibleCourse(ctx context.Context, repo courseAccessReader, claims *models.JWTClaims, id int64) (*models.Course, error) {
	if claims == nil || claims.Email == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	course, err := loadCourse(ctx, repo, id)
	if err != nil {
		return nil, err
	}
	switch {
	case claims.IsInstructor():
		if course.InstructorEmail == claims.Email {
			return course, nil
		}
	case claims.IsStudent():
		registered, err := repo.IsRegistered(ctx, claims.Email, id)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to check registration")
		}
		if registered {
			return course, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
}

func validationError(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
