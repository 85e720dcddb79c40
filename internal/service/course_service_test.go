package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/levelup-edu/levelup-api/internal/dto"
	appErrors "github.com/levelup-edu/levelup-api/pkg/errors"
)

func codeCollision() error {
	return fmt.Errorf("create course: %w", &pq.Error{Code: "23505", Constraint: "courses_course_code_key"})
}

func TestCourseServiceCreateCourseRetriesOnCodeCollision(t *testing.T) {
	f := newFixture()
	f.store.courseCreateErrs = []error{codeCollision(), codeCollision()}
	codes := []string{"AAAAAA", "BBBBBB", "CCCCCC"}
	f.courses.generateCode = func(int) (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}

	course, err := f.courses.CreateCourse(context.Background(), instructorClaims("ada@school.test"), dto.CreateCourseRequest{Title: "CS101"})
	require.NoError(t, err)
	assert.Equal(t, "CCCCCC", course.CourseCode)
	assert.Equal(t, "ada@school.test", course.InstructorEmail)
}

func TestCourseServiceCreateCourseExhaustsAttempts(t *testing.T) {
	f := newFixture()
	for i := 0; i < 5; i++ {
		f.store.courseCreateErrs = append(f.store.courseCreateErrs, codeCollision())
	}

	_, err := f.courses.CreateCourse(context.Background(), instructorClaims("ada@school.test"), dto.CreateCourseRequest{Title: "CS101"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, "failed to generate unique course code", appErrors.FromError(err).Message)
	assert.Empty(t, f.store.courses)
}

func TestCourseServiceCreateCourseOtherErrorDoesNotRetry(t *testing.T) {
	f := newFixture()
	f.store.courseCreateErrs = []error{
		fmt.Errorf("create course: %w", &pq.Error{Code: "23503", Constraint: "courses_instructor_email_fkey"}),
	}
	calls := 0
	f.courses.generateCode = func(int) (string, error) {
		calls++
		return "ZZZZZZ", nil
	}

	_, err := f.courses.CreateCourse(context.Background(), instructorClaims("ada@school.test"), dto.CreateCourseRequest{Title: "CS101"})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	assert.Equal(t, 1, calls)
}

func TestCourseServiceCreateCourseValidation(t *testing.T) {
	f := newFixture()
	_, err := f.courses.CreateCourse(context.Background(), instructorClaims("ada@school.test"), dto.CreateCourseRequest{Title: "  <i></i> "})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.courses.CreateCourse(context.Background(), nil, dto.CreateCourseRequest{Title: "CS101"})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = f.courses.CreateCourse(context.Background(), studentClaims("sam@school.test"), dto.CreateCourseRequest{Title: "CS101"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestRandomCourseCodeUsesAlphabet(t *testing.T) {
	code, err := randomCourseCode(8)
	require.NoError(t, err)
	assert.Len(t, code, 8)
	for _, r := range code {
		assert.Contains(t, courseCodeAlphabet, string(r))
	}
}

func TestCourseServiceRegisterStudent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addStudent("sam@school.test", "Sam")
	course, err := f.courses.CreateCourse(ctx, instructorClaims("ada@school.test"), dto.CreateCourseRequest{Title: "CS101"})
	require.NoError(t, err)

	sam := studentClaims("sam@school.test")
	joined, err := f.courses.RegisterStudent(ctx, sam, dto.RegisterCourseRequest{CourseCode: " " + course.CourseCode + " "})
	require.NoError(t, err)
	assert.Equal(t, course.ID, joined.ID)

	_, err = f.courses.RegisterStudent(ctx, sam, dto.RegisterCourseRequest{CourseCode: course.CourseCode})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = f.courses.RegisterStudent(ctx, sam, dto.RegisterCourseRequest{CourseCode: "MISSING"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	courses, err := f.courses.ListStudentCourses(ctx, sam)
	require.NoError(t, err)
	require.Len(t, courses, 1)

	students, err := f.courses.ListInstructorStudents(ctx, instructorClaims("ada@school.test"))
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, 1, students[0].CourseCount)
}

func TestCourseServiceGetCourseVisibility(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	course, err := f.courses.CreateCourse(ctx, instructorClaims("ada@school.test"), dto.CreateCourseRequest{Title: "CS101"})
	require.NoError(t, err)

	_, err = f.courses.GetCourse(ctx, instructorClaims("ada@school.test"), course.ID)
	require.NoError(t, err)

	_, err = f.courses.GetCourse(ctx, instructorClaims("bob@school.test"), course.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = f.courses.GetCourse(ctx, studentClaims("sam@school.test"), course.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	f.store.failWith = errors.New("connection reset")
	_, err = f.courses.GetCourse(ctx, instructorClaims("ada@school.test"), course.ID)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}
