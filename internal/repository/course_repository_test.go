package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/levelup-edu/levelup-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = sqlxDB.Close()
	}
	return sqlxDB, mock, cleanup
}

var courseRowColumns = []string{"id", "course_code", "instructor_email", "title", "description", "created_at"}

func TestCourseRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO courses (course_code, instructor_email, title, description, created_at)`)).
		WithArgs("ABC123", "ada@school.test", "Algebra", nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	course := &models.Course{CourseCode: "ABC123", InstructorEmail: "ada@school.test", Title: "Algebra"}
	require.NoError(t, repo.Create(context.Background(), course))
	assert.Equal(t, int64(7), course.ID)
	assert.False(t, course.CreatedAt.IsZero())
}

func TestCourseRepositoryFindByCodeNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM courses c WHERE c.course_code = $1`)).
		WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows(courseRowColumns))

	course, err := repo.FindByCode(context.Background(), "NOPE")
	assert.Nil(t, course)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCourseRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`JOIN registrations rg ON rg.course_id = c.id`)).
		WithArgs("sam@school.test").
		WillReturnRows(sqlmock.NewRows(courseRowColumns).
			AddRow(int64(1), "ABC123", "ada@school.test", "Algebra", "Linear things", now).
			AddRow(int64(2), "XYZ789", "ada@school.test", "Geometry", nil, now))

	courses, err := repo.ListByStudent(context.Background(), "sam@school.test")
	require.NoError(t, err)
	require.Len(t, courses, 2)
	require.NotNil(t, courses[0].Description)
	assert.Equal(t, "Linear things", *courses[0].Description)
	assert.Nil(t, courses[1].Description)
}

func TestCourseRepositoryIsRegistered(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	query := regexp.QuoteMeta(`SELECT 1 FROM registrations WHERE student_email = $1 AND course_id = $2`)
	mock.ExpectQuery(query).WithArgs("sam@school.test", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(query).WithArgs("sam@school.test", int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	ok, err := repo.IsRegistered(context.Background(), "sam@school.test", 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IsRegistered(context.Background(), "sam@school.test", 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCourseRepositoryRegister(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO registrations (student_email, course_id, registered_at)`)).
		WithArgs("sam@school.test", int64(1), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

	reg := &models.Registration{StudentEmail: "sam@school.test", CourseID: 1}
	require.NoError(t, repo.Register(context.Background(), reg))
	assert.Equal(t, int64(3), reg.ID)
}
