package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/levelup-edu/levelup-api/internal/models"
)

const courseColumns = `c.id, c.course_code, c.instructor_email, c.title, c.description, c.created_at`

// CourseRepository handles persistence of courses and registrations.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create inserts a course and fills its generated id. A duplicate course code surfaces as the
// driver's unique-violation error, wrapped.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.CreatedAt.IsZero() {
		course.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO courses (course_code, instructor_email, title, description, created_at)
        VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, course.CourseCode, course.InstructorEmail, course.Title, course.Description, course.CreatedAt).Scan(&course.ID); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// FindByID returns a course by its id.
func (r *CourseRepository) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses c WHERE c.id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// FindByCode returns a course by its registration code.
func (r *CourseRepository) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses c WHERE c.course_code = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course by code: %w", err)
	}
	return &course, nil
}

// ListByInstructor returns the courses owned by an instructor.
func (r *CourseRepository) ListByInstructor(ctx context.Context, instructorEmail string) ([]models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses c WHERE c.instructor_email = $1 ORDER BY c.created_at DESC`
	courses := []models.Course{}
	if err := r.db.SelectContext(ctx, &courses, query, instructorEmail); err != nil {
		return nil, fmt.Errorf("list instructor courses: %w", err)
	}
	return courses, nil
}

// ListByStudent returns the courses a student is registered in.
func (r *CourseRepository) ListByStudent(ctx context.Context, studentEmail string) ([]models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses c
JOIN registrations rg ON rg.course_id = c.id
WHERE rg.student_email = $1
ORDER BY rg.registered_at DESC`
	courses := []models.Course{}
	if err := r.db.SelectContext(ctx, &courses, query, studentEmail); err != nil {
		return nil, fmt.Errorf("list student courses: %w", err)
	}
	return courses, nil
}

// IsRegistered reports whether the student is registered in the course.
func (r *CourseRepository) IsRegistered(ctx context.Context, studentEmail string, courseID int64) (bool, error) {
	const query = `SELECT 1 FROM registrations WHERE student_email = $1 AND course_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentEmail, courseID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check registration: %w", err)
	}
	return true, nil
}

// Register creates a registration row. A duplicate pair surfaces as the driver's
// unique-violation error, wrapped.
func (r *CourseRepository) Register(ctx context.Context, registration *models.Registration) error {
	if registration.RegisteredAt.IsZero() {
		registration.RegisteredAt = time.Now().UTC()
	}
	const query = `INSERT INTO registrations (student_email, course_id, registered_at) VALUES ($1, $2, $3) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, registration.StudentEmail, registration.CourseID, registration.RegisteredAt).Scan(&registration.ID); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}
