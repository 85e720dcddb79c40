package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/levelup-edu/levelup-api/internal/dto"
	"github.com/levelup-edu/levelup-api/internal/models"
)

// StudentRepository provides database access for student accounts.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new instance of StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByEmail returns a student by email address.
func (r *StudentRepository) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	const query = `SELECT email, name, password_hash, last_signin, created_at FROM students WHERE email = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by email: %w", err)
	}
	return &student, nil
}

// Create inserts a new student.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.CreatedAt.IsZero() {
		student.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO students (email, name, password_hash, last_signin, created_at)
        VALUES (:email, :name, :password_hash, :last_signin, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// UpdateLastSignin stamps the student's most recent login.
func (r *StudentRepository) UpdateLastSignin(ctx context.Context, email string, ts time.Time) error {
	const query = `UPDATE students SET last_signin = $2 WHERE email = $1`
	if _, err := r.db.ExecContext(ctx, query, email, ts); err != nil {
		return fmt.Errorf("update last signin: %w", err)
	}
	return nil
}

// ListByInstructor returns students registered in any of the instructor's courses together
// with how many of those courses each one is registered in.
func (r *StudentRepository) ListByInstructor(ctx context.Context, instructorEmail string) ([]dto.InstructorStudent, error) {
	const query = `SELECT s.email, s.name, s.last_signin, COUNT(DISTINCT rg.course_id) AS course_count
FROM courses c
JOIN registrations rg ON rg.course_id = c.id
JOIN students s ON s.email = rg.student_email
WHERE c.instructor_email = $1
GROUP BY s.email, s.name, s.last_signin
ORDER BY s.name ASC`
	students := []dto.InstructorStudent{}
	if err := r.db.SelectContext(ctx, &students, query, instructorEmail); err != nil {
		return nil, fmt.Errorf("list instructor students: %w", err)
	}
	return students, nil
}
