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

const questColumns = `q.id, q.course_id, q.created_by, q.title, q.points, q.created_date, q.expiration_date`

// QuestRepository provides persistence helpers for quests.
type QuestRepository struct {
	db *sqlx.DB
}

// NewQuestRepository constructs the repository.
func NewQuestRepository(db *sqlx.DB) *QuestRepository {
	return &QuestRepository{db: db}
}

// Create inserts a quest and fills its id.
func (r *QuestRepository) Create(ctx context.Context, quest *models.Quest) error {
	if quest.CreatedDate.IsZero() {
		quest.CreatedDate = time.Now().UTC()
	}
	const query = `INSERT INTO quests (course_id, created_by, title, points, created_date, expiration_date)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, quest.CourseID, quest.CreatedBy, quest.Title, quest.Points, quest.CreatedDate, quest.ExpirationDate).Scan(&quest.ID); err != nil {
		return fmt.Errorf("create quest: %w", err)
	}
	return nil
}

// FindByID returns a quest by id.
func (r *QuestRepository) FindByID(ctx context.Context, id int64) (*models.Quest, error) {
	query := `SELECT ` + questColumns + ` FROM quests q WHERE q.id = $1`
	var quest models.Quest
	if err := r.db.GetContext(ctx, &quest, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find quest: %w", err)
	}
	return &quest, nil
}

// ListByCourse returns the course's quests, newest first.
func (r *QuestRepository) ListByCourse(ctx context.Context, courseID int64) ([]models.Quest, error) {
	query := `SELECT ` + questColumns + ` FROM quests q WHERE q.course_id = $1 ORDER BY q.created_date DESC`
	quests := []models.Quest{}
	if err := r.db.SelectContext(ctx, &quests, query, courseID); err != nil {
		return nil, fmt.Errorf("list course quests: %w", err)
	}
	return quests, nil
}

// ListByInstructor returns quests across every course the instructor owns.
func (r *QuestRepository) ListByInstructor(ctx context.Context, instructorEmail string) ([]dto.QuestWithCourse, error) {
	query := `SELECT ` + questColumns + `,
	c.id AS "course.id",
	c.title AS "course.title",
	c.course_code AS "course.course_code"
FROM quests q
JOIN courses c ON c.id = q.course_id
WHERE c.instructor_email = $1
ORDER BY q.created_date DESC`
	quests := []dto.QuestWithCourse{}
	if err := r.db.SelectContext(ctx, &quests, query, instructorEmail); err != nil {
		return nil, fmt.Errorf("list instructor quests: %w", err)
	}
	return quests, nil
}

// ListAvailableForStudent returns the course's quests that are unexpired at now and
// that the student has not yet submitted.
func (r *QuestRepository) ListAvailableForStudent(ctx context.Context, courseID int64, studentEmail string, now time.Time) ([]models.Quest, error) {
	query := `SELECT ` + questColumns + ` FROM quests q
WHERE q.course_id = $1
	AND (q.expiration_date IS NULL OR q.expiration_date >= $3)
	AND NOT EXISTS (
		SELECT 1 FROM submissions s WHERE s.quest_id = q.id AND s.student_email = $2
	)
ORDER BY q.created_date DESC`
	quests := []models.Quest{}
	if err := r.db.SelectContext(ctx, &quests, query, courseID, studentEmail, now); err != nil {
		return nil, fmt.Errorf("list available quests: %w", err)
	}
	return quests, nil
}

// DeleteOwned removes a quest when it belongs to a course owned by instructorEmail.
// It reports whether a row was deleted.
func (r *QuestRepository) DeleteOwned(ctx context.Context, id int64, instructorEmail string) (bool, error) {
	const query = `DELETE FROM quests q USING courses c
WHERE q.id = $1 AND c.id = q.course_id AND c.instructor_email = $2`
	res, err := r.db.ExecContext(ctx, query, id, instructorEmail)
	if err != nil {
		return false, fmt.Errorf("delete quest: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete quest rows affected: %w", err)
	}
	return affected > 0, nil
}
