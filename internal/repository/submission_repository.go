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

const submissionColumns = `s.id, s.student_email, s.quest_id, s.submission_date, s.status, s.verified_by, s.verified_date`

// SubmissionRepository persists quest submissions and their verification.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create inserts a pending submission. A second submission for the same quest surfaces as
// the driver's unique-violation error, wrapped.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.SubmissionDate.IsZero() {
		submission.SubmissionDate = time.Now().UTC()
	}
	if submission.Status == "" {
		submission.Status = models.SubmissionPending
	}
	const query = `INSERT INTO submissions (student_email, quest_id, submission_date, status)
        VALUES ($1, $2, $3, $4) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, submission.StudentEmail, submission.QuestID, submission.SubmissionDate, submission.Status).Scan(&submission.ID); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// FindByID returns a submission by id.
func (r *SubmissionRepository) FindByID(ctx context.Context, id int64) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions s WHERE s.id = $1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &submission, nil
}

// ExistsForStudent reports whether the student already submitted the quest.
func (r *SubmissionRepository) ExistsForStudent(ctx context.Context, studentEmail string, questID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM submissions WHERE student_email = $1 AND quest_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentEmail, questID); err != nil {
		return false, fmt.Errorf("check submission: %w", err)
	}
	return exists, nil
}

// ListByQuest returns the quest's submissions with student names, oldest first.
func (r *SubmissionRepository) ListByQuest(ctx context.Context, questID int64) ([]dto.SubmissionDetail, error) {
	query := `SELECT ` + submissionColumns + `, st.name AS student_name
FROM submissions s
JOIN students st ON st.email = s.student_email
WHERE s.quest_id = $1
ORDER BY s.submission_date ASC`
	items := []dto.SubmissionDetail{}
	if err := r.db.SelectContext(ctx, &items, query, questID); err != nil {
		return nil, fmt.Errorf("list quest submissions: %w", err)
	}
	return items, nil
}

// ListByStudent returns the student's submissions with quest context, newest first.
func (r *SubmissionRepository) ListByStudent(ctx context.Context, studentEmail string) ([]dto.StudentSubmission, error) {
	query := `SELECT ` + submissionColumns + `, q.title AS quest_title, q.points AS quest_points, q.course_id
FROM submissions s
JOIN quests q ON q.id = s.quest_id
WHERE s.student_email = $1
ORDER BY s.submission_date DESC`
	items := []dto.StudentSubmission{}
	if err := r.db.SelectContext(ctx, &items, query, studentEmail); err != nil {
		return nil, fmt.Errorf("list student submissions: %w", err)
	}
	return items, nil
}

// Verify moves a pending submission to a terminal status. When approving, the credit
// transaction is written in the same database transaction. The submission row is locked so
// concurrent verifications serialize and only the first one succeeds; the rest get
// ErrSubmissionProcessed. A missing submission yields sql.ErrNoRows.
func (r *SubmissionRepository) Verify(ctx context.Context, params dto.VerifySubmissionParams) (*dto.VerificationResult, error) {
	var result dto.VerificationResult
	err := inTx(ctx, r.db, "verify submission", func(tx *sqlx.Tx) error {
		query := `SELECT ` + submissionColumns + ` FROM submissions s WHERE s.id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &result.Submission, query, params.SubmissionID); err != nil {
			if err == sql.ErrNoRows {
				return err
			}
			return fmt.Errorf("lock submission: %w", err)
		}
		if result.Submission.Status.Terminal() {
			return ErrSubmissionProcessed
		}

		now := time.Now().UTC()
		const update = `UPDATE submissions SET status = $2, verified_by = $3, verified_date = $4 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, update, params.SubmissionID, params.Status, params.VerifiedBy, now); err != nil {
			return fmt.Errorf("update submission status: %w", err)
		}
		verifier := params.VerifiedBy
		result.Submission.Status = params.Status
		result.Submission.VerifiedBy = &verifier
		result.Submission.VerifiedDate = &now

		if params.Status != models.SubmissionApproved {
			return nil
		}
		submissionID := params.SubmissionID
		txn, err := insertTransaction(ctx, tx, dto.CreateTransactionParams{
			StudentEmail: result.Submission.StudentEmail,
			Points:       params.Points,
			SubmissionID: &submissionID,
		}, now)
		if err != nil {
			return err
		}
		result.Transaction = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
