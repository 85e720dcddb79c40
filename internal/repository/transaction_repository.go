package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/levelup-edu/levelup-api/internal/dto"
	"github.com/levelup-edu/levelup-api/internal/models"
)

// ErrAmbiguousSource is returned when a ledger entry references both a submission and a redemption.
var ErrAmbiguousSource = errors.New("transaction cannot reference both a submission and a redemption")

// TransactionRepository reads and appends point ledger entries.
type TransactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository constructs the repository.
func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create appends a ledger entry outside any surrounding transaction.
func (r *TransactionRepository) Create(ctx context.Context, params dto.CreateTransactionParams) (*models.Transaction, error) {
	return insertTransaction(ctx, r.db, params, time.Now().UTC())
}

func insertTransaction(ctx context.Context, q sqlx.QueryerContext, params dto.CreateTransactionParams, at time.Time) (*models.Transaction, error) {
	if params.SubmissionID != nil && params.RedemptionID != nil {
		return nil, ErrAmbiguousSource
	}
	txn := &models.Transaction{
		StudentEmail:    params.StudentEmail,
		Points:          params.Points,
		TransactionDate: at,
		SubmissionID:    params.SubmissionID,
		RedemptionID:    params.RedemptionID,
	}
	const query = `INSERT INTO transactions (student_email, points, transaction_date, submission_id, redemption_id)
        VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := q.QueryRowxContext(ctx, query, txn.StudentEmail, txn.Points, txn.TransactionDate, txn.SubmissionID, txn.RedemptionID).Scan(&txn.ID); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	return txn, nil
}

func sumPoints(ctx context.Context, q sqlx.QueryerContext, studentEmail string) (int, error) {
	const query = `SELECT COALESCE(SUM(points), 0) FROM transactions WHERE student_email = $1`
	var total int
	if err := sqlx.GetContext(ctx, q, &total, query, studentEmail); err != nil {
		return 0, fmt.Errorf("sum transactions: %w", err)
	}
	return total, nil
}

// SumByStudent returns the student's balance. A student without entries has zero.
func (r *TransactionRepository) SumByStudent(ctx context.Context, studentEmail string) (int, error) {
	return sumPoints(ctx, r.db, studentEmail)
}

// ListByStudent returns the student's ledger entries, newest first.
func (r *TransactionRepository) ListByStudent(ctx context.Context, studentEmail string) ([]models.Transaction, error) {
	const query = `SELECT id, student_email, points, transaction_date, submission_id, redemption_id
FROM transactions
WHERE student_email = $1
ORDER BY transaction_date DESC, id DESC`
	items := []models.Transaction{}
	if err := r.db.SelectContext(ctx, &items, query, studentEmail); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return items, nil
}

// ClaimedSubmissionIDs returns ids of the student's submissions that have been credited.
func (r *TransactionRepository) ClaimedSubmissionIDs(ctx context.Context, studentEmail string) ([]int64, error) {
	const query = `SELECT DISTINCT submission_id FROM transactions
WHERE student_email = $1 AND submission_id IS NOT NULL
ORDER BY submission_id ASC`
	ids := []int64{}
	if err := r.db.SelectContext(ctx, &ids, query, studentEmail); err != nil {
		return nil, fmt.Errorf("list claimed submissions: %w", err)
	}
	return ids, nil
}

// CourseLedger summarises earned and spent points of every student registered in the course.
// Earned counts credits from the course's quests, spent counts debits for the course's rewards
// net of refunds, and balance is the student's overall total.
func (r *TransactionRepository) CourseLedger(ctx context.Context, courseID int64) ([]dto.CourseLedgerEntry, error) {
	const query = `SELECT
	s.email AS student_email,
	s.name AS student_name,
	COALESCE(qe.points, 0) AS earned,
	COALESCE(rs.points, 0) AS spent,
	COALESCE(tb.points, 0) AS balance
FROM registrations rg
JOIN students s ON s.email = rg.student_email
LEFT JOIN (
	SELECT t.student_email, SUM(t.points) AS points
	FROM transactions t
	JOIN submissions sb ON sb.id = t.submission_id
	JOIN quests q ON q.id = sb.quest_id
	WHERE q.course_id = $1
	GROUP BY t.student_email
) qe ON qe.student_email = s.email
LEFT JOIN (
	SELECT t.student_email, -SUM(t.points) AS points
	FROM transactions t
	JOIN redemptions rd ON rd.id = t.redemption_id
	JOIN rewards w ON w.id = rd.reward_id
	WHERE w.course_id = $1
	GROUP BY t.student_email
) rs ON rs.student_email = s.email
LEFT JOIN (
	SELECT student_email, SUM(points) AS points FROM transactions GROUP BY student_email
) tb ON tb.student_email = s.email
WHERE rg.course_id = $1
ORDER BY earned DESC, s.name ASC`
	entries := []dto.CourseLedgerEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, courseID); err != nil {
		return nil, fmt.Errorf("course ledger: %w", err)
	}
	return entries, nil
}
