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

const redemptionDetailQuery = `SELECT
	rd.id, rd.reward_id, rd.student_email, rd.status, rd.redemption_date, rd.updated_date,
	w.name AS reward_name, w.cost, w.course_id, s.name AS student_name
FROM redemptions rd
JOIN rewards w ON w.id = rd.reward_id
JOIN students s ON s.email = rd.student_email`

// RedemptionRepository handles reward purchases and their fulfilment.
type RedemptionRepository struct {
	db *sqlx.DB
}

// NewRedemptionRepository constructs the repository.
func NewRedemptionRepository(db *sqlx.DB) *RedemptionRepository {
	return &RedemptionRepository{db: db}
}

// Redeem buys a reward for the student. The reward row is locked while availability is
// rechecked and the student row is locked while the balance is read, so concurrent purchases
// can neither oversell a limited reward nor overdraw a balance. The redemption and its debit
// are written together.
func (r *RedemptionRepository) Redeem(ctx context.Context, rewardID int64, studentEmail string) (*dto.RedeemResult, error) {
	var result dto.RedeemResult
	err := inTx(ctx, r.db, "redeem reward", func(tx *sqlx.Tx) error {
		var reward models.Reward
		lockReward := `SELECT ` + rewardColumns + ` FROM rewards w WHERE w.id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &reward, lockReward, rewardID); err != nil {
			if err == sql.ErrNoRows {
				return err
			}
			return fmt.Errorf("lock reward: %w", err)
		}
		if !reward.Active {
			return ErrRewardUnavailable
		}
		if reward.QuantityLimit != nil {
			const countQuery = `SELECT COUNT(*) FROM redemptions WHERE reward_id = $1 AND status IN ('pending', 'fulfilled')`
			var redeemed int
			if err := tx.GetContext(ctx, &redeemed, countQuery, rewardID); err != nil {
				return fmt.Errorf("count redemptions: %w", err)
			}
			if _, ok := reward.Availability(redeemed); !ok {
				return ErrRewardUnavailable
			}
		}

		const lockStudent = `SELECT email FROM students WHERE email = $1 FOR UPDATE`
		var locked string
		if err := tx.GetContext(ctx, &locked, lockStudent, studentEmail); err != nil {
			return fmt.Errorf("lock student: %w", err)
		}
		balance, err := sumPoints(ctx, tx, studentEmail)
		if err != nil {
			return err
		}
		if balance < reward.Cost {
			return ErrInsufficientPoints
		}

		now := time.Now().UTC()
		result.Redemption = models.Redemption{
			RewardID:       rewardID,
			StudentEmail:   studentEmail,
			Status:         models.RedemptionPending,
			RedemptionDate: now,
		}
		const insert = `INSERT INTO redemptions (reward_id, student_email, status, redemption_date)
        VALUES ($1, $2, $3, $4) RETURNING id`
		if err := tx.QueryRowxContext(ctx, insert, rewardID, studentEmail, result.Redemption.Status, now).Scan(&result.Redemption.ID); err != nil {
			return fmt.Errorf("insert redemption: %w", err)
		}

		redemptionID := result.Redemption.ID
		debit, err := insertTransaction(ctx, tx, dto.CreateTransactionParams{
			StudentEmail: studentEmail,
			Points:       -reward.Cost,
			RedemptionID: &redemptionID,
		}, now)
		if err != nil {
			return err
		}
		result.Transaction = *debit
		result.Balance = balance - reward.Cost
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// FindDetailByID returns a redemption with reward and student context.
func (r *RedemptionRepository) FindDetailByID(ctx context.Context, id int64) (*dto.RedemptionDetail, error) {
	query := redemptionDetailQuery + ` WHERE rd.id = $1`
	var detail dto.RedemptionDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find redemption: %w", err)
	}
	return &detail, nil
}

// ListByReward returns the reward's redemptions, newest first.
func (r *RedemptionRepository) ListByReward(ctx context.Context, rewardID int64) ([]dto.RedemptionDetail, error) {
	query := redemptionDetailQuery + ` WHERE rd.reward_id = $1 ORDER BY rd.redemption_date DESC`
	items := []dto.RedemptionDetail{}
	if err := r.db.SelectContext(ctx, &items, query, rewardID); err != nil {
		return nil, fmt.Errorf("list reward redemptions: %w", err)
	}
	return items, nil
}

// ListByStudent returns the student's redemptions, newest first.
func (r *RedemptionRepository) ListByStudent(ctx context.Context, studentEmail string) ([]dto.RedemptionDetail, error) {
	query := redemptionDetailQuery + ` WHERE rd.student_email = $1 ORDER BY rd.redemption_date DESC`
	items := []dto.RedemptionDetail{}
	if err := r.db.SelectContext(ctx, &items, query, studentEmail); err != nil {
		return nil, fmt.Errorf("list student redemptions: %w", err)
	}
	return items, nil
}

// UpdateStatus moves a pending redemption to fulfilled or cancelled. Cancelling refunds the
// reward cost in the same transaction. Redemptions that already left pending yield
// ErrRedemptionProcessed; a missing one yields sql.ErrNoRows.
func (r *RedemptionRepository) UpdateStatus(ctx context.Context, id int64, status models.RedemptionStatus) (*dto.RedemptionUpdate, error) {
	var result dto.RedemptionUpdate
	err := inTx(ctx, r.db, "update redemption", func(tx *sqlx.Tx) error {
		var locked struct {
			models.Redemption
			Cost int `db:"cost"`
		}
		const lock = `SELECT rd.id, rd.reward_id, rd.student_email, rd.status, rd.redemption_date, rd.updated_date, w.cost
FROM redemptions rd
JOIN rewards w ON w.id = rd.reward_id
WHERE rd.id = $1
FOR UPDATE OF rd`
		if err := tx.GetContext(ctx, &locked, lock, id); err != nil {
			if err == sql.ErrNoRows {
				return err
			}
			return fmt.Errorf("lock redemption: %w", err)
		}
		if locked.Status != models.RedemptionPending {
			return ErrRedemptionProcessed
		}

		now := time.Now().UTC()
		const update = `UPDATE redemptions SET status = $2, updated_date = $3 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, update, id, status, now); err != nil {
			return fmt.Errorf("update redemption status: %w", err)
		}
		result.Redemption = locked.Redemption
		result.Redemption.Status = status
		result.Redemption.UpdatedDate = &now

		if status != models.RedemptionCancelled {
			return nil
		}
		redemptionID := id
		refund, err := insertTransaction(ctx, tx, dto.CreateTransactionParams{
			StudentEmail: locked.StudentEmail,
			Points:       locked.Cost,
			RedemptionID: &redemptionID,
		}, now)
		if err != nil {
			return err
		}
		result.Refund = refund
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
