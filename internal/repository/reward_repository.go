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

const rewardColumns = `w.id, w.course_id, w.created_date, w.name, w.description, w.cost, w.quantity_limit, w.type, w.active`

// rewardUsageQuery counts pending and fulfilled redemptions per reward; cancelled ones free a slot.
const rewardUsageQuery = `SELECT ` + rewardColumns + `, COALESCE(rc.redeemed, 0) AS redeemed
FROM rewards w
LEFT JOIN (
	SELECT reward_id, COUNT(*) AS redeemed
	FROM redemptions
	WHERE status IN ('pending', 'fulfilled')
	GROUP BY reward_id
) rc ON rc.reward_id = w.id`

// RewardRepository persists course rewards.
type RewardRepository struct {
	db *sqlx.DB
}

// NewRewardRepository constructs the repository.
func NewRewardRepository(db *sqlx.DB) *RewardRepository {
	return &RewardRepository{db: db}
}

// Create inserts a reward and fills its id.
func (r *RewardRepository) Create(ctx context.Context, reward *models.Reward) error {
	if reward.CreatedDate.IsZero() {
		reward.CreatedDate = time.Now().UTC()
	}
	if reward.Type == "" {
		reward.Type = models.RewardTypeUnspecified
	}
	const query = `INSERT INTO rewards (course_id, created_date, name, description, cost, quantity_limit, type, active)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		reward.CourseID, reward.CreatedDate, reward.Name, reward.Description,
		reward.Cost, reward.QuantityLimit, reward.Type, reward.Active,
	).Scan(&reward.ID); err != nil {
		return fmt.Errorf("create reward: %w", err)
	}
	return nil
}

// FindByID returns a reward by id.
func (r *RewardRepository) FindByID(ctx context.Context, id int64) (*models.Reward, error) {
	query := `SELECT ` + rewardColumns + ` FROM rewards w WHERE w.id = $1`
	var reward models.Reward
	if err := r.db.GetContext(ctx, &reward, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find reward: %w", err)
	}
	return &reward, nil
}

// FindUsage returns a reward together with its non-cancelled redemption count.
func (r *RewardRepository) FindUsage(ctx context.Context, id int64) (*dto.RewardUsage, error) {
	query := rewardUsageQuery + ` WHERE w.id = $1`
	var usage dto.RewardUsage
	if err := r.db.GetContext(ctx, &usage, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find reward usage: %w", err)
	}
	return &usage, nil
}

// ListUsageByCourse returns every reward of the course with redemption counts, newest first.
func (r *RewardRepository) ListUsageByCourse(ctx context.Context, courseID int64) ([]dto.RewardUsage, error) {
	query := rewardUsageQuery + ` WHERE w.course_id = $1 ORDER BY w.created_date DESC`
	items := []dto.RewardUsage{}
	if err := r.db.SelectContext(ctx, &items, query, courseID); err != nil {
		return nil, fmt.Errorf("list course rewards: %w", err)
	}
	return items, nil
}

// SetActive toggles whether the reward can be redeemed. A missing reward yields sql.ErrNoRows.
func (r *RewardRepository) SetActive(ctx context.Context, id int64, active bool) error {
	const query = `UPDATE rewards SET active = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("update reward active: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update reward rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
