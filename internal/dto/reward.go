package dto

import "github.com/levelup-edu/levelup-api/internal/models"

// Redemption actions accepted by PATCH /redemptions/:redemptionId.
const (
	ActionFulfill = "fulfill"
	ActionCancel  = "cancel"
)

// CreateRewardRequest is the payload for POST /rewards.
type CreateRewardRequest struct {
	CourseID      int64   `json:"courseId" validate:"required,gt=0"`
	Name          string  `json:"name" validate:"required,max=120"`
	Description   *string `json:"description" validate:"omitempty,max=2000"`
	Cost          int     `json:"cost" validate:"required,gt=0"`
	QuantityLimit *int    `json:"quantityLimit" validate:"omitempty,gt=0"`
	Type          *string `json:"type" validate:"omitempty,max=40"`
	Active        *bool   `json:"active"`
}

// UpdateRewardRequest toggles a reward's availability.
type UpdateRewardRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// UpdateRedemptionRequest moves a pending redemption to fulfilled or cancelled.
type UpdateRedemptionRequest struct {
	Action string `json:"action" validate:"required,oneof=fulfill cancel"`
}

// RewardUsage is a reward row joined with its count of non-cancelled redemptions.
type RewardUsage struct {
	models.Reward
	Redeemed int `db:"redeemed"`
}

// RewardStats reports availability. Limit and Available are nil for unlimited rewards.
type RewardStats struct {
	Reward      models.Reward `json:"reward"`
	Limit       *int          `json:"limit"`
	Redeemed    int           `json:"redeemed"`
	Available   *int          `json:"available"`
	IsAvailable bool          `json:"isAvailable"`
}

// NewRewardStats derives availability figures from a usage row.
func NewRewardStats(usage RewardUsage) RewardStats {
	available, ok := usage.Reward.Availability(usage.Redeemed)
	return RewardStats{
		Reward:      usage.Reward,
		Limit:       usage.QuantityLimit,
		Redeemed:    usage.Redeemed,
		Available:   available,
		IsAvailable: ok,
	}
}

// RedemptionDetail annotates a redemption with reward and student context.
type RedemptionDetail struct {
	models.Redemption
	RewardName  string `db:"reward_name" json:"rewardName"`
	Cost        int    `db:"cost" json:"cost"`
	CourseID    int64  `db:"course_id" json:"courseId"`
	StudentName string `db:"student_name" json:"studentName"`
}

// RedeemResult is returned after a successful purchase.
type RedeemResult struct {
	Redemption  models.Redemption  `json:"redemption"`
	Transaction models.Transaction `json:"transaction"`
	Balance     int                `json:"balance"`
}

// RedemptionUpdate is returned after fulfilling or cancelling. Refund is set on cancel.
type RedemptionUpdate struct {
	Redemption models.Redemption   `json:"redemption"`
	Refund     *models.Transaction `json:"refund,omitempty"`
}
