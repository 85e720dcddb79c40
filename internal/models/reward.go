package models

import "time"

// RewardTypeUnspecified is stored when a reward is created without a type.
const RewardTypeUnspecified = "unspecified"

// Reward is a course-scoped item students buy with points.
type Reward struct {
	ID            int64     `db:"id" json:"id"`
	CourseID      int64     `db:"course_id" json:"courseId"`
	CreatedDate   time.Time `db:"created_date" json:"createdDate"`
	Name          string    `db:"name" json:"name"`
	Description   *string   `db:"description" json:"description,omitempty"`
	Cost          int       `db:"cost" json:"cost"`
	QuantityLimit *int      `db:"quantity_limit" json:"quantityLimit"`
	Type          string    `db:"type" json:"type"`
	Active        bool      `db:"active" json:"active"`
}

// Availability evaluates a reward against the number of non-cancelled redemptions.
// Available is nil for unlimited rewards.
func (r *Reward) Availability(redeemed int) (available *int, isAvailable bool) {
	if r.QuantityLimit == nil {
		return nil, r.Active
	}
	left := *r.QuantityLimit - redeemed
	return &left, r.Active && redeemed < *r.QuantityLimit
}

// RedemptionStatus tracks fulfilment of a purchased reward.
type RedemptionStatus string

// Pending and fulfilled redemptions count toward a reward's quantity limit.
const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionFulfilled RedemptionStatus = "fulfilled"
	RedemptionCancelled RedemptionStatus = "cancelled"
)

// Redemption records a student acquiring a reward.
type Redemption struct {
	ID             int64            `db:"id" json:"id"`
	RewardID       int64            `db:"reward_id" json:"rewardId"`
	StudentEmail   string           `db:"student_email" json:"studentEmail"`
	Status         RedemptionStatus `db:"status" json:"status"`
	RedemptionDate time.Time        `db:"redemption_date" json:"redemptionDate"`
	UpdatedDate    *time.Time       `db:"updated_date" json:"updatedDate,omitempty"`
}
