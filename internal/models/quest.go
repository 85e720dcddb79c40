package models

import "time"

// Quest is a point-bearing task inside a course.
type Quest struct {
	ID             int64      `db:"id" json:"id"`
	CourseID       int64      `db:"course_id" json:"courseId"`
	CreatedBy      string     `db:"created_by" json:"createdBy"`
	Title          string     `db:"title" json:"title"`
	Points         int        `db:"points" json:"points"`
	CreatedDate    time.Time  `db:"created_date" json:"createdDate"`
	ExpirationDate *time.Time `db:"expiration_date" json:"expirationDate,omitempty"`
}

// Expired reports whether the quest no longer accepts attendance at now.
func (q *Quest) Expired(now time.Time) bool {
	return q.ExpirationDate != nil && now.After(*q.ExpirationDate)
}
