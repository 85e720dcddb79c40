package models

import "time"

// SubmissionStatus is the verification state of a submission.
type SubmissionStatus string

// A submission starts pending and moves exactly once to approved or rejected.
const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s SubmissionStatus) Terminal() bool {
	return s == SubmissionApproved || s == SubmissionRejected
}

// Submission is a student's claim of having completed a quest.
type Submission struct {
	ID             int64            `db:"id" json:"id"`
	StudentEmail   string           `db:"student_email" json:"studentEmail"`
	QuestID        int64            `db:"quest_id" json:"questId"`
	SubmissionDate time.Time        `db:"submission_date" json:"submissionDate"`
	Status         SubmissionStatus `db:"status" json:"status"`
	VerifiedBy     *string          `db:"verified_by" json:"verifiedBy,omitempty"`
	VerifiedDate   *time.Time       `db:"verified_date" json:"verifiedDate,omitempty"`
}
