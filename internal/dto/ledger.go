package dto

import "github.com/levelup-edu/levelup-api/internal/models"

// PointsBalance is the derived sum of a student's ledger.
type PointsBalance struct {
	StudentEmail string `json:"studentEmail"`
	Points       int    `json:"points"`
}

// CreateTransactionParams appends one ledger entry. At most one source reference is set.
type CreateTransactionParams struct {
	StudentEmail string
	Points       int
	SubmissionID *int64
	RedemptionID *int64
}

// CourseLedgerEntry summarises one registered student's points within a course.
type CourseLedgerEntry struct {
	StudentEmail string `db:"student_email" json:"studentEmail"`
	StudentName  string `db:"student_name" json:"studentName"`
	Earned       int    `db:"earned" json:"earned"`
	Spent        int    `db:"spent" json:"spent"`
	Balance      int    `db:"balance" json:"balance"`
}

// CourseLedger is the per-course ledger report.
type CourseLedger struct {
	Course  models.Course       `json:"course"`
	Entries []CourseLedgerEntry `json:"entries"`
}
