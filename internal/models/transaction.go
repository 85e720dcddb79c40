package models

import "time"

// Transaction is an append-only ledger entry. A student's balance is the sum of their rows.
type Transaction struct {
	ID              int64     `db:"id" json:"id"`
	StudentEmail    string    `db:"student_email" json:"studentEmail"`
	Points          int       `db:"points" json:"points"`
	TransactionDate time.Time `db:"transaction_date" json:"transactionDate"`
	SubmissionID    *int64    `db:"submission_id" json:"submissionId,omitempty"`
	RedemptionID    *int64    `db:"redemption_id" json:"redemptionId,omitempty"`
}
