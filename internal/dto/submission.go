package dto

import "github.com/levelup-edu/levelup-api/internal/models"

// Verification actions accepted by PATCH /quests/:questId/submissions/:submissionId.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// AttendQuestRequest is the payload for POST /student/attend-quest.
type AttendQuestRequest struct {
	QuestID int64 `json:"questId" validate:"required,gt=0"`
}

// VerifySubmissionRequest carries the instructor's decision.
type VerifySubmissionRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
}

// VerificationResult is the outcome of a verification. Transaction is nil when rejected.
type VerificationResult struct {
	Submission  models.Submission   `json:"submission"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
}

// VerifySubmissionParams is the state transition applied atomically by the repository.
type VerifySubmissionParams struct {
	SubmissionID int64
	VerifiedBy   string
	Status       models.SubmissionStatus
	Points       int
}
