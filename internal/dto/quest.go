package dto

import (
	"time"

	"github.com/levelup-edu/levelup-api/internal/models"
)

// CreateQuestRequest is the payload for POST /quests.
type CreateQuestRequest struct {
	CourseID       int64      `json:"courseId" validate:"required,gt=0"`
	Title          string     `json:"title" validate:"required,max=200"`
	Points         int        `json:"points" validate:"required,gt=0,lte=100000"`
	ExpirationDate *time.Time `json:"expirationDate"`
}

// QuestWithCourse is a quest joined with its course summary.
type QuestWithCourse struct {
	models.Quest
	Course CourseSummary `db:"course" json:"course"`
}

// SubmissionDetail is a submission annotated with the student's display name.
type SubmissionDetail struct {
	models.Submission
	StudentName string `db:"student_name" json:"studentName"`
}

// QuestSubmissions is returned by GET /quests/:questId/submissions.
type QuestSubmissions struct {
	Quest       models.Quest       `json:"quest"`
	Submissions []SubmissionDetail `json:"submissions"`
}

// StudentSubmission is a student's own submission with quest context.
type StudentSubmission struct {
	models.Submission
	QuestTitle  string `db:"quest_title" json:"questTitle"`
	QuestPoints int    `db:"quest_points" json:"questPoints"`
	CourseID    int64  `db:"course_id" json:"courseId"`
}
