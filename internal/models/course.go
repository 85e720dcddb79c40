package models

import "time"

// Course is owned by its instructor and joined by students through a registration code.
type Course struct {
	ID              int64     `db:"id" json:"id"`
	CourseCode      string    `db:"course_code" json:"courseCode"`
	InstructorEmail string    `db:"instructor_email" json:"instructorEmail"`
	Title           string    `db:"title" json:"title"`
	Description     *string   `db:"description" json:"description,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

// Registration links a student to a course. A pair exists at most once.
type Registration struct {
	ID           int64     `db:"id" json:"id"`
	StudentEmail string    `db:"student_email" json:"studentEmail"`
	CourseID     int64     `db:"course_id" json:"courseId"`
	RegisteredAt time.Time `db:"registered_at" json:"registeredAt"`
}
