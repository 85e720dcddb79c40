package dto

import "time"

// CreateCourseRequest is the payload for POST /courses.
type CreateCourseRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

// RegisterCourseRequest enrolls the calling student through a course code.
type RegisterCourseRequest struct {
	CourseCode string `json:"courseCode" validate:"required,max=32"`
}

// CourseSummary is the course projection embedded in quest listings.
type CourseSummary struct {
	ID         int64  `db:"id" json:"id"`
	Title      string `db:"title" json:"title"`
	CourseCode string `db:"course_code" json:"courseCode"`
}

// InstructorStudent is a student registered in at least one of the instructor's courses.
type InstructorStudent struct {
	Email       string     `db:"email" json:"email"`
	Name        string     `db:"name" json:"name"`
	LastSignin  *time.Time `db:"last_signin" json:"lastSignin,omitempty"`
	CourseCount int        `db:"course_count" json:"courseCount"`
}
