package models

import "time"

// UserRole distinguishes the two account kinds.
type UserRole string

const (
	RoleInstructor UserRole = "instructor"
	RoleStudent    UserRole = "student"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == RoleInstructor || r == RoleStudent
}

// Instructor owns courses, quests and rewards. Email is the natural key.
type Instructor struct {
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Student attends quests and spends points. Email is the natural key.
type Student struct {
	Email        string     `db:"email" json:"email"`
	Name         string     `db:"name" json:"name"`
	PasswordHash string     `db:"password_hash" json:"-"`
	LastSignin   *time.Time `db:"last_signin" json:"lastSignin,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
}
