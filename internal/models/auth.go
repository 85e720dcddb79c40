package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating an instructor or student.
type LoginRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required"`
	Role     UserRole `json:"role" validate:"required,oneof=instructor student"`
}

// RegisterRequest creates an account of the role chosen by the route.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,max=120"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginResponse returns the issued token and identity.
type LoginResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresIn   int64     `json:"expiresIn"`
	IssuedAt    time.Time `json:"issuedAt"`
	User        UserInfo  `json:"user"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Role  UserRole `json:"role"`
}

// JWTClaims is the request-scoped identity passed into every service call.
type JWTClaims struct {
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Role  UserRole `json:"role"`
	jwt.RegisteredClaims
}

// IsInstructor reports whether the caller is an authenticated instructor.
func (c *JWTClaims) IsInstructor() bool {
	return c != nil && c.Role == RoleInstructor && c.Email != ""
}

// IsStudent reports whether the caller is an authenticated student.
func (c *JWTClaims) IsStudent() bool {
	return c != nil && c.Role == RoleStudent && c.Email != ""
}
