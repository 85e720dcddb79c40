package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/levelup-edu/levelup-api/internal/models"
	"github.com/levelup-edu/levelup-api/pkg/database"
	appErrors "github.com/levelup-edu/levelup-api/pkg/errors"
	"github.com/levelup-edu/levelup-api/pkg/sanitize"
)

type instructorAccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Instructor, error)
	Create(ctx context.Context, instructor *models.Instructor) error
}

type studentAccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	UpdateLastSignin(ctx context.Context, email string, ts time.Time) error
}

// AuthConfig defines configuration for token issuance.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// AuthService registers accounts and issues access tokens for both roles.
type AuthService struct {
	instructors instructorAccountRepository
	students    studentAccountRepository
	validator   *validator.Validate
	logger      *zap.Logger
	config      AuthConfig
	now         func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(instructors instructorAccountRepository, students studentAccountRepository, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 24 * time.Hour
	}
	return &AuthService{
		instructors: instructors,
		students:    students,
		validator:   validate,
		logger:      logger,
		config:      config,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) prepareRegistration(req models.RegisterRequest) (models.RegisterRequest, string, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = sanitize.Text(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return req, "", validationError(err, "invalid registration payload")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return req, "", appErrors.Internal(err, "failed to hash password")
	}
	return req, string(hash), nil
}

// RegisterInstructor creates an instructor account.
func (s *AuthService) RegisterInstructor(ctx context.Context, req models.RegisterRequest) (*models.UserInfo, error) {
	req, hash, err := s.prepareRegistration(req)
	if err != nil {
		return nil, err
	}

	if _, err := s.instructors.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to look up instructor")
	}

	instructor := &models.Instructor{Email: req.Email, Name: req.Name, PasswordHash: hash, CreatedAt: s.now()}
	if err := s.instructors.Create(ctx, instructor); err != nil {
		if database.IsUniqueViolation(err, database.ConstraintInstructorEmailPKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
		}
		return nil, appErrors.Internal(err, "failed to create instructor")
	}

	s.logger.Info("instructor registered", zap.String("email", instructor.Email))
	return &models.UserInfo{Email: instructor.Email, Name: instructor.Name, Role: models.RoleInstructor}, nil
}

// RegisterStudent creates a student account.
func (s *AuthService) RegisterStudent(ctx context.Context, req models.RegisterRequest) (*models.UserInfo, error) {
	req, hash, err := s.prepareRegistration(req)
	if err != nil {
		return nil, err
	}

	if _, err := s.students.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to look up student")
	}

	student := &models.Student{Email: req.Email, Name: req.Name, PasswordHash: hash, CreatedAt: s.now()}
	if err := s.students.Create(ctx, student); err != nil {
		if database.IsUniqueViolation(err, database.ConstraintStudentEmailPKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
		}
		return nil, appErrors.Internal(err, "failed to create student")
	}

	s.logger.Info("student registered", zap.String("email", student.Email))
	return &models.UserInfo{Email: student.Email, Name: student.Name, Role: models.RoleStudent}, nil
}

// Login authenticates an account of the requested role and returns a signed access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid login payload")
	}

	var (
		user         models.UserInfo
		passwordHash string
		err          error
	)
	switch req.Role {
	case models.RoleInstructor:
		var instructor *models.Instructor
		instructor, err = s.instructors.FindByEmail(ctx, req.Email)
		if err == nil {
			user = models.UserInfo{Email: instructor.Email, Name: instructor.Name, Role: models.RoleInstructor}
			passwordHash = instructor.PasswordHash
		}
	case models.RoleStudent:
		var student *models.Student
		student, err = s.students.FindByEmail(ctx, req.Email)
		if err == nil {
			user = models.UserInfo{Email: student.Email, Name: student.Name, Role: models.RoleStudent}
			passwordHash = student.PasswordHash
		}
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, appErrors.Internal(err, "failed to fetch account")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	issuedAt := s.now()
	token, err := s.generateAccessToken(user, issuedAt)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create access token")
	}

	if user.Role == models.RoleStudent {
		if err := s.students.UpdateLastSignin(ctx, user.Email, issuedAt); err != nil {
			s.logger.Warn("failed to update last signin", zap.String("email", user.Email), zap.Error(err))
		}
	}

	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:    issuedAt,
		User:        user,
	}, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || !claims.Role.Valid() || claims.Email == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (s *AuthService) generateAccessToken(user models.UserInfo, issuedAt time.Time) (string, error) {
	claims := &models.JWTClaims{
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.Email,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.AccessTokenSecret))
}
