package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/levelup-edu/levelup-api/internal/dto"
	"github.com/levelup-edu/levelup-api/internal/models"
	"github.com/levelup-edu/levelup-api/internal/repository"
	appErrors "github.com/levelup-edu/levelup-api/pkg/errors"
)

type ledgerRepository interface {
	Create(ctx context.Context, params dto.CreateTransactionParams) (*models.Transaction, error)
	SumByStudent(ctx context.Context, studentEmail string) (int, error)
	ListByStudent(ctx context.Context, studentEmail string) ([]models.Transaction, error)
	ClaimedSubmissionIDs(ctx context.Context, studentEmail string) ([]int64, error)
	CourseLedger(ctx context.Context, courseID int64) ([]dto.CourseLedgerEntry, error)
}

// LedgerService exposes the append-only points ledger. Balances are always derived by summing.
type LedgerService struct {
	repo    ledgerRepository
	courses courseAccessReader
	metrics *MetricsService
	logger  *zap.Logger
}

// NewLedgerService constructs a LedgerService.
func NewLedgerService(repo ledgerRepository, courses courseAccessReader, metrics *MetricsService, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{repo: repo, courses: courses, metrics: metrics, logger: logger}
}

// CreateTransaction appends a ledger entry without any balance check.
func (s *LedgerService) CreateTransaction(ctx context.Context, params dto.CreateTransactionParams) (*models.Transaction, error) {
	if params.StudentEmail == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentEmail is required")
	}
	txn, err := s.repo.Create(ctx, params)
	if err != nil {
		if errors.Is(err, repository.ErrAmbiguousSource) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "transaction cannot reference both a submission and a redemption")
		}
		return nil, appErrors.Internal(err, "failed to create transaction")
	}
	return txn, nil
}

// GetStudentPoints returns the caller's balance.
func (s *LedgerService) GetStudentPoints(ctx context.Context, claims *models.JWTClaims) (*dto.PointsBalance, error) {
	if err := requireStudent(claims); err != nil {
		return nil, err
	}
	start := time.Now()
	total, err := s.repo.SumByStudent(ctx, claims.Email)
	s.metrics.ObserveDBQuery("student_points", time.Since(start))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to compute points")
	}
	return &dto.PointsBalance{StudentEmail: claims.Email, Points: total}, nil
}

// ListStudentTransactions returns the caller's ledger entries, newest first.
func (s *LedgerService) ListStudentTransactions(ctx context.Context, claims *models.JWTClaims) ([]models.Transaction, error) {
	if err := requireStudent(claims); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByStudent(ctx, claims.Email)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list transactions")
	}
	return items, nil
}

// GetClaimedSubmissionIDs returns the ids of the caller's submissions that were credited.
func (s *LedgerService) GetClaimedSubmissionIDs(ctx context.Context, claims *models.JWTClaims) ([]int64, error) {
	if err := requireStudent(claims); err != nil {
		return nil, err
	}
	ids, err := s.repo.ClaimedSubmissionIDs(ctx, claims.Email)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list claimed submissions")
	}
	return ids, nil
}

// CourseLedger reports earned, spent and balance for every student of one of the caller's courses.
func (s *LedgerService) CourseLedger(ctx context.Context, claims *models.JWTClaims, courseID int64) (*dto.CourseLedger, error) {
	course, err := ownedCourse(ctx, s.courses, claims, courseID)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	entries, err := s.repo.CourseLedger(ctx, courseID)
	s.metrics.ObserveDBQuery("course_ledger", time.Since(start))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to build course ledger")
	}
	return &dto.CourseLedger{Course: *course, Entries: entries}, nil
}
