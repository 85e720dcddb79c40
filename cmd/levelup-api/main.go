package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/levelup-edu/levelup-api/api/swagger"
	"github.com/levelup-edu/levelup-api/internal/handler"
	"github.com/levelup-edu/levelup-api/internal/repository"
	"github.com/levelup-edu/levelup-api/internal/service"
	"github.com/levelup-edu/levelup-api/pkg/cache"
	"github.com/levelup-edu/levelup-api/pkg/config"
	"github.com/levelup-edu/levelup-api/pkg/database"
	"github.com/levelup-edu/levelup-api/pkg/export"
	"github.com/levelup-edu/levelup-api/pkg/logger"
)

// @title LevelUp EDU API
// @version 1.0.0
// @description Quests, verified submissions, a points ledger and course rewards.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		logr.Info("schema migrated")
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, reward cache disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	instructorRepo := repository.NewInstructorRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	questRepo := repository.NewQuestRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	rewardRepo := repository.NewRewardRepository(db)
	redemptionRepo := repository.NewRedemptionRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Rewards.CacheTTL, logr, cfg.Rewards.CacheEnabled && redisClient != nil)
	cacheSvc.StartRetries(ctx, 2)
	defer cacheSvc.StopRetries()
	authSvc := service.NewAuthService(instructorRepo, studentRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	courseSvc := service.NewCourseService(courseRepo, studentRepo, validate, logr, service.CourseConfig{
		CodeLength:      cfg.Courses.CodeLength,
		CodeMaxAttempts: cfg.Courses.CodeMaxAttempts,
	})
	questSvc := service.NewQuestService(questRepo, courseRepo, submissionRepo, validate, logr)
	submissionSvc := service.NewSubmissionService(questRepo, courseRepo, submissionRepo, metrics, validate, logr)
	ledgerSvc := service.NewLedgerService(transactionRepo, courseRepo, metrics, logr)
	rewardSvc := service.NewRewardService(rewardRepo, redemptionRepo, courseRepo, cacheSvc, metrics, validate, logr, service.RewardConfig{
		CacheTTL: cfg.Rewards.CacheTTL,
	})
	exportSvc := service.NewExportService(ledgerSvc, logr, export.NewCSVExporter(), export.NewPDFExporter())

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := newRouter(cfg, logr, routeDeps{
		auth:       authSvc,
		metrics:    metrics,
		auths:      handler.NewAuthHandler(authSvc),
		courses:    handler.NewCourseHandler(courseSvc, ledgerSvc, exportSvc),
		quests:     handler.NewQuestHandler(questSvc, submissionSvc),
		students:   handler.NewStudentHandler(courseSvc, submissionSvc, ledgerSvc, rewardSvc),
		rewards:    handler.NewRewardHandler(rewardSvc),
		monitoring: handler.NewMetricsHandler(metrics, db),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
