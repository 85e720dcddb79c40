package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/levelup-edu/levelup-api/internal/handler"
	"github.com/levelup-edu/levelup-api/internal/middleware"
	"github.com/levelup-edu/levelup-api/internal/models"
	"github.com/levelup-edu/levelup-api/internal/service"
	"github.com/levelup-edu/levelup-api/pkg/config"
	"github.com/levelup-edu/levelup-api/pkg/logger"
	corsmiddleware "github.com/levelup-edu/levelup-api/pkg/middleware/cors"
	"github.com/levelup-edu/levelup-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/levelup-edu/levelup-api/pkg/middleware/requestid"
)

type routeDeps struct {
	auth       *service.AuthService
	metrics    *service.MetricsService
	auths      *handler.AuthHandler
	courses    *handler.CourseHandler
	quests     *handler.QuestHandler
	students   *handler.StudentHandler
	rewards    *handler.RewardHandler
	monitoring *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, d routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(d.metrics, "/metrics", "/health", "/ready"))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", d.monitoring.Health)
	r.GET("/ready", d.monitoring.Ready)
	r.GET("/metrics", d.monitoring.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.Use(ratelimit.New(cfg.RateLimit.PerMinute).Middleware())
	auth.POST("/instructors/register", d.auths.RegisterInstructor)
	auth.POST("/students/register", d.auths.RegisterStudent)
	auth.POST("/login", d.auths.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(d.auth))
	secured.GET("/auth/me", d.auths.Me)

	instructor := middleware.RequireRoles(models.RoleInstructor)
	student := middleware.RequireRoles(models.RoleStudent)

	courses := secured.Group("/courses")
	courses.POST("", instructor, d.courses.Create)
	courses.GET("", instructor, d.courses.List)
	courses.GET("/:courseId", d.courses.Get)
	courses.GET("/:courseId/ledger", instructor, d.courses.Ledger)
	courses.GET("/:courseId/ledger/export", instructor, d.courses.ExportLedger)
	secured.GET("/instructor/students", instructor, d.courses.Students)

	quests := secured.Group("/quests")
	quests.POST("", instructor, d.quests.Create)
	quests.GET("/course/:courseId", d.quests.ListByCourse)
	quests.GET("/instructor", instructor, d.quests.ListMine)
	quests.GET("/:questId", d.quests.Get)
	quests.DELETE("/:questId", instructor, d.quests.Delete)
	quests.GET("/:questId/submissions", instructor, d.quests.Submissions)
	quests.PATCH("/:questId/submissions/:submissionId", instructor, d.quests.Verify)

	students := secured.Group("/student", student)
	students.POST("/register-course", d.students.RegisterCourse)
	students.GET("/courses", d.students.Courses)
	students.GET("/courses/:courseId/quests", d.students.AvailableQuests)
	students.POST("/attend-quest", d.students.AttendQuest)
	students.GET("/submissions", d.students.Submissions)
	students.GET("/points", d.students.Points)
	students.GET("/transactions", d.students.Transactions)
	students.GET("/claimed-submissions", d.students.ClaimedSubmissions)
	students.GET("/redemptions", d.students.Redemptions)
	students.GET("/rewards/:rewardId", d.students.Reward)
	students.POST("/rewards/:rewardId/redeem", d.students.Redeem)

	rewards := secured.Group("/rewards")
	rewards.POST("", instructor, d.rewards.Create)
	rewards.GET("/course/:courseId", d.rewards.ListByCourse)
	rewards.GET("/:rewardId", d.rewards.Get)
	rewards.PATCH("/:rewardId", instructor, d.rewards.SetActive)
	rewards.GET("/:rewardId/redemptions", instructor, d.rewards.Redemptions)
	secured.PATCH("/redemptions/:redemptionId", instructor, d.rewards.UpdateRedemption)

	return r
}
