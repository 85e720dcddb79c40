package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/levelup-edu/levelup-api/internal/dto"
	"github.com/levelup-edu/levelup-api/internal/models"
	"github.com/levelup-edu/levelup-api/internal/service"
	"github.com/levelup-edu/levelup-api/pkg/export"
	"github.com/levelup-edu/levelup-api/pkg/response"
)

type courseService interface {
	CreateCourse(ctx context.Context, claims *models.JWTClaims, req dto.CreateCourseRequest) (*models.Course, error)
	GetCourse(ctx context.Context, claims *models.JWTClaims, id int64) (*models.Course, error)
	ListInstructorCourses(ctx context.Context, claims *models.JWTClaims) ([]models.Course, error)
	ListInstructorStudents(ctx context.Context, claims *models.JWTClaims) ([]dto.InstructorStudent, error)
}

type courseLedgerService interface {
	CourseLedger(ctx context.Context, claims *models.JWTClaims, courseID int64) (*dto.CourseLedger, error)
}

type ledgerExporter interface {
	ExportCourseLedger(ctx context.Context, claims *models.JWTClaims, courseID int64, format export.Format) (*service.ExportFile, error)
}

// CourseHandler exposes instructor course endpoints.
type CourseHandler struct {
	courses courseService
	ledger  courseLedgerService
	exports ledgerExporter
}

// NewCourseHandler builds a new handler.
func NewCourseHandler(courses courseService, ledger courseLedgerService, exports ledgerExporter) *CourseHandler {
	return &CourseHandler{courses: courses, ledger: ledger, exports: exports}
}

// Create godoc
// @Summary Create a course
// @Description Creates a course owned by the caller with a generated join code
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.ErrorBody
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req dto.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid course payload"))
		return
	}
	course, err := h.courses.CreateCourse(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// List godoc
// @Summary List the caller's courses
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	courses, err := h.courses.ListInstructorCourses(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses)
}

// Get godoc
// @Summary Get a course
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorBody
// @Router /courses/{courseId} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	id, err := pathID(c, "courseId")
	if err != nil {
		response.Error(c, err)
		return
	}
	course, err := h.courses.GetCourse(c.Request.Context(), claimsFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course)
}

// Students godoc
// @Summary List students registered in any of the caller's courses
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /instructor/students [get]
func (h *CourseHandler) Students(c *gin.Context) {
	students, err := h.courses.ListInstructorStudents(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students)
}

// Ledger godoc
// @Summary Per-student points ledger for a course
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorBody
// @Router /courses/{courseId}/ledger [get]
func (h *CourseHandler) Ledger(c *gin.Context) {
	id, err := pathID(c, "courseId")
	if err != nil {
		response.Error(c, err)
		return
	}
	ledger, err := h.ledger.CourseLedger(c.Request.Context(), claimsFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ledger)
}

// ExportLedger godoc
// @Summary Download the course ledger
// @Tags Courses
// @Produce text/csv,application/pdf
// @Security BearerAuth
// @Param courseId path int true "Course ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /courses/{courseId}/ledger/export [get]
func (h *CourseHandler) ExportLedger(c *gin.Context) {
	id, err := pathID(c, "courseId")
	if err != nil {
		response.Error(c, err)
		return
	}
	format := export.Format(strings.ToLower(c.DefaultQuery("format", string(export.FormatCSV))))
	file, err := h.exports.ExportCourseLedger(c.Request.Context(), claimsFromContext(c), id, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
