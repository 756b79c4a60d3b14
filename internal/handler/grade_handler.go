package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/service"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

type gradeService interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, *models.Pagination, error)
	Get(ctx context.Context, key models.GradeKey) (*models.Grade, error)
	RecordGrade(ctx context.Context, teacherID string, req service.RecordGradeRequest) (*service.GradeWriteResult, error)
	RecordGradesBulk(ctx context.Context, teacherID string, req service.BulkGradeRequest) (*service.BulkGradeResult, error)
}

// GradeHandler exposes grade ledger endpoints.
type GradeHandler struct {
	grades gradeService
}

// NewGradeHandler constructs a grade handler.
func NewGradeHandler(grades gradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// List godoc
// @Summary List grades
// @Description Students only see their own grades
// @Tags Grades
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param courseId query string false "Filter by course"
// @Param semesterId query string false "Filter by semester"
// @Param teacherId query string false "Filter by recording teacher"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	filter := models.GradeFilter{
		StudentID:  c.Query("studentId"),
		CourseID:   c.Query("courseId"),
		SemesterID: c.Query("semesterId"),
		TeacherID:  c.Query("teacherId"),
	}
	filter.Page, filter.PageSize = pageParams(c)
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent {
		filter.StudentID = claims.UserID
	}

	grades, pagination, err := h.grades.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, pagination)
}

// Lookup godoc
// @Summary Get grade for a student, course and semester
// @Tags Grades
// @Produce json
// @Param studentId query string true "Student ID"
// @Param courseId query string true "Course ID"
// @Param semesterId query string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Router /grades/lookup [get]
func (h *GradeHandler) Lookup(c *gin.Context) {
	key := models.GradeKey{
		StudentID:  strings.TrimSpace(c.Query("studentId")),
		CourseID:   strings.TrimSpace(c.Query("courseId")),
		SemesterID: strings.TrimSpace(c.Query("semesterId")),
	}
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent {
		key.StudentID = claims.UserID
	}
	if key.StudentID == "" || key.CourseID == "" || key.SemesterID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId, courseId and semesterId are required"))
		return
	}

	grade, err := h.grades.Get(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// Record godoc
// @Summary Record grade
// @Description Creates or updates the grade for a student, course and semester
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.RecordGradeRequest true "Grade payload"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) Record(c *gin.Context) {
	teacherID, ok := gradingTeacher(c)
	if !ok {
		return
	}
	var req service.RecordGradeRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.grades.RecordGrade(c.Request.Context(), teacherID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	response.JSON(c, status, result.Grade, nil, map[string]interface{}{"created": result.Created})
}

// RecordBulk godoc
// @Summary Record grades in bulk
// @Description Applies each entry independently; an authority denial rejects the whole batch
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.BulkGradeRequest true "Bulk grade payload"
// @Success 200 {object} response.Envelope
// @Router /grades/bulk [post]
func (h *GradeHandler) RecordBulk(c *gin.Context) {
	teacherID, ok := gradingTeacher(c)
	if !ok {
		return
	}
	var req service.BulkGradeRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.grades.RecordGradesBulk(c.Request.Context(), teacherID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func gradingTeacher(c *gin.Context) (string, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	if claims.Role != models.RoleTeacher {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "only teachers record grades"))
		return "", false
	}
	return claims.UserID, true
}
