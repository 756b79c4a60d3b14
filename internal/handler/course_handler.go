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

type courseService interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error)
	Get(ctx context.Context, id string) (*service.CourseDetail, error)
	Create(ctx context.Context, req service.CourseRequest) (*models.Course, error)
	Update(ctx context.Context, id string, req service.CourseRequest) (*models.Course, error)
	UpdateStatus(ctx context.Context, id string, req service.CourseStatusRequest) (*models.Course, error)
	Delete(ctx context.Context, id string) error
	Teachers(ctx context.Context, courseID string) ([]models.CourseTeacher, error)
	AssignTeacher(ctx context.Context, courseID string, req service.TeacherAssignmentRequest) (*service.CourseDetail, error)
	UnassignTeacher(ctx context.Context, courseID, teacherID string) (*service.CourseDetail, error)
	SetGradeRecorder(ctx context.Context, courseID string, req service.TeacherAssignmentRequest) (*service.CourseDetail, error)
	ClearGradeRecorder(ctx context.Context, courseID string) (*service.CourseDetail, error)
}

type gradePermissionService interface {
	Permission(ctx context.Context, courseID, teacherID string) (*service.GradePermission, error)
}

// CourseHandler exposes course, roster and grade recorder endpoints.
type CourseHandler struct {
	courses     courseService
	permissions gradePermissionService
}

// NewCourseHandler constructs a course handler.
func NewCourseHandler(courses courseService, permissions gradePermissionService) *CourseHandler {
	return &CourseHandler{courses: courses, permissions: permissions}
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Param departmentId query string false "Filter by department"
// @Param status query string false "Filter by status"
// @Param teacherId query string false "Filter by primary teacher"
// @Param search query string false "Search by code or name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	var filter models.CourseFilter
	filter.DepartmentID = c.Query("departmentId")
	filter.Status = models.CourseStatus(strings.ToUpper(c.Query("status")))
	filter.TeacherID = c.Query("teacherId")
	filter.Search = c.Query("search")
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	courses, pagination, err := h.courses.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// Get godoc
// @Summary Get course
// @Description Returns the course with its roster and effective teachers
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	detail, err := h.courses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body service.CourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req service.CourseRequest
	if !bindJSON(c, &req) {
		return
	}
	course, err := h.courses.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Update godoc
// @Summary Update course
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.CourseRequest true "Course payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	var req service.CourseRequest
	if !bindJSON(c, &req) {
		return
	}
	course, err := h.courses.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// UpdateStatus godoc
// @Summary Change course status
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.CourseStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/status [patch]
func (h *CourseHandler) UpdateStatus(c *gin.Context) {
	var req service.CourseStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	course, err := h.courses.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Delete godoc
// @Summary Delete course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 204
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	if err := h.courses.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Teachers godoc
// @Summary List course roster
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/teachers [get]
func (h *CourseHandler) Teachers(c *gin.Context) {
	teachers, err := h.courses.Teachers(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, nil)
}

// AssignTeacher godoc
// @Summary Add teacher to course roster
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.TeacherAssignmentRequest true "Teacher payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/teachers [post]
func (h *CourseHandler) AssignTeacher(c *gin.Context) {
	var req service.TeacherAssignmentRequest
	if !bindJSON(c, &req) {
		return
	}
	detail, err := h.courses.AssignTeacher(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// UnassignTeacher godoc
// @Summary Remove teacher from course roster
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Param teacherId path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/teachers/{teacherId} [delete]
func (h *CourseHandler) UnassignTeacher(c *gin.Context) {
	detail, err := h.courses.UnassignTeacher(c.Request.Context(), c.Param("id"), c.Param("teacherId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// SetGradeRecorder godoc
// @Summary Designate grade recording teacher
// @Description The teacher must be one of the course's effective teachers
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.TeacherAssignmentRequest true "Teacher payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/grade-recorder [put]
func (h *CourseHandler) SetGradeRecorder(c *gin.Context) {
	var req service.TeacherAssignmentRequest
	if !bindJSON(c, &req) {
		return
	}
	detail, err := h.courses.SetGradeRecorder(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// ClearGradeRecorder godoc
// @Summary Clear grade recording teacher
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/grade-recorder [delete]
func (h *CourseHandler) ClearGradeRecorder(c *gin.Context) {
	detail, err := h.courses.ClearGradeRecorder(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// GradePermission godoc
// @Summary Check grade recording permission
// @Description Teachers check their own authority; admins may pass teacherId
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Param teacherId query string false "Teacher to check (admin only)"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/grade-permission [get]
func (h *CourseHandler) GradePermission(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	teacherID := claims.UserID
	if claims.Role == models.RoleAdmin {
		teacherID = strings.TrimSpace(c.Query("teacherId"))
		if teacherID == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "teacherId is required"))
			return
		}
	} else if claims.Role != models.RoleTeacher {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	permission, err := h.permissions.Permission(c.Request.Context(), c.Param("id"), teacherID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, permission, nil)
}
