package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/middleware"
	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

type statsService interface {
	StudentSummary(ctx context.Context, studentID string) (*dto.StudentSummary, bool, error)
	StudentTrend(ctx context.Context, studentID string) (*dto.StudentTrend, bool, error)
	RefreshStanding(ctx context.Context, studentID string) (*models.StudentStanding, error)
	CourseStats(ctx context.Context, courseID, semesterID string) (*dto.CourseStats, bool, error)
	DepartmentStats(ctx context.Context, semesterID string) ([]dto.DepartmentStats, bool, error)
	SemesterSeries(ctx context.Context) ([]dto.SemesterStats, bool, error)
	AtRisk(ctx context.Context, limit int, department string) (*dto.AtRiskRoster, bool, error)
	Overview(ctx context.Context) (*dto.OverviewStats, bool, error)
}

// StatsHandler serves read-time academic aggregates.
type StatsHandler struct {
	service statsService
}

// NewStatsHandler constructs a stats handler.
func NewStatsHandler(svc statsService) *StatsHandler {
	return &StatsHandler{service: svc}
}

// Student godoc
// @Summary Student academic summary
// @Description Average, cumulative GPA, credits, risk level and semester history
// @Tags Stats
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /stats/students/{id} [get]
func (h *StatsHandler) Student(c *gin.Context) {
	summary, hit, err := h.service.StudentSummary(c.Request.Context(), c.Param("id"))
	respondStats(c, summary, hit, err)
}

// StudentTrend godoc
// @Summary Student semester trend
// @Tags Stats
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /stats/students/{id}/trend [get]
func (h *StatsHandler) StudentTrend(c *gin.Context) {
	trend, hit, err := h.service.StudentTrend(c.Request.Context(), c.Param("id"))
	respondStats(c, trend, hit, err)
}

// RefreshStanding godoc
// @Summary Recompute stored student standing
// @Description Writes the computed GPA and credits back to the student record
// @Tags Stats
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /stats/students/{id}/refresh [post]
func (h *StatsHandler) RefreshStanding(c *gin.Context) {
	standing, err := h.service.RefreshStanding(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, standing, nil)
}

// Course godoc
// @Summary Course statistics
// @Tags Stats
// @Produce json
// @Param id path string true "Course ID"
// @Param semesterId query string false "Restrict to one semester"
// @Success 200 {object} response.Envelope
// @Router /stats/courses/{id} [get]
func (h *StatsHandler) Course(c *gin.Context) {
	stats, hit, err := h.service.CourseStats(c.Request.Context(), c.Param("id"), strings.TrimSpace(c.Query("semesterId")))
	respondStats(c, stats, hit, err)
}

// Departments godoc
// @Summary Department statistics
// @Tags Stats
// @Produce json
// @Param semesterId query string false "Restrict to one semester"
// @Success 200 {object} response.Envelope
// @Router /stats/departments [get]
func (h *StatsHandler) Departments(c *gin.Context) {
	stats, hit, err := h.service.DepartmentStats(c.Request.Context(), strings.TrimSpace(c.Query("semesterId")))
	respondStats(c, stats, hit, err)
}

// Semesters godoc
// @Summary Semester series
// @Tags Stats
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /stats/semesters [get]
func (h *StatsHandler) Semesters(c *gin.Context) {
	series, hit, err := h.service.SemesterSeries(c.Request.Context())
	respondStats(c, series, hit, err)
}

// AtRisk godoc
// @Summary At-risk students
// @Tags Stats
// @Produce json
// @Param limit query int false "Maximum rows"
// @Param department query string false "Filter by department"
// @Success 200 {object} response.Envelope
// @Router /stats/at-risk [get]
func (h *StatsHandler) AtRisk(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}
	roster, hit, err := h.service.AtRisk(c.Request.Context(), limit, strings.TrimSpace(c.Query("department")))
	respondStats(c, roster, hit, err)
}

// Overview godoc
// @Summary System overview
// @Tags Stats
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /stats/overview [get]
func (h *StatsHandler) Overview(c *gin.Context) {
	overview, hit, err := h.service.Overview(c.Request.Context())
	respondStats(c, overview, hit, err)
}

func respondStats(c *gin.Context, data interface{}, hit bool, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, data, nil, middleware.ResponseMeta(c))
}
