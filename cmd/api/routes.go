package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/academic-records-api/internal/handler"
	"github.com/noah-isme/academic-records-api/internal/middleware"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/config"
)

type routeHandlers struct {
	tokens      middleware.TokenValidator
	semesters   *handler.SemesterHandler
	courses     *handler.CourseHandler
	enrollments *handler.EnrollmentHandler
	grades      *handler.GradeHandler
	stats       *handler.StatsHandler
	metrics     *handler.MetricsHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, h routeHandlers) {
	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	readers := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher, models.RoleStudent)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(h.tokens), middleware.WithResponseMeta())

	api.GET("/metrics/summary", admin, h.metrics.Snapshot)

	semesters := api.Group("/semesters")
	semesters.GET("", h.semesters.List)
	semesters.GET("/active", h.semesters.GetActive)
	semesters.GET("/:id", h.semesters.Get)
	semesters.POST("", admin, h.semesters.Create)
	semesters.PUT("/:id", admin, h.semesters.Update)
	semesters.POST("/:id/activate", admin, h.semesters.Activate)
	semesters.DELETE("/:id", admin, h.semesters.Delete)

	courses := api.Group("/courses")
	courses.GET("", h.courses.List)
	courses.GET("/:id", h.courses.Get)
	courses.POST("", admin, h.courses.Create)
	courses.PUT("/:id", admin, h.courses.Update)
	courses.PATCH("/:id/status", admin, h.courses.UpdateStatus)
	courses.DELETE("/:id", admin, h.courses.Delete)
	courses.GET("/:id/teachers", h.courses.Teachers)
	courses.POST("/:id/teachers", admin, h.courses.AssignTeacher)
	courses.DELETE("/:id/teachers/:teacherId", admin, h.courses.UnassignTeacher)
	courses.PUT("/:id/grade-recorder", admin, h.courses.SetGradeRecorder)
	courses.DELETE("/:id/grade-recorder", admin, h.courses.ClearGradeRecorder)
	courses.GET("/:id/grade-permission", staff, h.courses.GradePermission)

	enrollments := api.Group("/enrollments")
	enrollments.GET("", readers, h.enrollments.List)
	enrollments.GET("/:id", readers, h.enrollments.Get)
	enrollments.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleStudent), h.enrollments.Create)
	enrollments.POST("/drop", middleware.RequireRoles(models.RoleAdmin, models.RoleStudent), h.enrollments.Drop)

	grades := api.Group("/grades")
	grades.GET("", readers, h.grades.List)
	grades.GET("/lookup", readers, h.grades.Lookup)
	grades.POST("", middleware.RequireRoles(models.RoleTeacher), h.grades.Record)
	grades.POST("/bulk", middleware.RequireRoles(models.RoleTeacher), h.grades.RecordBulk)

	studentSelf := middleware.RBAC(string(models.RoleAdmin), string(models.RoleTeacher), middleware.Self)
	stats := api.Group("/stats")
	stats.GET("/students/:id", studentSelf, h.stats.Student)
	stats.GET("/students/:id/trend", studentSelf, h.stats.StudentTrend)
	stats.POST("/students/:id/refresh", staff, h.stats.RefreshStanding)
	stats.GET("/courses/:id", staff, h.stats.Course)
	stats.GET("/departments", staff, h.stats.Departments)
	stats.GET("/semesters", staff, h.stats.Semesters)
	stats.GET("/overview", admin, h.stats.Overview)
	stats.GET("/at-risk", staff, h.stats.AtRisk)
}
