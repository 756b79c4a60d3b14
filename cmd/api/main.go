package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/academic-records-api/api/swagger"
	"github.com/noah-isme/academic-records-api/internal/handler"
	"github.com/noah-isme/academic-records-api/internal/middleware"
	"github.com/noah-isme/academic-records-api/internal/repository"
	"github.com/noah-isme/academic-records-api/internal/service"
	"github.com/noah-isme/academic-records-api/pkg/cache"
	"github.com/noah-isme/academic-records-api/pkg/config"
	"github.com/noah-isme/academic-records-api/pkg/database"
	"github.com/noah-isme/academic-records-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/academic-records-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/academic-records-api/pkg/middleware/requestid"
)

// @title Academic Records API
// @version 1.0.0
// @description Academic record authority and aggregation service
// @BasePath /api/v1
// @schemes http
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	redisClient, err := cache.NewRedis(cfg.Redis, cfg.Stats)
	if err != nil {
		logr.Warn("stats cache disabled, redis unavailable", zap.Error(err))
	} else if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Stats, logr)

	validate := validator.New()

	semesterRepo := repository.NewSemesterRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	aggregateRepo := repository.NewAggregateRepository(db)

	tokens := service.NewTokenService(cfg.JWT)
	aggregation := service.NewAggregationService(aggregateRepo, studentRepo, courseRepo, cfg.Grading, cacheSvc, metrics, logr)
	authority := service.NewGradeAuthorizationService(courseRepo, cfg.Grading, logr)
	semesters := service.NewSemesterService(semesterRepo, cacheSvc, validate, logr)
	courses := service.NewCourseService(courseRepo, teacherRepo, cfg.Grading, cacheSvc, validate, logr)
	enrollments := service.NewEnrollmentService(enrollmentRepo, studentRepo, courseRepo, semesterRepo, cacheSvc, metrics, validate, logr)
	grades := service.NewGradeService(gradeRepo, enrollmentRepo, semesterRepo, authority, aggregation, cacheSvc, metrics, validate, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(metrics))

	registerRoutes(r, cfg, routeHandlers{
		tokens:      tokens,
		semesters:   handler.NewSemesterHandler(semesters),
		courses:     handler.NewCourseHandler(courses, grades),
		enrollments: handler.NewEnrollmentHandler(enrollments),
		grades:      handler.NewGradeHandler(grades),
		stats:       handler.NewStatsHandler(aggregation),
		metrics:     handler.NewMetricsHandler(metrics, db),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "roster_enabled", cfg.Grading.RosterEnabled, "stats_cache", cacheSvc.Enabled())
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
