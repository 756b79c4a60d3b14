package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/config"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

// AggregateRepository describes the fact loaders required by AggregationService.
type AggregateRepository interface {
	GradeFacts(ctx context.Context, scope models.StatsScope) ([]models.GradeFact, error)
	EnrollmentFacts(ctx context.Context, scope models.StatsScope) ([]models.EnrollmentFact, error)
	Semesters(ctx context.Context) ([]models.Semester, error)
	Departments(ctx context.Context) ([]models.Department, error)
	CountCourses(ctx context.Context, activeOnly bool) (int, error)
}

type studentStandingRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListAll(ctx context.Context) ([]models.Student, error)
	UpdateStanding(ctx context.Context, standing models.StudentStanding) error
}

// AggregationService derives read-time statistics from the grade and
// enrollment ledgers. Nothing it returns is stored except the standing cache
// written by RefreshStanding.
type AggregationService struct {
	repo        AggregateRepository
	students    studentStandingRepository
	courses     courseLookup
	policy      aggregationPolicy
	rosterLimit int
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewAggregationService constructs an aggregation service.
func NewAggregationService(repo AggregateRepository, students studentStandingRepository, courses courseLookup, cfg config.GradingConfig, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *AggregationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := cfg.AtRiskRosterLimit
	if limit <= 0 {
		limit = 25
	}
	return &AggregationService{
		repo:        repo,
		students:    students,
		courses:     courses,
		policy:      newAggregationPolicy(cfg),
		rosterLimit: limit,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// StudentSummary returns GPA, average, credits and risk for one student. The
// boolean indicates whether data originated from cache.
func (s *AggregationService) StudentSummary(ctx context.Context, studentID string) (*dto.StudentSummary, bool, error) {
	key := makeStatsCacheKey("student", studentID)
	summary, hit, err := cachedLoad(ctx, s.cache, s.metrics, key, "stats_student", func(ctx context.Context) (*dto.StudentSummary, error) {
		return s.computeStudent(ctx, studentID)
	})
	if err != nil {
		return nil, false, err
	}
	return summary, hit, nil
}

// StudentTrend returns the per-semester series of a student.
func (s *AggregationService) StudentTrend(ctx context.Context, studentID string) (*dto.StudentTrend, bool, error) {
	summary, hit, err := s.StudentSummary(ctx, studentID)
	if err != nil {
		return nil, false, err
	}
	points := summary.Semesters
	if points == nil {
		points = []dto.SemesterPoint{}
	}
	return &dto.StudentTrend{StudentID: studentID, Points: points}, hit, nil
}

// CourseStats aggregates a course, optionally within one semester.
func (s *AggregationService) CourseStats(ctx context.Context, courseID, semesterID string) (*dto.CourseStats, bool, error) {
	key := makeStatsCacheKey("course", courseID, semesterID)
	return cachedLoad(ctx, s.cache, s.metrics, key, "stats_course", func(ctx context.Context) (*dto.CourseStats, error) {
		course, err := s.courses.FindByID(ctx, courseID)
		if err != nil {
			return nil, notFoundOr(err, "course not found", "failed to load course")
		}
		scope := models.StatsScope{CourseID: courseID, SemesterID: semesterID}
		facts, err := s.repo.GradeFacts(ctx, scope)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load grade facts")
		}
		enrollments, err := s.repo.EnrollmentFacts(ctx, scope)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load enrollment facts")
		}
		stats := s.policy.courseStats(*course, semesterID, facts, enrollments)
		return &stats, nil
	})
}

// DepartmentStats groups grades by department, optionally within one semester.
func (s *AggregationService) DepartmentStats(ctx context.Context, semesterID string) ([]dto.DepartmentStats, bool, error) {
	key := makeStatsCacheKey("departments", semesterID)
	return cachedLoad(ctx, s.cache, s.metrics, key, "stats_departments", func(ctx context.Context) ([]dto.DepartmentStats, error) {
		departments, err := s.repo.Departments(ctx)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load departments")
		}
		facts, err := s.repo.GradeFacts(ctx, models.StatsScope{SemesterID: semesterID})
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load grade facts")
		}
		return s.policy.departmentStats(departments, facts), nil
	})
}

// SemesterSeries reports every semester in chronological order.
func (s *AggregationService) SemesterSeries(ctx context.Context) ([]dto.SemesterStats, bool, error) {
	return cachedLoad(ctx, s.cache, s.metrics, makeStatsCacheKey("semesters"), "stats_semesters", func(ctx context.Context) ([]dto.SemesterStats, error) {
		semesters, err := s.repo.Semesters(ctx)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load semesters")
		}
		facts, err := s.repo.GradeFacts(ctx, models.StatsScope{})
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load grade facts")
		}
		enrollments, err := s.repo.EnrollmentFacts(ctx, models.StatsScope{})
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load enrollment facts")
		}
		return s.policy.semesterSeries(semesters, facts, enrollments), nil
	})
}

// AtRisk lists students below the at-risk threshold, lowest average first.
// limit <= 0 uses the configured roster limit.
func (s *AggregationService) AtRisk(ctx context.Context, limit int, department string) (*dto.AtRiskRoster, bool, error) {
	if limit <= 0 {
		limit = s.rosterLimit
	}
	key := makeStatsCacheKey("at-risk", strconv.Itoa(limit), strings.ToLower(strings.TrimSpace(department)))
	return cachedLoad(ctx, s.cache, s.metrics, key, "stats_at_risk", func(ctx context.Context) (*dto.AtRiskRoster, error) {
		students, err := s.students.ListAll(ctx)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load students")
		}
		facts, err := s.repo.GradeFacts(ctx, models.StatsScope{})
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load grade facts")
		}
		roster := s.policy.atRiskRoster(students, facts, strings.TrimSpace(department), limit)
		return &roster, nil
	})
}

// Overview returns the system-wide dashboard. Its inputs load concurrently.
func (s *AggregationService) Overview(ctx context.Context) (*dto.OverviewStats, bool, error) {
	return cachedLoad(ctx, s.cache, s.metrics, makeStatsCacheKey("overview"), "stats_overview", func(ctx context.Context) (*dto.OverviewStats, error) {
		var in overviewInput
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			students, err := s.students.ListAll(gctx)
			if err != nil {
				return appErrors.Internal(err, "failed to load students")
			}
			in.students = students
			return nil
		})
		g.Go(func() error {
			facts, err := s.repo.GradeFacts(gctx, models.StatsScope{})
			if err != nil {
				return appErrors.Internal(err, "failed to load grade facts")
			}
			in.gradeFacts = facts
			return nil
		})
		g.Go(func() error {
			semesters, err := s.repo.Semesters(gctx)
			if err != nil {
				return appErrors.Internal(err, "failed to load semesters")
			}
			in.semesters = semesters
			return nil
		})
		g.Go(func() error {
			total, err := s.repo.CountCourses(gctx, false)
			if err != nil {
				return appErrors.Internal(err, "failed to count courses")
			}
			in.totalCourses = total
			return nil
		})
		g.Go(func() error {
			active, err := s.repo.CountCourses(gctx, true)
			if err != nil {
				return appErrors.Internal(err, "failed to count active courses")
			}
			in.activeCourses = active
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		stats := s.policy.overview(in, s.rosterLimit)
		stats.GeneratedAt = s.now().UTC()
		return &stats, nil
	})
}

// RefreshStanding recomputes a student's cumulative GPA and earned credits
// and writes them onto the student row. A student without usable grades keeps
// the stored baseline untouched.
func (s *AggregationService) RefreshStanding(ctx context.Context, studentID string) (*models.StudentStanding, error) {
	start := time.Now()
	summary, err := s.computeStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	standing := models.StudentStanding{
		StudentID:          studentID,
		CumulativeGPA:      summary.CumulativeGPA,
		TotalCreditsEarned: summary.CreditsEarned,
	}
	if summary.StandingSource == dto.StandingBaseline {
		return &standing, nil
	}
	if err := s.students.UpdateStanding(ctx, standing); err != nil {
		return nil, notFoundOr(err, "student not found", "failed to update student standing")
	}
	s.metrics.ObserveDBQuery("stats_refresh_standing", time.Since(start))
	s.logger.Debug("student standing refreshed",
		zap.String("student_id", studentID),
		zap.Float64("cumulative_gpa", standing.CumulativeGPA),
		zap.Int("credits_earned", standing.TotalCreditsEarned),
	)
	return &standing, nil
}

func (s *AggregationService) computeStudent(ctx context.Context, studentID string) (*dto.StudentSummary, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, notFoundOr(err, "student not found", "failed to load student")
	}
	scope := models.StatsScope{StudentID: studentID}
	facts, err := s.repo.GradeFacts(ctx, scope)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load grade facts")
	}
	enrollments, err := s.repo.EnrollmentFacts(ctx, scope)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load enrollment facts")
	}
	summary := s.policy.summarizeStudent(*student, facts, enrollments)
	return &summary, nil
}
