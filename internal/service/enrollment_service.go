package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/database"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type enrollmentLedgerRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByTriple(ctx context.Context, studentID, courseID, semesterID string) (*models.Enrollment, error)
	FindActiveByStudentCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Reactivate(ctx context.Context, id string) (*models.Enrollment, error)
	MarkDropped(ctx context.Context, id string) (*models.Enrollment, error)
}

type studentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type courseLookup interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type semesterLookup interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
}

// EnrollmentRequest identifies a (student, course, semester) triple.
type EnrollmentRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	CourseID   string `json:"course_id" validate:"required"`
	SemesterID string `json:"semester_id" validate:"required"`
}

// EnrollOutcome tells whether Enroll inserted or reactivated a row.
type EnrollOutcome string

const (
	EnrollCreated     EnrollOutcome = "CREATED"
	EnrollReactivated EnrollOutcome = "REACTIVATED"
)

// EnrollmentService owns the enrollment ledger lifecycle.
type EnrollmentService struct {
	repo      enrollmentLedgerRepository
	students  studentLookup
	courses   courseLookup
	semesters semesterLookup
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs an enrollment service.
func NewEnrollmentService(repo enrollmentLedgerRepository, students studentLookup, courses courseLookup, semesters semesterLookup, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      repo,
		students:  students,
		courses:   courses,
		semesters: semesters,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// List returns paginated enrollments.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if filter.Status != "" && filter.Status != models.EnrollmentStatusEnrolled && filter.Status != models.EnrollmentStatusDropped {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "status must be ENROLLED or DROPPED")
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list enrollments")
	}
	return items, paginationOf(filter.Page, filter.PageSize, total), nil
}

// Get returns an enrollment by id.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Internal(err, "failed to load enrollment")
	}
	return enrollment, nil
}

// Enroll registers a student into a course for a semester. A dropped row for
// the same triple is reactivated rather than duplicated. A student may hold
// at most one enrolled row per course across all semesters.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollmentRequest) (*models.Enrollment, EnrollOutcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		return nil, "", notFoundOr(err, "student not found", "failed to load student")
	}
	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		return nil, "", notFoundOr(err, "course not found", "failed to load course")
	}
	if course.Status != models.CourseStatusActive {
		return nil, "", appErrors.ErrInactiveCourse
	}
	if _, err := s.semesters.FindByID(ctx, req.SemesterID); err != nil {
		return nil, "", notFoundOr(err, "semester not found", "failed to load semester")
	}

	active, err := s.repo.FindActiveByStudentCourse(ctx, req.StudentID, req.CourseID)
	switch {
	case err == nil:
		if active.SemesterID == req.SemesterID {
			return nil, "", appErrors.Clone(appErrors.ErrAlreadyActiveElsewhere, "student is already enrolled in this course for the semester")
		}
		return nil, "", appErrors.ErrAlreadyActiveElsewhere
	case !errors.Is(err, sql.ErrNoRows):
		return nil, "", appErrors.Internal(err, "failed to check active enrollment")
	}

	existing, err := s.repo.FindByTriple(ctx, req.StudentID, req.CourseID, req.SemesterID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, "", appErrors.Internal(err, "failed to load enrollment")
	}

	var (
		enrollment *models.Enrollment
		outcome    EnrollOutcome
	)
	if existing != nil {
		enrollment, err = s.repo.Reactivate(ctx, existing.ID)
		if err != nil {
			return nil, "", s.translateLedgerError(err, "failed to reactivate enrollment")
		}
		outcome = EnrollReactivated
	} else {
		enrollment = &models.Enrollment{
			StudentID:  req.StudentID,
			CourseID:   req.CourseID,
			SemesterID: req.SemesterID,
			Status:     models.EnrollmentStatusEnrolled,
		}
		if err := s.repo.Create(ctx, enrollment); err != nil {
			return nil, "", s.translateLedgerError(err, "failed to create enrollment")
		}
		outcome = EnrollCreated
	}

	s.logger.Info("enrollment recorded",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", req.StudentID),
		zap.String("course_id", req.CourseID),
		zap.String("semester_id", req.SemesterID),
		zap.String("outcome", string(outcome)),
	)
	s.metrics.RecordEnrollment(strings.ToLower(string(outcome)))
	invalidateStats(ctx, s.cache, s.logger)
	return enrollment, outcome, nil
}

// Drop marks the enrollment for the triple as dropped. Dropping an already
// dropped enrollment returns it unchanged.
func (s *EnrollmentService) Drop(ctx context.Context, req EnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		return nil, notFoundOr(err, "course not found", "failed to load course")
	}
	if _, err := s.semesters.FindByID(ctx, req.SemesterID); err != nil {
		return nil, notFoundOr(err, "semester not found", "failed to load semester")
	}

	existing, err := s.repo.FindByTriple(ctx, req.StudentID, req.CourseID, req.SemesterID)
	if err != nil {
		return nil, notFoundOr(err, "enrollment not found", "failed to load enrollment")
	}
	if existing.Status == models.EnrollmentStatusDropped {
		return existing, nil
	}

	dropped, err := s.repo.MarkDropped(ctx, existing.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to drop enrollment")
	}
	s.logger.Info("enrollment dropped",
		zap.String("enrollment_id", dropped.ID),
		zap.String("student_id", req.StudentID),
		zap.String("course_id", req.CourseID),
	)
	s.metrics.RecordEnrollment("dropped")
	invalidateStats(ctx, s.cache, s.logger)
	return dropped, nil
}

// translateLedgerError maps races lost against the uniqueness constraints
// onto AlreadyActiveElsewhere.
func (s *EnrollmentService) translateLedgerError(err error, message string) error {
	if database.IsUniqueViolation(err, "") || errors.Is(err, sql.ErrNoRows) {
		s.logger.Debug("enrollment race lost", zap.Error(err))
		return appErrors.ErrAlreadyActiveElsewhere
	}
	return appErrors.Internal(err, message)
}
