package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/grading"
	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type gradeLedgerRepository interface {
	Upsert(ctx context.Context, grade *models.Grade) (bool, error)
	FindByKey(ctx context.Context, key models.GradeKey) (*models.Grade, error)
	List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, int, error)
}

type enrollmentTripleLookup interface {
	FindByTriple(ctx context.Context, studentID, courseID, semesterID string) (*models.Enrollment, error)
}

type gradeAuthorizer interface {
	Check(ctx context.Context, courseID, teacherID string) (*GradePermission, error)
	Authorize(ctx context.Context, courseID, teacherID string) error
}

type standingRefresher interface {
	RefreshStanding(ctx context.Context, studentID string) (*models.StudentStanding, error)
}

// GradeEntry carries the per-student fields of a grade write.
type GradeEntry struct {
	StudentID      string             `json:"student_id" validate:"required"`
	Score          *float64           `json:"score" validate:"required"`
	Attendance     *float64           `json:"attendance,omitempty" validate:"omitempty,gte=0,lte=100"`
	Trend          *models.GradeTrend `json:"trend,omitempty" validate:"omitempty,oneof=UP DOWN STABLE"`
	Comments       *string            `json:"comments,omitempty" validate:"omitempty,max=2000"`
	AssignmentMeta types.JSONText     `json:"assignment_meta,omitempty" swaggertype:"object"`
}

// RecordGradeRequest records one grade for a (student, course, semester).
type RecordGradeRequest struct {
	GradeEntry
	CourseID   string `json:"course_id" validate:"required"`
	SemesterID string `json:"semester_id" validate:"required"`
}

// BulkGradeRequest records grades for many students of one course offering.
type BulkGradeRequest struct {
	CourseID   string       `json:"course_id" validate:"required"`
	SemesterID string       `json:"semester_id" validate:"required"`
	Entries    []GradeEntry `json:"entries" validate:"required,min=1"`
}

// GradeWriteResult reports the stored grade and whether it was new.
type GradeWriteResult struct {
	Grade   *models.Grade `json:"grade"`
	Created bool          `json:"created"`
}

// BulkGradeRow is the outcome of one row of a bulk write.
type BulkGradeRow struct {
	StudentID string           `json:"student_id"`
	Status    string           `json:"status"`
	Grade     *models.Grade    `json:"grade,omitempty"`
	Error     *appErrors.Error `json:"error,omitempty"`
}

// BulkGradeResult summarises a bulk write. Rows are independent: a failed
// row never undoes rows that succeeded.
type BulkGradeResult struct {
	CourseID   string         `json:"course_id"`
	SemesterID string         `json:"semester_id"`
	Created    int            `json:"created"`
	Updated    int            `json:"updated"`
	Failed     int            `json:"failed"`
	Rows       []BulkGradeRow `json:"rows"`
}

const (
	bulkRowCreated = "CREATED"
	bulkRowUpdated = "UPDATED"
	bulkRowFailed  = "FAILED"
)

// GradeService owns create-or-update semantics for grades.
type GradeService struct {
	repo        gradeLedgerRepository
	enrollments enrollmentTripleLookup
	semesters   semesterLookup
	authorizer  gradeAuthorizer
	standing    standingRefresher
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewGradeService constructs a grade service. standing may be nil, in which
// case student standing is not refreshed after writes.
func NewGradeService(repo gradeLedgerRepository, enrollments enrollmentTripleLookup, semesters semesterLookup, authorizer gradeAuthorizer, standing standingRefresher, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		repo:        repo,
		enrollments: enrollments,
		semesters:   semesters,
		authorizer:  authorizer,
		standing:    standing,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// List returns grades with their display letter and GPA points.
func (s *GradeService) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, *models.Pagination, error) {
	grades, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list grades")
	}
	for i := range grades {
		if letter, ok := grading.DisplayLetter(grades[i].LetterGrade, grades[i].Score); ok {
			grades[i].DisplayLetter = string(letter)
		}
		if letter, ok := gpaLetter(grades[i].LetterGrade, grades[i].Score); ok {
			grades[i].GPAPoints = grading.GPAPoints(letter)
		}
	}
	return grades, paginationOf(filter.Page, filter.PageSize, total), nil
}

// Get returns the grade stored for a triple.
func (s *GradeService) Get(ctx context.Context, key models.GradeKey) (*models.Grade, error) {
	grade, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		return nil, notFoundOr(err, "grade not found", "failed to load grade")
	}
	return grade, nil
}

// Permission reports whether teacherID may record grades for the course.
func (s *GradeService) Permission(ctx context.Context, courseID, teacherID string) (*GradePermission, error) {
	return s.authorizer.Check(ctx, courseID, teacherID)
}

// RecordGrade creates or updates the grade for the request's triple on behalf
// of teacherID. The stored letter is always recomputed from the score.
func (s *GradeService) RecordGrade(ctx context.Context, teacherID string, req RecordGradeRequest) (*GradeWriteResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if !grading.ValidScore(*req.Score) {
		return nil, appErrors.ErrInvalidScore
	}
	if _, err := s.semesters.FindByID(ctx, req.SemesterID); err != nil {
		return nil, notFoundOr(err, "semester not found", "failed to load semester")
	}
	if err := s.authorize(ctx, req.CourseID, teacherID); err != nil {
		return nil, err
	}

	result, err := s.write(ctx, teacherID, req.CourseID, req.SemesterID, req.GradeEntry)
	if err != nil {
		return nil, err
	}
	invalidateStats(ctx, s.cache, s.logger)
	s.refreshStanding(ctx, req.StudentID)
	return result, nil
}

// RecordGradesBulk applies each entry independently after resolving grade
// authority once for the course. A denial fails the whole call; any other
// failure is reported on its row.
func (s *GradeService) RecordGradesBulk(ctx context.Context, teacherID string, req BulkGradeRequest) (*BulkGradeResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk grade payload")
	}
	if _, err := s.semesters.FindByID(ctx, req.SemesterID); err != nil {
		return nil, notFoundOr(err, "semester not found", "failed to load semester")
	}
	if err := s.authorize(ctx, req.CourseID, teacherID); err != nil {
		return nil, err
	}

	result := &BulkGradeResult{
		CourseID:   req.CourseID,
		SemesterID: req.SemesterID,
		Rows:       make([]BulkGradeRow, 0, len(req.Entries)),
	}
	touched := make(map[string]struct{}, len(req.Entries))
	for _, entry := range req.Entries {
		row := BulkGradeRow{StudentID: entry.StudentID}
		written, err := s.writeEntry(ctx, teacherID, req.CourseID, req.SemesterID, entry)
		switch {
		case err != nil:
			row.Status = bulkRowFailed
			row.Error = appErrors.FromError(err)
			result.Failed++
		case written.Created:
			row.Status = bulkRowCreated
			row.Grade = written.Grade
			result.Created++
		default:
			row.Status = bulkRowUpdated
			row.Grade = written.Grade
			result.Updated++
		}
		if err == nil {
			touched[entry.StudentID] = struct{}{}
		}
		result.Rows = append(result.Rows, row)
	}

	if len(touched) > 0 {
		invalidateStats(ctx, s.cache, s.logger)
		for studentID := range touched {
			s.refreshStanding(ctx, studentID)
		}
	}
	s.logger.Info("bulk grades recorded",
		zap.String("course_id", req.CourseID),
		zap.String("semester_id", req.SemesterID),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *GradeService) authorize(ctx context.Context, courseID, teacherID string) error {
	err := s.authorizer.Authorize(ctx, courseID, teacherID)
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case appErrors.ErrNotAssigned.Code, appErrors.ErrRecorderNotDesignated.Code, appErrors.ErrNotDesignatedRecorder.Code:
			s.metrics.RecordGradeDenial(appErr.Code)
		}
	}
	return err
}

// writeEntry validates one bulk row before writing it.
func (s *GradeService) writeEntry(ctx context.Context, teacherID, courseID, semesterID string, entry GradeEntry) (*GradeWriteResult, error) {
	if err := s.validator.Struct(entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade entry")
	}
	if !grading.ValidScore(*entry.Score) {
		return nil, appErrors.ErrInvalidScore
	}
	return s.write(ctx, teacherID, courseID, semesterID, entry)
}

// write performs the enrollment check and the upsert for an authorised
// teacher.
func (s *GradeService) write(ctx context.Context, teacherID, courseID, semesterID string, entry GradeEntry) (*GradeWriteResult, error) {
	enrollment, err := s.enrollments.FindByTriple(ctx, entry.StudentID, courseID, semesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotEnrolled
		}
		return nil, appErrors.Internal(err, "failed to check enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusEnrolled {
		return nil, appErrors.ErrNotEnrolled
	}

	score := *entry.Score
	letter := grading.ScoreToLetter(grading.ScaleCoarse, score).Stored()
	meta := entry.AssignmentMeta
	if len(strings.TrimSpace(string(meta))) == 0 || string(meta) == "null" {
		meta = types.JSONText("{}")
	}
	grade := &models.Grade{
		StudentID:      entry.StudentID,
		CourseID:       courseID,
		SemesterID:     semesterID,
		Score:          &score,
		LetterGrade:    &letter,
		Attendance:     entry.Attendance,
		Trend:          entry.Trend,
		AssignmentMeta: meta,
		Comments:       entry.Comments,
		TeacherID:      teacherID,
	}

	created, err := s.repo.Upsert(ctx, grade)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to record grade")
	}
	s.metrics.RecordGradeWrite(created)
	s.logger.Debug("grade recorded",
		zap.String("grade_id", grade.ID),
		zap.String("student_id", entry.StudentID),
		zap.String("course_id", courseID),
		zap.String("semester_id", semesterID),
		zap.Bool("created", created),
	)
	return &GradeWriteResult{Grade: grade, Created: created}, nil
}

func (s *GradeService) refreshStanding(ctx context.Context, studentID string) {
	if s.standing == nil {
		return
	}
	if _, err := s.standing.RefreshStanding(ctx, studentID); err != nil {
		s.logger.Warn("refresh student standing", zap.String("student_id", studentID), zap.Error(err))
	}
}

// gpaLetter returns the letter GPA points are taken from: the stored letter,
// or the write-time letter of the score when none is stored.
func gpaLetter(stored *string, score *float64) (grading.Letter, bool) {
	if stored != nil {
		if letter, ok := grading.ParseStored(*stored); ok {
			return letter, true
		}
	}
	if score != nil && grading.ValidScore(*score) {
		return grading.ScoreToLetter(grading.ScaleCoarse, *score), true
	}
	return "", false
}
