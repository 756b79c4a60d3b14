package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/config"
	"github.com/noah-isme/academic-records-api/pkg/database"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	UpdateStatus(ctx context.Context, id string, status models.CourseStatus) error
	Delete(ctx context.Context, id string) error
	CountReferences(ctx context.Context, id string) (int, int, error)
	ListTeachers(ctx context.Context, courseID string) ([]models.CourseTeacher, error)
	AssignTeacher(ctx context.Context, courseID, teacherID string) error
	UnassignTeacher(ctx context.Context, courseID, teacherID string) (bool, error)
	SetGradeRecorder(ctx context.Context, courseID string, teacherID *string) error
	Authority(ctx context.Context, courseID string, withRoster bool) (*models.CourseAuthority, error)
}

type teacherLookup interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// CourseRequest describes the payload for creating or updating courses.
type CourseRequest struct {
	Code         string              `json:"code" validate:"required,max=20"`
	Name         string              `json:"name" validate:"required,max=200"`
	Credits      int                 `json:"credits" validate:"gte=0,lte=30"`
	DepartmentID *string             `json:"department_id,omitempty"`
	Department   *string             `json:"department,omitempty" validate:"omitempty,max=100"`
	TeacherID    *string             `json:"teacher_id,omitempty"`
	Status       models.CourseStatus `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE INACTIVE"`
}

// CourseStatusRequest switches a course between active and inactive.
type CourseStatusRequest struct {
	Status models.CourseStatus `json:"status" validate:"required,oneof=ACTIVE INACTIVE"`
}

// TeacherAssignmentRequest names a teacher for roster or recorder changes.
type TeacherAssignmentRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
}

// CourseDetail is a course with its roster and authority snapshot.
type CourseDetail struct {
	models.Course
	Teachers          []models.CourseTeacher `json:"teachers"`
	EffectiveTeachers []string               `json:"effective_teachers"`
}

// CourseService manages courses, their teacher roster and grade recorder
// designation.
type CourseService struct {
	repo          courseRepository
	teachers      teacherLookup
	rosterEnabled bool
	cache         *CacheService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewCourseService constructs a course service.
func NewCourseService(repo courseRepository, teachers teacherLookup, cfg config.GradingConfig, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		repo:          repo,
		teachers:      teachers,
		rosterEnabled: cfg.RosterEnabled,
		cache:         cache,
		validator:     validate,
		logger:        logger,
	}
}

// List returns paginated courses.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	if filter.Status != "" && filter.Status != models.CourseStatusActive && filter.Status != models.CourseStatusInactive {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "status must be ACTIVE or INACTIVE")
	}
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list courses")
	}
	return courses, paginationOf(filter.Page, filter.PageSize, total), nil
}

// Get returns a course with its roster.
func (s *CourseService) Get(ctx context.Context, id string) (*CourseDetail, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "course not found", "failed to load course")
	}
	detail := &CourseDetail{Course: *course, Teachers: []models.CourseTeacher{}}
	if s.rosterEnabled {
		roster, err := s.repo.ListTeachers(ctx, id)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load course teachers")
		}
		if roster != nil {
			detail.Teachers = roster
		}
	}
	authority, err := s.repo.Authority(ctx, id, s.rosterEnabled)
	if err != nil {
		return nil, notFoundOr(err, "course not found", "failed to load course authority")
	}
	detail.EffectiveTeachers = authority.EffectiveTeachers()
	return detail, nil
}

// Create adds a course. Codes are unique case-insensitively.
func (s *CourseService) Create(ctx context.Context, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if err := s.ensureUniqueCode(ctx, code, ""); err != nil {
		return nil, err
	}
	if err := s.ensureTeacher(ctx, req.TeacherID); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.CourseStatusActive
	}
	course := &models.Course{
		Code:         code,
		Name:         strings.TrimSpace(req.Name),
		Credits:      req.Credits,
		DepartmentID: trimmedOrNil(req.DepartmentID),
		Department:   trimmedOrNil(req.Department),
		TeacherID:    trimmedOrNil(req.TeacherID),
		Status:       status,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
		}
		return nil, appErrors.Internal(err, "failed to create course")
	}
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("code", course.Code))
	invalidateStats(ctx, s.cache, s.logger)
	return course, nil
}

// Update modifies descriptive fields and the legacy primary teacher.
func (s *CourseService) Update(ctx context.Context, id string, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "course not found", "failed to load course")
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if err := s.ensureUniqueCode(ctx, code, id); err != nil {
		return nil, err
	}
	if err := s.ensureTeacher(ctx, req.TeacherID); err != nil {
		return nil, err
	}

	outgoing := optionalString(course.TeacherID)
	course.Code = code
	course.Name = strings.TrimSpace(req.Name)
	course.Credits = req.Credits
	course.DepartmentID = trimmedOrNil(req.DepartmentID)
	course.Department = trimmedOrNil(req.Department)
	course.TeacherID = trimmedOrNil(req.TeacherID)
	clearRecorder, err := s.recorderLeaves(ctx, course, outgoing)
	if err != nil {
		return nil, err
	}
	if clearRecorder {
		course.GradeRecordingTeacherID = nil
	}
	if err := s.repo.Update(ctx, course); err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
		}
		return nil, appErrors.Internal(err, "failed to update course")
	}
	if req.Status != "" && req.Status != course.Status {
		if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
			return nil, appErrors.Internal(err, "failed to update course status")
		}
		course.Status = req.Status
	}
	if clearRecorder {
		s.logger.Info("grade recorder cleared with primary teacher change",
			zap.String("course_id", id),
			zap.String("teacher_id", outgoing),
		)
	}
	invalidateStats(ctx, s.cache, s.logger)
	return course, nil
}

// recorderLeaves reports whether replacing the primary teacher drops the
// designated recorder out of the effective assigned set.
func (s *CourseService) recorderLeaves(ctx context.Context, course *models.Course, outgoing string) (bool, error) {
	recorder := optionalString(course.GradeRecordingTeacherID)
	if recorder == "" || recorder != outgoing || optionalString(course.TeacherID) == outgoing {
		return false, nil
	}
	if !s.rosterEnabled {
		return true, nil
	}
	roster, err := s.repo.ListTeachers(ctx, course.ID)
	if err != nil {
		return false, appErrors.Internal(err, "failed to load course teachers")
	}
	for _, member := range roster {
		if member.TeacherID == recorder {
			return false, nil
		}
	}
	return true, nil
}

// UpdateStatus activates or deactivates a course. Inactive courses reject new
// enrollments; existing ones are untouched.
func (s *CourseService) UpdateStatus(ctx context.Context, id string, req CourseStatusRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course status")
	}
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "course not found", "failed to load course")
	}
	if course.Status == req.Status {
		return course, nil
	}
	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		return nil, appErrors.Internal(err, "failed to update course status")
	}
	course.Status = req.Status
	s.logger.Info("course status changed", zap.String("course_id", id), zap.String("status", string(req.Status)))
	invalidateStats(ctx, s.cache, s.logger)
	return course, nil
}

// Delete removes a course that no enrollment or grade references.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return notFoundOr(err, "course not found", "failed to load course")
	}
	enrollments, grades, err := s.repo.CountReferences(ctx, id)
	if err != nil {
		return appErrors.Internal(err, "failed to check course references")
	}
	if enrollments > 0 || grades > 0 {
		s.logger.Info("course delete blocked",
			zap.String("course_id", id),
			zap.Int("enrollments", enrollments),
			zap.Int("grades", grades),
		)
		return appErrors.ErrRelatedDataExists
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete course")
	}
	invalidateStats(ctx, s.cache, s.logger)
	return nil
}

// Teachers returns the roster of a course.
func (s *CourseService) Teachers(ctx context.Context, courseID string) ([]models.CourseTeacher, error) {
	if _, err := s.repo.FindByID(ctx, courseID); err != nil {
		return nil, notFoundOr(err, "course not found", "failed to load course")
	}
	if !s.rosterEnabled {
		return []models.CourseTeacher{}, nil
	}
	roster, err := s.repo.ListTeachers(ctx, courseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load course teachers")
	}
	return roster, nil
}

// AssignTeacher adds a teacher to the course roster.
func (s *CourseService) AssignTeacher(ctx context.Context, courseID string, req TeacherAssignmentRequest) (*CourseDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher assignment")
	}
	if !s.rosterEnabled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course teacher roster is disabled")
	}
	if _, err := s.repo.FindByID(ctx, courseID); err != nil {
		return nil, notFoundOr(err, "course not found", "failed to load course")
	}
	if err := s.ensureTeacher(ctx, &req.TeacherID); err != nil {
		return nil, err
	}
	if err := s.repo.AssignTeacher(ctx, courseID, req.TeacherID); err != nil {
		return nil, appErrors.Internal(err, "failed to assign teacher")
	}
	s.logger.Info("course teacher assigned", zap.String("course_id", courseID), zap.String("teacher_id", req.TeacherID))
	return s.Get(ctx, courseID)
}

// UnassignTeacher removes a teacher from the roster, the legacy primary
// reference and the grade recorder designation.
func (s *CourseService) UnassignTeacher(ctx context.Context, courseID, teacherID string) (*CourseDetail, error) {
	if _, err := s.repo.FindByID(ctx, courseID); err != nil {
		return nil, notFoundOr(err, "course not found", "failed to load course")
	}
	removed, err := s.repo.UnassignTeacher(ctx, courseID, teacherID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to unassign teacher")
	}
	if !removed {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher is not assigned to this course")
	}
	s.logger.Info("course teacher unassigned", zap.String("course_id", courseID), zap.String("teacher_id", teacherID))
	return s.Get(ctx, courseID)
}

// SetGradeRecorder designates which assigned teacher records grades when a
// course has several teachers. The teacher must belong to the effective
// assigned set.
func (s *CourseService) SetGradeRecorder(ctx context.Context, courseID string, req TeacherAssignmentRequest) (*CourseDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade recorder")
	}
	authority, err := s.repo.Authority(ctx, courseID, s.rosterEnabled)
	if err != nil {
		return nil, notFoundOr(err, "course not found", "failed to load course authority")
	}
	member := false
	for _, id := range authority.EffectiveTeachers() {
		if id == req.TeacherID {
			member = true
			break
		}
	}
	if !member {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grade recorder must be a teacher assigned to the course")
	}
	teacherID := req.TeacherID
	if err := s.repo.SetGradeRecorder(ctx, courseID, &teacherID); err != nil {
		return nil, appErrors.Internal(err, "failed to set grade recorder")
	}
	s.logger.Info("grade recorder designated", zap.String("course_id", courseID), zap.String("teacher_id", teacherID))
	return s.Get(ctx, courseID)
}

// ClearGradeRecorder removes the designation. A multi-teacher course then
// refuses every grade write until a recorder is designated again.
func (s *CourseService) ClearGradeRecorder(ctx context.Context, courseID string) (*CourseDetail, error) {
	if _, err := s.repo.FindByID(ctx, courseID); err != nil {
		return nil, notFoundOr(err, "course not found", "failed to load course")
	}
	if err := s.repo.SetGradeRecorder(ctx, courseID, nil); err != nil {
		return nil, appErrors.Internal(err, "failed to clear grade recorder")
	}
	s.logger.Info("grade recorder cleared", zap.String("course_id", courseID))
	return s.Get(ctx, courseID)
}

func (s *CourseService) ensureUniqueCode(ctx context.Context, code, excludeID string) error {
	if code == "" {
		return appErrors.Clone(appErrors.ErrValidation, "code is required")
	}
	exists, err := s.repo.ExistsByCode(ctx, code, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to check course code")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "course code already exists")
	}
	return nil
}

func (s *CourseService) ensureTeacher(ctx context.Context, teacherID *string) error {
	id := optionalString(teacherID)
	if id == "" {
		return nil
	}
	if _, err := s.teachers.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Internal(err, "failed to load teacher")
	}
	return nil
}

func trimmedOrNil(value *string) *string {
	trimmed := optionalString(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
