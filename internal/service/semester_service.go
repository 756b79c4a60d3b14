package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/database"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type semesterRepository interface {
	List(ctx context.Context, filter models.SemesterFilter) ([]models.Semester, int, error)
	FindByID(ctx context.Context, id string) (*models.Semester, error)
	FindActive(ctx context.Context) (*models.Semester, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, semester *models.Semester) error
	Update(ctx context.Context, semester *models.Semester) error
	SetActive(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	CountReferences(ctx context.Context, id string) (int, int, error)
}

// SemesterRequest describes the payload for creating or updating semesters.
type SemesterRequest struct {
	Name      string    `json:"name" validate:"required,max=100"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	IsActive  bool      `json:"is_active"`
}

// SemesterService orchestrates semester workflows.
type SemesterService struct {
	repo      semesterRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSemesterService creates a new semester service instance.
func NewSemesterService(repo semesterRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SemesterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemesterService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns paginated semesters.
func (s *SemesterService) List(ctx context.Context, filter models.SemesterFilter) ([]models.Semester, *models.Pagination, error) {
	semesters, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list semesters")
	}
	return semesters, paginationOf(filter.Page, filter.PageSize, total), nil
}

// Get returns a semester by ID.
func (s *SemesterService) Get(ctx context.Context, id string) (*models.Semester, error) {
	semester, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "semester not found", "failed to load semester")
	}
	return semester, nil
}

// GetActive returns the currently active semester.
func (s *SemesterService) GetActive(ctx context.Context) (*models.Semester, error) {
	semester, err := s.repo.FindActive(ctx)
	if err != nil {
		return nil, notFoundOr(err, "active semester not found", "failed to load active semester")
	}
	return semester, nil
}

// Create adds a semester. When IsActive is set the new semester becomes the
// only active one.
func (s *SemesterService) Create(ctx context.Context, req SemesterRequest) (*models.Semester, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if err := s.ensureUniqueName(ctx, name, ""); err != nil {
		return nil, err
	}

	semester := &models.Semester{
		Name:      name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		IsActive:  req.IsActive,
	}
	if err := s.repo.Create(ctx, semester); err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrConflict, "semester name already exists")
		}
		return nil, appErrors.Internal(err, "failed to create semester")
	}
	if semester.IsActive {
		s.logger.Info("semester activated", zap.String("semester_id", semester.ID), zap.String("name", semester.Name))
	}
	invalidateStats(ctx, s.cache, s.logger)
	return semester, nil
}

// Update modifies a semester. Setting IsActive activates it; clearing the
// flag on the active semester is ignored, activation moves only by
// activating another semester.
func (s *SemesterService) Update(ctx context.Context, id string, req SemesterRequest) (*models.Semester, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	semester, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "semester not found", "failed to load semester")
	}
	name := strings.TrimSpace(req.Name)
	if err := s.ensureUniqueName(ctx, name, id); err != nil {
		return nil, err
	}

	semester.Name = name
	semester.StartDate = req.StartDate
	semester.EndDate = req.EndDate
	if err := s.repo.Update(ctx, semester); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		if database.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrConflict, "semester name already exists")
		}
		return nil, appErrors.Internal(err, "failed to update semester")
	}
	if req.IsActive && !semester.IsActive {
		if err := s.activate(ctx, semester); err != nil {
			return nil, err
		}
	}
	invalidateStats(ctx, s.cache, s.logger)
	return semester, nil
}

// Activate makes the semester the only active one. Activating the already
// active semester is a no-op.
func (s *SemesterService) Activate(ctx context.Context, id string) (*models.Semester, error) {
	semester, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "semester not found", "failed to load semester")
	}
	if semester.IsActive {
		return semester, nil
	}
	if err := s.activate(ctx, semester); err != nil {
		return nil, err
	}
	invalidateStats(ctx, s.cache, s.logger)
	return semester, nil
}

// Delete removes a semester that no enrollment or grade references.
func (s *SemesterService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return notFoundOr(err, "semester not found", "failed to load semester")
	}
	enrollments, grades, err := s.repo.CountReferences(ctx, id)
	if err != nil {
		return appErrors.Internal(err, "failed to check semester references")
	}
	if enrollments > 0 || grades > 0 {
		s.logger.Info("semester delete blocked",
			zap.String("semester_id", id),
			zap.Int("enrollments", enrollments),
			zap.Int("grades", grades),
		)
		return appErrors.ErrRelatedDataExists
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFoundOr(err, "semester not found", "failed to delete semester")
	}
	invalidateStats(ctx, s.cache, s.logger)
	return nil
}

func (s *SemesterService) activate(ctx context.Context, semester *models.Semester) error {
	if err := s.repo.SetActive(ctx, semester.ID); err != nil {
		return notFoundOr(err, "semester not found", "failed to activate semester")
	}
	semester.IsActive = true
	s.logger.Info("semester activated", zap.String("semester_id", semester.ID), zap.String("name", semester.Name))
	return nil
}

func (s *SemesterService) validate(req SemesterRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid semester payload")
	}
	if strings.TrimSpace(req.Name) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "name is required")
	}
	if !req.StartDate.Before(req.EndDate) {
		return appErrors.Clone(appErrors.ErrValidation, "start_date must be before end_date")
	}
	return nil
}

func (s *SemesterService) ensureUniqueName(ctx context.Context, name, excludeID string) error {
	exists, err := s.repo.ExistsByName(ctx, name, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to check semester uniqueness")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "semester name already exists")
	}
	return nil
}
