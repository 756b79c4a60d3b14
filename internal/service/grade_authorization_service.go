package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/config"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

// AuthorityRegime names which rule decided a grade permission.
type AuthorityRegime string

const (
	// RegimeSingleTeacher applies when at most one teacher is assigned.
	RegimeSingleTeacher AuthorityRegime = "SINGLE_TEACHER"
	// RegimeUndesignated applies when several teachers are assigned and no
	// grade recorder is designated. Nobody may write.
	RegimeUndesignated AuthorityRegime = "MULTI_TEACHER_UNDESIGNATED"
	// RegimeDesignated applies when several teachers are assigned and one of
	// them is the designated grade recorder.
	RegimeDesignated AuthorityRegime = "MULTI_TEACHER_DESIGNATED"
)

// GradePermission is the outcome of resolving grade authority for a teacher.
type GradePermission struct {
	CourseID         string          `json:"courseId"`
	TeacherID        string          `json:"teacherId"`
	Allowed          bool            `json:"allowed"`
	Regime           AuthorityRegime `json:"regime"`
	Code             string          `json:"code,omitempty"`
	Reason           string          `json:"reason,omitempty"`
	AuthorityHolder  *string         `json:"authorityHolder,omitempty"`
	AssignedTeachers []string        `json:"assignedTeachers"`
}

// Err returns the typed denial for a refused permission, nil otherwise.
func (p GradePermission) Err() error {
	if p.Allowed {
		return nil
	}
	switch p.Code {
	case appErrors.ErrRecorderNotDesignated.Code:
		return appErrors.ErrRecorderNotDesignated
	case appErrors.ErrNotDesignatedRecorder.Code:
		return appErrors.ErrNotDesignatedRecorder
	default:
		return appErrors.ErrNotAssigned
	}
}

// ResolveGradeAuthority decides whether teacherID may write grades for the
// course described by authority. It is pure: callers load a fresh snapshot
// for every decision.
func ResolveGradeAuthority(authority models.CourseAuthority, teacherID string) GradePermission {
	assigned := authority.EffectiveTeachers()
	perm := GradePermission{
		CourseID:         authority.CourseID,
		TeacherID:        teacherID,
		AssignedTeachers: assigned,
	}

	if len(assigned) <= 1 {
		perm.Regime = RegimeSingleTeacher
		if len(assigned) == 1 {
			holder := assigned[0]
			perm.AuthorityHolder = &holder
			if teacherID != "" && holder == teacherID {
				perm.Allowed = true
				return perm
			}
		}
		perm.Code = appErrors.ErrNotAssigned.Code
		perm.Reason = appErrors.ErrNotAssigned.Message
		return perm
	}

	recorder := authority.GradeRecordingTeacherID
	if recorder == nil || !containsID(assigned, *recorder) {
		perm.Regime = RegimeUndesignated
		perm.Code = appErrors.ErrRecorderNotDesignated.Code
		perm.Reason = appErrors.ErrRecorderNotDesignated.Message
		return perm
	}

	perm.Regime = RegimeDesignated
	holder := *recorder
	perm.AuthorityHolder = &holder
	if teacherID != "" && holder == teacherID {
		perm.Allowed = true
		return perm
	}
	perm.Code = appErrors.ErrNotDesignatedRecorder.Code
	perm.Reason = appErrors.ErrNotDesignatedRecorder.Message
	return perm
}

type courseAuthorityRepository interface {
	Authority(ctx context.Context, courseID string, withRoster bool) (*models.CourseAuthority, error)
}

// GradeAuthorizationService resolves which single teacher may record grades
// for a course. Nothing is cached between calls.
type GradeAuthorizationService struct {
	repo          courseAuthorityRepository
	rosterEnabled bool
	logger        *zap.Logger
}

// NewGradeAuthorizationService constructs the resolver.
func NewGradeAuthorizationService(repo courseAuthorityRepository, cfg config.GradingConfig, logger *zap.Logger) *GradeAuthorizationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeAuthorizationService{repo: repo, rosterEnabled: cfg.RosterEnabled, logger: logger}
}

// Check returns the permission decision without failing on a denial, for
// pre-flight checks before presenting a grade entry form.
func (s *GradeAuthorizationService) Check(ctx context.Context, courseID, teacherID string) (*GradePermission, error) {
	authority, err := s.repo.Authority(ctx, courseID, s.rosterEnabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to resolve grade authority")
	}
	perm := ResolveGradeAuthority(*authority, teacherID)
	return &perm, nil
}

// Authorize returns nil when teacherID may record grades for the course and
// the regime specific denial otherwise.
func (s *GradeAuthorizationService) Authorize(ctx context.Context, courseID, teacherID string) error {
	perm, err := s.Check(ctx, courseID, teacherID)
	if err != nil {
		return err
	}
	if denial := perm.Err(); denial != nil {
		s.logger.Info("grade write denied",
			zap.String("course_id", courseID),
			zap.String("teacher_id", teacherID),
			zap.String("regime", string(perm.Regime)),
			zap.String("code", perm.Code),
		)
		return denial
	}
	return nil
}

func containsID(ids []string, id string) bool {
	if id == "" {
		return false
	}
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
