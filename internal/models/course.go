package models

import "time"

// CourseStatus marks whether a course accepts enrollments.
type CourseStatus string

const (
	CourseStatusActive   CourseStatus = "ACTIVE"
	CourseStatusInactive CourseStatus = "INACTIVE"
)

// Course is an offering students enroll into. TeacherID is the legacy
// single-instructor reference; the full roster lives in course_teachers.
type Course struct {
	ID                      string       `db:"id" json:"id"`
	Code                    string       `db:"code" json:"code"`
	Name                    string       `db:"name" json:"name"`
	Credits                 int          `db:"credits" json:"credits"`
	DepartmentID            *string      `db:"department_id" json:"department_id,omitempty"`
	Department              *string      `db:"department" json:"department,omitempty"`
	DepartmentName          *string      `db:"department_name" json:"department_name,omitempty"`
	Status                  CourseStatus `db:"status" json:"status"`
	TeacherID               *string      `db:"teacher_id" json:"teacher_id,omitempty"`
	GradeRecordingTeacherID *string      `db:"grade_recording_teacher_id" json:"grade_recording_teacher_id,omitempty"`
	CreatedAt               time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time    `db:"updated_at" json:"updated_at"`
}

// CourseFilter defines filters supported by course listings.
type CourseFilter struct {
	DepartmentID string
	Status       CourseStatus
	TeacherID    string
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// CourseTeacher is one row of the many-to-many course roster.
type CourseTeacher struct {
	CourseID    string    `db:"course_id" json:"course_id"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	TeacherName string    `db:"teacher_name" json:"teacher_name,omitempty"`
	AssignedAt  time.Time `db:"assigned_at" json:"assigned_at"`
}

// CourseAuthority is the authority-relevant snapshot of a course: the legacy
// primary teacher, the roster and the designated grade recorder.
type CourseAuthority struct {
	CourseID                string   `json:"course_id"`
	TeacherID               *string  `json:"teacher_id,omitempty"`
	GradeRecordingTeacherID *string  `json:"grade_recording_teacher_id,omitempty"`
	Roster                  []string `json:"roster"`
}

// EffectiveTeachers returns the deduplicated union of the legacy primary
// teacher and the roster, primary first.
func (a CourseAuthority) EffectiveTeachers() []string {
	seen := make(map[string]struct{}, len(a.Roster)+1)
	out := make([]string, 0, len(a.Roster)+1)
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if a.TeacherID != nil {
		add(*a.TeacherID)
	}
	for _, id := range a.Roster {
		add(id)
	}
	return out
}
