package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// GradeTrend indicates the direction of a student's performance.
type GradeTrend string

const (
	GradeTrendUp     GradeTrend = "UP"
	GradeTrendDown   GradeTrend = "DOWN"
	GradeTrendStable GradeTrend = "STABLE"
)

// Grade is the single grade held for a (student, course, semester) triple.
// Score and LetterGrade are nullable because rows imported from older
// systems may carry only one of them.
type Grade struct {
	ID             string         `db:"id" json:"id"`
	StudentID      string         `db:"student_id" json:"student_id"`
	CourseID       string         `db:"course_id" json:"course_id"`
	SemesterID     string         `db:"semester_id" json:"semester_id"`
	Score          *float64       `db:"score" json:"score,omitempty"`
	LetterGrade    *string        `db:"letter_grade" json:"letter_grade,omitempty"`
	Attendance     *float64       `db:"attendance" json:"attendance,omitempty"`
	Trend          *GradeTrend    `db:"trend" json:"trend,omitempty"`
	AssignmentMeta types.JSONText `db:"assignment_meta" json:"assignment_meta,omitempty" swaggertype:"object"`
	Comments       *string        `db:"comments" json:"comments,omitempty"`
	TeacherID      string         `db:"teacher_id" json:"teacher_id"`
	RecordedAt     time.Time      `db:"recorded_at" json:"recorded_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// GradeDetail enriches Grade with display names and the derived letter.
type GradeDetail struct {
	Grade
	StudentName   string  `db:"student_name" json:"student_name"`
	CourseCode    string  `db:"course_code" json:"course_code"`
	CourseName    string  `db:"course_name" json:"course_name"`
	Credits       int     `db:"credits" json:"credits"`
	SemesterName  string  `db:"semester_name" json:"semester_name"`
	DisplayLetter string  `db:"-" json:"display_letter,omitempty"`
	GPAPoints     float64 `db:"-" json:"gpa_points"`
}

// GradeKey identifies a grade.
type GradeKey struct {
	StudentID  string
	CourseID   string
	SemesterID string
}

// GradeFilter allows querying of grade entries.
type GradeFilter struct {
	StudentID  string
	CourseID   string
	SemesterID string
	TeacherID  string
	Page       int
	PageSize   int
}
