package models

import "time"

// StudentStatus is the administrator-set lifecycle flag of a student.
type StudentStatus string

const (
	StudentStatusActive    StudentStatus = "ACTIVE"
	StudentStatusAtRisk    StudentStatus = "AT_RISK"
	StudentStatusSuspended StudentStatus = "SUSPENDED"
	StudentStatusInactive  StudentStatus = "INACTIVE"
)

// Student represents a learner registered by the identity subsystem.
// CumulativeGPA and TotalCreditsEarned are a denormalised cache written only
// by the aggregation engine.
type Student struct {
	ID                   string        `db:"id" json:"id"`
	StudentCode          string        `db:"student_code" json:"student_code"`
	FullName             string        `db:"full_name" json:"full_name"`
	DepartmentID         *string       `db:"department_id" json:"department_id,omitempty"`
	DepartmentName       *string       `db:"department_name" json:"department_name,omitempty"`
	Program              string        `db:"program" json:"program"`
	YearOfStudy          int           `db:"year_of_study" json:"year_of_study"`
	CumulativeGPA        float64       `db:"cumulative_gpa" json:"cumulative_gpa"`
	TotalCreditsEarned   int           `db:"total_credits_earned" json:"total_credits_earned"`
	TotalCreditsRequired *int          `db:"total_credits_required" json:"total_credits_required,omitempty"`
	Status               StudentStatus `db:"status" json:"status"`
	CreatedAt            time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time     `db:"updated_at" json:"updated_at"`
}

// CreditsRequired returns the student's requirement or fallback when unset.
func (s Student) CreditsRequired(fallback int) int {
	if s.TotalCreditsRequired == nil || *s.TotalCreditsRequired <= 0 {
		return fallback
	}
	return *s.TotalCreditsRequired
}

// StudentStanding is the computed standing written back onto a student row.
type StudentStanding struct {
	StudentID          string  `db:"student_id" json:"student_id"`
	CumulativeGPA      float64 `db:"cumulative_gpa" json:"cumulative_gpa"`
	TotalCreditsEarned int     `db:"total_credits_earned" json:"total_credits_earned"`
}
