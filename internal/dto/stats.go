package dto

import (
	"time"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// RiskLevel is the read-time label derived from a student's average. It is
// independent of the administrator-set student status.
type RiskLevel string

const (
	RiskNone     RiskLevel = "NONE"
	RiskAtRisk   RiskLevel = "AT_RISK"
	RiskCritical RiskLevel = "CRITICAL"
)

// StandingSource tells whether GPA and credits were computed from grades or
// taken from the stored baseline because no usable grades exist.
type StandingSource string

const (
	StandingComputed StandingSource = "COMPUTED"
	StandingBaseline StandingSource = "BASELINE"
)

// StudentSummary is the per-student aggregate. Average is the unweighted
// score mean (0-100); CumulativeGPA is credit weighted (0-4.0).
type StudentSummary struct {
	StudentID         string               `json:"studentId"`
	StudentCode       string               `json:"studentCode"`
	FullName          string               `json:"fullName"`
	Department        string               `json:"department"`
	Status            models.StudentStatus `json:"status"`
	RiskLevel         RiskLevel            `json:"riskLevel"`
	Average           float64              `json:"average"`
	ScoredCount       int                  `json:"scoredCount"`
	CumulativeGPA     float64              `json:"cumulativeGpa"`
	CreditsEarned     int                  `json:"creditsEarned"`
	CreditsInProgress int                  `json:"creditsInProgress"`
	CreditsRequired   int                  `json:"creditsRequired"`
	CreditsRemaining  int                  `json:"creditsRemaining"`
	StandingSource    StandingSource       `json:"standingSource"`
	Semesters         []SemesterPoint      `json:"semesters"`
}

// SemesterPoint is one semester of a student's history.
type SemesterPoint struct {
	SemesterID       string             `json:"semesterId"`
	SemesterName     string             `json:"semesterName"`
	StartDate        time.Time          `json:"startDate"`
	GPA              float64            `json:"gpa"`
	Average          float64            `json:"average"`
	CreditsAttempted int                `json:"creditsAttempted"`
	GradeCount       int                `json:"gradeCount"`
	Trend            *models.GradeTrend `json:"trend,omitempty"`
}

// StudentTrend is the chart-ready semester series of a student.
type StudentTrend struct {
	StudentID string          `json:"studentId"`
	Points    []SemesterPoint `json:"points"`
}

// LetterCount is one bar of a letter distribution.
type LetterCount struct {
	Letter string `json:"letter"`
	Count  int    `json:"count"`
}

// CourseStats aggregates a course, optionally within one semester.
type CourseStats struct {
	CourseID      string        `json:"courseId"`
	CourseCode    string        `json:"courseCode"`
	CourseName    string        `json:"courseName"`
	SemesterID    string        `json:"semesterId,omitempty"`
	Average       float64       `json:"average"`
	Min           float64       `json:"min"`
	Max           float64       `json:"max"`
	PassRate      float64       `json:"passRate"`
	GradeCount    int           `json:"gradeCount"`
	EnrolledCount int           `json:"enrolledCount"`
	DroppedCount  int           `json:"droppedCount"`
	Distribution  []LetterCount `json:"distribution"`
}

// DepartmentStats aggregates one department group.
type DepartmentStats struct {
	Department   string  `json:"department"`
	Average      float64 `json:"avgAverage"`
	PassRate     float64 `json:"passRate"`
	GradeCount   int     `json:"gradeCount"`
	StudentCount int     `json:"studentCount"`
	AtRiskCount  int     `json:"atRiskCount"`
}

// SemesterStats aggregates one semester across all students.
type SemesterStats struct {
	SemesterID    string    `json:"semesterId"`
	Name          string    `json:"name"`
	StartDate     time.Time `json:"startDate"`
	IsActive      bool      `json:"isActive"`
	Average       float64   `json:"average"`
	PassRate      float64   `json:"passRate"`
	GradeCount    int       `json:"gradeCount"`
	EnrolledCount int       `json:"enrolledCount"`
	DroppedCount  int       `json:"droppedCount"`
}

// AtRiskStudent is one row of the at-risk roster.
type AtRiskStudent struct {
	StudentID   string               `json:"studentId"`
	StudentCode string               `json:"studentCode"`
	FullName    string               `json:"fullName"`
	Department  string               `json:"department"`
	Average     float64              `json:"average"`
	RiskLevel   RiskLevel            `json:"riskLevel"`
	Status      models.StudentStatus `json:"status"`
}

// AtRiskRoster lists at-risk students, lowest average first.
type AtRiskRoster struct {
	Total    int             `json:"total"`
	Critical int             `json:"critical"`
	Students []AtRiskStudent `json:"students"`
}

// SemesterRef names a semester.
type SemesterRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OverviewStats is the system-wide dashboard payload.
type OverviewStats struct {
	TotalStudents  int           `json:"totalStudents"`
	TotalCourses   int           `json:"totalCourses"`
	ActiveCourses  int           `json:"activeCourses"`
	ActiveSemester *SemesterRef  `json:"activeSemester,omitempty"`
	Average        float64       `json:"average"`
	PassRate       float64       `json:"passRate"`
	GraduationRate float64       `json:"graduationRate"`
	Graduated      int           `json:"graduated"`
	AtRisk         AtRiskRoster  `json:"atRisk"`
	Distribution   []LetterCount `json:"distribution"`
	GeneratedAt    time.Time     `json:"generatedAt"`
}
