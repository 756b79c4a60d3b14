package models

import "time"

// GradeFact is a grade row joined with everything the aggregation engine
// needs: course credits, the department fallback chain and the owning
// enrollment, when there is one.
type GradeFact struct {
	StudentID         string            `db:"student_id"`
	CourseID          string            `db:"course_id"`
	SemesterID        string            `db:"semester_id"`
	Score             *float64          `db:"score"`
	LetterGrade       *string           `db:"letter_grade"`
	Credits           int               `db:"credits"`
	CourseDepartment  *string           `db:"course_department"`
	CourseDeptText    *string           `db:"course_department_text"`
	StudentDepartment *string           `db:"student_department"`
	SemesterName      string            `db:"semester_name"`
	SemesterStart     time.Time         `db:"semester_start"`
	EnrollmentStatus  *EnrollmentStatus `db:"enrollment_status"`
}

// EnrollmentFact is an enrollment row joined with course credits and
// department information, flagged with whether a grade exists for it.
type EnrollmentFact struct {
	StudentID         string           `db:"student_id"`
	CourseID          string           `db:"course_id"`
	SemesterID        string           `db:"semester_id"`
	Status            EnrollmentStatus `db:"status"`
	Credits           int              `db:"credits"`
	CourseDepartment  *string          `db:"course_department"`
	CourseDeptText    *string          `db:"course_department_text"`
	StudentDepartment *string          `db:"student_department"`
	HasGrade          bool             `db:"has_grade"`
}

// StatsScope narrows the fact rows loaded for an aggregate.
type StatsScope struct {
	StudentID  string
	CourseID   string
	SemesterID string
}

// SystemMetrics is a lightweight instrumentation snapshot.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
