package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// AggregateRepository loads the raw fact rows the aggregation engine folds
// into statistics. It never computes aggregates itself.
type AggregateRepository struct {
	db *sqlx.DB
}

// NewAggregateRepository constructs the repository.
func NewAggregateRepository(db *sqlx.DB) *AggregateRepository {
	return &AggregateRepository{db: db}
}

// GradeFacts returns grade rows in scope, oldest semester first.
func (r *AggregateRepository) GradeFacts(ctx context.Context, scope models.StatsScope) ([]models.GradeFact, error) {
	where := scopeFilter("g", scope)
	query := `SELECT g.student_id, g.course_id, g.semester_id, g.score, g.letter_grade, c.credits,
		cd.name AS course_department, c.department AS course_department_text, sd.name AS student_department,
		sm.name AS semester_name, sm.start_date AS semester_start, e.status AS enrollment_status
		FROM grades g
		JOIN courses c ON c.id = g.course_id
		JOIN semesters sm ON sm.id = g.semester_id
		JOIN students s ON s.id = g.student_id
		LEFT JOIN departments cd ON cd.id = c.department_id
		LEFT JOIN departments sd ON sd.id = s.department_id
		LEFT JOIN enrollments e ON e.student_id = g.student_id AND e.course_id = g.course_id AND e.semester_id = g.semester_id
		WHERE 1=1` + where.sql() + `
		ORDER BY sm.start_date, g.student_id, g.course_id`

	var facts []models.GradeFact
	if err := r.db.SelectContext(ctx, &facts, query, where.args...); err != nil {
		return nil, fmt.Errorf("load grade facts: %w", err)
	}
	return facts, nil
}

// EnrollmentFacts returns enrollment rows in scope with a grade-exists flag.
func (r *AggregateRepository) EnrollmentFacts(ctx context.Context, scope models.StatsScope) ([]models.EnrollmentFact, error) {
	where := scopeFilter("e", scope)
	query := `SELECT e.student_id, e.course_id, e.semester_id, e.status, c.credits,
		cd.name AS course_department, c.department AS course_department_text, sd.name AS student_department,
		EXISTS (SELECT 1 FROM grades g WHERE g.student_id = e.student_id AND g.course_id = e.course_id AND g.semester_id = e.semester_id) AS has_grade
		FROM enrollments e
		JOIN courses c ON c.id = e.course_id
		JOIN students s ON s.id = e.student_id
		LEFT JOIN departments cd ON cd.id = c.department_id
		LEFT JOIN departments sd ON sd.id = s.department_id
		WHERE 1=1` + where.sql()

	var facts []models.EnrollmentFact
	if err := r.db.SelectContext(ctx, &facts, query, where.args...); err != nil {
		return nil, fmt.Errorf("load enrollment facts: %w", err)
	}
	return facts, nil
}

// Semesters returns every semester ordered by start date.
func (r *AggregateRepository) Semesters(ctx context.Context) ([]models.Semester, error) {
	var semesters []models.Semester
	if err := r.db.SelectContext(ctx, &semesters, "SELECT "+semesterColumns+" FROM semesters ORDER BY start_date"); err != nil {
		return nil, fmt.Errorf("load semesters: %w", err)
	}
	return semesters, nil
}

// Departments returns every department ordered by name.
func (r *AggregateRepository) Departments(ctx context.Context) ([]models.Department, error) {
	var departments []models.Department
	if err := r.db.SelectContext(ctx, &departments, "SELECT id, code, name FROM departments ORDER BY name"); err != nil {
		return nil, fmt.Errorf("load departments: %w", err)
	}
	return departments, nil
}

// CountCourses returns the number of courses, optionally only active ones.
func (r *AggregateRepository) CountCourses(ctx context.Context, activeOnly bool) (int, error) {
	query := "SELECT COUNT(*) FROM courses"
	var args []interface{}
	if activeOnly {
		query += " WHERE status = $1"
		args = append(args, models.CourseStatusActive)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return count, nil
}

func scopeFilter(alias string, scope models.StatsScope) whereBuilder {
	var where whereBuilder
	if scope.StudentID != "" {
		where.add(alias+".student_id = $%d", scope.StudentID)
	}
	if scope.CourseID != "" {
		where.add(alias+".course_id = $%d", scope.CourseID)
	}
	if scope.SemesterID != "" {
		where.add(alias+".semester_id = $%d", scope.SemesterID)
	}
	return where
}
