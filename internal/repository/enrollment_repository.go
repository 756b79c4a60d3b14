package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-records-api/internal/models"
)

const enrollmentColumns = "id, student_id, course_id, semester_id, status, enrollment_date, dropped_at, created_at, updated_at"

// EnrollmentRepository persists enrollment ledger rows.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository creates a new enrollment repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments with display names for pagination.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var where whereBuilder
	if filter.StudentID != "" {
		where.add("e.student_id = $%d", filter.StudentID)
	}
	if filter.CourseID != "" {
		where.add("e.course_id = $%d", filter.CourseID)
	}
	if filter.SemesterID != "" {
		where.add("e.semester_id = $%d", filter.SemesterID)
	}
	if filter.Status != "" {
		where.add("e.status = $%d", filter.Status)
	}
	from := ` FROM enrollments e
		JOIN students s ON s.id = e.student_id
		JOIN courses c ON c.id = e.course_id
		JOIN semesters sm ON sm.id = e.semester_id
		WHERE 1=1` + where.sql()

	order := orderClause(filter.SortBy, filter.SortOrder, "enrollment_date", map[string]string{
		"enrollment_date": "e.enrollment_date",
		"student_name":    "s.full_name",
		"course_code":     "c.code",
		"semester":        "sm.start_date",
	})
	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.course_id, e.semester_id, e.status, e.enrollment_date, e.dropped_at, e.created_at, e.updated_at,
		s.full_name AS student_name, s.student_code, c.code AS course_code, c.name AS course_name, sm.name AS semester_name%s ORDER BY %s LIMIT %d OFFSET %d`,
		from, order, limit, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+from, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID loads an enrollment by id.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + " FROM enrollments WHERE id = $1"
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByTriple loads the enrollment for an exact (student, course, semester).
func (r *EnrollmentRepository) FindByTriple(ctx context.Context, studentID, courseID, semesterID string) (*models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + " FROM enrollments WHERE student_id = $1 AND course_id = $2 AND semester_id = $3"
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, courseID, semesterID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindActiveByStudentCourse returns the enrolled-status row for the pair in
// any semester.
func (r *EnrollmentRepository) FindActiveByStudentCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + " FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status = $3 LIMIT 1"
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, courseID, models.EnrollmentStatusEnrolled); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Create inserts a new enrolled row.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrollmentDate.IsZero() {
		enrollment.EnrollmentDate = now
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusEnrolled
	}
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now

	const query = `INSERT INTO enrollments (id, student_id, course_id, semester_id, status, enrollment_date, dropped_at, created_at, updated_at)
		VALUES (:id, :student_id, :course_id, :semester_id, :status, :enrollment_date, :dropped_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Reactivate flips a dropped row back to enrolled and refreshes its
// enrollment date. The status guard makes a concurrent reactivation a no-op
// that surfaces as sql.ErrNoRows.
func (r *EnrollmentRepository) Reactivate(ctx context.Context, id string) (*models.Enrollment, error) {
	now := time.Now().UTC()
	query := `UPDATE enrollments SET status = $2, enrollment_date = $3, dropped_at = NULL, updated_at = $3
		WHERE id = $1 AND status = $4 RETURNING ` + enrollmentColumns
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id, models.EnrollmentStatusEnrolled, now, models.EnrollmentStatusDropped); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// MarkDropped sets the row to dropped.
func (r *EnrollmentRepository) MarkDropped(ctx context.Context, id string) (*models.Enrollment, error) {
	now := time.Now().UTC()
	query := `UPDATE enrollments SET status = $2, dropped_at = $3, updated_at = $3 WHERE id = $1 RETURNING ` + enrollmentColumns
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id, models.EnrollmentStatusDropped, now); err != nil {
		return nil, err
	}
	return &enrollment, nil
}
