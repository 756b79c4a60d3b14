package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-records-api/internal/models"
)

const studentSelect = `SELECT s.id, s.student_code, s.full_name, s.department_id, d.name AS department_name, s.program,
	s.year_of_study, s.cumulative_gpa, s.total_credits_earned, s.total_credits_required, s.status, s.created_at, s.updated_at
	FROM students s
	LEFT JOIN departments d ON d.id = s.department_id`

// StudentRepository reads student records and writes back computed standing.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new repository instance.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student by id.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, studentSelect+" WHERE s.id = $1", id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListAll returns every student ordered by code.
func (r *StudentRepository) ListAll(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, studentSelect+" ORDER BY s.student_code"); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// UpdateStanding writes the computed cumulative GPA and earned credits.
func (r *StudentRepository) UpdateStanding(ctx context.Context, standing models.StudentStanding) error {
	const query = `UPDATE students SET cumulative_gpa = $2, total_credits_earned = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, standing.StudentID, standing.CumulativeGPA, standing.TotalCreditsEarned, time.Now().UTC()); err != nil {
		return fmt.Errorf("update student standing: %w", err)
	}
	return nil
}
