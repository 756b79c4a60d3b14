package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-records-api/internal/models"
)

const gradeColumns = "id, student_id, course_id, semester_id, score, letter_grade, attendance, trend, assignment_meta, comments, teacher_id, recorded_at, updated_at"

// GradeRepository persists one grade per (student, course, semester).
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// Upsert inserts the grade or overwrites the existing row for its triple.
// On return grade carries the persisted id and timestamps; inserted reports
// whether a new row was created.
func (r *GradeRepository) Upsert(ctx context.Context, grade *models.Grade) (bool, error) {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	const query = `INSERT INTO grades (id, student_id, course_id, semester_id, score, letter_grade, attendance, trend, assignment_meta, comments, teacher_id, recorded_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		ON CONFLICT (student_id, course_id, semester_id) DO UPDATE SET
			score = EXCLUDED.score,
			letter_grade = EXCLUDED.letter_grade,
			attendance = EXCLUDED.attendance,
			trend = EXCLUDED.trend,
			assignment_meta = EXCLUDED.assignment_meta,
			comments = EXCLUDED.comments,
			teacher_id = EXCLUDED.teacher_id,
			updated_at = EXCLUDED.updated_at
		RETURNING id, recorded_at, updated_at, (xmax = 0) AS inserted`

	var inserted bool
	err := r.db.QueryRowxContext(ctx, query,
		grade.ID, grade.StudentID, grade.CourseID, grade.SemesterID,
		grade.Score, grade.LetterGrade, grade.Attendance, grade.Trend,
		grade.AssignmentMeta, grade.Comments, grade.TeacherID, now,
	).Scan(&grade.ID, &grade.RecordedAt, &grade.UpdatedAt, &inserted)
	if err != nil {
		return false, fmt.Errorf("upsert grade: %w", err)
	}
	return inserted, nil
}

// FindByKey loads the grade for a triple.
func (r *GradeRepository) FindByKey(ctx context.Context, key models.GradeKey) (*models.Grade, error) {
	query := "SELECT " + gradeColumns + " FROM grades WHERE student_id = $1 AND course_id = $2 AND semester_id = $3"
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, query, key.StudentID, key.CourseID, key.SemesterID); err != nil {
		return nil, err
	}
	return &grade, nil
}

// List returns grades with display names, newest semester first.
func (r *GradeRepository) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, int, error) {
	var where whereBuilder
	if filter.StudentID != "" {
		where.add("g.student_id = $%d", filter.StudentID)
	}
	if filter.CourseID != "" {
		where.add("g.course_id = $%d", filter.CourseID)
	}
	if filter.SemesterID != "" {
		where.add("g.semester_id = $%d", filter.SemesterID)
	}
	if filter.TeacherID != "" {
		where.add("g.teacher_id = $%d", filter.TeacherID)
	}
	from := ` FROM grades g
		JOIN students s ON s.id = g.student_id
		JOIN courses c ON c.id = g.course_id
		JOIN semesters sm ON sm.id = g.semester_id
		WHERE 1=1` + where.sql()

	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`SELECT g.id, g.student_id, g.course_id, g.semester_id, g.score, g.letter_grade, g.attendance, g.trend,
		g.assignment_meta, g.comments, g.teacher_id, g.recorded_at, g.updated_at,
		s.full_name AS student_name, c.code AS course_code, c.name AS course_name, c.credits, sm.name AS semester_name%s
		ORDER BY sm.start_date DESC, c.code, s.full_name LIMIT %d OFFSET %d`, from, limit, offset)

	var grades []models.GradeDetail
	if err := r.db.SelectContext(ctx, &grades, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list grades: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+from, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count grades: %w", err)
	}
	return grades, total, nil
}
