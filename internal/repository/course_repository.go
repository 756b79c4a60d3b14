package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-records-api/internal/models"
)

const courseSelect = `SELECT c.id, c.code, c.name, c.credits, c.department_id, c.department, d.name AS department_name,
	c.status, c.teacher_id, c.grade_recording_teacher_id, c.created_at, c.updated_at
	FROM courses c
	LEFT JOIN departments d ON d.id = c.department_id`

// CourseRepository handles persistence for courses and their teacher roster.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository instantiates a course repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses matching provided filters.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var where whereBuilder
	if filter.DepartmentID != "" {
		where.add("c.department_id = $%d", filter.DepartmentID)
	}
	if filter.Status != "" {
		where.add("c.status = $%d", filter.Status)
	}
	if filter.TeacherID != "" {
		where.add("(c.teacher_id = $%[1]d OR EXISTS (SELECT 1 FROM course_teachers ct WHERE ct.course_id = c.id AND ct.teacher_id = $%[1]d))", filter.TeacherID)
	}
	if filter.Search != "" {
		where.add("(c.code ILIKE $%[1]d OR c.name ILIKE $%[1]d)", "%"+filter.Search+"%")
	}
	conditions := " WHERE 1=1" + where.sql()

	order := orderClause(filter.SortBy, filter.SortOrder, "code", map[string]string{
		"code":       "c.code",
		"name":       "c.name",
		"credits":    "c.credits",
		"created_at": "c.created_at",
	})
	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf("%s%s ORDER BY %s LIMIT %d OFFSET %d", courseSelect, conditions, order, limit, offset)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses c"+conditions, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID loads a course by identifier.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	if err := r.db.GetContext(ctx, &course, courseSelect+" WHERE c.id = $1", id); err != nil {
		return nil, err
	}
	return &course, nil
}

// ExistsByCode checks whether another course already uses code.
func (r *CourseRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	query := "SELECT 1 FROM courses WHERE UPPER(code) = UPPER($1)"
	args := []interface{}{code}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course code: %w", err)
	}
	return true, nil
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now

	const query = `INSERT INTO courses (id, code, name, credits, department_id, department, status, teacher_id, grade_recording_teacher_id, created_at, updated_at)
		VALUES (:id, :code, :name, :credits, :department_id, :department, :status, :teacher_id, :grade_recording_teacher_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update modifies descriptive fields, the legacy primary teacher and the
// grade recorder in one statement.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET code = :code, name = :name, credits = :credits, department_id = :department_id,
		department = :department, teacher_id = :teacher_id, grade_recording_teacher_id = :grade_recording_teacher_id,
		updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// UpdateStatus switches a course between active and inactive.
func (r *CourseRepository) UpdateStatus(ctx context.Context, id string, status models.CourseStatus) error {
	const query = `UPDATE courses SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update course status: %w", err)
	}
	return nil
}

// Delete removes a course and its roster rows.
func (r *CourseRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete course tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM course_teachers WHERE course_id = $1`, id); err != nil {
		return fmt.Errorf("delete course roster: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete course tx: %w", err)
	}
	return nil
}

// CountReferences returns how many enrollments and grades point at the course.
func (r *CourseRepository) CountReferences(ctx context.Context, id string) (enrollments int, grades int, err error) {
	const query = `SELECT
		(SELECT COUNT(*) FROM enrollments WHERE course_id = $1) AS enrollments,
		(SELECT COUNT(*) FROM grades WHERE course_id = $1) AS grades`
	var counts struct {
		Enrollments int `db:"enrollments"`
		Grades      int `db:"grades"`
	}
	if err := r.db.GetContext(ctx, &counts, query, id); err != nil {
		return 0, 0, fmt.Errorf("count course references: %w", err)
	}
	return counts.Enrollments, counts.Grades, nil
}

// ListTeachers returns the many-to-many roster of a course.
func (r *CourseRepository) ListTeachers(ctx context.Context, courseID string) ([]models.CourseTeacher, error) {
	const query = `SELECT ct.course_id, ct.teacher_id, t.full_name AS teacher_name, ct.assigned_at
		FROM course_teachers ct
		JOIN teachers t ON t.id = ct.teacher_id
		WHERE ct.course_id = $1
		ORDER BY ct.assigned_at`
	var roster []models.CourseTeacher
	if err := r.db.SelectContext(ctx, &roster, query, courseID); err != nil {
		return nil, fmt.Errorf("list course teachers: %w", err)
	}
	return roster, nil
}

// AssignTeacher adds a teacher to the roster. Assigning twice is a no-op.
func (r *CourseRepository) AssignTeacher(ctx context.Context, courseID, teacherID string) error {
	const query = `INSERT INTO course_teachers (course_id, teacher_id, assigned_at) VALUES ($1, $2, $3)
		ON CONFLICT (course_id, teacher_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, courseID, teacherID, time.Now().UTC()); err != nil {
		return fmt.Errorf("assign course teacher: %w", err)
	}
	return nil
}

// UnassignTeacher removes a teacher from every authority source of the
// course: the roster row, the legacy primary reference and the grade
// recorder designation. It reports whether anything changed.
func (r *CourseRepository) UnassignTeacher(ctx context.Context, courseID, teacherID string) (removed bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin unassign tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM course_teachers WHERE course_id = $1 AND teacher_id = $2`, courseID, teacherID)
	if err != nil {
		return false, fmt.Errorf("delete course teacher: %w", err)
	}
	rosterRows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete course teacher rows: %w", err)
	}

	now := time.Now().UTC()
	res, err = tx.ExecContext(ctx, `UPDATE courses SET teacher_id = NULL, updated_at = $3 WHERE id = $1 AND teacher_id = $2`, courseID, teacherID, now)
	if err != nil {
		return false, fmt.Errorf("clear primary teacher: %w", err)
	}
	primaryRows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("clear primary teacher rows: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE courses SET grade_recording_teacher_id = NULL, updated_at = $3 WHERE id = $1 AND grade_recording_teacher_id = $2`, courseID, teacherID, now); err != nil {
		return false, fmt.Errorf("clear grade recorder: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit unassign tx: %w", err)
	}
	return rosterRows+primaryRows > 0, nil
}

// SetGradeRecorder stores or clears (nil) the designated grade recorder.
func (r *CourseRepository) SetGradeRecorder(ctx context.Context, courseID string, teacherID *string) error {
	const query = `UPDATE courses SET grade_recording_teacher_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, courseID, teacherID, time.Now().UTC()); err != nil {
		return fmt.Errorf("set grade recorder: %w", err)
	}
	return nil
}

// Authority loads the authority snapshot of a course. When withRoster is
// false the many-to-many relation is not consulted at all.
func (r *CourseRepository) Authority(ctx context.Context, courseID string, withRoster bool) (*models.CourseAuthority, error) {
	var head struct {
		TeacherID               *string `db:"teacher_id"`
		GradeRecordingTeacherID *string `db:"grade_recording_teacher_id"`
	}
	if err := r.db.GetContext(ctx, &head, `SELECT teacher_id, grade_recording_teacher_id FROM courses WHERE id = $1`, courseID); err != nil {
		return nil, err
	}
	authority := &models.CourseAuthority{
		CourseID:                courseID,
		TeacherID:               head.TeacherID,
		GradeRecordingTeacherID: head.GradeRecordingTeacherID,
		Roster:                  []string{},
	}
	if !withRoster {
		return authority, nil
	}
	if err := r.db.SelectContext(ctx, &authority.Roster, `SELECT teacher_id FROM course_teachers WHERE course_id = $1 ORDER BY assigned_at`, courseID); err != nil {
		return nil, fmt.Errorf("load course roster: %w", err)
	}
	return authority, nil
}
