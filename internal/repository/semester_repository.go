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

const semesterColumns = "id, name, start_date, end_date, is_active, created_at, updated_at"

// SemesterRepository handles persistence for semesters.
type SemesterRepository struct {
	db *sqlx.DB
}

// NewSemesterRepository instantiates a semester repository.
func NewSemesterRepository(db *sqlx.DB) *SemesterRepository {
	return &SemesterRepository{db: db}
}

// List returns semesters matching provided filters.
func (r *SemesterRepository) List(ctx context.Context, filter models.SemesterFilter) ([]models.Semester, int, error) {
	var where whereBuilder
	if filter.IsActive != nil {
		where.add("is_active = $%d", *filter.IsActive)
	}
	if filter.Search != "" {
		where.add("name ILIKE $%d", "%"+filter.Search+"%")
	}
	base := "FROM semesters WHERE 1=1" + where.sql()

	order := orderClause(filter.SortBy, filter.SortOrder, "start_date", map[string]string{
		"name":       "name",
		"start_date": "start_date",
		"end_date":   "end_date",
		"created_at": "created_at",
	})
	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s %s ORDER BY %s LIMIT %d OFFSET %d", semesterColumns, base, order, limit, offset)

	var semesters []models.Semester
	if err := r.db.SelectContext(ctx, &semesters, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list semesters: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count semesters: %w", err)
	}
	return semesters, total, nil
}

// FindByID loads a semester by identifier.
func (r *SemesterRepository) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	query := "SELECT " + semesterColumns + " FROM semesters WHERE id = $1"
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query, id); err != nil {
		return nil, err
	}
	return &semester, nil
}

// FindActive returns the currently active semester.
func (r *SemesterRepository) FindActive(ctx context.Context) (*models.Semester, error) {
	query := "SELECT " + semesterColumns + " FROM semesters WHERE is_active = TRUE LIMIT 1"
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query); err != nil {
		return nil, err
	}
	return &semester, nil
}

// ExistsByName checks whether another semester already uses name.
func (r *SemesterRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	query := "SELECT 1 FROM semesters WHERE LOWER(name) = LOWER($1)"
	args := []interface{}{name}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check semester name: %w", err)
	}
	return true, nil
}

// Create inserts a new semester. An active semester is inserted in the same
// transaction that deactivates every other one.
func (r *SemesterRepository) Create(ctx context.Context, semester *models.Semester) (err error) {
	if semester.ID == "" {
		semester.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	semester.CreatedAt = now
	semester.UpdatedAt = now

	const query = `INSERT INTO semesters (id, name, start_date, end_date, is_active, created_at, updated_at) VALUES (:id, :name, :start_date, :end_date, :is_active, :created_at, :updated_at)`
	if !semester.IsActive {
		if _, err = r.db.NamedExecContext(ctx, query, semester); err != nil {
			return fmt.Errorf("create semester: %w", err)
		}
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create semester tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = deactivateOthers(ctx, tx, semester.ID, now); err != nil {
		return err
	}
	if _, err = tx.NamedExecContext(ctx, query, semester); err != nil {
		return fmt.Errorf("create semester: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create semester tx: %w", err)
	}
	return nil
}

// Update modifies name and dates of an existing semester.
func (r *SemesterRepository) Update(ctx context.Context, semester *models.Semester) error {
	semester.UpdatedAt = time.Now().UTC()
	const query = `UPDATE semesters SET name = :name, start_date = :start_date, end_date = :end_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, semester); err != nil {
		return fmt.Errorf("update semester: %w", err)
	}
	return nil
}

// SetActive marks the semester active and deactivates every other one in a
// single transaction. The table lock serialises concurrent activations so
// two active semesters are never committed. Returns sql.ErrNoRows when id
// does not exist.
func (r *SemesterRepository) SetActive(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set active tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if err = deactivateOthers(ctx, tx, id, now); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `UPDATE semesters SET is_active = TRUE, updated_at = $2 WHERE id = $1`, id, now)
	if err != nil {
		return fmt.Errorf("activate semester: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("activate semester rows: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit set active tx: %w", err)
	}
	return nil
}

// deactivateOthers locks the table so concurrent activations serialise, then
// clears the flag on every semester except id.
func deactivateOthers(ctx context.Context, tx *sqlx.Tx, id string, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `LOCK TABLE semesters IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("lock semesters: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE semesters SET is_active = FALSE, updated_at = $1 WHERE is_active = TRUE AND id <> $2`, now, id); err != nil {
		return fmt.Errorf("deactivate other semesters: %w", err)
	}
	return nil
}

// Delete removes a semester permanently.
func (r *SemesterRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM semesters WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete semester: %w", err)
	}
	return nil
}

// CountReferences returns how many enrollments and grades point at the semester.
func (r *SemesterRepository) CountReferences(ctx context.Context, id string) (enrollments int, grades int, err error) {
	const query = `SELECT
		(SELECT COUNT(*) FROM enrollments WHERE semester_id = $1) AS enrollments,
		(SELECT COUNT(*) FROM grades WHERE semester_id = $1) AS grades`
	var counts struct {
		Enrollments int `db:"enrollments"`
		Grades      int `db:"grades"`
	}
	if err := r.db.GetContext(ctx, &counts, query, id); err != nil {
		return 0, 0, fmt.Errorf("count semester references: %w", err)
	}
	return counts.Enrollments, counts.Grades, nil
}
