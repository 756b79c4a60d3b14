package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
)

func TestSemesterRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSemesterRepository(db)

	start := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "name", "start_date", "end_date", "is_active", "created_at", "updated_at"}).
		AddRow("sem-1", "Spring 2024", start, start.AddDate(0, 4, 0), true, start, start)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, start_date, end_date, is_active, created_at, updated_at FROM semesters WHERE 1=1 ORDER BY start_date DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM semesters WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.SemesterFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.True(t, list[0].IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSemesterRepositoryListFiltersActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSemesterRepository(db)

	active := false
	mock.ExpectQuery(regexp.QuoteMeta("FROM semesters WHERE 1=1 AND is_active = $1 ORDER BY name ASC LIMIT 5 OFFSET 5")).
		WithArgs(false).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM semesters WHERE 1=1 AND is_active = $1")).
		WithArgs(false).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.SemesterFilter{IsActive: &active, Page: 2, PageSize: 5, SortBy: "name", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSemesterRepositorySetActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSemesterRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("LOCK TABLE semesters IN SHARE ROW EXCLUSIVE MODE")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE semesters SET is_active = FALSE, updated_at = $1 WHERE is_active = TRUE AND id <> $2")).
		WithArgs(sqlmock.AnyArg(), "sem-x").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE semesters SET is_active = TRUE, updated_at = $2 WHERE id = $1")).
		WithArgs("sem-x", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SetActive(context.Background(), "sem-x"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSemesterRepositorySetActiveUnknownRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSemesterRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("LOCK TABLE semesters").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE semesters SET is_active = FALSE").
		WithArgs(sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE semesters SET is_active = TRUE").
		WithArgs("missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.SetActive(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSemesterRepositoryCountReferences(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSemesterRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("(SELECT COUNT(*) FROM enrollments WHERE semester_id = $1) AS enrollments")).
		WithArgs("sem-1").
		WillReturnRows(sqlmock.NewRows([]string{"enrollments", "grades"}).AddRow(3, 2))

	enrollments, grades, err := repo.CountReferences(context.Background(), "sem-1")
	require.NoError(t, err)
	assert.Equal(t, 3, enrollments)
	assert.Equal(t, 2, grades)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSemesterRepositoryExistsByName(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSemesterRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM semesters WHERE LOWER(name) = LOWER($1) AND id <> $2 LIMIT 1")).
		WithArgs("Fall 2024", "sem-1").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsByName(context.Background(), "Fall 2024", "sem-1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSemesterRepositoryCreateActiveInOneTransaction(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSemesterRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("LOCK TABLE semesters IN SHARE ROW EXCLUSIVE MODE")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE semesters SET is_active = FALSE")).
		WithArgs(sqlmock.AnyArg(), "sem-new").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO semesters")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	semester := &models.Semester{ID: "sem-new", Name: "Fall 2025", IsActive: true}
	require.NoError(t, repo.Create(context.Background(), semester))
	assert.True(t, semester.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSemesterRepositoryCreateActiveRollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSemesterRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("LOCK TABLE semesters").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE semesters SET is_active = FALSE").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO semesters").WillReturnError(errors.New("insert failed"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Semester{ID: "sem-new", Name: "Fall 2025", IsActive: true})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
