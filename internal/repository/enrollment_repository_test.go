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

var enrollmentRowColumns = []string{"id", "student_id", "course_id", "semester_id", "status", "enrollment_date", "dropped_at", "created_at", "updated_at"}

func TestEnrollmentRepositoryFindActiveByStudentCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status = $3 LIMIT 1")).
		WithArgs("stu-1", "course-1", models.EnrollmentStatusEnrolled).
		WillReturnRows(sqlmock.NewRows(enrollmentRowColumns).
			AddRow("enr-1", "stu-1", "course-1", "sem-1", "ENROLLED", now, nil, now, now))

	enrollment, err := repo.FindActiveByStudentCourse(context.Background(), "stu-1", "course-1")
	require.NoError(t, err)
	assert.Equal(t, "sem-1", enrollment.SemesterID)
	assert.Equal(t, models.EnrollmentStatusEnrolled, enrollment.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDefaultsToEnrolled(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WithArgs(sqlmock.AnyArg(), "stu-1", "course-1", "sem-1", models.EnrollmentStatusEnrolled, sqlmock.AnyArg(), nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{StudentID: "stu-1", CourseID: "course-1", SemesterID: "sem-1"}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.False(t, enrollment.EnrollmentDate.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryReactivate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE enrollments SET status = $2, enrollment_date = $3, dropped_at = NULL")).
		WithArgs("enr-1", models.EnrollmentStatusEnrolled, sqlmock.AnyArg(), models.EnrollmentStatusDropped).
		WillReturnRows(sqlmock.NewRows(enrollmentRowColumns).
			AddRow("enr-1", "stu-1", "course-1", "sem-1", "ENROLLED", now, nil, now, now))

	enrollment, err := repo.Reactivate(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusEnrolled, enrollment.Status)
	assert.Nil(t, enrollment.DroppedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryReactivateLostRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("UPDATE enrollments SET status").
		WithArgs("enr-1", models.EnrollmentStatusEnrolled, sqlmock.AnyArg(), models.EnrollmentStatusDropped).
		WillReturnRows(sqlmock.NewRows(enrollmentRowColumns))

	_, err := repo.Reactivate(context.Background(), "enr-1")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryMarkDropped(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE enrollments SET status = $2, dropped_at = $3")).
		WithArgs("enr-1", models.EnrollmentStatusDropped, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(enrollmentRowColumns).
			AddRow("enr-1", "stu-1", "course-1", "sem-1", "DROPPED", now, now, now, now))

	enrollment, err := repo.MarkDropped(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, enrollment.Status)
	assert.NotNil(t, enrollment.DroppedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND e.student_id = $1 AND e.status = $2 ORDER BY e.enrollment_date DESC LIMIT 20 OFFSET 0")).
		WithArgs("stu-1", models.EnrollmentStatusEnrolled).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments e")).
		WithArgs("stu-1", models.EnrollmentStatusEnrolled).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	list, total, err := repo.List(context.Background(), models.EnrollmentFilter{StudentID: "stu-1", Status: models.EnrollmentStatusEnrolled})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
