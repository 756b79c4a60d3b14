package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
)

func TestStudentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_code", "full_name", "department_id", "department_name", "program", "year_of_study", "cumulative_gpa", "total_credits_earned", "total_credits_required", "status", "created_at", "updated_at"}).
		AddRow("stu-1", "S-001", "Ada", "dep-1", "Science", "BSc", 2, 3.4, 30, nil, "ACTIVE", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.id = $1")).
		WithArgs("stu-1").
		WillReturnRows(rows)

	student, err := repo.FindByID(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 60, student.CreditsRequired(60))
	assert.Equal(t, models.StudentStatusActive, student.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpdateStanding(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET cumulative_gpa = $2, total_credits_earned = $3")).
		WithArgs("stu-1", 3.25, 42, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStanding(context.Background(), models.StudentStanding{StudentID: "stu-1", CumulativeGPA: 3.25, TotalCreditsEarned: 42})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
