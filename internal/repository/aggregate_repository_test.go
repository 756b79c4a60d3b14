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

func TestAggregateRepositoryGradeFactsScoped(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAggregateRepository(db)

	start := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"student_id", "course_id", "semester_id", "score", "letter_grade", "credits", "course_department", "course_department_text", "student_department", "semester_name", "semester_start", "enrollment_status"}).
		AddRow("stu-1", "course-1", "sem-1", 88.0, "B", 3, "Science", nil, "Arts", "Spring", start, "ENROLLED").
		AddRow("stu-1", "course-2", "sem-1", nil, "A_MINUS", 4, nil, "Maths", nil, "Spring", start, nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND g.student_id = $1 AND g.semester_id = $2")).
		WithArgs("stu-1", "sem-1").
		WillReturnRows(rows)

	facts, err := repo.GradeFacts(context.Background(), models.StatsScope{StudentID: "stu-1", SemesterID: "sem-1"})
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Nil(t, facts[1].Score)
	assert.Nil(t, facts[1].EnrollmentStatus)
	require.NotNil(t, facts[0].EnrollmentStatus)
	assert.Equal(t, models.EnrollmentStatusEnrolled, *facts[0].EnrollmentStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregateRepositoryEnrollmentFacts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAggregateRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "course_id", "semester_id", "status", "credits", "course_department", "course_department_text", "student_department", "has_grade"}).
		AddRow("stu-1", "course-1", "sem-1", "ENROLLED", 3, nil, nil, nil, false)
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments e")).
		WillReturnRows(rows)

	facts, err := repo.EnrollmentFacts(context.Background(), models.StatsScope{})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.False(t, facts[0].HasGrade)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregateRepositoryCountCourses(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAggregateRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM courses WHERE status = $1")).
		WithArgs(models.CourseStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	count, err := repo.CountCourses(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 12, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
