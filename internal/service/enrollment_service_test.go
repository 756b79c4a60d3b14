package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type enrollmentFixture struct {
	svc    *EnrollmentService
	ledger *fakeEnrollmentStore
}

func newEnrollmentFixture() enrollmentFixture {
	ledger := &fakeEnrollmentStore{}
	students := newFakeStudentStore(models.Student{ID: "s1"}, models.Student{ID: "s2"})
	courses := newFakeCourseStore(
		models.Course{ID: "c1", Code: "CS101", Status: models.CourseStatusActive, Credits: 3},
		models.Course{ID: "c2", Code: "CS999", Status: models.CourseStatusInactive, Credits: 3},
	)
	semesters := newFakeSemesterStore(models.Semester{ID: "sem1", Name: "2024 Spring"}, models.Semester{ID: "sem2", Name: "2024 Fall"})
	return enrollmentFixture{
		svc:    NewEnrollmentService(ledger, students, courses, semesters, nil, NewMetricsService(), nil, nil),
		ledger: ledger,
	}
}

func TestEnrollmentServiceEnrollCreates(t *testing.T) {
	f := newEnrollmentFixture()

	enrollment, outcome, err := f.svc.Enroll(context.Background(), EnrollmentRequest{StudentID: "s1", CourseID: "c1", SemesterID: "sem1"})
	require.NoError(t, err)
	assert.Equal(t, EnrollCreated, outcome)
	assert.Equal(t, models.EnrollmentStatusEnrolled, enrollment.Status)
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, 1, f.ledger.count())
}

func TestEnrollmentServiceEnrollValidatesReferences(t *testing.T) {
	f := newEnrollmentFixture()
	ctx := context.Background()

	_, _, err := f.svc.Enroll(ctx, EnrollmentRequest{StudentID: "ghost", CourseID: "c1", SemesterID: "sem1"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, _, err = f.svc.Enroll(ctx, EnrollmentRequest{StudentID: "s1", CourseID: "ghost", SemesterID: "sem1"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, _, err = f.svc.Enroll(ctx, EnrollmentRequest{StudentID: "s1", CourseID: "c1", SemesterID: "ghost"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, _, err = f.svc.Enroll(ctx, EnrollmentRequest{StudentID: "s1", CourseID: "c2", SemesterID: "sem1"})
	assert.True(t, errors.Is(err, appErrors.ErrInactiveCourse))

	_, _, err = f.svc.Enroll(ctx, EnrollmentRequest{StudentID: "s1"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Zero(t, f.ledger.count())
}

func TestEnrollmentServiceActiveElsewhere(t *testing.T) {
	f := newEnrollmentFixture()
	ctx := context.Background()
	f.ledger.add("e1", "s1", "c1", "sem1", models.EnrollmentStatusEnrolled)

	_, _, err := f.svc.Enroll(ctx, EnrollmentRequest{StudentID: "s1", CourseID: "c1", SemesterID: "sem2"})
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyActiveElsewhere))

	_, _, err = f.svc.Enroll(ctx, EnrollmentRequest{StudentID: "s1", CourseID: "c1", SemesterID: "sem1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyActiveElsewhere))
	assert.Contains(t, err.Error(), "already enrolled in this course for the semester")

	assert.Equal(t, 1, f.ledger.count())
}

func TestEnrollmentServiceEnrollDropEnrollKeepsOneRow(t *testing.T) {
	f := newEnrollmentFixture()
	ctx := context.Background()
	req := EnrollmentRequest{StudentID: "s1", CourseID: "c1", SemesterID: "sem1"}

	first, outcome, err := f.svc.Enroll(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, EnrollCreated, outcome)

	dropped, err := f.svc.Drop(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, dropped.Status)
	assert.NotNil(t, dropped.DroppedAt)

	again, outcome, err := f.svc.Enroll(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, EnrollReactivated, outcome)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, models.EnrollmentStatusEnrolled, again.Status)
	assert.Nil(t, again.DroppedAt)
	assert.Equal(t, 1, f.ledger.count())
}

func TestEnrollmentServiceDrop(t *testing.T) {
	f := newEnrollmentFixture()
	ctx := context.Background()
	f.ledger.add("e1", "s1", "c1", "sem1", models.EnrollmentStatusDropped)

	got, err := f.svc.Drop(ctx, EnrollmentRequest{StudentID: "s1", CourseID: "c1", SemesterID: "sem1"})
	require.NoError(t, err)
	assert.Equal(t, "e1", got.ID)
	assert.Equal(t, models.EnrollmentStatusDropped, got.Status)

	_, err = f.svc.Drop(ctx, EnrollmentRequest{StudentID: "s2", CourseID: "c1", SemesterID: "sem1"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = f.svc.Drop(ctx, EnrollmentRequest{StudentID: "s1", CourseID: "ghost", SemesterID: "sem1"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = f.svc.Drop(ctx, EnrollmentRequest{StudentID: "s1", CourseID: "c1", SemesterID: "ghost"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestEnrollmentServiceDropAllowsInactiveCourse(t *testing.T) {
	f := newEnrollmentFixture()
	f.ledger.add("e9", "s1", "c2", "sem1", models.EnrollmentStatusEnrolled)

	got, err := f.svc.Drop(context.Background(), EnrollmentRequest{StudentID: "s1", CourseID: "c2", SemesterID: "sem1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, got.Status)
}

func TestEnrollmentServiceTranslatesLostRaces(t *testing.T) {
	t.Run("insert collides with concurrent enroll", func(t *testing.T) {
		f := newEnrollmentFixture()
		f.ledger.createErr = uniqueViolation()

		_, _, err := f.svc.Enroll(context.Background(), EnrollmentRequest{StudentID: "s1", CourseID: "c1", SemesterID: "sem1"})
		assert.True(t, errors.Is(err, appErrors.ErrAlreadyActiveElsewhere))
	})

	t.Run("reactivation finds row already enrolled", func(t *testing.T) {
		f := newEnrollmentFixture()
		f.ledger.add("e1", "s1", "c1", "sem1", models.EnrollmentStatusDropped)
		f.ledger.reactivateErr = sql.ErrNoRows

		_, _, err := f.svc.Enroll(context.Background(), EnrollmentRequest{StudentID: "s1", CourseID: "c1", SemesterID: "sem1"})
		assert.True(t, errors.Is(err, appErrors.ErrAlreadyActiveElsewhere))
	})

	t.Run("other store failures stay internal", func(t *testing.T) {
		f := newEnrollmentFixture()
		f.ledger.createErr = errors.New("connection reset")

		_, _, err := f.svc.Enroll(context.Background(), EnrollmentRequest{StudentID: "s1", CourseID: "c1", SemesterID: "sem1"})
		assert.True(t, errors.Is(err, appErrors.ErrInternal))
	})
}

func TestEnrollmentServiceListRejectsUnknownStatus(t *testing.T) {
	f := newEnrollmentFixture()
	f.ledger.add("e1", "s1", "c1", "sem1", models.EnrollmentStatusEnrolled)

	_, _, err := f.svc.List(context.Background(), models.EnrollmentFilter{Status: "PENDING"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	items, pagination, err := f.svc.List(context.Background(), models.EnrollmentFilter{StudentID: "s1"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 1, pagination.Page)
}
