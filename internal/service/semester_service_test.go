package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

func newSemesterFixture() (*SemesterService, *fakeSemesterStore) {
	store := newFakeSemesterStore(
		models.Semester{ID: "y", Name: "Spring 2024", StartDate: springStart, EndDate: springStart.AddDate(0, 4, 0), IsActive: true},
		models.Semester{ID: "x", Name: "Fall 2024", StartDate: fallStart, EndDate: fallStart.AddDate(0, 4, 0)},
		models.Semester{ID: "z", Name: "Spring 2025", StartDate: fallStart.AddDate(0, 5, 0), EndDate: fallStart.AddDate(0, 9, 0)},
	)
	return NewSemesterService(store, nil, nil, nil), store
}

func TestSemesterServiceActivateSwitchesExactlyOne(t *testing.T) {
	svc, store := newSemesterFixture()
	ctx := context.Background()

	activated, err := svc.Activate(ctx, "x")
	require.NoError(t, err)
	assert.True(t, activated.IsActive)

	assert.True(t, store.items["x"].IsActive)
	assert.False(t, store.items["y"].IsActive)
	assert.False(t, store.items["z"].IsActive)
	assert.Equal(t, []string{"x"}, store.setActive)

	active, err := svc.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "x", active.ID)
}

func TestSemesterServiceActivateAlreadyActiveIsNoop(t *testing.T) {
	svc, store := newSemesterFixture()

	got, err := svc.Activate(context.Background(), "y")
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Empty(t, store.setActive)

	_, err = svc.Activate(context.Background(), "ghost")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestSemesterServiceCreate(t *testing.T) {
	svc, store := newSemesterFixture()
	ctx := context.Background()
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	created, err := svc.Create(ctx, SemesterRequest{Name: " Fall 2025 ", StartDate: start, EndDate: start.AddDate(0, 4, 0), IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, "Fall 2025", created.Name)
	assert.True(t, created.IsActive)
	assert.False(t, store.items["y"].IsActive)

	_, err = svc.Create(ctx, SemesterRequest{Name: "Fall 2025", StartDate: start, EndDate: start.AddDate(0, 4, 0)})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.Create(ctx, SemesterRequest{Name: "Backwards", StartDate: start, EndDate: start.AddDate(0, -1, 0)})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(ctx, SemesterRequest{StartDate: start, EndDate: start.AddDate(0, 1, 0)})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestSemesterServiceUpdate(t *testing.T) {
	svc, store := newSemesterFixture()
	ctx := context.Background()

	updated, err := svc.Update(ctx, "x", SemesterRequest{Name: "Autumn 2024", StartDate: fallStart, EndDate: fallStart.AddDate(0, 3, 0)})
	require.NoError(t, err)
	assert.Equal(t, "Autumn 2024", updated.Name)
	assert.True(t, store.items["y"].IsActive)

	_, err = svc.Update(ctx, "x", SemesterRequest{Name: "Spring 2024", StartDate: fallStart, EndDate: fallStart.AddDate(0, 3, 0)})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.Update(ctx, "ghost", SemesterRequest{Name: "Nope", StartDate: fallStart, EndDate: fallStart.AddDate(0, 3, 0)})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestSemesterServiceDeleteBlockedByReferences(t *testing.T) {
	svc, store := newSemesterFixture()
	ctx := context.Background()
	store.refs["x"] = [2]int{0, 2}

	err := svc.Delete(ctx, "x")
	assert.True(t, errors.Is(err, appErrors.ErrRelatedDataExists))
	assert.Contains(t, store.items, "x")

	require.NoError(t, svc.Delete(ctx, "z"))
	assert.NotContains(t, store.items, "z")

	assert.True(t, errors.Is(svc.Delete(ctx, "z"), appErrors.ErrNotFound))
}

func TestSemesterServiceList(t *testing.T) {
	svc, _ := newSemesterFixture()
	active := true

	items, pagination, err := svc.List(context.Background(), models.SemesterFilter{IsActive: &active})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "y", items[0].ID)
	assert.Equal(t, 20, pagination.PageSize)
}

func TestSemesterServiceCreateActiveIsAtomic(t *testing.T) {
	svc, store := newSemesterFixture()
	ctx := context.Background()
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	req := SemesterRequest{Name: "Fall 2025", StartDate: start, EndDate: start.AddDate(0, 4, 0), IsActive: true}

	store.createErr = errors.New("activation lock timeout")
	_, err := svc.Create(ctx, req)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	assert.Len(t, store.items, 3)
	assert.True(t, store.items["y"].IsActive)

	store.createErr = nil
	created, err := svc.Create(ctx, req)
	require.NoError(t, err)
	assert.True(t, created.IsActive)
	assert.False(t, store.items["y"].IsActive)
	assert.Empty(t, store.setActive)
}
