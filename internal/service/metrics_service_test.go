package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/pkg/config"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodGet, "/stats/overview", http.StatusOK, 20*time.Millisecond)
	metrics.ObserveHTTPRequest(http.MethodGet, "/stats/overview", http.StatusOK, 40*time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.RecordCacheOperation(false, time.Millisecond)
	metrics.RecordCacheOperation(false, time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.ObserveDBQuery("stats_overview", 10*time.Millisecond)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(2), snapshot.RequestsTotal)
	assert.InDelta(t, 30.0, snapshot.AverageRequestDurationMs, 0.001)
	assert.Equal(t, 0.5, snapshot.CacheHitRatio)
	assert.Equal(t, uint64(1), snapshot.DBQueryCount)
	assert.InDelta(t, 10.0, snapshot.AverageDBQueryDurationMs, 0.001)
}

func TestMetricsServiceExposition(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordGradeWrite(true)
	metrics.RecordGradeWrite(false)
	metrics.RecordGradeDenial("NOT_ASSIGNED")
	metrics.RecordEnrollment("reactivated")

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `grade_writes_total{outcome="inserted"} 1`)
	assert.Contains(t, body, `grade_authority_denials_total{code="NOT_ASSIGNED"} 1`)
	assert.Contains(t, body, `enrollment_transitions_total{transition="reactivated"} 1`)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	assert.NotPanics(t, func() {
		metrics.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
		metrics.RecordCacheOperation(true, time.Millisecond)
		metrics.ObserveDBQuery("q", time.Millisecond)
		metrics.RecordGradeWrite(true)
		metrics.RecordGradeDenial("X")
		metrics.RecordEnrollment("created")
	})
	assert.Equal(t, uint64(0), metrics.Snapshot().RequestsTotal)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type failingCacheRepo struct{}

func (failingCacheRepo) Get(context.Context, string, interface{}) error {
	return errors.New("connection reset")
}

func (failingCacheRepo) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("connection reset")
}

func (failingCacheRepo) DeleteByPattern(context.Context, string) error {
	return errors.New("connection reset")
}

func TestCacheServiceDisabledByDefault(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, config.StatsConfig{}, nil)
	assert.False(t, cache.Enabled())

	cache.Set(context.Background(), "stats:x", 1)
	assert.Empty(t, repo.data)

	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
	assert.NoError(t, nilCache.Invalidate(context.Background(), "stats:*"))
}

func TestCachedLoadFallsBackOnCacheErrors(t *testing.T) {
	cache := NewCacheService(failingCacheRepo{}, nil, config.StatsConfig{CacheEnabled: true}, nil)
	calls := 0
	load := func(context.Context) (int, error) {
		calls++
		return 42, nil
	}

	value, hit, err := cachedLoad(context.Background(), cache, nil, "stats:answer", "stats_answer", load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 42, value)
	assert.Equal(t, 1, calls)
	assert.Error(t, cache.Invalidate(context.Background(), "stats:*"))
}

func TestCachedLoadServesHits(t *testing.T) {
	cache := NewCacheService(newMemoryCacheRepo(), NewMetricsService(), config.StatsConfig{CacheEnabled: true}, nil)
	calls := 0
	load := func(context.Context) (int, error) {
		calls++
		return 7, nil
	}

	_, hit, err := cachedLoad(context.Background(), cache, nil, "stats:n", "stats_n", load)
	require.NoError(t, err)
	assert.False(t, hit)

	value, hit, err := cachedLoad(context.Background(), cache, nil, "stats:n", "stats_n", load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 7, value)
	assert.Equal(t, 1, calls)
}
