package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/service"
)

type fakePinger struct {
	err error
}

func (f fakePinger) PingContext(context.Context) error {
	return f.err
}

func TestMetricsHandlerReady(t *testing.T) {
	c, rec := newTestContext(t, http.MethodGet, "/ready", nil, nil)
	NewMetricsHandler(nil, fakePinger{}).Ready(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newTestContext(t, http.MethodGet, "/ready", nil, nil)
	NewMetricsHandler(nil, fakePinger{err: errors.New("connection refused")}).Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestMetricsHandlerPrometheusAndSnapshot(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordGradeWrite(true)
	handler := NewMetricsHandler(metrics, nil)

	c, rec := newTestContext(t, http.MethodGet, "/metrics", nil, nil)
	handler.Prometheus(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "grade_writes_total")

	c, rec = newTestContext(t, http.MethodGet, "/metrics/summary", nil, nil)
	handler.Snapshot(c)
	require.Equal(t, http.StatusOK, rec.Code)
	var snapshot models.SystemMetrics
	decodeData(t, decodeEnvelope(t, rec), &snapshot)
	assert.Greater(t, snapshot.Goroutines, 0)
}

func TestMetricsHandlerHealth(t *testing.T) {
	c, rec := newTestContext(t, http.MethodGet, "/health", nil, nil)
	NewMetricsHandler(nil, nil).Health(c)
	assert.Equal(t, http.StatusOK, rec.Code)
}
