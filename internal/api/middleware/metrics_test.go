package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/tripwise/tripwise/internal/api/middleware"
)

// setupTestMeter installs a manual reader as the global meter provider.
func setupTestMeter(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return reader
}

func requestCounts(t *testing.T, reader *sdkmetric.ManualReader) []metricdata.DataPoint[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "http.server.request.total" {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				return sum.DataPoints
			}
		}
	}
	return nil
}

func attr(attrs attribute.Set, key string) string {
	v, _ := attrs.Value(attribute.Key(key))
	return v.Emit()
}

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	reader := setupTestMeter(t)
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	r.Post("/v1/routes:optimize", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{}"))
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/routes:optimize", http.NoBody))
		require.Equal(t, http.StatusOK, w.Code)
	}

	points := requestCounts(t, reader)
	require.Len(t, points, 1)
	assert.Equal(t, int64(3), points[0].Value)
	assert.Equal(t, "/v1/routes:optimize", attr(points[0].Attributes, "http.route"))
	assert.Equal(t, "200", attr(points[0].Attributes, "http.status_code"))
	assert.Equal(t, "false", attr(points[0].Attributes, "error"))
}

func TestMetrics_UnmatchedAndErrors(t *testing.T) {
	reader := setupTestMeter(t)
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	handler := metrics.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/activities:suggest", http.NoBody))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	points := requestCounts(t, reader)
	require.Len(t, points, 1)
	assert.Equal(t, "unmatched", attr(points[0].Attributes, "http.route"))
	assert.Equal(t, "500", attr(points[0].Attributes, "http.status_code"))
	assert.Equal(t, "true", attr(points[0].Attributes, "error"))
}

func TestMetrics_DefaultStatusCode(t *testing.T) {
	reader := setupTestMeter(t)
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	handler := metrics.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("response"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	points := requestCounts(t, reader)
	require.Len(t, points, 1)
	assert.Equal(t, "200", attr(points[0].Attributes, "http.status_code"))
}
