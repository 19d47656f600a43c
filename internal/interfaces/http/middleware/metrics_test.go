package middleware

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/realty/backend/internal/infrastructure/telemetry"
)

func setupTestMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(t.Context()) })
	return mp, reader
}

func collectMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(t.Context(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func metricsRouter(mp *sdkmetric.MeterProvider) *gin.Engine {
	router := gin.New()
	router.Use(HTTPMetricsWithMeter(mp.Meter("http.server"), true))
	router.GET("/api/properties/:id", func(c *gin.Context) {
		if c.Param("id") == "missing" {
			c.JSON(http.StatusNotFound, gin.H{"success": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return router
}

func TestHTTPMetrics_DisabledIsPassThrough(t *testing.T) {
	tests := []struct {
		name string
		cfg  HTTPMetricsConfig
	}{
		{"disabled", HTTPMetricsConfig{Enabled: false}},
		{"nil provider", HTTPMetricsConfig{Enabled: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(newTestRouter(HTTPMetrics(tt.cfg)), http.MethodGet, "/test", nil)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}

	w := serve(newTestRouter(HTTPMetricsWithMeter(nil, true)), http.MethodGet, "/test", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHTTPMetrics_CountsByRouteAndStatus(t *testing.T) {
	mp, reader := setupTestMeter(t)
	router := metricsRouter(mp)

	for _, id := range []string{"a", "b", "missing"} {
		serve(router, http.MethodGet, "/api/properties/"+id, nil)
	}

	m := collectMetric(t, reader, "http_server_request_total")
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 2)

	byClass := map[string]int64{}
	for _, dp := range sum.DataPoints {
		route, _ := dp.Attributes.Value(telemetry.AttrHTTPRoute)
		assert.Equal(t, "/api/properties/:id", route.AsString())
		class, _ := dp.Attributes.Value(attrStatusClass)
		byClass[class.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"2xx": 2, "4xx": 1}, byClass)
}

func TestHTTPMetrics_DurationAndSize(t *testing.T) {
	mp, reader := setupTestMeter(t)
	serve(metricsRouter(mp), http.MethodGet, "/api/properties/a", nil)

	duration := collectMetric(t, reader, "http_server_request_duration_seconds")
	require.NotNil(t, duration)
	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	_, hasStatus := hist.DataPoints[0].Attributes.Value(telemetry.AttrHTTPStatusCode)
	assert.False(t, hasStatus, "latency is labelled by route only")

	size := collectMetric(t, reader, "http_server_response_size_bytes")
	require.NotNil(t, size)
	sizeHist, ok := size.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, sizeHist.DataPoints, 1)
	assert.Greater(t, sizeHist.DataPoints[0].Sum, 0.0)
}

func TestHTTPMetrics_ActiveRequestsReturnToZero(t *testing.T) {
	mp, reader := setupTestMeter(t)
	serve(metricsRouter(mp), http.MethodGet, "/api/properties/a", nil)

	m := collectMetric(t, reader, "http_server_active_requests")
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	for _, dp := range sum.DataPoints {
		assert.Equal(t, int64(0), dp.Value)
	}
}

func TestHTTPMetrics_UnmatchedRoute(t *testing.T) {
	mp, reader := setupTestMeter(t)
	serve(metricsRouter(mp), http.MethodGet, "/nowhere", nil)

	m := collectMetric(t, reader, "http_server_request_total")
	require.NotNil(t, m)
	sum := m.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	route, _ := sum.DataPoints[0].Attributes.Value(telemetry.AttrHTTPRoute)
	assert.Equal(t, "unknown", route.AsString())
	code, _ := sum.DataPoints[0].Attributes.Value(telemetry.AttrHTTPStatusCode)
	assert.Equal(t, attribute.INT64, code.Type())
	assert.Equal(t, int64(http.StatusNotFound), code.AsInt64())
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{
		200: "2xx",
		204: "2xx",
		304: "3xx",
		404: "4xx",
		429: "4xx",
		503: "5xx",
		100: "other",
		0:   "other",
	}
	for status, want := range tests {
		assert.Equal(t, want, StatusClass(status), "status %d", status)
	}
}
