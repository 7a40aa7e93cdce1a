package observability

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"tailorcv/internal/ai"
	"tailorcv/internal/config"
	"tailorcv/internal/errors"
	"tailorcv/internal/workflow"
)

var (
	_ ai.Recorder      = (*Metrics)(nil)
	_ workflow.Metrics = (*Metrics)(nil)
)

func enabledConfig() config.ObservabilityConfig {
	return config.ObservabilityConfig{
		Enabled:     true,
		ServiceName: "tailorcv-test",
		SampleRate:  1.0,
		Metrics: config.MetricsConfig{
			Enabled:      true,
			AIOperations: true,
			TokenUsage:   true,
			Resumes:      true,
			RateLimits:   true,
		},
		Prometheus: config.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
	}
}

func newTestManager(t *testing.T, cfg config.ObservabilityConfig) (*Manager, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	spans := tracetest.NewInMemoryExporter()
	m, err := NewManager(cfg, "1.2.3", errors.NewLoggerWithWriter(&bytes.Buffer{}, 0),
		WithMetricReader(reader),
		WithSpanExporter(spans),
		WithoutPrometheusServer(),
		WithoutGlobals(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m, reader, spans
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsRecording(t *testing.T) {
	m, reader, _ := newTestManager(t, enabledConfig())
	ctx := context.Background()
	metrics := m.Metrics()

	metrics.RecordAIOperation(ctx, "tailor_resume", 2*time.Second, true, &ai.TokenUsage{InputTokens: 100, OutputTokens: 50, TotalTokens: 150})
	metrics.RecordAIOperation(ctx, "analyze_job", time.Second, false, nil)
	metrics.RecordScore(ctx, "modern", 82.5)
	metrics.RecordRender(ctx, "modern", "pdf", false)
	metrics.RecordRender(ctx, "harvard", "docx", true)
	metrics.RecordGenerated(ctx, true)
	metrics.RecordRateLimitHit(ctx, "/score")

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, got["tailorcv_ai_requests_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["tailorcv_ai_errors_total"]))
	assert.Equal(t, int64(2), sumOf(t, got["tailorcv_renders_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["tailorcv_resumes_generated_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["tailorcv_rate_limit_hits_total"]))

	tokens, ok := got["tailorcv_ai_tokens"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	assert.Len(t, tokens.DataPoints, 3, "one series per token type")

	scores, ok := got["tailorcv_ats_score"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, scores.DataPoints, 1)
	assert.Equal(t, 82.5, scores.DataPoints[0].Sum)
}

func TestMetricToggles(t *testing.T) {
	cfg := enabledConfig()
	cfg.Metrics.TokenUsage = false
	cfg.Metrics.RateLimits = false
	m, reader, _ := newTestManager(t, cfg)
	ctx := context.Background()

	m.Metrics().RecordAIOperation(ctx, "tailor_resume", time.Second, true, &ai.TokenUsage{TotalTokens: 10})
	m.Metrics().RecordRateLimitHit(ctx, "/score")

	got := collect(t, reader)
	assert.Contains(t, got, "tailorcv_ai_requests_total")
	assert.NotContains(t, got, "tailorcv_ai_tokens")
	assert.NotContains(t, got, "tailorcv_rate_limit_hits_total")
}

func TestPrometheusHandler(t *testing.T) {
	m, _, _ := newTestManager(t, enabledConfig())
	m.Metrics().RecordRender(context.Background(), "original", "pdf", false)

	handler := m.PrometheusHandler()
	require.NotNil(t, handler)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "tailorcv_renders")
	assert.Contains(t, body, `template="original"`)
	assert.Contains(t, body, "go_goroutines")
}

func TestHTTPMiddlewareRecordsSpans(t *testing.T) {
	m, _, spans := newTestManager(t, enabledConfig())

	handler := m.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	got := spans.GetSpans()
	require.Len(t, got, 1)
	assert.Equal(t, "GET /health", got[0].Name)
}

func TestTracerSpans(t *testing.T) {
	m, _, spans := newTestManager(t, enabledConfig())
	_, span := m.Tracer("tailorcv.test").Start(context.Background(), "score")
	span.End()

	got := spans.GetSpans()
	require.Len(t, got, 1)
	assert.Equal(t, "score", got[0].Name)
	assert.Equal(t, "tailorcv-test", resourceValue(got[0], "service.name"))
	assert.Equal(t, "1.2.3", resourceValue(got[0], "service.version"))
}

func resourceValue(s tracetest.SpanStub, key string) string {
	for _, kv := range s.Resource.Attributes() {
		if string(kv.Key) == key {
			return kv.Value.Emit()
		}
	}
	return ""
}

func TestDisabledManager(t *testing.T) {
	m, err := NewManager(config.ObservabilityConfig{}, "dev", errors.NewLoggerWithWriter(&bytes.Buffer{}, 0))
	require.NoError(t, err)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.Metrics().RecordAIOperation(ctx, "tailor_resume", time.Second, true, &ai.TokenUsage{})
		m.Metrics().RecordScore(ctx, "modern", 50)
		m.Metrics().RecordGenerated(ctx, false)
		m.Metrics().RecordRateLimitHit(ctx, "/score")
	})
	assert.Nil(t, m.PrometheusHandler())
	assert.NotNil(t, m.Tracer("x"))

	inner := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	assert.NotNil(t, m.HTTPMiddleware()(inner))
	assert.NoError(t, m.Shutdown(ctx))

	var nilManager *Manager
	assert.NotNil(t, nilManager.Metrics())
	assert.NoError(t, nilManager.Shutdown(ctx))
}

func TestServiceVersion(t *testing.T) {
	assert.Equal(t, "2.0.0", ServiceVersion(config.ObservabilityConfig{ServiceVersion: "2.0.0"}, "1.0.0"))
	assert.Equal(t, "1.0.0", ServiceVersion(config.ObservabilityConfig{}, "1.0.0"))
	assert.Equal(t, "dev", ServiceVersion(config.ObservabilityConfig{}, ""))
}

func TestServiceInstanceID(t *testing.T) {
	assert.Equal(t, "pod-7", serviceInstanceID(config.ObservabilityConfig{ServiceInstance: "pod-7"}))
	a := serviceInstanceID(config.ObservabilityConfig{ServiceName: "tailorcv"})
	b := serviceInstanceID(config.ObservabilityConfig{ServiceName: "tailorcv"})
	assert.NotEqual(t, a, b)
}
