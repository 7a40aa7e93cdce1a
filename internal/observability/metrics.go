package observability

import (
	"context"
	"fmt"
	"time"

	"tailorcv/internal/ai"
	"tailorcv/internal/config"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the application instruments. The zero value records nothing,
// so callers never need to check whether observability is enabled.
type Metrics struct {
	AIDuration metric.Float64Histogram
	AIRequests metric.Int64Counter
	AIErrors   metric.Int64Counter
	AITokens   metric.Int64Histogram

	Scores    metric.Float64Histogram
	Renders   metric.Int64Counter
	Generated metric.Int64Counter

	RateLimitHits metric.Int64Counter

	toggles config.MetricsConfig
}

var scoreBuckets = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

func newMetrics(meter metric.Meter, toggles config.MetricsConfig) (*Metrics, error) {
	m := &Metrics{toggles: toggles}
	if !toggles.Enabled {
		return m, nil
	}

	var err error
	if m.AIDuration, err = meter.Float64Histogram(
		"tailorcv_ai_processing_duration_seconds",
		metric.WithDescription("Time spent processing AI requests"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create AI duration metric: %w", err)
	}
	if m.AIRequests, err = meter.Int64Counter(
		"tailorcv_ai_requests_total",
		metric.WithDescription("Total number of AI requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create AI request metric: %w", err)
	}
	if m.AIErrors, err = meter.Int64Counter(
		"tailorcv_ai_errors_total",
		metric.WithDescription("Total number of failed AI requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create AI error metric: %w", err)
	}
	if m.AITokens, err = meter.Int64Histogram(
		"tailorcv_ai_tokens",
		metric.WithDescription("Token usage per AI request by token type"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create AI token metric: %w", err)
	}
	if m.Scores, err = meter.Float64Histogram(
		"tailorcv_ats_score",
		metric.WithDescription("ATS score of scored resumes"),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, fmt.Errorf("failed to create score metric: %w", err)
	}
	if m.Renders, err = meter.Int64Counter(
		"tailorcv_renders_total",
		metric.WithDescription("Total number of rendered documents"),
	); err != nil {
		return nil, fmt.Errorf("failed to create render metric: %w", err)
	}
	if m.Generated, err = meter.Int64Counter(
		"tailorcv_resumes_generated_total",
		metric.WithDescription("Total number of tailored resume generations"),
	); err != nil {
		return nil, fmt.Errorf("failed to create generation metric: %w", err)
	}
	if m.RateLimitHits, err = meter.Int64Counter(
		"tailorcv_rate_limit_hits_total",
		metric.WithDescription("Total number of rejected rate limited requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create rate limit metric: %w", err)
	}
	return m, nil
}

// RecordAIOperation records one provider call.
func (m *Metrics) RecordAIOperation(ctx context.Context, operation string, duration time.Duration, success bool, usage *ai.TokenUsage) {
	if m == nil || !m.toggles.AIOperations || m.AIRequests == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("success", success),
	)
	m.AIDuration.Record(ctx, duration.Seconds(), attrs)
	m.AIRequests.Add(ctx, 1, attrs)
	if !success {
		m.AIErrors.Add(ctx, 1, attrs)
	}

	if usage == nil || !m.toggles.TokenUsage {
		return
	}
	for _, t := range []struct {
		kind  string
		value int64
	}{
		{"input", usage.InputTokens},
		{"output", usage.OutputTokens},
		{"total", usage.TotalTokens},
	} {
		m.AITokens.Record(ctx, t.value, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("token_type", t.kind),
		))
	}
}

// RecordScore records a final ATS score.
func (m *Metrics) RecordScore(ctx context.Context, template string, score float64) {
	if m == nil || !m.toggles.Resumes || m.Scores == nil {
		return
	}
	m.Scores.Record(ctx, score, metric.WithAttributes(attribute.String("template", template)))
}

// RecordRender counts a rendered document.
func (m *Metrics) RecordRender(ctx context.Context, template, format string, fellBack bool) {
	if m == nil || !m.toggles.Resumes || m.Renders == nil {
		return
	}
	m.Renders.Add(ctx, 1, metric.WithAttributes(
		attribute.String("template", template),
		attribute.String("format", format),
		attribute.Bool("fell_back", fellBack),
	))
}

// RecordGenerated counts a finished generation.
func (m *Metrics) RecordGenerated(ctx context.Context, success bool) {
	if m == nil || !m.toggles.Resumes || m.Generated == nil {
		return
	}
	m.Generated.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordRateLimitHit counts a request rejected by the rate limiter.
func (m *Metrics) RecordRateLimitHit(ctx context.Context, path string) {
	if m == nil || !m.toggles.RateLimits || m.RateLimitHits == nil {
		return
	}
	m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("path", path)))
}
