package observability

import (
	"context"
	"fmt"
	"net/http"

	"tailorcv/internal/config"
	"tailorcv/internal/errors"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Manager owns the tracer and meter providers and the application metrics.
type Manager struct {
	config         config.ObservabilityConfig
	version        string
	logger         *errors.Logger
	resource       *resource.Resource
	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	metrics        *Metrics
	prometheus     *PrometheusExporter
	shutdownFuncs  []func(context.Context) error

	extraReaders  []sdkmetric.Reader
	spanExporter  trace.SpanExporter
	skipPromServe bool
	skipGlobals   bool
}

// Option customizes a Manager.
type Option func(*Manager)

// WithMetricReader adds a metric reader alongside the configured ones.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(m *Manager) { m.extraReaders = append(m.extraReaders, r) }
}

// WithSpanExporter replaces the configured span exporter.
func WithSpanExporter(e trace.SpanExporter) Option {
	return func(m *Manager) { m.spanExporter = e }
}

// WithoutPrometheusServer keeps the Prometheus exporter but does not start
// its listener. The handler stays available from PrometheusHandler.
func WithoutPrometheusServer() Option {
	return func(m *Manager) { m.skipPromServe = true }
}

// WithoutGlobals leaves the otel global providers untouched.
func WithoutGlobals() Option {
	return func(m *Manager) { m.skipGlobals = true }
}

// NewManager sets up tracing and metrics. A disabled config returns a
// manager whose metrics and middleware are no-ops.
func NewManager(cfg config.ObservabilityConfig, version string, logger *errors.Logger, opts ...Option) (*Manager, error) {
	m := &Manager{config: cfg, version: version, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	if !cfg.Enabled {
		m.metrics = &Metrics{}
		return m, nil
	}

	res, err := newResource(cfg, version)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	m.resource = res

	if err := m.initTracing(); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if err := m.initMetrics(); err != nil {
		_ = m.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	logger.Debug("Observability initialized",
		"service", cfg.ServiceName,
		"console", cfg.ConsoleOutput,
		"otlp", cfg.OTLP.Enabled,
		"prometheus", cfg.Prometheus.Enabled)
	return m, nil
}

func (m *Manager) initTracing() error {
	exporter := m.spanExporter
	if exporter == nil {
		var err error
		exporter, err = m.newSpanExporter()
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
	}

	opts := []trace.TracerProviderOption{
		trace.WithResource(m.resource),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(m.config.SampleRate))),
	}
	if m.spanExporter != nil {
		opts = append(opts, trace.WithSyncer(exporter))
	} else {
		opts = append(opts, trace.WithBatcher(exporter))
	}
	tp := trace.NewTracerProvider(opts...)

	if !m.skipGlobals {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{}))
	}

	m.tracerProvider = tp
	m.shutdownFuncs = append(m.shutdownFuncs, tp.Shutdown)
	return nil
}

func (m *Manager) newSpanExporter() (trace.SpanExporter, error) {
	switch {
	case m.config.ConsoleOutput:
		var opts []stdouttrace.Option
		if m.config.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		return stdouttrace.New(opts...)
	case m.config.OTLP.Enabled:
		return m.newOTLPTraceExporter()
	default:
		return noopSpanExporter{}, nil
	}
}

func (m *Manager) initMetrics() error {
	readers, err := m.metricReaders()
	if err != nil {
		return err
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(m.resource)}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}
	mp := sdkmetric.NewMeterProvider(opts...)
	if !m.skipGlobals {
		otel.SetMeterProvider(mp)
	}
	m.meterProvider = mp
	m.shutdownFuncs = append(m.shutdownFuncs, mp.Shutdown)

	metrics, err := newMetrics(mp.Meter(m.config.ServiceName), m.config.Metrics)
	if err != nil {
		return err
	}
	m.metrics = metrics
	return nil
}

func (m *Manager) metricReaders() ([]sdkmetric.Reader, error) {
	readers := append([]sdkmetric.Reader{}, m.extraReaders...)
	interval := collectionInterval(m.config)

	if m.config.ConsoleOutput {
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create console metric exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
	}

	if m.config.OTLP.Enabled {
		exporter, err := m.newOTLPMetricExporter()
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
	}

	if m.config.Prometheus.Enabled {
		prom, err := NewPrometheusExporter(m.config.Prometheus)
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		m.prometheus = prom
		readers = append(readers, prom.Reader())
		if !m.skipPromServe {
			m.shutdownFuncs = append(m.shutdownFuncs, prom.Serve(m.logger))
		}
	}

	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewManualReader())
	}
	return readers, nil
}

func (m *Manager) newOTLPTraceExporter() (trace.SpanExporter, error) {
	otlp := m.config.OTLP
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(otlp.Endpoint)}
	if otlp.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(otlp.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(otlp.Headers))
	}
	return otlptracehttp.New(context.Background(), opts...)
}

func (m *Manager) newOTLPMetricExporter() (sdkmetric.Exporter, error) {
	otlp := m.config.OTLP
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(otlp.Endpoint)}
	if otlp.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(otlp.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(otlp.Headers))
	}
	return otlpmetrichttp.New(context.Background(), opts...)
}

// Metrics returns the application metrics. It is never nil.
func (m *Manager) Metrics() *Metrics {
	if m == nil || m.metrics == nil {
		return &Metrics{}
	}
	return m.metrics
}

// PrometheusHandler serves the scrape endpoint, or nil when Prometheus is off.
func (m *Manager) PrometheusHandler() http.Handler {
	if m == nil || m.prometheus == nil {
		return nil
	}
	return m.prometheus.Handler()
}

// HTTPMiddleware wraps handlers with otelhttp instrumentation.
func (m *Manager) HTTPMiddleware() func(http.Handler) http.Handler {
	if m == nil || !m.config.Enabled {
		return func(h http.Handler) http.Handler { return h }
	}
	return otelhttp.NewMiddleware(
		m.config.ServiceName,
		otelhttp.WithTracerProvider(m.tracerProvider),
		otelhttp.WithMeterProvider(m.meterProvider),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Tracer returns a tracer for the service.
func (m *Manager) Tracer(name string) oteltrace.Tracer {
	if m == nil || m.tracerProvider == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return m.tracerProvider.Tracer(name)
}

// Shutdown flushes and stops all exporters, in reverse start order.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	var firstErr error
	for i := len(m.shutdownFuncs) - 1; i >= 0; i-- {
		if err := m.shutdownFuncs[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.shutdownFuncs = nil
	return firstErr
}

type noopSpanExporter struct{}

func (noopSpanExporter) ExportSpans(context.Context, []trace.ReadOnlySpan) error { return nil }

func (noopSpanExporter) Shutdown(context.Context) error { return nil }
