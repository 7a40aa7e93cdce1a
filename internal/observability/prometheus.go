package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"tailorcv/internal/config"
	"tailorcv/internal/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

// PrometheusExporter bridges otel metrics to a private Prometheus registry.
type PrometheusExporter struct {
	config   config.PrometheusConfig
	registry *prometheus.Registry
	reader   metric.Reader
}

// NewPrometheusExporter creates the exporter. The registry also carries the
// Go runtime and process collectors.
func NewPrometheusExporter(cfg config.PrometheusConfig) (*PrometheusExporter, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}
	return &PrometheusExporter{config: cfg, registry: reg, reader: exporter}, nil
}

// Reader is the otel reader to register with the meter provider.
func (p *PrometheusExporter) Reader() metric.Reader {
	return p.reader
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *PrometheusExporter) endpoint() string {
	if p.config.Endpoint == "" {
		return "/metrics"
	}
	return p.config.Endpoint
}

// Serve starts a dedicated metrics listener in the background and returns
// its shutdown function.
func (p *PrometheusExporter) Serve(logger *errors.Logger) func(context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(p.endpoint(), p.Handler())

	server := &http.Server{
		Addr:              ":" + p.config.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("Starting Prometheus metrics server", "addr", server.Addr, "endpoint", p.endpoint())
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.LogError(err, "Prometheus server error", "addr", server.Addr)
		}
	}()

	return server.Shutdown
}
