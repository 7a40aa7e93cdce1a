package observability

import (
	"os"
	"time"

	"tailorcv/internal/config"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

const defaultCollectionInterval = 15 * time.Second

// ServiceVersion falls back to the build version when the config leaves it empty.
func ServiceVersion(cfg config.ObservabilityConfig, buildVersion string) string {
	if cfg.ServiceVersion != "" {
		return cfg.ServiceVersion
	}
	if buildVersion == "" {
		return "dev"
	}
	return buildVersion
}

// serviceInstanceID is the configured instance id, else hostname plus a
// random suffix so replicas never collide.
func serviceInstanceID(cfg config.ObservabilityConfig) string {
	if cfg.ServiceInstance != "" {
		return cfg.ServiceInstance
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = cfg.ServiceName
	}
	return host + "-" + uuid.NewString()[:8]
}

func newResource(cfg config.ObservabilityConfig, buildVersion string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(ServiceVersion(cfg, buildVersion)),
			semconv.ServiceInstanceID(serviceInstanceID(cfg)),
		),
	)
}

func collectionInterval(cfg config.ObservabilityConfig) time.Duration {
	if cfg.Metrics.CollectionInterval > 0 {
		return cfg.Metrics.CollectionInterval
	}
	return defaultCollectionInterval
}
