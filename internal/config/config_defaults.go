package config

import (
	"time"

	"github.com/spf13/viper"
)

// operationDefaults are the per-operation AI defaults.
var operationDefaults = map[string]struct {
	timeout     time.Duration
	maxRetries  int
	temperature float64
}{
	"analyze":  {timeout: 60 * time.Second, maxRetries: 2, temperature: 0.1}, // extraction, keep it literal
	"tailor":   {timeout: 90 * time.Second, maxRetries: 2, temperature: 0.3}, // long generation
	"evaluate": {timeout: 60 * time.Second, maxRetries: 3, temperature: 0.1}, // factual comparison
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.maxRetries", 3)
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.useSystemPrompts", true)

	for op, d := range operationDefaults {
		prefix := "ai." + op + "."
		v.SetDefault(prefix+"provider", "gemini")
		v.SetDefault(prefix+"model", "")
		v.SetDefault(prefix+"apiKey", "")
		v.SetDefault(prefix+"timeout", d.timeout)
		v.SetDefault(prefix+"maxRetries", d.maxRetries)
		v.SetDefault(prefix+"temperature", d.temperature)
		v.SetDefault(prefix+"useSystemPrompts", true)
		setBreakerDefaults(v, prefix+"circuitBreaker.")
	}

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 120*time.Second) // generate waits on the LLM
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.tls.mode", "disabled")
	v.SetDefault("server.tls.certFile", "")
	v.SetDefault("server.tls.keyFile", "")
	v.SetDefault("server.tls.caFile", "")
	v.SetDefault("server.tls.minVersion", "1.2")
	v.SetDefault("server.tls.cipherSuites", []string{})
	v.SetDefault("server.tls.clientAuthPolicy", "require")
	v.SetDefault("server.apiKeys", []string{})
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.byAPIKey", false)
	v.SetDefault("server.rateLimit.window", 10*time.Minute)

	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "json")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown"})
	v.SetDefault("app.maxFileSize", 1024*1024)
	v.SetDefault("app.defaultTemplate", "original")
	v.SetDefault("app.defaultOutput", "pdf")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.dsn", "")

	v.SetDefault("research.enabled", false)
	v.SetDefault("research.apiKey", "")
	v.SetDefault("research.engineID", "")
	v.SetDefault("research.maxResults", 3)
	v.SetDefault("research.fetchPages", 2)
	v.SetDefault("research.timeout", 15*time.Second)
	v.SetDefault("research.maxPageBytes", 2*1024*1024)
	v.SetDefault("research.userAgent", "Mozilla/5.0 (compatible; tailorcv/1.0)")
	setBreakerDefaults(v, "research.circuitBreaker.")

	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.secrets.apiKeys", "")
	v.SetDefault("vault.secrets.geminiKey", "")
	v.SetDefault("vault.secrets.searchKey", "")
	v.SetDefault("vault.secrets.storageDSN", "")
	v.SetDefault("vault.secrets.tlsCerts", "")

	v.SetDefault("observability.enabled", false)
	v.SetDefault("observability.serviceName", "tailorcv")
	v.SetDefault("observability.serviceVersion", "")
	v.SetDefault("observability.serviceInstance", "")
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.prettyPrint", true)
	v.SetDefault("observability.sampleRate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)
	v.SetDefault("observability.metrics.aiOperations", true)
	v.SetDefault("observability.metrics.tokenUsage", true)
	v.SetDefault("observability.metrics.resumes", true)
	v.SetDefault("observability.metrics.rateLimits", true)
	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
}

func setBreakerDefaults(v *viper.Viper, prefix string) {
	v.SetDefault(prefix+"enabled", true)
	v.SetDefault(prefix+"maxRequests", 3)
	v.SetDefault(prefix+"interval", 60*time.Second)
	v.SetDefault(prefix+"timeout", 60*time.Second)
	v.SetDefault(prefix+"minRequests", 3)
	v.SetDefault(prefix+"failureThreshold", 0.6)
}
