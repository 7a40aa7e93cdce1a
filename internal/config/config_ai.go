package config

import (
	"fmt"
	"strings"
)

// AI operation names, also used as circuit breaker and metric labels.
const (
	OperationAnalyze  = "analyze"
	OperationTailor   = "tailor"
	OperationEvaluate = "evaluate"
)

// applyOperationDefaults applies global defaults to operation-specific configuration
func (c *Config) applyOperationDefaults(opCfg *OperationAIConfig) {
	if opCfg.Provider == "" {
		opCfg.Provider = c.AI.Provider
	}
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.Timeout == nil {
		timeout := c.AI.Timeout
		opCfg.Timeout = &timeout
	}
	if opCfg.APIKey == "" {
		opCfg.APIKey = c.AI.APIKey
	}
	if opCfg.MaxRetries == nil {
		retries := c.AI.MaxRetries
		opCfg.MaxRetries = &retries
	}
	if opCfg.Temperature == nil {
		temperature := c.AI.Temperature
		opCfg.Temperature = &temperature
	}
	if opCfg.UseSystemPrompts == nil {
		use := c.AI.UseSystemPrompts
		opCfg.UseSystemPrompts = &use
	}
}

// Operation returns the resolved configuration for an AI operation.
func (c *Config) Operation(name string) (OperationAIConfig, error) {
	var op OperationAIConfig
	switch name {
	case OperationAnalyze:
		op = c.AI.Analyze
	case OperationTailor:
		op = c.AI.Tailor
	case OperationEvaluate:
		op = c.AI.Evaluate
	default:
		return OperationAIConfig{}, fmt.Errorf("unknown AI operation: %s", name)
	}
	c.applyOperationDefaults(&op)
	return op, nil
}

// GetAnalyzeConfig returns the AI configuration for job analysis
func (c *Config) GetAnalyzeConfig() OperationAIConfig {
	op, _ := c.Operation(OperationAnalyze)
	return op
}

// GetTailorConfig returns the AI configuration for résumé generation
func (c *Config) GetTailorConfig() OperationAIConfig {
	op, _ := c.Operation(OperationTailor)
	return op
}

// GetEvaluateConfig returns the AI configuration for truthfulness checks
func (c *Config) GetEvaluateConfig() OperationAIConfig {
	op, _ := c.Operation(OperationEvaluate)
	return op
}

// RequireAI reports an error when an AI-backed command cannot run. Scoring
// and rendering never call it.
func (c *Config) RequireAI() error {
	var missing []string
	for _, name := range []string{OperationAnalyze, OperationTailor, OperationEvaluate} {
		op, _ := c.Operation(name)
		if op.APIKey == "" {
			missing = append(missing, name)
		}
		if op.Provider != "gemini" {
			return fmt.Errorf("unsupported AI provider for %s: %s", name, op.Provider)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("AI API key is required for %s (set TAILORCV_AI_APIKEY or GEMINI_API_KEY)", strings.Join(missing, ", "))
	}
	return nil
}

// RequireResearch reports an error when research is enabled without
// search credentials.
func (c *Config) RequireResearch() error {
	if !c.Research.Enabled {
		return fmt.Errorf("research is disabled (set research.enabled)")
	}
	if c.Research.APIKey == "" || c.Research.EngineID == "" {
		return fmt.Errorf("research requires research.apiKey and research.engineID")
	}
	return nil
}
