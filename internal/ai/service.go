package ai

import (
	"context"
	"fmt"
	"time"

	"tailorcv/internal/config"
	"tailorcv/internal/errors"
	"tailorcv/internal/types"
)

// Service runs one AI operation (analyze, tailor or evaluate) with the
// operation's timeout, and reports each call to an optional Recorder.
type Service struct {
	Provider  AIProvider // Exported for access from server package
	config    *config.OperationAIConfig
	operation string
	recorder  Recorder
	logger    *errors.Logger
}

// NewService creates a new AI service instance with configuration for a specific operation
func NewService(cfg *config.OperationAIConfig, operationType string, logger *errors.Logger, opts ...ProviderOption) (*Service, error) {
	logger.Debug("Initializing AI service",
		"provider", cfg.Provider,
		"operation_type", operationType,
		"model", cfg.Model,
		"temperature", *cfg.Temperature,
		"timeout", *cfg.Timeout,
		"max_retries", *cfg.MaxRetries,
		"use_system_prompts", *cfg.UseSystemPrompts)

	var provider AIProvider
	var err error
	switch cfg.Provider {
	case "gemini":
		provider, err = NewGeminiProvider(cfg, operationType, logger, opts...)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", cfg.Provider), nil)
	}
	if err != nil {
		return nil, err
	}

	return NewServiceWithProvider(provider, cfg, operationType, logger), nil
}

// NewServiceWithProvider wraps an existing provider.
func NewServiceWithProvider(provider AIProvider, cfg *config.OperationAIConfig, operationType string, logger *errors.Logger) *Service {
	return &Service{
		Provider:  provider,
		config:    cfg,
		operation: operationType,
		logger:    logger,
	}
}

// WithRecorder sets the metrics recorder and returns s.
func (s *Service) WithRecorder(r Recorder) *Service {
	s.recorder = r
	return s
}

// Operation is the configured operation name.
func (s *Service) Operation() string {
	return s.operation
}

// AnalyzeJob extracts the keyword signal from a posting.
func (s *Service) AnalyzeJob(ctx context.Context, jobDescription string) (types.AnalyzeJobOutput, error) {
	return run(ctx, s, "analyze_job", func(ctx context.Context) (types.AnalyzeJobOutput, *TokenUsage, error) {
		return s.Provider.AnalyzeJob(ctx, types.AnalyzeJobInput{JobDescription: jobDescription})
	})
}

// TailorResume generates a tailored markdown résumé.
func (s *Service) TailorResume(ctx context.Context, input types.TailorResumeInput) (types.TailorResumeOutput, error) {
	return run(ctx, s, "tailor_resume", func(ctx context.Context) (types.TailorResumeOutput, *TokenUsage, error) {
		return s.Provider.TailorResume(ctx, input)
	})
}

// EvaluateResume checks a tailored résumé against its base.
func (s *Service) EvaluateResume(ctx context.Context, input types.EvaluateResumeInput) (types.EvaluateResumeOutput, error) {
	return run(ctx, s, "evaluate_resume", func(ctx context.Context) (types.EvaluateResumeOutput, *TokenUsage, error) {
		return s.Provider.EvaluateResume(ctx, input)
	})
}

func run[Out any](ctx context.Context, s *Service, name string, fn func(context.Context) (Out, *TokenUsage, error)) (Out, error) {
	if s.config != nil && s.config.Timeout != nil && *s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *s.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	out, usage, err := fn(ctx)
	duration := time.Since(start)

	if s.recorder != nil {
		s.recorder.RecordAIOperation(ctx, name, duration, err == nil, usage)
	}
	if err != nil {
		return out, err
	}

	args := []any{"operation", name, "duration_ms", duration.Milliseconds()}
	if usage != nil {
		args = append(args, "total_tokens", usage.TotalTokens)
	}
	s.logger.Debug("AI operation completed", args...)
	return out, nil
}

// GetModelInfo returns information about the AI model for health checks
func (s *Service) GetModelInfo(ctx context.Context) *ModelInfo {
	return s.Provider.GetModelInfo(ctx)
}

// CircuitBreakerStats returns the provider's breaker statistics, if any.
func (s *Service) CircuitBreakerStats() map[string]any {
	if b, ok := s.Provider.(breakerStats); ok {
		return b.GetCircuitBreakerStats()
	}
	return map[string]any{"enabled": false}
}

// Close releases the provider.
func (s *Service) Close() error {
	return s.Provider.Close()
}
