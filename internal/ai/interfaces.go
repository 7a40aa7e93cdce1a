package ai

import (
	"context"
	"time"

	"tailorcv/internal/types"
)

// AIProvider interface for different AI implementations
// All methods return token usage information - callers can ignore it if not needed
type AIProvider interface {
	TailorResume(ctx context.Context, input types.TailorResumeInput) (types.TailorResumeOutput, *TokenUsage, error)
	EvaluateResume(ctx context.Context, input types.EvaluateResumeInput) (types.EvaluateResumeOutput, *TokenUsage, error)
	AnalyzeJob(ctx context.Context, input types.AnalyzeJobInput) (types.AnalyzeJobOutput, *TokenUsage, error)
	GetModelInfo(ctx context.Context) *ModelInfo
	Close() error
}

// Recorder receives one observation per AI call.
type Recorder interface {
	RecordAIOperation(ctx context.Context, operation string, duration time.Duration, success bool, usage *TokenUsage)
}

// breakerStats is implemented by providers that expose circuit breakers.
type breakerStats interface {
	GetCircuitBreakerStats() map[string]any
}
