package ai

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"tailorcv/internal/breaker"
	"tailorcv/internal/config"
	appErrors "tailorcv/internal/errors"
	"tailorcv/internal/types"
)

const (
	modelCheckTimeout = 10 * time.Second
	maxBackoff        = 30 * time.Second
)

// The model-info breaker guards health checks only, so it trips late.
var modelBreakerPolicy = breaker.Policy{MinRequests: 5, FailureThreshold: 0.8}

// GeminiProvider implements AIProvider for Google Gemini
type GeminiProvider struct {
	client         *genai.Client
	config         *config.OperationAIConfig
	operation      string
	circuitBreaker *breaker.Breaker[*genai.GenerateContentResponse]
	modelBreaker   *breaker.Breaker[*genai.Model]
	logger         *appErrors.Logger
}

// Ensure GeminiProvider implements AIProvider
var _ AIProvider = (*GeminiProvider)(nil)

// ProviderOption adjusts the Gemini client.
type ProviderOption func(*genai.ClientConfig)

// WithBaseURL points the client at another Gemini API endpoint.
func WithBaseURL(url string) ProviderOption {
	return func(c *genai.ClientConfig) { c.HTTPOptions.BaseURL = url }
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(c *genai.ClientConfig) { c.HTTPClient = client }
}

// NewGeminiProvider creates a new Gemini provider instance for a specific operation
func NewGeminiProvider(cfg *config.OperationAIConfig, operationType string, logger *appErrors.Logger, opts ...ProviderOption) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, appErrors.NewConfigError(appErrors.ErrCodeMissingAPIKey,
			fmt.Sprintf("AI API key is required for %s", operationType), nil)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: *cfg.Timeout},
	}
	for _, opt := range opts {
		opt(clientConfig)
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, appErrors.NewAIError(appErrors.ErrCodeAIServiceFailed,
			"Failed to create Gemini client", err)
	}

	return &GeminiProvider{
		client:         client,
		config:         cfg,
		operation:      operationType,
		circuitBreaker: breaker.New[*genai.GenerateContentResponse]("AI-"+operationType, cfg.CircuitBreaker, logger),
		modelBreaker:   breaker.WithPolicy[*genai.Model]("AI-Model-"+operationType, cfg.CircuitBreaker, modelBreakerPolicy, logger),
		logger:         logger,
	}, nil
}

// ModelInfo represents information about the AI model
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}

// GetModelInfo checks the readiness and availability of the configured model
func (g *GeminiProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	modelInfo := &ModelInfo{
		Name:      g.config.Model,
		Available: false,
	}

	checkCtx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()

	model, err := g.modelBreaker.Execute(func() (*genai.Model, error) {
		return g.client.Models.Get(checkCtx, g.config.Model, &genai.GetModelConfig{})
	})
	if err != nil {
		modelInfo.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed",
			"model", g.config.Model,
			"operation", g.operation,
			"error", err.Error())
		return modelInfo
	}

	modelInfo.Available = true
	modelInfo.DisplayName = model.DisplayName
	modelInfo.Version = model.Version

	g.logger.Debug("Model availability check successful",
		"model", g.config.Model,
		"operation", g.operation,
		"display_name", modelInfo.DisplayName,
		"version", modelInfo.Version)

	return modelInfo
}

// backoff is the wait before retry attempt n (n >= 1): exponential with up
// to 10% jitter, capped at maxBackoff.
func backoff(attempt int) time.Duration {
	baseDelay := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	jitter := time.Duration(0)
	if jitterMax := int64(float64(baseDelay) * 0.1); jitterMax > 0 {
		if j, err := rand.Int(rand.Reader, big.NewInt(jitterMax)); err == nil {
			jitter = time.Duration(j.Int64())
		}
	}
	return min(baseDelay+jitter, maxBackoff)
}

// executeWithRetry executes an AI operation with retry logic and exponential backoff
func (g *GeminiProvider) executeWithRetry(ctx context.Context, operation string, fn func() (*genai.GenerateContentResponse, error)) (*genai.GenerateContentResponse, error) {
	var lastErr error
	maxRetries := *g.config.MaxRetries

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("Retrying AI operation",
				"operation", operation,
				"attempt", attempt,
				"max_retries", maxRetries,
				"error", lastErr.Error())

			select {
			case <-time.After(backoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				g.logger.Info("AI operation succeeded after retry",
					"operation", operation,
					"total_attempts", attempt+1)
			}
			return result, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			g.logger.Debug("Error is not retryable, stopping retry attempts",
				"operation", operation,
				"error", err.Error())
			break
		}
	}

	g.logger.LogError(lastErr, "AI operation failed after all retry attempts",
		"operation", operation,
		"total_attempts", maxRetries+1)

	return nil, fmt.Errorf("operation '%s' failed after %d retries: %w", operation, maxRetries, lastErr)
}

// isRetryableError reports whether err is transient: network failures and
// 429 or 5xx responses from the API.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if code, ok := statusCode(err); ok {
		switch code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	return false
}

func statusCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, true
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code, true
	}
	return 0, false
}

// executeAIOperation is a generic helper to run AI operations with common tracing, circuit breaker, and parsing logic.
func executeAIOperation[Out any](
	ctx context.Context,
	g *GeminiProvider,
	operationName string,
	userPrompt string,
	systemPrompt string,
	genaiConfig *genai.GenerateContentConfig,
	spanAttributes ...attribute.KeyValue,
) (Out, *TokenUsage, error) {
	var output Out
	tracer := otel.Tracer("tailorcv.ai.gemini")
	ctx, span := tracer.Start(ctx, "gemini."+operationName)
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.config.Model),
		attribute.String("ai.operation", g.operation),
		attribute.Float64("ai.temperature", float64(*g.config.Temperature)),
	)
	span.SetAttributes(spanAttributes...)

	if *g.config.UseSystemPrompts && systemPrompt != "" {
		genaiConfig.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	} else if systemPrompt != "" {
		userPrompt = systemPrompt + "\n\n" + userPrompt
	}

	result, err := g.circuitBreaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return g.executeWithRetry(ctx, operationName, func() (*genai.GenerateContentResponse, error) {
			return g.client.Models.GenerateContent(ctx, g.config.Model, genai.Text(userPrompt), genaiConfig)
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		code := appErrors.ErrCodeAIServiceFailed
		if errors.Is(err, context.DeadlineExceeded) {
			code = appErrors.ErrCodeAITimeout
		}
		return output, nil, appErrors.NewAIError(code, "Failed to generate content for "+operationName, err)
	}

	if err := json.Unmarshal([]byte(stripCodeFence(result.Text())), &output); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return output, nil, appErrors.NewAIError(appErrors.ErrCodeAIResponseParse, "Failed to parse AI response for "+operationName, err)
	}

	tokenUsage := extractTokenUsage(result)
	if tokenUsage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", tokenUsage.InputTokens),
			attribute.Int64("ai.tokens.output", tokenUsage.OutputTokens),
			attribute.Int64("ai.tokens.total", tokenUsage.TotalTokens),
		)
	}

	span.SetAttributes(attribute.Bool("success", true))
	return output, tokenUsage, nil
}

// stripCodeFence removes a ```json fence some models wrap JSON in even
// when a response schema is set.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// TailorResume generates a tailored résumé in the renderer's markdown dialect.
func (g *GeminiProvider) TailorResume(ctx context.Context, input types.TailorResumeInput) (types.TailorResumeOutput, *TokenUsage, error) {
	systemPrompt, userPrompt := g.promptsForTailor(input)

	output, tokenUsage, err := executeAIOperation[types.TailorResumeOutput](
		ctx,
		g,
		"tailor_resume",
		userPrompt,
		systemPrompt,
		g.buildTailorSchema(),
		attribute.Int("input.resume_length", len(input.BaseResume)),
		attribute.Int("input.job_length", len(input.JobDescription)),
		attribute.Int("input.keywords", len(input.Keywords)),
		attribute.Bool("input.company_brief", input.CompanyBrief != ""),
	)
	if err != nil {
		return types.TailorResumeOutput{}, nil, err
	}

	output.TailoredResume = strings.TrimSpace(output.TailoredResume)
	if output.TailoredResume == "" {
		return types.TailorResumeOutput{}, tokenUsage, appErrors.NewAIError(appErrors.ErrCodeAIResponseParse,
			"AI returned an empty resume", nil)
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.Int("output.tailored_length", len(output.TailoredResume)),
			attribute.Int("output.used_keywords", len(output.UsedKeywords)),
		)
	}

	return output, tokenUsage, nil
}

// EvaluateResume implements AIProvider interface for resume evaluation
func (g *GeminiProvider) EvaluateResume(ctx context.Context, input types.EvaluateResumeInput) (types.EvaluateResumeOutput, *TokenUsage, error) {
	systemPrompt, userPrompt := g.promptsForEvaluate(input.BaseResume, input.TailoredResume)

	output, tokenUsage, err := executeAIOperation[types.EvaluateResumeOutput](
		ctx,
		g,
		"evaluate_resume",
		userPrompt,
		systemPrompt,
		g.buildEvaluateSchema(),
		attribute.Int("input.base_resume_length", len(input.BaseResume)),
		attribute.Int("input.tailored_resume_length", len(input.TailoredResume)),
	)
	if err != nil {
		return types.EvaluateResumeOutput{}, nil, err
	}
	if output.Findings == nil {
		output.Findings = []types.EvaluationFinding{}
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.Int("findings_count", len(output.Findings)))
	}

	return output, tokenUsage, nil
}

// AnalyzeJob extracts the keyword signal and filing details of a posting.
func (g *GeminiProvider) AnalyzeJob(ctx context.Context, input types.AnalyzeJobInput) (types.AnalyzeJobOutput, *TokenUsage, error) {
	systemPrompt, userPrompt := g.promptsForAnalyze(input.JobDescription)

	output, tokenUsage, err := executeAIOperation[types.AnalyzeJobOutput](
		ctx,
		g,
		"analyze_job",
		userPrompt,
		systemPrompt,
		g.buildAnalyzeSchema(),
		attribute.Int("input.job_length", len(input.JobDescription)),
	)
	if err != nil {
		return types.AnalyzeJobOutput{}, nil, err
	}

	output.Keywords = dedupeTerms(output.Keywords)
	output.RequiredSkills = dedupeTerms(output.RequiredSkills)

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.Int("output.keywords", len(output.Keywords)),
			attribute.Int("output.required_skills", len(output.RequiredSkills)),
		)
	}

	return output, tokenUsage, nil
}

// dedupeTerms trims terms and drops empty and case-insensitive duplicates,
// keeping the first spelling.
func dedupeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (g *GeminiProvider) GetCircuitBreakerStats() map[string]any {
	return map[string]any{
		"ai_operations":    g.circuitBreaker.Stats(),
		"model_operations": g.modelBreaker.Stats(),
		"overall_healthy":  g.circuitBreaker.Healthy() && g.modelBreaker.Healthy(),
	}
}

// Close implements AIProvider interface
func (g *GeminiProvider) Close() error {
	return nil
}

func (g *GeminiProvider) withTemperature(cfg *genai.GenerateContentConfig) *genai.GenerateContentConfig {
	if *g.config.Temperature > 0 {
		temperature := *g.config.Temperature
		cfg.Temperature = &temperature
	}
	return cfg
}

func stringArray() *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}
}

// buildTailorSchema creates the schema for tailor requests
func (g *GeminiProvider) buildTailorSchema() *genai.GenerateContentConfig {
	return g.withTemperature(&genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"tailoredResume": {Type: genai.TypeString},
				"changes":        stringArray(),
				"usedKeywords":   stringArray(),
			},
			Required: []string{"tailoredResume", "changes", "usedKeywords"},
		},
	})
}

// buildEvaluateSchema creates the schema for evaluate requests
func (g *GeminiProvider) buildEvaluateSchema() *genai.GenerateContentConfig {
	return g.withTemperature(&genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"summary": {Type: genai.TypeString},
				"findings": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"type": {
								Type: genai.TypeString,
								Enum: []string{"Overclaim", "Invention", "Incorrect Linking"},
							},
							"description": {Type: genai.TypeString},
							"evidence":    {Type: genai.TypeString},
						},
						Required: []string{"type", "description", "evidence"},
					},
				},
			},
			Required: []string{"summary", "findings"},
		},
	})
}

// buildAnalyzeSchema creates the schema for job analysis requests
func (g *GeminiProvider) buildAnalyzeSchema() *genai.GenerateContentConfig {
	return g.withTemperature(&genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"title":          {Type: genai.TypeString},
				"company":        {Type: genai.TypeString},
				"seniority":      {Type: genai.TypeString},
				"keywords":       stringArray(),
				"requiredSkills": stringArray(),
				"summary":        {Type: genai.TypeString},
			},
			Required: []string{"title", "company", "keywords", "requiredSkills"},
		},
	})
}

func (g *GeminiProvider) promptsForTailor(input types.TailorResumeInput) (string, string) {
	system := resolvePrompt(g.config.Prompts.System, DefaultSystemPrompts.TailorResume)
	user := resolvePrompt(g.config.Prompts.User, DefaultUserPrompts.TailorResume)
	company := input.CompanyBrief
	if company == "" {
		company = "(none)"
	}
	return system, fmt.Sprintf(user,
		input.BaseResume,
		input.JobDescription,
		termList(input.Keywords),
		termList(input.RequiredSkills),
		company)
}

func (g *GeminiProvider) promptsForEvaluate(baseResume, tailoredResume string) (string, string) {
	system := resolvePrompt(g.config.Prompts.System, DefaultSystemPrompts.EvaluateResume)
	user := resolvePrompt(g.config.Prompts.User, DefaultUserPrompts.EvaluateResume)
	return system, fmt.Sprintf(user, baseResume, tailoredResume)
}

func (g *GeminiProvider) promptsForAnalyze(jobDescription string) (string, string) {
	system := resolvePrompt(g.config.Prompts.System, DefaultSystemPrompts.AnalyzeJob)
	user := resolvePrompt(g.config.Prompts.User, DefaultUserPrompts.AnalyzeJob)
	return system, fmt.Sprintf(user, jobDescription)
}

func termList(terms []string) string {
	if len(terms) == 0 {
		return "(none)"
	}
	return strings.Join(terms, ", ")
}

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// extractTokenUsage extracts token usage information from Gemini API response
func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}

// resolvePrompt returns the configured prompt, already resolved from file
// or inline text at config load, or the built-in default.
func resolvePrompt(fromConfig, fromDefault string) string {
	if fromConfig != "" {
		return fromConfig
	}
	return fromDefault
}
