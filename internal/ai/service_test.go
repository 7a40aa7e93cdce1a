package ai

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"tailorcv/internal/config"
	"tailorcv/internal/errors"
	"tailorcv/internal/types"
)

// Helper functions to create pointers for test values
func timePtr(d time.Duration) *time.Duration { return &d }
func intPtr(i int) *int                      { return &i }
func float32Ptr(f float32) *float32          { return &f }
func boolPtr(b bool) *bool                   { return &b }

func testLogger() *errors.Logger {
	logger, _ := errors.New("debug")
	return logger
}

func testOpConfig() *config.OperationAIConfig {
	return &config.OperationAIConfig{
		Provider:         "gemini",
		Model:            "gemini-test",
		Timeout:          timePtr(30 * time.Second),
		APIKey:           "test-key",
		MaxRetries:       intPtr(1),
		Temperature:      float32Ptr(0.2),
		UseSystemPrompts: boolPtr(true),
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      5,
			Interval:         30 * time.Second,
			Timeout:          45 * time.Second,
			MinRequests:      2,
			FailureThreshold: 0.8,
		},
	}
}

func TestNewServiceCircuitBreakers(t *testing.T) {
	service, err := NewService(testOpConfig(), "tailor", testLogger())
	require.NoError(t, err)

	stats := service.CircuitBreakerStats()
	aiStats, ok := stats["ai_operations"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "AI-tailor", aiStats["name"])

	modelStats, ok := stats["model_operations"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "AI-Model-tailor", modelStats["name"])
	assert.Equal(t, true, stats["overall_healthy"])
	assert.Equal(t, "tailor", service.Operation())
}

func TestNewServiceErrors(t *testing.T) {
	cfg := testOpConfig()
	cfg.Provider = "openai"
	_, err := NewService(cfg, "analyze", testLogger())
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidConfig))

	cfg = testOpConfig()
	cfg.APIKey = ""
	_, err = NewService(cfg, "analyze", testLogger())
	assert.True(t, errors.IsCode(err, errors.ErrCodeMissingAPIKey))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", stderrors.New("bad prompt"), false},
		{"network timeout", fmt.Errorf("post: %w", timeoutErr{}), true},
		{"genai 429", genai.APIError{Code: http.StatusTooManyRequests}, true},
		{"genai 503 pointer", &genai.APIError{Code: http.StatusServiceUnavailable}, true},
		{"genai 400", genai.APIError{Code: http.StatusBadRequest}, false},
		{"googleapi 502", &googleapi.Error{Code: http.StatusBadGateway}, true},
		{"googleapi 403", &googleapi.Error{Code: http.StatusForbidden}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableError(tt.err))
		})
	}
}

func TestBackoff(t *testing.T) {
	assert.GreaterOrEqual(t, backoff(1), time.Second)
	assert.Less(t, backoff(1), 1100*time.Millisecond)
	assert.GreaterOrEqual(t, backoff(3), 4*time.Second)
	assert.Equal(t, maxBackoff, backoff(10))
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("  {\"a\":1} "))
	assert.Equal(t, `[1]`, stripCodeFence("```\n[1]\n```"))
}

func TestDedupeTerms(t *testing.T) {
	assert.Equal(t, []string{"Go", "kubernetes"}, dedupeTerms([]string{" Go", "kubernetes", "", "go", "Kubernetes"}))
	assert.Empty(t, dedupeTerms(nil))
}

func TestPrompts(t *testing.T) {
	g := &GeminiProvider{config: testOpConfig()}

	system, user := g.promptsForTailor(types.TailorResumeInput{
		BaseResume:     "# Jane Doe",
		JobDescription: "Go engineer",
		Keywords:       []string{"Go", "gRPC"},
	})
	assert.Equal(t, DefaultSystemPrompts.TailorResume, system)
	assert.Contains(t, user, "# Jane Doe")
	assert.Contains(t, user, "**Target Keywords:** Go, gRPC")
	assert.Contains(t, user, "**Required Skills:** (none)")
	assert.NotContains(t, user, "%!", "every placeholder is filled")

	g.config.Prompts = config.PromptConfig{System: "be brief", User: "JD: %s"}
	system, user = g.promptsForAnalyze("Go engineer")
	assert.Equal(t, "be brief", system)
	assert.Equal(t, "JD: Go engineer", user)
}

func TestSchemas(t *testing.T) {
	g := &GeminiProvider{config: testOpConfig()}

	analyze := g.buildAnalyzeSchema()
	assert.Equal(t, "application/json", analyze.ResponseMIMEType)
	assert.Contains(t, analyze.ResponseSchema.Required, "keywords")
	require.NotNil(t, analyze.Temperature)
	assert.InDelta(t, 0.2, *analyze.Temperature, 1e-6)

	tailor := g.buildTailorSchema()
	assert.Contains(t, tailor.ResponseSchema.Properties, "tailoredResume")

	g.config.Temperature = float32Ptr(0)
	assert.Nil(t, g.buildEvaluateSchema().Temperature, "zero leaves the model default")
}

// fakeGemini serves generateContent with the given JSON payloads in order.
func fakeGemini(t *testing.T, statuses []int, payloads ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if n < len(statuses) && statuses[n] != http.StatusOK {
			w.WriteHeader(statuses[n])
			_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"injected","status":"UNAVAILABLE"}}`, statuses[n])
			return
		}
		payload := payloads[min(n, len(payloads)-1)]
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{"role": "model", "parts": []map[string]any{{"text": payload}}},
			}},
			"usageMetadata": map[string]any{"promptTokenCount": 120, "candidatesTokenCount": 30, "totalTokenCount": 150},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

type recorded struct {
	operation string
	success   bool
	usage     *TokenUsage
}

type fakeRecorder struct{ calls []recorded }

func (f *fakeRecorder) RecordAIOperation(_ context.Context, op string, _ time.Duration, success bool, usage *TokenUsage) {
	f.calls = append(f.calls, recorded{op, success, usage})
}

func TestAnalyzeJobAgainstFakeAPI(t *testing.T) {
	srv, calls := fakeGemini(t, nil,
		`{"title":"Backend Engineer","company":"Acme","keywords":["Go","go","Kubernetes"],"requiredSkills":["Go"]}`)

	rec := &fakeRecorder{}
	service, err := NewService(testOpConfig(), config.OperationAnalyze, testLogger(), WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)
	service.WithRecorder(rec)

	out, err := service.AnalyzeJob(context.Background(), "We need a Go engineer")
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer", out.Title)
	assert.Equal(t, []string{"Go", "Kubernetes"}, out.Keywords)
	assert.Equal(t, int32(1), calls.Load())

	require.Len(t, rec.calls, 1)
	assert.True(t, rec.calls[0].success)
	require.NotNil(t, rec.calls[0].usage)
	assert.Equal(t, int64(150), rec.calls[0].usage.TotalTokens)
}

func TestTailorRetriesTransientErrors(t *testing.T) {
	srv, calls := fakeGemini(t, []int{http.StatusServiceUnavailable},
		"```json\n{\"tailoredResume\":\"# Jane Doe\\n## SKILLS\\n- Go\",\"changes\":[\"moved Go first\"],\"usedKeywords\":[\"Go\"]}\n```")

	service, err := NewService(testOpConfig(), config.OperationTailor, testLogger(), WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	out, err := service.TailorResume(context.Background(), types.TailorResumeInput{BaseResume: "# Jane Doe", JobDescription: "Go"})
	require.NoError(t, err)
	assert.Equal(t, "# Jane Doe\n## SKILLS\n- Go", out.TailoredResume)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestEvaluateDoesNotRetryClientErrors(t *testing.T) {
	srv, calls := fakeGemini(t, []int{http.StatusBadRequest, http.StatusBadRequest}, `{}`)

	rec := &fakeRecorder{}
	service, err := NewService(testOpConfig(), config.OperationEvaluate, testLogger(), WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)
	service.WithRecorder(rec)

	_, err = service.EvaluateResume(context.Background(), types.EvaluateResumeInput{BaseResume: "a", TailoredResume: "b"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAI))
	assert.Equal(t, int32(1), calls.Load())
	require.Len(t, rec.calls, 1)
	assert.False(t, rec.calls[0].success)
}

func TestUnparseableResponse(t *testing.T) {
	srv, _ := fakeGemini(t, nil, `not json`)
	service, err := NewService(testOpConfig(), config.OperationEvaluate, testLogger(), WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	_, err = service.EvaluateResume(context.Background(), types.EvaluateResumeInput{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeAIResponseParse))
}

func TestEvaluateEmptyFindings(t *testing.T) {
	srv, _ := fakeGemini(t, nil, `{"summary":"No issues found."}`)
	service, err := NewService(testOpConfig(), config.OperationEvaluate, testLogger(), WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	out, err := service.EvaluateResume(context.Background(), types.EvaluateResumeInput{BaseResume: "a", TailoredResume: "a"})
	require.NoError(t, err)
	assert.NotNil(t, out.Findings)
	assert.True(t, out.Clean())
}
