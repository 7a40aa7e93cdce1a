package server

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"tailorcv/internal/ai"
	"tailorcv/internal/config"
	tcverrors "tailorcv/internal/errors"
	"tailorcv/internal/observability"
	"tailorcv/internal/rendering"
	"tailorcv/internal/scoring"
	"tailorcv/internal/storage"
	"tailorcv/internal/types"
	"tailorcv/internal/workflow"
)

// ScoreRequest is the body of POST /score.
type ScoreRequest struct {
	Markdown       string   `json:"markdown" validate:"required"`
	Template       string   `json:"template" validate:"omitempty,oneof=original modern harvard"`
	FileFormat     string   `json:"fileFormat"`
	FileSize       *int64   `json:"fileSize" validate:"omitempty,gte=0"`
	Keywords       []string `json:"keywords" validate:"omitempty,dive,required"`
	RequiredSkills []string `json:"requiredSkills" validate:"omitempty,dive,required"`
	JobID          string   `json:"jobId" validate:"omitempty,uuid"`
}

// RenderRequest is the body of POST /render.
type RenderRequest struct {
	Markdown string `json:"markdown" validate:"required"`
	Template string `json:"template" validate:"omitempty,oneof=original modern harvard"`
	Format   string `json:"format" validate:"omitempty,oneof=pdf docx"`
	Title    string `json:"title"`
}

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	JobDescription string `json:"jobDescription" validate:"required"`
	URL            string `json:"url" validate:"omitempty,url"`
	Save           bool   `json:"save"`
}

// AnalyzeResponse is the job signal plus the stored job id when saved.
type AnalyzeResponse struct {
	types.AnalyzeJobOutput
	JobID string `json:"jobId,omitempty"`
}

// GenerateRequest is the body of POST /generate.
type GenerateRequest struct {
	BaseResume      string `json:"baseResume"`
	ProfileID       string `json:"profileId" validate:"omitempty,uuid"`
	JobID           string `json:"jobId" validate:"omitempty,uuid"`
	JobDescription  string `json:"jobDescription"`
	JobURL          string `json:"jobUrl" validate:"omitempty,url"`
	Company         string `json:"company"`
	Research        bool   `json:"research"`
	Template        string `json:"template" validate:"omitempty,oneof=original modern harvard"`
	Format          string `json:"format" validate:"omitempty,oneof=pdf docx"`
	Title           string `json:"title"`
	IncludeDocument bool   `json:"includeDocument"`
}

// GenerateResponse is the workflow result with the optional document bytes.
type GenerateResponse struct {
	*workflow.Result
	Document    []byte `json:"document,omitempty"` // base64 in JSON
	ContentType string `json:"contentType,omitempty"`
	FellBack    bool   `json:"templateFallback"`
}

// EvaluateRequest is the body of POST /evaluate.
type EvaluateRequest struct {
	BaseResume     string `json:"baseResume" validate:"required"`
	TailoredResume string `json:"tailoredResume" validate:"required"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Evaluator checks a tailored résumé against its base.
type Evaluator interface {
	EvaluateResume(ctx context.Context, input types.EvaluateResumeInput) (types.EvaluateResumeOutput, error)
}

// AIStatus is what health and stats report per AI operation.
type AIStatus interface {
	Operation() string
	GetModelInfo(ctx context.Context) *ai.ModelInfo
	CircuitBreakerStats() map[string]any
}

// Deps are the collaborators behind the handlers. Nil collaborators turn
// their endpoints into 503 responses.
type Deps struct {
	Workflow      *workflow.Workflow
	Analyzer      workflow.JobAnalyzer
	Evaluator     Evaluator
	Store         storage.Store
	Observability *observability.Manager
	AIStatus      []AIStatus
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	AppConfig *config.Config
	TLSConfig config.TLSConfig

	// APIKeys enables authentication when non-empty.
	APIKeys map[string]bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	MaxRequestSize int64

	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	deps     Deps
	scorer   *scoring.Scorer
	renderer *rendering.Renderer
	metrics  *observability.Metrics
	validate *validator.Validate

	Logger *tcverrors.Logger
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	TLSConfig      config.TLSConfig
	APIKeys        []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	RateLimit      *config.RateLimitConfig
}

// NewServerConfig derives the server settings from the application config.
func NewServerConfig(cfg *config.Config, version string) ServerConfig {
	return ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        version,
		TLSConfig:      cfg.Server.TLS,
		APIKeys:        cfg.Server.APIKeys,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: cfg.App.MaxFileSize,
		RateLimit:      &cfg.Server.RateLimit,
	}
}

// NewServer creates a new Server instance from a ServerConfig struct
func NewServer(appCfg *config.Config, cfg ServerConfig, deps Deps, logger *tcverrors.Logger) *Server {
	apiKeyMap := make(map[string]bool)
	for _, key := range cfg.APIKeys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			cfg.RateLimit.RequestsPerMin,
			cfg.RateLimit.Window,
			cfg.RateLimit.BurstCapacity,
			logger,
		)
	}

	return &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		TLSConfig:      cfg.TLSConfig,
		APIKeys:        apiKeyMap,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		deps:           deps,
		scorer:         scoring.NewScorer(scoring.DefaultRubric()),
		renderer:       rendering.NewRenderer(rendering.WithLogger(logger)),
		metrics:        deps.Observability.Metrics(),
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		Logger:         logger,
	}
}

// Close releases the rate limiter.
func (s *Server) Close() {
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
	}
}
