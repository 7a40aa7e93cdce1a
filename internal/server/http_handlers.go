package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	tcverrors "tailorcv/internal/errors"
	"tailorcv/internal/templates"
)

const healthCheckTimeout = 5 * time.Second

// healthHandler reports service health including AI model availability
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "healthy",
		"service": "tailorcv",
		"version": s.Version,
	}

	status := http.StatusOK
	if len(s.deps.AIStatus) > 0 {
		models, healthy := s.checkAIModelsHealth(r.Context())
		response["ai_models"] = models
		response["circuit_breakers"] = s.circuitBreakerStats()
		if !healthy {
			response["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	response["storage"] = s.deps.Store != nil

	writeJSON(w, status, response)
}

// checkAIModelsHealth asks every configured AI operation for its model.
func (s *Server) checkAIModelsHealth(ctx context.Context) (map[string]any, bool) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	healthy := true
	models := make(map[string]any, len(s.deps.AIStatus))
	for _, svc := range s.deps.AIStatus {
		info := svc.GetModelInfo(ctx)
		if info == nil || !info.Available {
			healthy = false
		}
		models[svc.Operation()] = info
	}
	return models, healthy
}

func (s *Server) circuitBreakerStats() map[string]any {
	stats := make(map[string]any, len(s.deps.AIStatus))
	for _, svc := range s.deps.AIStatus {
		stats[svc.Operation()] = svc.CircuitBreakerStats()
	}
	return stats
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "tailorcv",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"auth_enabled":           len(s.APIKeys) > 0,
			"tls_mode":               s.tlsMode(),
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{"enabled": false}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	if len(s.deps.AIStatus) > 0 {
		response["circuit_breakers"] = s.circuitBreakerStats()
	}

	writeJSON(w, http.StatusOK, response)
}

// templateInfo is the public view of a template.
type templateInfo struct {
	Name        string  `json:"name"`
	Family      string  `json:"family"`
	Layout      string  `json:"layout"`
	HeaderCase  string  `json:"headerCase"`
	BaseBonus   float64 `json:"baseBonus"`
	FormatBonus float64 `json:"formatBonus"`
	Default     bool    `json:"default"`
}

func (s *Server) templatesHandler(w http.ResponseWriter, r *http.Request) {
	def := s.defaultTemplate()
	if def == "" {
		def = templates.Original.String()
	}
	list := make([]templateInfo, 0, len(templates.All()))
	for _, t := range templates.All() {
		spec := t.Spec()
		casing := "as-written"
		if spec.HeaderCase == templates.UpperCase {
			casing = "upper"
		}
		list = append(list, templateInfo{
			Name:        spec.Name,
			Family:      string(spec.Family),
			Layout:      spec.Layout.String(),
			HeaderCase:  casing,
			BaseBonus:   float64(spec.BaseBonus),
			FormatBonus: float64(spec.FormatBonus),
			Default:     spec.Name == def,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": list})
}

// parseJSONRequest parses JSON request body into the provided struct
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return fmt.Errorf("content-type must be application/json")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return fmt.Errorf("request body too large (limit is %d bytes)", maxBytesErr.Limit)
		}
		return fmt.Errorf("failed to read request body: %w", err)
	}
	defer func() { _ = r.Body.Close() }()

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

// validationMessage turns validator errors into one readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if field != "" {
			field = strings.ToLower(field[:1]) + field[1:]
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func asAppError(err error) (*tcverrors.AppError, bool) {
	var appErr *tcverrors.AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Error: error, Message: message})
}
