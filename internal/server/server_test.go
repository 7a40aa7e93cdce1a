package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tailorcv/internal/ai"
	"tailorcv/internal/config"
	"tailorcv/internal/errors"
	"tailorcv/internal/scoring"
	"tailorcv/internal/storage"
	"tailorcv/internal/types"
	"tailorcv/internal/workflow"
)

const sampleResume = `# Jane Doe
jane@example.com | +1 555 0100 | Berlin

## SUMMARY
Backend engineer with eight years of experience.

## EXPERIENCE
### Senior Engineer | Acme | Berlin | Jan 2020 - Present
- Built Go services handling 40k requests per second
- Reduced p99 latency by 35% with PostgreSQL tuning

## EDUCATION
### BSc Computer Science | TU Berlin | 2015

## SKILLS
- Languages: Go, SQL, Python
`

type fakeAnalyzer struct {
	out types.AnalyzeJobOutput
	err error
}

func (f *fakeAnalyzer) AnalyzeJob(context.Context, string) (types.AnalyzeJobOutput, error) {
	return f.out, f.err
}

type fakeTailor struct{}

func (fakeTailor) TailorResume(_ context.Context, in types.TailorResumeInput) (types.TailorResumeOutput, error) {
	return types.TailorResumeOutput{
		TailoredResume: in.BaseResume,
		Changes:        []string{"kept as is"},
	}, nil
}

type fakeEvaluator struct{}

func (fakeEvaluator) EvaluateResume(context.Context, types.EvaluateResumeInput) (types.EvaluateResumeOutput, error) {
	return types.EvaluateResumeOutput{Summary: "consistent"}, nil
}

type fakeAIStatus struct {
	op        string
	available bool
}

func (f fakeAIStatus) Operation() string { return f.op }

func (f fakeAIStatus) GetModelInfo(context.Context) *ai.ModelInfo {
	return &ai.ModelInfo{Name: "test-model", Available: f.available}
}

func (f fakeAIStatus) CircuitBreakerStats() map[string]any {
	return map[string]any{"state": "closed"}
}

func testLogger() *errors.Logger {
	return errors.NewLoggerWithWriter(&bytes.Buffer{}, 0)
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{DefaultTemplate: "original", DefaultOutput: "pdf", MaxFileSize: 1 << 20},
	}
}

func openStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.Open(context.Background(), storage.Options{
		Driver: storage.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "tailorcv.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestServer(t *testing.T, mutate func(*ServerConfig, *Deps)) *Server {
	t.Helper()
	cfg := testConfig()
	store := openStore(t)
	analyzer := &fakeAnalyzer{out: types.AnalyzeJobOutput{
		Title:          "Platform Engineer",
		Company:        "Globex",
		Keywords:       []string{"Go", "Kubernetes"},
		RequiredSkills: []string{"PostgreSQL"},
	}}
	deps := Deps{
		Analyzer:  analyzer,
		Evaluator: fakeEvaluator{},
		Store:     store,
		Workflow: workflow.New(workflow.Deps{
			Analyzer: analyzer,
			Tailor:   fakeTailor{},
			Store:    store,
		}, testLogger()),
	}
	sc := NewServerConfig(cfg, "test")
	if mutate != nil {
		mutate(&sc, &deps)
	}
	srv := NewServer(cfg, sc, deps, testLogger())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestScoreEndpoint(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	tests := []struct {
		name       string
		body       any
		wantStatus int
		check      func(t *testing.T, body []byte)
	}{
		{
			name:       "scores markdown",
			body:       ScoreRequest{Markdown: sampleResume, Template: "harvard", FileFormat: "pdf", Keywords: []string{"Go"}},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var report scoring.Report
				require.NoError(t, json.Unmarshal(body, &report))
				assert.Greater(t, report.TotalScore, 0.0)
				assert.LessOrEqual(t, report.TotalScore, 100.0)
				assert.Contains(t, report.MatchedKeywords, "go")
			},
		},
		{
			name:       "empty markdown",
			body:       ScoreRequest{},
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body []byte) {
				assert.Contains(t, string(body), "markdown is required")
			},
		},
		{
			name:       "unknown template",
			body:       map[string]any{"markdown": sampleResume, "template": "fancy"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unsupported file format",
			body:       ScoreRequest{Markdown: sampleResume, FileFormat: "exe"},
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body []byte) {
				assert.Contains(t, string(body), errors.ErrCodeInvalidFormat)
			},
		},
		{
			name:       "missing job",
			body:       ScoreRequest{Markdown: sampleResume, JobID: "0b9f6f7e-2d2b-4a4c-9b1a-0c5f2f1d8e11"},
			wantStatus: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/score", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.check != nil {
				tt.check(t, rec.Body.Bytes())
			}
		})
	}
}

func TestScoreWithStoredJob(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/analyze", AnalyzeRequest{JobDescription: "We need Go and Kubernetes.", Save: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var analyzed AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analyzed))
	require.NotEmpty(t, analyzed.JobID)
	assert.Equal(t, "Globex", analyzed.Company)

	rec = doJSON(t, h, http.MethodPost, "/score", ScoreRequest{Markdown: sampleResume, JobID: analyzed.JobID})
	require.Equal(t, http.StatusOK, rec.Code)
	var report scoring.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Contains(t, report.MissingKeywords, "kubernetes")
}

func TestRenderEndpoint(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	tests := []struct {
		name        string
		body        RenderRequest
		contentType string
		prefix      string
	}{
		{"pdf", RenderRequest{Markdown: sampleResume, Template: "modern", Format: "pdf"}, "application/pdf", "%PDF"},
		{"docx", RenderRequest{Markdown: sampleResume, Template: "harvard", Format: "docx"}, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "PK"},
		{"configured default", RenderRequest{Markdown: sampleResume}, "application/pdf", "%PDF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/render", tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.Equal(t, "false", rec.Header().Get("X-Template-Fallback"))
			assert.True(t, strings.HasPrefix(rec.Body.String(), tt.prefix))
		})
	}

	rec := doJSON(t, h, http.MethodPost, "/render", map[string]string{"markdown": sampleResume, "format": "odt"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateAndVersions(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := doJSON(t, h, http.MethodPost, "/generate", GenerateRequest{
		BaseResume:      sampleResume,
		JobDescription:  "Platform Engineer at Globex. Go, Kubernetes, PostgreSQL.",
		Template:        "original",
		Format:          "docx",
		IncludeDocument: true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Markdown    string          `json:"markdown"`
		Report      scoring.Report  `json:"report"`
		Resume      *storage.Resume `json:"resume"`
		Document    []byte          `json:"document"`
		ContentType string          `json:"contentType"`
		Verified    bool            `json:"verified"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, sampleResume, resp.Markdown)
	assert.True(t, resp.Verified)
	assert.True(t, bytes.HasPrefix(resp.Document, []byte("PK")))
	require.NotNil(t, resp.Resume)

	rec = doJSON(t, h, http.MethodGet, "/resumes/"+resp.Resume.ID+"/versions", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var versions struct {
		Versions []storage.ResumeVersion `json:"versions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &versions))
	require.Len(t, versions.Versions, 1)
	assert.Equal(t, 1, versions.Versions[0].Version)
	assert.InDelta(t, resp.Report.TotalScore, versions.Versions[0].Score, 0.001)

	rec = doJSON(t, h, http.MethodGet, "/resumes/0b9f6f7e-2d2b-4a4c-9b1a-0c5f2f1d8e11/versions", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/generate", GenerateRequest{BaseResume: sampleResume})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAIErrorsMapToBadGateway(t *testing.T) {
	srv := newTestServer(t, func(_ *ServerConfig, d *Deps) {
		d.Analyzer = &fakeAnalyzer{err: errors.NewAIError(errors.ErrCodeAIServiceFailed, "quota exhausted", nil)}
	})
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/analyze", AnalyzeRequest{JobDescription: "anything"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, errors.ErrCodeAIServiceFailed, resp.Code)
	assert.Equal(t, "quota exhausted", resp.Message)
}

func TestUnconfiguredEndpoints(t *testing.T) {
	srv := newTestServer(t, func(_ *ServerConfig, d *Deps) {
		*d = Deps{}
	})
	h := srv.Handler()

	for _, path := range []string{"/analyze", "/generate", "/evaluate"} {
		rec := doJSON(t, h, http.MethodPost, path, map[string]string{})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
	rec := doJSON(t, h, http.MethodGet, "/jobs", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/score", ScoreRequest{Markdown: sampleResume})
	assert.Equal(t, http.StatusOK, rec.Code, "scoring needs no collaborators")
}

func TestAuthMiddleware(t *testing.T) {
	srv := newTestServer(t, func(sc *ServerConfig, _ *Deps) {
		sc.APIKeys = []string{"secret-key-123456"}
	})
	h := srv.Handler()
	body := ScoreRequest{Markdown: sampleResume}

	tests := []struct {
		name       string
		headers    []string
		wantStatus int
	}{
		{"missing key", nil, http.StatusUnauthorized},
		{"wrong key", []string{"X-API-Key", "nope"}, http.StatusUnauthorized},
		{"header key", []string{"X-API-Key", "secret-key-123456"}, http.StatusOK},
		{"bearer token", []string{"Authorization", "Bearer secret-key-123456"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/score", body, tt.headers...)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}

	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health stays public")
}

func TestRequestSizeLimit(t *testing.T) {
	srv := newTestServer(t, func(sc *ServerConfig, _ *Deps) {
		sc.MaxRequestSize = 64
	})
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/score", ScoreRequest{Markdown: sampleResume})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "too large")
}

func TestRateLimitMiddleware(t *testing.T) {
	srv := newTestServer(t, func(sc *ServerConfig, _ *Deps) {
		sc.RateLimit = &config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstCapacity: 2, ByIP: true}
	})
	h := srv.Handler()
	body := ScoreRequest{Markdown: sampleResume}

	assert.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPost, "/score", body).Code)
	assert.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPost, "/score", body).Code)
	limited := doJSON(t, h, http.MethodPost, "/score", body)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))

	other := doJSON(t, h, http.MethodPost, "/score", body, "X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, http.StatusOK, other.Code, "limits are per client")

	stats := srv.RateLimiter.GetStats()
	assert.Equal(t, 2, stats["active_limiters"])
	assert.EqualValues(t, 1, stats["rejected_total"])
}

func TestRateLimiterEviction(t *testing.T) {
	rl := NewRateLimiter(60, time.Hour, 1, testLogger())
	defer rl.Close()

	assert.True(t, rl.Allow("ip:a"))
	assert.False(t, rl.Allow("ip:a"))
	rl.cleanup(-time.Second)
	assert.Equal(t, 0, rl.GetStats()["active_limiters"])
	assert.True(t, rl.Allow("ip:a"), "evicted keys start with a full bucket")
	rl.Close()
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded first", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.1"}, "10.0.0.2:1234", "198.51.100.1"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.2:1234", "198.51.100.7"},
		{"garbage forwarded", map[string]string{"X-Forwarded-For": "nope"}, "192.0.2.4:80", "192.0.2.4"},
		{"remote addr", nil, "192.0.2.5:80", "192.0.2.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(r))
		})
	}
}

func TestHealthReportsDegradedModels(t *testing.T) {
	srv := newTestServer(t, func(_ *ServerConfig, d *Deps) {
		d.AIStatus = []AIStatus{
			fakeAIStatus{op: "analyze", available: true},
			fakeAIStatus{op: "tailor", available: false},
		}
	})
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	assert.Contains(t, body["ai_models"], "tailor")
	assert.Contains(t, body["circuit_breakers"], "analyze")
}

func TestTemplatesAndStats(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := doJSON(t, h, http.MethodGet, "/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Templates []templateInfo `json:"templates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Templates, 3)
	assert.Equal(t, "original", list.Templates[0].Name)
	assert.True(t, list.Templates[0].Default)
	assert.Equal(t, "two-column", list.Templates[1].Layout)

	rec = doJSON(t, h, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tls_mode":"disabled"`)

	rec = doJSON(t, h, http.MethodPost, "/stats", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestConfigureTLS(t *testing.T) {
	tests := []struct {
		name    string
		tls     config.TLSConfig
		wantErr string
		wantTLS bool
	}{
		{name: "disabled", tls: config.TLSConfig{Mode: "disabled"}},
		{name: "empty mode", tls: config.TLSConfig{}},
		{name: "bad mode", tls: config.TLSConfig{Mode: "sometimes"}, wantErr: "invalid TLS mode"},
		{name: "server without cert", tls: config.TLSConfig{Mode: "server"}, wantErr: "certificate and key are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := &Server{TLSConfig: tt.tls}
			hs := &http.Server{}
			err := srv.configureTLS(hs)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTLS, hs.TLSConfig != nil)
		})
	}
}

func TestDisplayServerInfo(t *testing.T) {
	srv := newTestServer(t, func(sc *ServerConfig, _ *Deps) {
		sc.Host, sc.Port = "127.0.0.1", "8080"
	})
	var out bytes.Buffer
	srv.displayServerInfo(&out)
	assert.Contains(t, out.String(), "http://127.0.0.1:8080")
	assert.Contains(t, out.String(), "POST /generate")
	assert.Contains(t, out.String(), "API authentication: DISABLED")
}
