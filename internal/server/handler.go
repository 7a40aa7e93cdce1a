package server

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tailorcv/internal/common"
	tcverrors "tailorcv/internal/errors"
	"tailorcv/internal/rendering"
	"tailorcv/internal/resume"
	"tailorcv/internal/scoring"
	"tailorcv/internal/storage"
	"tailorcv/internal/types"
	"tailorcv/internal/workflow"
)

const tracerName = "tailorcv.api"

// scoreHandler scores a markdown résumé. A low score is still a 200.
func (s *Server) scoreHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.deps.Observability.Tracer(tracerName).Start(r.Context(), "api.score")
	defer span.End()

	var req ScoreRequest
	if !s.decode(w, r, span, &req) {
		return
	}

	tmpl, err := common.ResolveTemplate(req.Template, s.defaultTemplate())
	if err != nil {
		s.fail(w, span, err)
		return
	}

	in := scoring.Input{Markdown: req.Markdown, Template: tmpl, FileSize: req.FileSize}
	if req.FileFormat != "" {
		if in.Format, err = scoring.ParseFileFormat(req.FileFormat); err != nil {
			s.fail(w, span, err)
			return
		}
	}

	job := &scoring.JobSignal{Keywords: req.Keywords, RequiredSkills: req.RequiredSkills}
	if req.JobID != "" {
		if s.deps.Store == nil {
			s.unavailable(w, span, "storage")
			return
		}
		stored, err := s.deps.Store.GetJob(ctx, req.JobID)
		if err != nil {
			s.fail(w, span, err)
			return
		}
		job.Keywords = mergeTerms(stored.Keywords, job.Keywords)
		job.RequiredSkills = mergeTerms(stored.RequiredSkills, job.RequiredSkills)
	}
	if len(job.Keywords) > 0 || len(job.RequiredSkills) > 0 {
		in.Job = job
	}

	report := s.scorer.Score(in)
	s.metrics.RecordScore(ctx, tmpl.String(), report.TotalScore)
	span.SetAttributes(
		attribute.String("template", tmpl.String()),
		attribute.Float64("score", report.TotalScore),
	)
	writeJSON(w, http.StatusOK, report)
}

// renderHandler returns the rendered document bytes.
func (s *Server) renderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.deps.Observability.Tracer(tracerName).Start(r.Context(), "api.render")
	defer span.End()

	var req RenderRequest
	if !s.decode(w, r, span, &req) {
		return
	}

	tmpl, err := common.ResolveTemplate(req.Template, s.defaultTemplate())
	if err != nil {
		s.fail(w, span, err)
		return
	}
	format, err := rendering.ParseFormat(orDefault(req.Format, s.defaultOutput()))
	if err != nil {
		s.fail(w, span, err)
		return
	}

	doc := resume.Parse(req.Markdown)
	result, err := s.renderer.RenderWithResult(doc, tmpl, format, rendering.Metadata{Title: req.Title})
	if err != nil {
		s.metrics.RecordRender(ctx, tmpl.String(), string(format), false)
		s.fail(w, span, err)
		return
	}
	s.metrics.RecordRender(ctx, result.Template.String(), string(format), result.FellBack)
	span.SetAttributes(
		attribute.String("template", result.Template.String()),
		attribute.String("format", string(format)),
		attribute.Bool("fallback", result.FellBack),
	)

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="resume%s"`, format.Extension()))
	w.Header().Set("X-Template", result.Template.String())
	w.Header().Set("X-Template-Fallback", strconv.FormatBool(result.FellBack))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Data); err != nil {
		s.Logger.LogError(err, "Failed to write rendered document")
	}
}

// analyzeHandler extracts the job signal, optionally storing the job.
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.deps.Observability.Tracer(tracerName).Start(r.Context(), "api.analyze")
	defer span.End()

	if s.deps.Analyzer == nil {
		s.unavailable(w, span, "job analysis")
		return
	}

	var req AnalyzeRequest
	if !s.decode(w, r, span, &req) {
		return
	}
	if req.Save && s.deps.Store == nil {
		s.unavailable(w, span, "storage")
		return
	}

	out, err := s.deps.Analyzer.AnalyzeJob(ctx, req.JobDescription)
	if err != nil {
		s.fail(w, span, err)
		return
	}

	resp := AnalyzeResponse{AnalyzeJobOutput: out}
	if req.Save {
		job := &storage.JobDescription{
			Title:          out.Title,
			Company:        out.Company,
			URL:            req.URL,
			Text:           req.JobDescription,
			Keywords:       out.Keywords,
			RequiredSkills: out.RequiredSkills,
		}
		if err := s.deps.Store.SaveJob(ctx, job); err != nil {
			s.fail(w, span, err)
			return
		}
		resp.JobID = job.ID
	}

	span.SetAttributes(attribute.Int("keywords", len(out.Keywords)))
	writeJSON(w, http.StatusOK, resp)
}

// generateHandler runs the whole tailoring workflow.
func (s *Server) generateHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.deps.Observability.Tracer(tracerName).Start(r.Context(), "api.generate")
	defer span.End()

	if s.deps.Workflow == nil {
		s.unavailable(w, span, "generation")
		return
	}

	var req GenerateRequest
	if !s.decode(w, r, span, &req) {
		return
	}
	if req.JobID == "" && req.JobDescription == "" && req.JobURL == "" {
		s.fail(w, span, tcverrors.NewValidationError(tcverrors.ErrCodeInvalidRequest,
			"one of jobId, jobDescription or jobUrl is required", nil))
		return
	}

	tmpl, err := common.ResolveTemplate(req.Template, s.defaultTemplate())
	if err != nil {
		s.fail(w, span, err)
		return
	}
	format, err := rendering.ParseFormat(orDefault(req.Format, s.defaultOutput()))
	if err != nil {
		s.fail(w, span, err)
		return
	}

	result, err := s.deps.Workflow.Generate(ctx, workflow.Request{
		BaseResume:     req.BaseResume,
		ProfileID:      req.ProfileID,
		JobID:          req.JobID,
		JobDescription: req.JobDescription,
		JobURL:         req.JobURL,
		Company:        req.Company,
		Research:       req.Research,
		Template:       tmpl,
		Format:         format,
		Title:          req.Title,
	})
	if err != nil {
		s.fail(w, span, err)
		return
	}

	resp := GenerateResponse{Result: result}
	if result.Document != nil {
		resp.FellBack = result.Document.FellBack
		if req.IncludeDocument {
			resp.Document = result.Document.Data
			resp.ContentType = result.Document.Format.ContentType()
		}
	}
	span.SetAttributes(
		attribute.Float64("score", result.Report.TotalScore),
		attribute.Bool("verified", result.Verified),
	)
	writeJSON(w, http.StatusOK, resp)
}

// evaluateHandler checks a tailored résumé for claims the base cannot back.
func (s *Server) evaluateHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.deps.Observability.Tracer(tracerName).Start(r.Context(), "api.evaluate")
	defer span.End()

	if s.deps.Evaluator == nil {
		s.unavailable(w, span, "evaluation")
		return
	}

	var req EvaluateRequest
	if !s.decode(w, r, span, &req) {
		return
	}

	out, err := s.deps.Evaluator.EvaluateResume(ctx, types.EvaluateResumeInput{
		BaseResume:     req.BaseResume,
		TailoredResume: req.TailoredResume,
	})
	if err != nil {
		s.fail(w, span, err)
		return
	}
	span.SetAttributes(attribute.Int("findings", len(out.Findings)))
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listJobsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.deps.Observability.Tracer(tracerName).Start(r.Context(), "api.jobs")
	defer span.End()
	if s.deps.Store == nil {
		s.unavailable(w, span, "storage")
		return
	}
	jobs, err := s.deps.Store.ListJobs(ctx, queryLimit(r))
	if err != nil {
		s.fail(w, span, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": nonNil(jobs)})
}

func (s *Server) listResumesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.deps.Observability.Tracer(tracerName).Start(r.Context(), "api.resumes")
	defer span.End()
	if s.deps.Store == nil {
		s.unavailable(w, span, "storage")
		return
	}
	resumes, err := s.deps.Store.ListResumes(ctx, queryLimit(r))
	if err != nil {
		s.fail(w, span, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resumes": nonNil(resumes)})
}

func (s *Server) listVersionsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.deps.Observability.Tracer(tracerName).Start(r.Context(), "api.versions")
	defer span.End()
	if s.deps.Store == nil {
		s.unavailable(w, span, "storage")
		return
	}
	id := r.PathValue("id")
	if _, err := s.deps.Store.GetResume(ctx, id); err != nil {
		s.fail(w, span, err)
		return
	}
	versions, err := s.deps.Store.ListVersions(ctx, id)
	if err != nil {
		s.fail(w, span, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resumeId": id, "versions": nonNil(versions)})
}

// decode parses and validates the body, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, span trace.Span, v any) bool {
	if err := parseJSONRequest(r, v); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "validation"))
		writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "validation"))
		writeErrorResponse(w, "Invalid request", validationMessage(err), http.StatusBadRequest)
		return false
	}
	return true
}

// fail maps an application error onto a status code and writes it.
func (s *Server) fail(w http.ResponseWriter, span trace.Span, err error) {
	status := statusFor(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("error.type", string(tcverrors.TypeOf(err))))
	if status >= http.StatusInternalServerError {
		s.Logger.LogError(err, "Request failed", "status", status)
	}

	resp := ErrorResponse{Error: http.StatusText(status), Message: err.Error()}
	if appErr, ok := asAppError(err); ok {
		resp.Message = appErr.Message
		resp.Code = appErr.Code
	}
	writeJSON(w, status, resp)
}

func (s *Server) unavailable(w http.ResponseWriter, span trace.Span, what string) {
	span.SetAttributes(attribute.String("error.type", "unavailable"))
	writeErrorResponse(w, "Service unavailable", what+" is not configured", http.StatusServiceUnavailable)
}

func statusFor(err error) int {
	switch {
	case storage.IsNotFound(err):
		return http.StatusNotFound
	case tcverrors.IsCode(err, tcverrors.ErrCodeAITimeout), tcverrors.IsCode(err, tcverrors.ErrCodeNetworkTimeout):
		return http.StatusGatewayTimeout
	}
	switch tcverrors.TypeOf(err) {
	case tcverrors.ErrorTypeValidation, tcverrors.ErrorTypeIO:
		return http.StatusBadRequest
	case tcverrors.ErrorTypeAI, tcverrors.ErrorTypeNetwork:
		return http.StatusBadGateway
	case tcverrors.ErrorTypeConfig:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) defaultTemplate() string {
	if s.AppConfig == nil {
		return ""
	}
	return s.AppConfig.App.DefaultTemplate
}

func (s *Server) defaultOutput() string {
	if s.AppConfig == nil || s.AppConfig.App.DefaultOutput == "" {
		return string(rendering.PDF)
	}
	return s.AppConfig.App.DefaultOutput
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// mergeTerms appends extra terms not already present.
func mergeTerms(base, extra []string) []string {
	out := slices.Clone(base)
	for _, t := range extra {
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
