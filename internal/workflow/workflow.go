// Package workflow generates a tailored résumé end to end: analyze the job,
// research the company, tailor, parse, render, verify, score and persist.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"tailorcv/internal/errors"
	"tailorcv/internal/extract"
	"tailorcv/internal/rendering"
	"tailorcv/internal/research"
	"tailorcv/internal/resume"
	"tailorcv/internal/scoring"
	"tailorcv/internal/storage"
	"tailorcv/internal/templates"
	"tailorcv/internal/types"
)

// JobAnalyzer extracts the screening signal from a posting.
type JobAnalyzer interface {
	AnalyzeJob(ctx context.Context, jobDescription string) (types.AnalyzeJobOutput, error)
}

// ResumeTailor writes a tailored markdown résumé.
type ResumeTailor interface {
	TailorResume(ctx context.Context, input types.TailorResumeInput) (types.TailorResumeOutput, error)
}

// CompanyResearcher gathers context about the hiring company.
type CompanyResearcher interface {
	Research(ctx context.Context, company string) (*research.CompanyBrief, error)
}

// JobFetcher downloads a posting from a URL.
type JobFetcher interface {
	FetchJobPosting(ctx context.Context, rawURL string) (*research.Page, error)
}

// Metrics receives workflow observations. observability.Metrics implements it.
type Metrics interface {
	RecordScore(ctx context.Context, template string, score float64)
	RecordRender(ctx context.Context, template, format string, fellBack bool)
	RecordGenerated(ctx context.Context, success bool)
}

// Deps are the collaborators of a Workflow. Analyzer and Tailor are
// required; the rest may be nil.
type Deps struct {
	Analyzer   JobAnalyzer
	Tailor     ResumeTailor
	Researcher CompanyResearcher
	Fetcher    JobFetcher
	Store      storage.Store
	Renderer   *rendering.Renderer
	Scorer     *scoring.Scorer
	Metrics    Metrics
}

// Workflow runs résumé generation. It is safe for concurrent use.
type Workflow struct {
	deps   Deps
	logger *errors.Logger
}

// New creates a workflow, filling in a default renderer and scorer.
func New(deps Deps, logger *errors.Logger) *Workflow {
	if deps.Renderer == nil {
		deps.Renderer = rendering.NewRenderer(rendering.WithLogger(logger))
	}
	if deps.Scorer == nil {
		deps.Scorer = scoring.NewScorer(scoring.DefaultRubric())
	}
	return &Workflow{deps: deps, logger: logger}
}

// Request describes one generation. The base résumé comes from BaseResume,
// else ProfileID, else the latest stored profile. An inline BaseResume is
// stored as a new profile. The job comes from JobID,
// else JobDescription, else JobURL.
type Request struct {
	BaseResume     string
	ProfileID      string
	JobID          string
	JobDescription string
	JobURL         string
	Company        string
	Research       bool
	Template       templates.Template
	Format         rendering.Format
	Title          string
}

// Result is everything one generation produced.
type Result struct {
	Job      *storage.JobDescription `json:"job"`
	Brief    *research.CompanyBrief  `json:"research,omitempty"`
	Markdown string                  `json:"markdown"`
	Changes  []string                `json:"changes"`
	Document *rendering.Result       `json:"-"`
	Report   scoring.Report          `json:"report"`
	Resume   *storage.Resume         `json:"resume,omitempty"`
	Version  *storage.ResumeVersion  `json:"version,omitempty"`
	Verified bool                    `json:"verified"`
}

// Generate runs the full pipeline.
func (w *Workflow) Generate(ctx context.Context, req Request) (result *Result, err error) {
	start := time.Now()
	defer func() {
		if w.deps.Metrics != nil {
			w.deps.Metrics.RecordGenerated(ctx, err == nil)
		}
	}()

	if !req.Template.Valid() {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidTemplate, "invalid template", nil)
	}
	if !req.Format.Valid() {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidOutputFormat, "invalid output format", nil)
	}

	base, profileID, err := w.baseResume(ctx, req)
	if err != nil {
		return nil, err
	}
	job, analyzed, err := w.job(ctx, req)
	if err != nil {
		return nil, err
	}

	brief, err := w.analyzeAndResearch(ctx, req, job, analyzed)
	if err != nil {
		return nil, err
	}

	if analyzed && w.deps.Store != nil {
		if err := w.deps.Store.SaveJob(ctx, job); err != nil {
			return nil, fmt.Errorf("failed to save job: %w", err)
		}
	}

	tailored, err := w.deps.Tailor.TailorResume(ctx, types.TailorResumeInput{
		BaseResume:     base,
		JobDescription: job.Text,
		Keywords:       job.Keywords,
		RequiredSkills: job.RequiredSkills,
		CompanyBrief:   brief.Prompt(),
		Template:       req.Template.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to tailor resume: %w", err)
	}

	doc := resume.ParseWith(tailored.TailoredResume, resume.ParseOptions{
		OnDegrade: func(line int, text, reason string) {
			w.logger.Debug("Unsupported markdown in generated resume", "line", line, "reason", reason)
		},
	})
	if doc.Empty() {
		return nil, errors.NewAIError(errors.ErrCodeAIResponseParse, "generated resume has no content", nil)
	}

	rendered, err := w.deps.Renderer.RenderWithResult(doc, req.Template, req.Format, rendering.Metadata{
		Title:   documentTitle(req.Title, job),
		Author:  authorName(doc),
		Created: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if w.deps.Metrics != nil {
		w.deps.Metrics.RecordRender(ctx, rendered.Template.String(), string(rendered.Format), rendered.FellBack)
	}

	size := int64(len(rendered.Data))
	report := w.deps.Scorer.Score(scoring.Input{
		Markdown: tailored.TailoredResume,
		Job:      &scoring.JobSignal{Keywords: job.Keywords, RequiredSkills: job.RequiredSkills},
		Template: rendered.Template,
		Format:   scoring.FileFormat(rendered.Format),
		FileSize: &size,
	})
	if w.deps.Metrics != nil {
		w.deps.Metrics.RecordScore(ctx, rendered.Template.String(), report.TotalScore)
	}

	result = &Result{
		Job:      job,
		Brief:    brief,
		Markdown: tailored.TailoredResume,
		Changes:  tailored.Changes,
		Document: rendered,
		Report:   report,
		Verified: w.verify(rendered, doc),
	}

	if w.deps.Store != nil {
		if err := w.persist(ctx, result, profileID, base, authorName(resume.Parse(base))); err != nil {
			return nil, err
		}
	}

	w.logger.Info("Resume generated",
		"template", rendered.Template.String(),
		"format", string(rendered.Format),
		"fell_back", rendered.FellBack,
		"score", report.TotalScore,
		"grade", report.Grade,
		"bytes", size,
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

func (w *Workflow) baseResume(ctx context.Context, req Request) (string, string, error) {
	if strings.TrimSpace(req.BaseResume) != "" {
		return req.BaseResume, "", nil
	}
	if w.deps.Store == nil {
		return "", "", errors.NewValidationError(errors.ErrCodeInvalidRequest, "a base resume is required", nil)
	}

	var profile *storage.Profile
	var err error
	if req.ProfileID != "" {
		profile, err = w.deps.Store.GetProfile(ctx, req.ProfileID)
	} else {
		profile, err = w.deps.Store.LatestProfile(ctx)
	}
	if storage.IsNotFound(err) {
		return "", "", errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"no stored profile; run 'tailorcv profile set' first", err)
	}
	if err != nil {
		return "", "", err
	}
	return profile.Markdown, profile.ID, nil
}

// job resolves the posting. analyzed reports whether it still needs
// analysis and saving.
func (w *Workflow) job(ctx context.Context, req Request) (*storage.JobDescription, bool, error) {
	if req.JobID != "" {
		if w.deps.Store == nil {
			return nil, false, errors.NewValidationError(errors.ErrCodeInvalidRequest, "stored jobs need a store", nil)
		}
		job, err := w.deps.Store.GetJob(ctx, req.JobID)
		if err != nil {
			return nil, false, err
		}
		if req.Company != "" {
			job.Company = req.Company
		}
		return job, false, nil
	}

	text := strings.TrimSpace(req.JobDescription)
	if text == "" && req.JobURL != "" {
		if w.deps.Fetcher == nil {
			return nil, false, errors.NewValidationError(errors.ErrCodeInvalidRequest, "fetching job URLs is not configured", nil)
		}
		page, err := w.deps.Fetcher.FetchJobPosting(ctx, req.JobURL)
		if err != nil {
			return nil, false, fmt.Errorf("failed to fetch job posting: %w", err)
		}
		text = page.Text
	}
	if text == "" {
		return nil, false, errors.NewValidationError(errors.ErrCodeInvalidRequest, "a job description is required", nil)
	}
	return &storage.JobDescription{Text: text, URL: req.JobURL, Company: req.Company}, true, nil
}

// analyzeAndResearch runs job analysis and company research concurrently
// when the company is known up front, otherwise research waits for the
// company name analysis finds. Research failures are logged and ignored.
func (w *Workflow) analyzeAndResearch(ctx context.Context, req Request, job *storage.JobDescription, analyze bool) (*research.CompanyBrief, error) {
	wantResearch := req.Research && w.deps.Researcher != nil
	if req.Research && w.deps.Researcher == nil {
		w.logger.Warn("Research requested but not configured")
	}

	var brief *research.CompanyBrief
	doResearch := func(ctx context.Context, company string) {
		if company == "" {
			w.logger.Warn("Skipping research: company unknown")
			return
		}
		b, err := w.deps.Researcher.Research(ctx, company)
		if err != nil {
			w.logger.LogError(err, "Company research failed, continuing without it", "company", company)
			return
		}
		brief = b
	}

	knownCompany := job.Company
	g, gctx := errgroup.WithContext(ctx)
	if analyze {
		g.Go(func() error {
			out, err := w.deps.Analyzer.AnalyzeJob(gctx, job.Text)
			if err != nil {
				return fmt.Errorf("failed to analyze job: %w", err)
			}
			job.Title = out.Title
			if knownCompany == "" {
				job.Company = out.Company
			}
			job.Keywords = out.Keywords
			job.RequiredSkills = out.RequiredSkills
			return nil
		})
	}
	if wantResearch && knownCompany != "" {
		g.Go(func() error {
			doResearch(gctx, knownCompany)
			return nil
		})
		wantResearch = false
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if wantResearch {
		doResearch(ctx, job.Company)
	}
	return brief, nil
}

// verify reads the rendered document back and checks a parser sees the
// name and every section heading. Whitespace is ignored since extractors
// split and join runs differently.
func (w *Workflow) verify(rendered *rendering.Result, doc *resume.Document) bool {
	text, err := extract.Text(rendered.Data, rendered.Format)
	if err != nil {
		w.logger.Warn("Could not read back rendered document", "error", err.Error())
		return false
	}
	text = squash(text)
	for _, h := range doc.Headings() {
		if h.Level > 2 {
			continue
		}
		if want := squash(h.Text); want != "" && !strings.Contains(text, want) {
			w.logger.Warn("Rendered document is missing a heading", "heading", h.Text)
			return false
		}
	}
	return true
}

func squash(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

// persist stores the résumé and its first version. A base résumé passed
// inline is saved as a new profile so the version has an owner.
func (w *Workflow) persist(ctx context.Context, result *Result, profileID, base, author string) error {
	if profileID == "" {
		profile := &storage.Profile{Name: author, Markdown: base}
		if err := w.deps.Store.SaveProfile(ctx, profile); err != nil {
			return fmt.Errorf("failed to save profile: %w", err)
		}
		profileID = profile.ID
	}

	rec := &storage.Resume{
		ProfileID: profileID,
		JobID:     result.Job.ID,
		Template:  result.Document.Template.String(),
	}
	if err := w.deps.Store.CreateResume(ctx, rec); err != nil {
		return fmt.Errorf("failed to save resume: %w", err)
	}

	report, err := json.Marshal(result.Report)
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeStorageFailed, "failed to encode score report", err)
	}
	version := &storage.ResumeVersion{
		ResumeID: rec.ID,
		Markdown: result.Markdown,
		Template: result.Document.Template.String(),
		Format:   string(result.Document.Format),
		Score:    result.Report.TotalScore,
		Grade:    result.Report.Grade,
		Report:   report,
	}
	if err := w.deps.Store.AddVersion(ctx, version); err != nil {
		return fmt.Errorf("failed to save resume version: %w", err)
	}

	result.Resume = rec
	result.Version = version
	return nil
}

func documentTitle(title string, job *storage.JobDescription) string {
	if title != "" {
		return title
	}
	parts := []string{"Resume"}
	if job.Title != "" {
		parts = append(parts, job.Title)
	}
	if job.Company != "" {
		parts = append(parts, job.Company)
	}
	return strings.Join(parts, " - ")
}

func authorName(doc *resume.Document) string {
	if c, ok := doc.Contact(); ok && c.Name != "" {
		return c.Name
	}
	for _, h := range doc.Headings() {
		if h.Level == 1 {
			return h.Text
		}
	}
	return ""
}
