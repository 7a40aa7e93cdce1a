package formatters

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"tailorcv/internal/scoring"
	"tailorcv/internal/storage"
	"tailorcv/internal/types"
	"tailorcv/internal/workflow"
)

// Formatter renders one data type in one output format.
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// ScoredFile is one entry of a batch scoring run.
type ScoredFile struct {
	Path   string          `json:"path"`
	Report *scoring.Report `json:"report,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ScoreBatch is the result of scoring several files.
type ScoreBatch []ScoredFile

// FormatterRegistry maps format and data type to a formatter.
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a registry holding the json, text and
// markdown formatters for every output type.
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	for _, style := range []style{plain, markdown} {
		for _, f := range []*styled{
			{"Report", style, formatReport},
			{"ScoreBatch", style, formatBatch},
			{"GenerateResult", style, formatGenerate},
			{"AnalyzeJobOutput", style, formatAnalyze},
			{"EvaluateResumeOutput", style, formatEvaluate},
			{"TailorResumeOutput", style, formatTailor},
			{"Profile", style, formatProfile},
			{"Jobs", style, formatJobs},
			{"Resumes", style, formatResumes},
			{"Versions", style, formatVersions},
		} {
			registry.RegisterFormatter(style.name, f.dataType, f)
		}
	}
	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter.
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType, data := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted.
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	slices.Sort(formats)
	return formats
}

// getDataType names the data and dereferences pointers so formatters only
// deal with values.
func getDataType(data any) (string, any) {
	switch v := data.(type) {
	case *scoring.Report:
		if v != nil {
			return "Report", *v
		}
	case scoring.Report:
		return "Report", v
	case ScoreBatch:
		return "ScoreBatch", v
	case *workflow.Result:
		if v != nil {
			return "GenerateResult", *v
		}
	case workflow.Result:
		return "GenerateResult", v
	case types.AnalyzeJobOutput:
		return "AnalyzeJobOutput", v
	case types.EvaluateResumeOutput:
		return "EvaluateResumeOutput", v
	case types.TailorResumeOutput:
		return "TailorResumeOutput", v
	case *storage.Profile:
		if v != nil {
			return "Profile", *v
		}
	case []storage.JobDescription:
		return "Jobs", v
	case []storage.Resume:
		return "Resumes", v
	case []storage.ResumeVersion:
		return "Versions", v
	}
	return "any", data
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// styled adapts a format function to the Formatter interface.
type styled struct {
	dataType string
	style    style
	fn       func(w *writer, data any) error
}

func (s *styled) Format(data any) (string, error) {
	w := &writer{style: s.style}
	if err := s.fn(w, data); err != nil {
		return "", err
	}
	return w.String(), nil
}

func (s *styled) SupportedType() string {
	return s.dataType
}

func expect[T any](data any) (T, error) {
	v, ok := data.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("expected %T, got %T", zero, data)
	}
	return v, nil
}

func formatReport(w *writer, data any) error {
	r, err := expect[scoring.Report](data)
	if err != nil {
		return err
	}
	w.heading(1, "ATS Score Report")
	writeReport(w, r)
	return nil
}

func writeReport(w *writer, r scoring.Report) {
	w.field("Score", fmt.Sprintf("%.1f/100 (%s)", r.TotalScore, r.Grade))
	w.field("Template", r.Template.String())
	if r.BaseBonus > 0 {
		w.field("Template bonus", fmt.Sprintf("+%.1f", r.BaseBonus))
	}
	w.field("Keyword source", r.KeywordSource)
	w.field("Keyword density", fmt.Sprintf("%.1f%%", r.DensityPercent))
	w.blank()

	w.heading(2, "Categories")
	w.field("Content quality", fmt.Sprintf("%.1f", r.Categories.ContentQuality))
	w.field("Format compliance", fmt.Sprintf("%.1f", r.Categories.FormatCompliance))
	w.field("Structure completeness", fmt.Sprintf("%.1f", r.Categories.StructureCompleteness))
	w.field("File compatibility", fmt.Sprintf("%.1f", r.Categories.FileCompatibility))
	w.blank()

	s := r.Subscores
	w.heading(2, "Subscores")
	w.field("Keyword matching", fmt.Sprintf("%.1f", s.KeywordMatching))
	w.field("Keyword density", fmt.Sprintf("%.1f", s.KeywordDensity))
	w.field("Quantifiable results", fmt.Sprintf("%.1f", s.QuantifiableResults))
	w.field("Action verbs", fmt.Sprintf("%.1f", s.ActionVerbs))
	w.field("Skills section", fmt.Sprintf("%.1f", s.SkillsSection))
	w.field("Format compliance", fmt.Sprintf("%.1f", s.FormatCompliance))
	w.field("Structure completeness", fmt.Sprintf("%.1f", s.StructureCompleteness))
	w.field("File compatibility", fmt.Sprintf("%.1f", s.FileCompatibility))
	w.blank()

	if len(r.MatchedKeywords) > 0 {
		w.field("Matched keywords", strings.Join(r.MatchedKeywords, ", "))
	}
	if len(r.MissingKeywords) > 0 {
		w.field("Missing keywords", strings.Join(r.MissingKeywords, ", "))
	}

	w.heading(2, "Suggestions")
	if len(r.Suggestions) == 0 {
		w.line("No suggestions.")
	}
	w.numbered(r.Suggestions)
}

func formatBatch(w *writer, data any) error {
	batch, err := expect[ScoreBatch](data)
	if err != nil {
		return err
	}
	w.heading(1, "ATS Score Summary")
	for _, f := range batch {
		if f.Report == nil {
			w.bullet(fmt.Sprintf("%s: error: %s", f.Path, f.Error))
			continue
		}
		w.bullet(fmt.Sprintf("%s: %.1f (%s)", f.Path, f.Report.TotalScore, f.Report.Grade))
	}
	for _, f := range batch {
		if f.Report == nil {
			continue
		}
		w.blank()
		w.heading(2, f.Path)
		writeReport(w, *f.Report)
	}
	return nil
}

func formatGenerate(w *writer, data any) error {
	res, err := expect[workflow.Result](data)
	if err != nil {
		return err
	}
	w.heading(1, "Tailored Resume")
	if res.Job != nil {
		w.field("Job", strings.TrimSpace(res.Job.Title+" at "+res.Job.Company))
		if res.Job.ID != "" {
			w.field("Job ID", res.Job.ID)
		}
	}
	if res.Resume != nil && res.Version != nil {
		w.field("Resume", fmt.Sprintf("%s (version %d)", res.Resume.ID, res.Version.Version))
	}
	if res.Document != nil {
		w.field("Document", fmt.Sprintf("%s, %s, %d bytes", res.Document.Template, res.Document.Format, len(res.Document.Data)))
		if res.Document.FellBack {
			w.line("The requested template failed and the original template was used.")
		}
	}
	w.field("Read back", yesNo(res.Verified))
	if res.Brief != nil && !res.Brief.Empty() {
		w.field("Research sources", fmt.Sprint(len(res.Brief.Sources)))
	}
	w.blank()

	if len(res.Changes) > 0 {
		w.heading(2, "Changes")
		w.list(res.Changes)
		w.blank()
	}

	w.heading(2, "Score")
	writeReport(w, res.Report)
	return nil
}

func formatTailor(w *writer, data any) error {
	out, err := expect[types.TailorResumeOutput](data)
	if err != nil {
		return err
	}
	w.heading(1, "Tailored Resume")
	w.raw(out.TailoredResume)
	w.blank()
	if len(out.Changes) > 0 {
		w.heading(2, "Changes")
		w.list(out.Changes)
	}
	if len(out.UsedKeywords) > 0 {
		w.field("Used keywords", strings.Join(out.UsedKeywords, ", "))
	}
	return nil
}

func formatAnalyze(w *writer, data any) error {
	out, err := expect[types.AnalyzeJobOutput](data)
	if err != nil {
		return err
	}
	w.heading(1, "Job Analysis")
	w.field("Title", out.Title)
	w.field("Company", out.Company)
	if out.Seniority != "" {
		w.field("Seniority", out.Seniority)
	}
	w.blank()
	if out.Summary != "" {
		w.heading(2, "Summary")
		w.line(out.Summary)
		w.blank()
	}
	w.heading(2, "Keywords")
	w.list(out.Keywords)
	w.blank()
	w.heading(2, "Required Skills")
	w.list(out.RequiredSkills)
	return nil
}

func formatEvaluate(w *writer, data any) error {
	result, err := expect[types.EvaluateResumeOutput](data)
	if err != nil {
		return err
	}
	w.heading(1, "Resume Evaluation")
	w.heading(2, "Summary")
	w.line(result.Summary)
	w.blank()

	if result.Clean() {
		w.line("No issues found. The tailored resume appears to be accurate and truthful.")
		return nil
	}
	w.heading(2, "Findings")
	for i, finding := range result.Findings {
		w.heading(3, fmt.Sprintf("%d. %s", i+1, finding.Type))
		w.field("Description", finding.Description)
		w.field("Evidence", finding.Evidence)
		w.blank()
	}
	return nil
}

func formatProfile(w *writer, data any) error {
	p, err := expect[storage.Profile](data)
	if err != nil {
		return err
	}
	w.heading(1, "Profile "+p.ID)
	w.field("Name", p.Name)
	w.field("Updated", p.UpdatedAt.Format("2006-01-02 15:04"))
	w.blank()
	w.raw(p.Markdown)
	return nil
}

func formatJobs(w *writer, data any) error {
	jobs, err := expect[[]storage.JobDescription](data)
	if err != nil {
		return err
	}
	w.heading(1, "Jobs")
	if len(jobs) == 0 {
		w.line("No stored jobs.")
	}
	for _, j := range jobs {
		w.bullet(fmt.Sprintf("%s  %s  %s  (%d keywords, %s)", j.ID, orDash(j.Title), orDash(j.Company), len(j.Keywords), j.CreatedAt.Format("2006-01-02")))
	}
	return nil
}

func formatResumes(w *writer, data any) error {
	resumes, err := expect[[]storage.Resume](data)
	if err != nil {
		return err
	}
	w.heading(1, "Resumes")
	if len(resumes) == 0 {
		w.line("No stored resumes.")
	}
	for _, r := range resumes {
		w.bullet(fmt.Sprintf("%s  job %s  %s  (%s)", r.ID, orDash(r.JobID), r.Template, r.CreatedAt.Format("2006-01-02")))
	}
	return nil
}

func formatVersions(w *writer, data any) error {
	versions, err := expect[[]storage.ResumeVersion](data)
	if err != nil {
		return err
	}
	w.heading(1, "Versions")
	if len(versions) == 0 {
		w.line("No versions.")
	}
	for _, v := range versions {
		w.bullet(fmt.Sprintf("v%d  %s/%s  %.1f (%s)  %s", v.Version, v.Template, v.Format, v.Score, v.Grade, v.CreatedAt.Format("2006-01-02 15:04")))
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
