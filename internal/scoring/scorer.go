// Package scoring estimates how well a markdown résumé would survive an
// applicant tracking system. Scoring is a pure function of its input.
package scoring

import (
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strings"

	"tailorcv/internal/errors"
	"tailorcv/internal/resume"
	"tailorcv/internal/templates"
)

// FileFormat is the format the résumé is, or will be, delivered in.
// Unknown values are accepted and earn no file compatibility credit.
type FileFormat string

const (
	FormatPDF  FileFormat = "pdf"
	FormatDOCX FileFormat = "docx"
)

// Known reports whether ATS parsers are expected to read the format.
func (f FileFormat) Known() bool {
	switch f.normalized() {
	case FormatPDF, FormatDOCX:
		return true
	}
	return false
}

func (f FileFormat) normalized() FileFormat {
	return FileFormat(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(string(f))), "."))
}

// otherFormats are formats people submit that parsers read poorly.
var otherFormats = map[FileFormat]bool{
	"doc": true, "rtf": true, "txt": true, "md": true, "html": true, "odt": true, "pages": true,
}

// ParseFileFormat validates a user-supplied file format. pdf and docx score
// fully; other document formats are accepted and score zero.
func ParseFileFormat(s string) (FileFormat, error) {
	f := FileFormat(s).normalized()
	if f.Known() || otherFormats[f] {
		return f, nil
	}
	return "", errors.NewValidationError(errors.ErrCodeInvalidFormat,
		fmt.Sprintf("unsupported file format %q", s), nil).WithContext("file_format", s)
}

// FormatFromPath derives the file format from a file extension.
func FormatFromPath(path string) FileFormat {
	return FileFormat(filepath.Ext(path)).normalized()
}

// JobSignal carries what job analysis extracted from a posting.
type JobSignal struct {
	Keywords       []string `json:"keywords,omitempty"`
	RequiredSkills []string `json:"required_skills,omitempty"`
}

// Input is everything a score depends on.
type Input struct {
	Markdown string
	Job      *JobSignal
	Template templates.Template
	Format   FileFormat
	FileSize *int64
}

// Scorer applies a rubric. It is immutable and safe for concurrent use.
type Scorer struct {
	rubric  Rubric
	verbs   map[string]bool
	metrics *regexp.Regexp
}

// NewScorer compiles a rubric.
func NewScorer(r Rubric) *Scorer {
	verbs := make(map[string]bool, len(r.ActionVerbs))
	for _, v := range r.ActionVerbs {
		verbs[strings.ToLower(v)] = true
	}
	return &Scorer{
		rubric:  r,
		verbs:   verbs,
		metrics: regexp.MustCompile(`(?i)(?:` + strings.Join(r.MetricPatterns, "|") + `)`),
	}
}

var defaultScorer = NewScorer(DefaultRubric())

// Score scores with the default rubric.
func Score(in Input) Report {
	return defaultScorer.Score(in)
}

// Score computes the report for in. It never fails.
func (s *Scorer) Score(in Input) Report {
	raw := strings.ToValidUTF8(in.Markdown, " ")
	doc := resume.Parse(raw)
	tmpl := in.Template
	if !tmpl.Valid() {
		tmpl = templates.Original
	}
	spec := tmpl.Spec()

	a := newAnalysis(doc)
	kw := s.keywordMatching(a, in.Job)
	density := s.keywordDensity(a, kw.terms)
	quant := s.quantifiableResults(a)
	verbs := s.actionVerbs(a)
	skills := s.skillsSection(a)
	format := s.formatCompliance(raw, a, tmpl, spec)
	structure := s.structureCompleteness(doc)
	file := s.fileCompatibility(in.Format, in.FileSize)

	sub := Subscores{
		KeywordMatching:       kw.score,
		KeywordDensity:        density.score,
		QuantifiableResults:   quant.score,
		ActionVerbs:           verbs.score,
		SkillsSection:         skills.score,
		FormatCompliance:      format.score,
		StructureCompleteness: structure.score,
		FileCompatibility:     file.score,
	}

	total := round1(clamp(sub.sum()+spec.BaseBonus, 0, 100))

	return Report{
		TotalScore:  total,
		Grade:       Grade(total),
		Subscores:   sub,
		Suggestions: s.suggestions(sub, kw, density, quant, verbs, skills, format, structure, file),
		Categories: Categories{
			ContentQuality:        round1(sub.KeywordMatching + sub.KeywordDensity + sub.QuantifiableResults + sub.ActionVerbs + sub.SkillsSection),
			FormatCompliance:      sub.FormatCompliance,
			StructureCompleteness: sub.StructureCompleteness,
			FileCompatibility:     sub.FileCompatibility,
		},
		Template:        tmpl,
		BaseBonus:       spec.BaseBonus,
		KeywordSource:   kw.source,
		MatchedKeywords: kw.matched,
		MissingKeywords: kw.missing,
		DensityPercent:  round1(density.percent),
	}
}

// analysis holds the views of a parsed document the subscores share.
type analysis struct {
	doc        *resume.Document
	text       string   // lower-cased, all blocks
	bodyTokens []string // lower-cased, non-heading blocks
	narrative  string   // lower-cased experience and summary
	skills     skillsList
}

func newAnalysis(doc *resume.Document) *analysis {
	return &analysis{
		doc:        doc,
		text:       strings.ToLower(doc.Text()),
		bodyTokens: tokenize(doc.BodyText()),
		narrative:  strings.ToLower(doc.SectionText(resume.SectionExperience, resume.SectionSummary)),
		skills:     parseSkills(doc.SectionBlocks(resume.SectionSkills)),
	}
}

// tokenize splits text into lower-cased words, keeping characters that
// belong to technology names such as C++, C# and Node.js.
func tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?()[]{}\"'`*_|/\\<>•·–—-")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// normalizeTerms lower-cases, trims and de-duplicates, keeping first
// occurrence order.
func normalizeTerms(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, t := range list {
			t = strings.Join(strings.Fields(strings.ToLower(t)), " ")
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
