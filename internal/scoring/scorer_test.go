package scoring

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tailorcv/internal/errors"
	"tailorcv/internal/templates"
)

const strongResume = `# Jane Doe
Jane Doe | jane@example.com | (555) 123-4567 | linkedin.com/in/jdoe

## SUMMARY
Backend engineer with 8 years building Go and Kubernetes platforms on AWS.

## EXPERIENCE
### Senior Software Engineer, Acme Corp (2019 - Present)
- Led migration of 40 services to Kubernetes, cutting infrastructure costs by 30%
- Built Go APIs serving 2M users with 99.99% uptime
- Reduced p99 latency by 45% through PostgreSQL query tuning
- Designed Terraform modules adopted by 12 teams
- Automated release pipelines, cutting deploy time from 2 hours to 15 minutes
- Mentored 6 engineers on Go and distributed systems
- Launched a Redis caching layer that improved throughput 3x
- Increased test coverage from 40% to 85%
### Software Engineer, Beta Inc (2016 - 2019)
- Developed Python data pipelines processing 5,000+ records per second
- Migrated legacy cron jobs to Airflow, saving $120k per year
- Implemented Docker-based CI for 25 microservices
- Optimized SQL reporting queries, reducing runtime by 60%
- Delivered a Kafka event bus handling 1M events per day
- Streamlined on-call runbooks, cutting incident resolution time by 35%
- Collaborated with product on 10 customer-facing launches

## EDUCATION
B.S. Computer Science, State University, 2016

## SKILLS
- Languages: Go, Python, SQL, Bash
- Cloud: AWS, Kubernetes, Docker, Terraform
- Data: PostgreSQL, Redis, Kafka, Airflow
- Practices: CI/CD, Observability, Distributed Systems

## CERTIFICATIONS
- AWS Certified Solutions Architect
`

var strongJob = &JobSignal{
	Keywords:       []string{"Go", "Kubernetes", "AWS"},
	RequiredSkills: []string{"Terraform", "python"},
}

func TestScoreStrongResume(t *testing.T) {
	report := Score(Input{Markdown: strongResume, Job: strongJob, Template: templates.Original, Format: FormatPDF})

	assert.Equal(t, MaxKeywordMatching, report.Subscores.KeywordMatching)
	assert.Equal(t, MaxQuantifiableResults, report.Subscores.QuantifiableResults)
	assert.Equal(t, MaxActionVerbs, report.Subscores.ActionVerbs)
	assert.Equal(t, MaxSkillsSection, report.Subscores.SkillsSection)
	assert.Equal(t, MaxFormatCompliance, report.Subscores.FormatCompliance)
	assert.Equal(t, MaxStructure, report.Subscores.StructureCompleteness)
	assert.Equal(t, MaxFileCompatibility, report.Subscores.FileCompatibility)
	assert.GreaterOrEqual(t, report.TotalScore, 85.0)
	assert.Equal(t, sourceJob, report.KeywordSource)
	assert.Empty(t, report.MissingKeywords)
}

func TestScoreDeterminism(t *testing.T) {
	size := int64(300 * 1024)
	in := Input{Markdown: strongResume, Job: strongJob, Template: templates.Modern, Format: FormatDOCX, FileSize: &size}

	first, err := json.Marshal(Score(in))
	require.NoError(t, err)
	for range 5 {
		again, err := json.Marshal(Score(in))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}

	scorer := NewScorer(DefaultRubric())
	other, err := json.Marshal(scorer.Score(in))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(other))
}

func TestKeywordMonotonicity(t *testing.T) {
	matching := []string{"go", "kubernetes", "aws", "terraform", "python", "redis", "kafka"}
	keywords := []string{"rust"}
	prev := -1.0
	for _, kw := range matching {
		keywords = append(keywords, kw)
		report := Score(Input{
			Markdown: strongResume,
			Job:      &JobSignal{Keywords: append([]string(nil), keywords...)},
			Format:   FormatPDF,
		})
		assert.GreaterOrEqual(t, report.Subscores.KeywordMatching, prev, "after adding %q", kw)
		prev = report.Subscores.KeywordMatching
	}
}

func TestEmptyResume(t *testing.T) {
	for _, tmpl := range templates.All() {
		t.Run(tmpl.String(), func(t *testing.T) {
			report := Score(Input{Markdown: "", Template: tmpl, Format: FormatPDF})
			assert.Less(t, report.TotalScore, 20.0)
			assert.Zero(t, report.Subscores.StructureCompleteness)
			assert.Zero(t, report.Subscores.KeywordMatching)
			assert.Zero(t, report.Subscores.SkillsSection)
			assert.NotEmpty(t, report.Suggestions)
			assert.Equal(t, "F", report.Grade)
		})
	}
}

func TestCapInvariant(t *testing.T) {
	huge := int64(50 * 1024 * 1024)
	zero := int64(0)
	inputs := map[string]string{
		"empty":      "",
		"whitespace": " \n\t\n ",
		"strong":     strongResume,
		"table":      "## SKILLS\n| a | b |\n|---|---|\n| Go | SQL |\n![x](y.png)",
		"bullets":    strings.Repeat("- Led 40% growth and saved $2M in 3 months for 500 users\n", 500),
		"stuffing":   "## SKILLS\nGo, Go, Go\n" + strings.Repeat("go ", 400),
		"headings":   strings.Repeat("## EXPERIENCE\n## SKILLS\n## PROJECTS\n## AWARDS\n## CERTIFICATIONS\n", 20),
		"invalid":    "## Skills\n\xff\xfe- \xc3\x28",
		"all caps":   strings.ToUpper(strongResume),
	}
	jobs := []*JobSignal{nil, {}, strongJob, {Keywords: []string{"go"}}}
	formats := []FileFormat{FormatPDF, FormatDOCX, "txt", ""}
	sizes := []*int64{nil, &zero, &huge}

	for name, md := range inputs {
		t.Run(name, func(t *testing.T) {
			for _, tmpl := range templates.All() {
				for _, job := range jobs {
					for _, f := range formats {
						for _, size := range sizes {
							r := Score(Input{Markdown: md, Job: job, Template: tmpl, Format: f, FileSize: size})
							assert.GreaterOrEqual(t, r.TotalScore, 0.0)
							assert.LessOrEqual(t, r.TotalScore, 100.0)
							for _, d := range r.Dimensions() {
								assert.GreaterOrEqual(t, d.Score, 0.0, d.Name)
								assert.LessOrEqual(t, d.Score, d.Max, d.Name)
							}
							assert.LessOrEqual(t, r.Categories.ContentQuality, MaxContentQuality)
						}
					}
				}
			}
		})
	}
}

func TestStructureFromHeadings(t *testing.T) {
	md := "## Contact\nx\n## Summary\nx\n## Experience\nx\n## Education\nx\n## Skills\nx\n"
	report := Score(Input{Markdown: md, Format: FormatPDF})
	assert.Equal(t, MaxStructure, report.Subscores.StructureCompleteness)

	t.Run("optional sections fill gaps up to the cap", func(t *testing.T) {
		md := "## Summary\nx\n## Experience\nx\n## Education\nx\n## Skills\nx\n## Projects\nx\n## Awards\nx\n## Certifications\nx\n"
		report := Score(Input{Markdown: md, Format: FormatPDF})
		assert.Equal(t, 18.0, report.Subscores.StructureCompleteness)
	})

	t.Run("missing sections are named", func(t *testing.T) {
		report := Score(Input{Markdown: "## Experience\nx\n## Skills\nx\n", Format: FormatPDF})
		assert.Equal(t, 8.0, report.Subscores.StructureCompleteness)
		assert.Contains(t, report.Suggestions, "Add the missing sections: Contact, Summary, Education.")
	})
}

func TestTemplateBonusOrdering(t *testing.T) {
	cases := map[string]string{
		"strong": strongResume,
		"table":  "## EXPERIENCE\n| a | b |\n- Built things\n",
		"empty":  "",
	}
	for name, md := range cases {
		t.Run(name, func(t *testing.T) {
			score := func(tmpl templates.Template) float64 {
				return Score(Input{Markdown: md, Job: strongJob, Template: tmpl, Format: FormatPDF}).TotalScore
			}
			h, m, o := score(templates.Harvard), score(templates.Modern), score(templates.Original)
			assert.GreaterOrEqual(t, h, m)
			assert.GreaterOrEqual(t, m, o)
		})
	}
}

func TestFallbackKeywords(t *testing.T) {
	md := "## SKILLS\nPython, SQL, Docker\n\n## EXPERIENCE\n- Built Docker pipelines\n"
	report := Score(Input{Markdown: md, Format: FormatPDF})

	assert.Greater(t, report.Subscores.KeywordMatching, 0.0)
	assert.Equal(t, 5.0, report.Subscores.KeywordMatching)
	assert.Equal(t, sourceResume, report.KeywordSource)
	assert.Equal(t, []string{"docker"}, report.MatchedKeywords)
	assert.Equal(t, []string{"python", "sql"}, report.MissingKeywords)

	t.Run("no skills at all", func(t *testing.T) {
		report := Score(Input{Markdown: "## EXPERIENCE\n- Built Docker pipelines\n", Format: FormatPDF})
		assert.Zero(t, report.Subscores.KeywordMatching)
		assert.Equal(t, sourceNone, report.KeywordSource)
	})

	t.Run("role sub-headings keep their bullets in experience", func(t *testing.T) {
		md := "jane@example.com\n\n## SUMMARY\nBackend engineer.\n\n## EXPERIENCE\n" +
			"### Project Manager, Acme\n- Built Docker pipelines for Python services\n- Led SQL migrations\n\n" +
			"### Senior Engineer, Data Technologies\n- Cut deploy time in half\n\n" +
			"## EDUCATION\nBSc Computer Science\n\n## SKILLS\nPython, SQL, Docker\n"
		report := Score(Input{Markdown: md, Format: FormatPDF})

		assert.Equal(t, sourceResume, report.KeywordSource)
		assert.Equal(t, MaxKeywordMatching, report.Subscores.KeywordMatching)
		assert.ElementsMatch(t, []string{"python", "sql", "docker"}, report.MatchedKeywords)
		assert.Empty(t, report.MissingKeywords)
		assert.Equal(t, MaxStructure, report.Subscores.StructureCompleteness)
	})

	t.Run("empty job signal falls back", func(t *testing.T) {
		report := Score(Input{Markdown: md, Job: &JobSignal{Keywords: []string{"  "}}, Format: FormatPDF})
		assert.Equal(t, sourceResume, report.KeywordSource)
	})
}

func TestDensityStuffingPenalty(t *testing.T) {
	words := make([]string, 0, 200)
	for i := range 200 {
		if i%4 == 0 {
			words = append(words, "python")
		} else {
			words = append(words, "word")
		}
	}
	md := "## SUMMARY\n" + strings.Join(words, " ")
	report := Score(Input{Markdown: md, Job: &JobSignal{Keywords: []string{"python"}}, Format: FormatPDF})

	assert.InDelta(t, 25.0, report.DensityPercent, 0.01)
	assert.Zero(t, report.Subscores.KeywordDensity)
	assert.True(t, hasSuggestion(report, "keyword stuffing"))
}

func TestDensityCurve(t *testing.T) {
	s := NewScorer(DefaultRubric())
	tests := []struct {
		pct  float64
		want float64
	}{
		{0, 0},
		{0.4, 0},
		{0.5, 0},
		{1.25, 5},
		{2, 10},
		{3, 10},
		{4, 10},
		{6, 5},
		{8, 0},
		{9, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.pct), func(t *testing.T) {
			assert.InDelta(t, tt.want, s.densityCurve(tt.pct), 1e-9)
		})
	}
}

func TestQuantifiableResults(t *testing.T) {
	md := strings.Join([]string{
		"- Reduced costs by 30% saving $1.2M",
		"- Served 10,000+ users",
		"- Cut build time from 20 minutes to 3 minutes",
		"- Improved throughput 3x",
		"Paragraph with 50% is not a bullet",
	}, "\n")
	report := Score(Input{Markdown: md, Format: FormatPDF})
	assert.Equal(t, 3.0, report.Subscores.QuantifiableResults)
	assert.Contains(t, report.Suggestions, "Add 4 more quantifiable metrics to reach the 10-metric target (percentages, amounts, counts, time saved).")
}

func TestActionVerbs(t *testing.T) {
	md := strings.Join([]string{
		"- Led the platform team",
		"- **Built** a scheduler",
		"- Responsible for on-call",
		"- reduced toil",
		"Designed the paragraph",
	}, "\n")
	report := Score(Input{Markdown: md, Format: FormatPDF})
	assert.Equal(t, 1.0, report.Subscores.ActionVerbs)
}

func TestSkillsSection(t *testing.T) {
	fifteen := "Go, Python, SQL, Bash, AWS, Kubernetes, Docker, Terraform, PostgreSQL, Redis, Kafka, Airflow, Linux, Git, gRPC"
	tests := []struct {
		name string
		md   string
		want float64
	}{
		{name: "none", md: "## EXPERIENCE\n- x", want: 0},
		{name: "fifteen flat", md: "## SKILLS\n" + fifteen, want: 3.5},
		{name: "fifteen grouped", md: "## SKILLS\n- Languages: Go, Python, SQL, Bash, Rust\n- Cloud: AWS, GCP, Kubernetes, Docker, Terraform\n- Data: PostgreSQL, Redis, Kafka, Airflow, Spark", want: 5},
		{name: "sub-headings group", md: "## SKILLS\n### Languages\n" + fifteen + "\n### Tools\nVim", want: 5},
		{name: "few grouped", md: "## SKILLS\n- Languages: Go, Python\n- Tools: Docker", want: 2.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Score(Input{Markdown: tt.md, Format: FormatPDF})
			assert.InDelta(t, tt.want, report.Subscores.SkillsSection, 1e-9)
		})
	}
}

func TestFormatCompliance(t *testing.T) {
	body := "## EXPERIENCE\n- Built things\n"
	tests := []struct {
		name string
		md   string
		tmpl templates.Template
		want float64
	}{
		{name: "clean", md: body, tmpl: templates.Original, want: 30},
		{name: "table", md: body + "| a | b |\n", tmpl: templates.Original, want: 22},
		{name: "table with harvard bonus", md: body + "| a | b |\n", tmpl: templates.Harvard, want: 26},
		{name: "image", md: body + "![logo](logo.png)\n", tmpl: templates.Original, want: 24},
		{name: "html graphic", md: body + "<img src=x>\n", tmpl: templates.Modern, want: 26},
		{name: "no section headers", md: "- Built things\n", tmpl: templates.Original, want: 25},
		{name: "lowercase headers are upper-cased by the template", md: "## experience\n- Built\n", tmpl: templates.Original, want: 30},
		{name: "everything wrong", md: "| a |\n![x](y)\n", tmpl: templates.Original, want: 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Score(Input{Markdown: tt.md, Template: tt.tmpl, Format: FormatPDF})
			assert.Equal(t, tt.want, report.Subscores.FormatCompliance)
		})
	}
}

func TestFileCompatibility(t *testing.T) {
	size := func(n int64) *int64 { return &n }
	tests := []struct {
		name   string
		format FileFormat
		size   *int64
		want   float64
	}{
		{name: "pdf no size", format: FormatPDF, want: 10},
		{name: "docx small", format: FormatDOCX, size: size(100 * 1024), want: 10},
		{name: "upper-case extension", format: ".PDF", want: 10},
		{name: "pdf at limit", format: FormatPDF, size: size(500 * 1024), want: 10},
		{name: "pdf double", format: FormatPDF, size: size(1000 * 1024), want: 5},
		{name: "unknown", format: "txt", want: 0},
		{name: "missing", format: "", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Score(Input{Markdown: strongResume, Format: tt.format, FileSize: tt.size})
			assert.Equal(t, tt.want, report.Subscores.FileCompatibility)
		})
	}
	assert.Equal(t, FormatDOCX, FormatFromPath("out/resume.DOCX"))
}

func TestGrade(t *testing.T) {
	tests := []struct {
		total float64
		want  string
	}{
		{100, "A+"}, {97, "A+"}, {96.9, "A"}, {93, "A"}, {90, "A-"}, {89.9, "B+"},
		{85, "B+"}, {80, "B"}, {79.9, "C"}, {70, "C"}, {60, "D"}, {59.9, "F"}, {0, "F"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Grade(tt.total), "total %v", tt.total)
	}
}

func TestSuggestionsMatchLowSubscores(t *testing.T) {
	inputs := []string{"", strongResume, "## SKILLS\nGo\n- Built it\n| x |"}
	for i, md := range inputs {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			report := Score(Input{Markdown: md, Format: "odt"})
			assert.Len(t, report.Suggestions, len(report.Issues()))
		})
	}

	report := Score(Input{Markdown: strongResume, Job: strongJob, Format: FormatPDF})
	for _, s := range report.Suggestions {
		assert.NotContains(t, s, "action verbs")
		assert.NotContains(t, s, "metrics")
	}
}

func TestReportJSONShape(t *testing.T) {
	data, err := json.Marshal(Score(Input{Markdown: "", Format: FormatPDF}))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"total_score", "grade", "subscores", "suggestions"} {
		assert.Contains(t, decoded, key)
	}
	sub := decoded["subscores"].(map[string]any)
	assert.Len(t, sub, 8)
	assert.Equal(t, "original", decoded["template"])
}

func hasSuggestion(r Report, substr string) bool {
	for _, s := range r.Suggestions {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

func BenchmarkScore(b *testing.B) {
	in := Input{Markdown: strongResume, Job: strongJob, Template: templates.Harvard, Format: FormatPDF}
	for b.Loop() {
		Score(in)
	}
}

func TestParseFileFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    FileFormat
		known   bool
		wantErr bool
	}{
		{in: "pdf", want: FormatPDF, known: true},
		{in: ".DOCX", want: FormatDOCX, known: true},
		{in: "txt", want: "txt"},
		{in: "exe", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFileFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.known, got.Known())
		})
	}
}
