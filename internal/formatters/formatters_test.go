package formatters

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tailorcv/internal/rendering"
	"tailorcv/internal/scoring"
	"tailorcv/internal/storage"
	"tailorcv/internal/templates"
	"tailorcv/internal/types"
	"tailorcv/internal/workflow"
)

func sampleReport() *scoring.Report {
	return &scoring.Report{
		TotalScore:      87.5,
		Grade:           "B+",
		Template:        templates.Modern,
		BaseBonus:       2,
		KeywordSource:   "job",
		MatchedKeywords: []string{"go", "kubernetes"},
		MissingKeywords: []string{"terraform"},
		DensityPercent:  2.4,
		Suggestions:     []string{"Add terraform where it reflects real experience."},
	}
}

func TestFormatReport(t *testing.T) {
	registry := NewFormatterRegistry()

	tests := []struct {
		format string
		want   []string
	}{
		{"text", []string{"=== ATS SCORE REPORT ===", "Score: 87.5/100 (B+)", "Template: modern", "Missing keywords: terraform", "1. Add terraform"}},
		{"markdown", []string{"# ATS Score Report", "**Score:** 87.5/100 (B+)", "## Suggestions", "**Matched keywords:** go, kubernetes"}},
		{"json", []string{`"total_score": 87.5`, `"template": "modern"`, `"keyword_source": "job"`}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, err := registry.Format(sampleReport(), tt.format)
			require.NoError(t, err)
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestFormatBatch(t *testing.T) {
	batch := ScoreBatch{
		{Path: "a.md", Report: sampleReport()},
		{Path: "b.md", Error: "file not found"},
	}
	out, err := NewFormatterRegistry().Format(batch, "text")
	require.NoError(t, err)
	assert.Contains(t, out, "- a.md: 87.5 (B+)")
	assert.Contains(t, out, "- b.md: error: file not found")
	assert.Contains(t, out, "a.md:\nScore: 87.5/100 (B+)")
}

func TestFormatGenerateResult(t *testing.T) {
	res := &workflow.Result{
		Job:      &storage.JobDescription{ID: "job-1", Title: "Platform Engineer", Company: "Globex"},
		Changes:  []string{"added Kubernetes"},
		Document: &rendering.Result{Data: make([]byte, 2048), Template: templates.Harvard, Format: rendering.PDF},
		Report:   *sampleReport(),
		Resume:   &storage.Resume{ID: "res-1"},
		Version:  &storage.ResumeVersion{Version: 3},
		Verified: true,
	}

	out, err := NewFormatterRegistry().Format(res, "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "**Job:** Platform Engineer at Globex")
	assert.Contains(t, out, "**Resume:** res-1 (version 3)")
	assert.Contains(t, out, "harvard, pdf, 2048 bytes")
	assert.Contains(t, out, "- added Kubernetes")
	assert.Contains(t, out, "## Score")

	js, err := NewFormatterRegistry().Format(res, "json")
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(js), &decoded))
	assert.NotContains(t, decoded, "Document", "document bytes stay out of JSON")
}

func TestFormatEvaluate(t *testing.T) {
	registry := NewFormatterRegistry()

	clean, err := registry.Format(types.EvaluateResumeOutput{Summary: "Looks accurate."}, "text")
	require.NoError(t, err)
	assert.Contains(t, clean, "No issues found.")

	out, err := registry.Format(types.EvaluateResumeOutput{
		Summary:  "One invention.",
		Findings: []types.EvaluationFinding{{Type: "Invention", Description: "Kubernetes not in base", Evidence: "on Kubernetes"}},
	}, "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "### 1. Invention")
	assert.Contains(t, out, "**Evidence:** on Kubernetes")
}

func TestFormatAnalyze(t *testing.T) {
	out, err := NewFormatterRegistry().Format(types.AnalyzeJobOutput{
		Title:    "SRE",
		Company:  "Initech",
		Keywords: []string{"Go", "Terraform"},
	}, "text")
	require.NoError(t, err)
	assert.Contains(t, out, "Title: SRE")
	assert.Contains(t, out, "Keywords:\n- Go\n- Terraform")
	assert.Contains(t, out, "Required Skills:\n(none)")
}

func TestFormatLists(t *testing.T) {
	registry := NewFormatterRegistry()
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	jobs, err := registry.Format([]storage.JobDescription{{ID: "j1", Title: "SRE", Keywords: []string{"go"}, CreatedAt: created}}, "text")
	require.NoError(t, err)
	assert.Contains(t, jobs, "j1  SRE  -  (1 keywords, 2025-03-01)")

	empty, err := registry.Format([]storage.Resume{}, "text")
	require.NoError(t, err)
	assert.Contains(t, empty, "No stored resumes.")

	versions, err := registry.Format([]storage.ResumeVersion{{Version: 2, Template: "modern", Format: "docx", Score: 91, Grade: "A-", CreatedAt: created}}, "markdown")
	require.NoError(t, err)
	assert.Contains(t, versions, "- v2  modern/docx  91.0 (A-)  2025-03-01 12:00")
}

func TestFormatUnknown(t *testing.T) {
	registry := NewFormatterRegistry()

	_, err := registry.Format(sampleReport(), "yaml")
	assert.Error(t, err)

	_, err = registry.Format(map[string]int{"a": 1}, "text")
	assert.Error(t, err, "text has no generic formatter")

	out, err := registry.Format(map[string]int{"a": 1}, "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, out)

	assert.Equal(t, []string{"json", "markdown", "text"}, registry.GetSupportedFormats())
}
