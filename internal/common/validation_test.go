package common

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tailorcv/internal/errors"
	"tailorcv/internal/rendering"
	"tailorcv/internal/resume"
	"tailorcv/internal/scoring"
	"tailorcv/internal/templates"
	"tailorcv/internal/types"
)

func TestValidateOutputFormat(t *testing.T) {
	supported := []string{"json", "text", "markdown"}
	tests := []struct {
		name          string
		format        string
		supported     []string
		expectedError string
	}{
		{name: "json", format: "json", supported: supported},
		{name: "markdown", format: "markdown", supported: supported},
		{name: "unknown", format: "xml", supported: supported, expectedError: "unsupported output format 'xml'. Supported formats: [json text markdown]"},
		{name: "case sensitive", format: "JSON", supported: supported, expectedError: "unsupported output format 'JSON'. Supported formats: [json text markdown]"},
		{name: "empty format", format: "", supported: supported, expectedError: "unsupported output format ''. Supported formats: [json text markdown]"},
		{name: "no restrictions", format: "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputFormat(tt.format, tt.supported)
			if tt.expectedError == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.expectedError)
		})
	}
}

func TestResolveTemplate(t *testing.T) {
	tests := []struct {
		name       string
		flag       string
		configured string
		want       templates.Template
		wantErr    bool
	}{
		{name: "flag wins", flag: "harvard", configured: "modern", want: templates.Harvard},
		{name: "configured default", configured: "modern", want: templates.Modern},
		{name: "nothing set", want: templates.Original},
		{name: "unknown", flag: "fancy", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveTemplate(tt.flag, tt.configured)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTemplate))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func testLogger() *errors.Logger {
	return errors.NewLoggerWithWriter(&bytes.Buffer{}, 0)
}

func TestReadBytesLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resume.md")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("a"), 100), 0600))

	_, err := NewFileProcessor(testLogger(), 100).ReadBytes(path)
	assert.NoError(t, err, "exactly at the limit")

	_, err = NewFileProcessor(testLogger(), 99).ReadBytes(path)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFileTooLarge))

	_, err = NewFileProcessor(testLogger(), 0).ReadBytes(filepath.Join(dir, "missing.md"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeFileNotFound))
}

const sampleResume = `# Jane Doe
jane@example.com | Berlin

## EXPERIENCE
### Engineer | Acme | 2020 - Present
- Built Go services

## SKILLS
- Go, SQL
`

func TestLoadResume(t *testing.T) {
	dir := t.TempDir()
	fp := NewFileProcessor(testLogger(), 0)

	mdPath := filepath.Join(dir, "resume.md")
	require.NoError(t, os.WriteFile(mdPath, []byte(sampleResume), 0600))
	md, err := fp.LoadResume(mdPath)
	require.NoError(t, err)
	assert.Equal(t, sampleResume, md.Text)
	assert.Equal(t, scoring.FileFormat("md"), md.Format)
	assert.Equal(t, int64(len(sampleResume)), md.Size)

	doc, err := rendering.NewRenderer().Render(resume.Parse(sampleResume), templates.Original, rendering.DOCX)
	require.NoError(t, err)
	docxPath := filepath.Join(dir, "resume.docx")
	require.NoError(t, os.WriteFile(docxPath, doc, 0600))

	docx, err := fp.LoadResume(docxPath)
	require.NoError(t, err)
	assert.Equal(t, scoring.FormatDOCX, docx.Format)
	assert.Contains(t, docx.Text, "Built Go services")

	_, err = fp.LoadResume(dir)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInputFile), "directories are rejected")
}

func TestOutputHandler(t *testing.T) {
	var stdout bytes.Buffer
	oh := NewOutputHandlerWithWriter(testLogger(), &stdout)
	out := types.AnalyzeJobOutput{Title: "SRE", Keywords: []string{"Go"}}

	require.NoError(t, oh.HandleOutput(out, CommandConfig{OutputFormat: "json"}))
	assert.Contains(t, stdout.String(), `"title": "SRE"`)

	path := filepath.Join(t.TempDir(), "nested", "analysis.md")
	require.NoError(t, oh.HandleOutput(out, CommandConfig{OutputFile: path, OutputFormat: "markdown"}))
	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(written), "# Job Analysis")

	err = oh.HandleOutput(out, CommandConfig{OutputFormat: "yaml"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidFormat))

	stdout.Reset()
	require.NoError(t, oh.WriteDocument("-", []byte("%PDF-1.4")))
	assert.Equal(t, "%PDF-1.4", stdout.String())
}
