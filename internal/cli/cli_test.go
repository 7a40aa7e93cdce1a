package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tailorcv/internal/common"
	"tailorcv/internal/config"
	"tailorcv/internal/errors"
	"tailorcv/internal/formatters"
	"tailorcv/internal/rendering"
	"tailorcv/internal/resume"
	"tailorcv/internal/scoring"
	"tailorcv/internal/storage"
	"tailorcv/internal/templates"
)

const sampleResume = `# Jane Doe
jane@example.com | +1 555 0100 | Berlin

## SUMMARY
Backend engineer with eight years of experience.

## EXPERIENCE
### Senior Engineer | Acme | Berlin | Jan 2020 - Present
- Built Go services handling 40k requests per second
- Reduced p99 latency by 35% with PostgreSQL tuning

## SKILLS
- Languages: Go, SQL, Python
`

func testLogger() *errors.Logger {
	return errors.NewLoggerWithWriter(&bytes.Buffer{}, 0)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		App: config.AppConfig{
			DefaultFormat:    "json",
			SupportedFormats: []string{"json", "text", "markdown"},
			DefaultTemplate:  "original",
			DefaultOutput:    "pdf",
			MaxFileSize:      1 << 20,
		},
		Storage: config.StorageConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "tailorcv.db")},
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// run executes the root command with fresh flag values.
func run(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	scoreConfig = scoreOptions{Concurrency: 4}
	renderConfig = renderOptions{}
	analyzeConfig = analyzeOptions{}
	generateConfig = generateOptions{}
	evaluateConfig = common.CommandConfig{}
	historyConfig = common.CommandConfig{}
	historyLimit = 20
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := Execute(context.Background(), cfg, testLogger())
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestScoreCommand(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "resume.md", sampleResume)

	out, err := run(t, cfg, "score", path, "--keywords", "Go,Kubernetes", "--template", "harvard")
	require.NoError(t, err)

	var report scoring.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, templates.Harvard, report.Template)
	assert.Contains(t, report.MatchedKeywords, "go")
	assert.Contains(t, report.MissingKeywords, "kubernetes")

	_, err = run(t, cfg, "score", path, "--template", "fancy")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTemplate))

	_, err = run(t, cfg, "score", path, "--format", "yaml")
	assert.Error(t, err)
}

func TestScoreBatchCommand(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	good := writeFile(t, dir, "a.md", sampleResume)
	other := writeFile(t, dir, "b.md", "# John Roe\n\n## SKILLS\n- Cobol\n")

	out, err := run(t, cfg, "score", good, filepath.Join(dir, "missing.md"), other, "--format", "json")
	require.NoError(t, err)

	var batch formatters.ScoreBatch
	require.NoError(t, json.Unmarshal([]byte(out), &batch))
	require.Len(t, batch, 3)
	assert.Equal(t, good, batch[0].Path)
	assert.NotNil(t, batch[0].Report)
	assert.NotEmpty(t, batch[1].Error)
	assert.Nil(t, batch[1].Report)
	assert.Equal(t, other, batch[2].Path)
	assert.Greater(t, batch[0].Report.TotalScore, batch[2].Report.TotalScore)

	_, err = run(t, cfg, "score", filepath.Join(dir, "x.md"), filepath.Join(dir, "y.md"))
	assert.Error(t, err, "all files failing is an error")
}

func TestScoreDocumentUsesItsOwnFormat(t *testing.T) {
	cfg := testConfig(t)
	data, err := rendering.NewRenderer().Render(resume.Parse(sampleResume), templates.Original, rendering.DOCX)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "resume.docx")
	require.NoError(t, os.WriteFile(path, data, 0600))

	sc, err := newFileScorer(context.Background(), cfg, testLogger(), common.NewFileProcessor(testLogger(), 0), scoreOptions{})
	require.NoError(t, err)
	report, err := sc.scoreFile(path)
	require.NoError(t, err)
	assert.Greater(t, report.Subscores.FileCompatibility, 0.0)
}

func TestScoreWithStoredJob(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	store, err := openStore(ctx, cfg, testLogger())
	require.NoError(t, err)
	job := &storage.JobDescription{Text: "Go role", Keywords: []string{"Go", "Terraform"}, RequiredSkills: []string{"SQL"}}
	require.NoError(t, store.SaveJob(ctx, job))
	require.NoError(t, store.Close())

	sc, err := newFileScorer(ctx, cfg, testLogger(), common.NewFileProcessor(testLogger(), 0),
		scoreOptions{JobID: job.ID, Keywords: []string{"go", "Docker"}})
	require.NoError(t, err)
	require.NotNil(t, sc.base.Job)
	assert.Equal(t, []string{"Go", "Terraform", "Docker"}, sc.base.Job.Keywords)
	assert.Equal(t, []string{"SQL"}, sc.base.Job.RequiredSkills)

	_, err = newFileScorer(ctx, cfg, testLogger(), common.NewFileProcessor(testLogger(), 0),
		scoreOptions{JobID: "0b9f6f7e-2d2b-4a4c-9b1a-0c5f2f1d8e11"})
	assert.True(t, storage.IsNotFound(err))
}

func TestRenderCommand(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	src := writeFile(t, dir, "resume.md", sampleResume)

	tests := []struct {
		name   string
		args   []string
		out    string
		prefix string
	}{
		{"pdf by extension", []string{"--template", "modern"}, "cv.pdf", "%PDF"},
		{"docx by extension", []string{"--template", "harvard"}, "cv.docx", "PK"},
		{"explicit format", []string{"--output-format", "docx"}, "cv.bin", "PK"},
		{"configured default", nil, "cv", "%PDF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(dir, tt.out)
			args := append([]string{"render", src, "-o", out}, tt.args...)
			_, err := run(t, cfg, args...)
			require.NoError(t, err)
			data, err := os.ReadFile(out)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(data, []byte(tt.prefix)))
		})
	}

	_, err := run(t, cfg, "render", src)
	assert.Error(t, err, "output is required")
}

func TestResolveDocumentFormat(t *testing.T) {
	tests := []struct {
		flag, output, configured string
		want                     rendering.Format
		wantErr                  bool
	}{
		{flag: "docx", output: "a.pdf", want: rendering.DOCX},
		{output: "A.DOCX", configured: "pdf", want: rendering.DOCX},
		{output: "-", configured: "docx", want: rendering.DOCX},
		{output: "-", want: rendering.PDF},
		{flag: "odt", wantErr: true},
	}
	for _, tt := range tests {
		got, err := resolveDocumentFormat(tt.flag, tt.output, tt.configured)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestHistoryCommands(t *testing.T) {
	cfg := testConfig(t)
	src := writeFile(t, t.TempDir(), "jane.md", sampleResume)

	out, err := run(t, cfg, "profile", "set", src)
	require.NoError(t, err)
	var saved storage.Profile
	require.NoError(t, json.Unmarshal([]byte(out), &saved))
	assert.Equal(t, "jane", saved.Name)
	assert.NotEmpty(t, saved.ID)

	out, err = run(t, cfg, "profile", "show")
	require.NoError(t, err)
	var latest storage.Profile
	require.NoError(t, json.Unmarshal([]byte(out), &latest))
	assert.Equal(t, saved.ID, latest.ID)

	out, err = run(t, cfg, "jobs", "list", "--format", "text")
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	_, err = run(t, cfg, "resumes", "versions", "0b9f6f7e-2d2b-4a4c-9b1a-0c5f2f1d8e11")
	assert.True(t, storage.IsNotFound(err))
}

func TestAICommandsNeedAKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.AI.Provider = "gemini"
	job := writeFile(t, t.TempDir(), "job.txt", "Go engineer")

	_, err := run(t, cfg, "analyze", job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")

	_, err = run(t, cfg, "generate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid request")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, testConfig(t), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tailorcv version dev")
}

func TestWatchFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "resume.md", sampleResume)
	writeFile(t, dir, "notes.md", "ignored")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		mu      sync.Mutex
		changed [][]string
	)
	done := make(chan error, 1)
	go func() {
		done <- watchFiles(ctx, testLogger(), []string{path}, func(files []string) {
			mu.Lock()
			changed = append(changed, files)
			mu.Unlock()
			cancel()
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "notes.md", "still ignored")
	writeFile(t, dir, "resume.md", sampleResume+"\n- Extra line\n")

	require.NoError(t, <-done)
	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, changed)
	assert.Equal(t, []string{path}, changed[0])
}
