package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tailorcv/internal/common"
	"tailorcv/internal/config"
	"tailorcv/internal/errors"
	"tailorcv/internal/formatters"
	"tailorcv/internal/scoring"
	"tailorcv/internal/storage"
)

var scoreCmd = &cobra.Command{
	Use:   "score [resume-file...]",
	Short: "Estimate how well resumes survive an applicant tracking system",
	Long: `Score one or more resumes (markdown, PDF or DOCX) on a 0-100 scale.

Keywords come from --job (a stored job id), --keywords and --skills. Without
them the resume's own skills section is used. PDF and DOCX files are read back
as text and scored for their own format and size. Markdown files are scored
for the format given by --file-format, defaulting to app.defaultOutput.

With --watch the files are re-scored whenever they change.`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: applyOutputFormat(&scoreConfig.CommandConfig),
	RunE:    runScore,
}

type scoreOptions struct {
	common.CommandConfig
	Template    string
	FileFormat  string
	FileSize    int64
	JobID       string
	Keywords    []string
	Skills      []string
	Concurrency int
	Watch       bool
}

var scoreConfig scoreOptions

func init() {
	addOutputFlags(scoreCmd, &scoreConfig.CommandConfig, "Report")
	scoreCmd.Flags().StringVarP(&scoreConfig.Template, "template", "t", "", "Template the resume will be rendered with: original, modern, harvard")
	scoreCmd.Flags().StringVar(&scoreConfig.FileFormat, "file-format", "", "Delivery format to score: pdf, docx, doc, txt...")
	scoreCmd.Flags().Int64Var(&scoreConfig.FileSize, "file-size", 0, "Delivered file size in bytes")
	scoreCmd.Flags().StringVar(&scoreConfig.JobID, "job", "", "Stored job id supplying keywords")
	scoreCmd.Flags().StringSliceVar(&scoreConfig.Keywords, "keywords", nil, "Job keywords, comma separated")
	scoreCmd.Flags().StringSliceVar(&scoreConfig.Skills, "skills", nil, "Required skills, comma separated")
	scoreCmd.Flags().IntVar(&scoreConfig.Concurrency, "concurrency", 4, "Files scored in parallel")
	scoreCmd.Flags().BoolVarP(&scoreConfig.Watch, "watch", "w", false, "Re-score when files change")

	_ = scoreCmd.RegisterFlagCompletionFunc("template", completeTemplates)
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, logger, err := fromContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	runner := newRunner(cmd, cfg, logger)

	sc, err := newFileScorer(ctx, cfg, logger, runner.Files, scoreConfig)
	if err != nil {
		return err
	}

	if err := scoreAndPrint(ctx, runner, sc, args, scoreConfig); err != nil {
		return err
	}
	if !scoreConfig.Watch {
		return nil
	}
	return watchFiles(ctx, logger, args, func(changed []string) {
		if err := scoreAndPrint(ctx, runner, sc, changed, scoreConfig); err != nil {
			logger.LogError(err, "Re-scoring failed")
		}
	})
}

// fileScorer scores files with fixed job signal and template settings.
type fileScorer struct {
	scorer   *scoring.Scorer
	files    *common.FileProcessor
	base     scoring.Input
	fileSize *int64
	fallback scoring.FileFormat
	logger   *errors.Logger
}

func newFileScorer(ctx context.Context, cfg *config.Config, logger *errors.Logger, files *common.FileProcessor, opts scoreOptions) (*fileScorer, error) {
	tmpl, err := common.ResolveTemplate(opts.Template, cfg.App.DefaultTemplate)
	if err != nil {
		return nil, err
	}

	sc := &fileScorer{
		scorer:   scoring.NewScorer(scoring.DefaultRubric()),
		files:    files,
		base:     scoring.Input{Template: tmpl},
		fallback: scoring.FileFormat(cfg.App.DefaultOutput),
		logger:   logger,
	}
	if opts.FileFormat != "" {
		if sc.base.Format, err = scoring.ParseFileFormat(opts.FileFormat); err != nil {
			return nil, err
		}
	}
	if opts.FileSize > 0 {
		size := opts.FileSize
		sc.fileSize = &size
	}

	job := &scoring.JobSignal{Keywords: opts.Keywords, RequiredSkills: opts.Skills}
	if opts.JobID != "" {
		store, err := openStore(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		defer func() { _ = store.Close() }()
		stored, err := store.GetJob(ctx, opts.JobID)
		if err != nil {
			return nil, err
		}
		job = mergeJobSignal(stored, job)
	}
	if len(job.Keywords) > 0 || len(job.RequiredSkills) > 0 {
		sc.base.Job = job
	}
	return sc, nil
}

func mergeJobSignal(stored *storage.JobDescription, extra *scoring.JobSignal) *scoring.JobSignal {
	return &scoring.JobSignal{
		Keywords:       appendMissing(slices.Clone(stored.Keywords), extra.Keywords),
		RequiredSkills: appendMissing(slices.Clone(stored.RequiredSkills), extra.RequiredSkills),
	}
}

func appendMissing(dst, src []string) []string {
	for _, s := range src {
		if !slices.ContainsFunc(dst, func(d string) bool { return strings.EqualFold(d, s) }) {
			dst = append(dst, s)
		}
	}
	return dst
}

// scoreFile loads and scores one file. Documents score their own format and
// size unless the flags override them.
func (sc *fileScorer) scoreFile(path string) (*scoring.Report, error) {
	rf, err := sc.files.LoadResume(path)
	if err != nil {
		return nil, err
	}

	in := sc.base
	in.Markdown = rf.Text
	in.FileSize = sc.fileSize
	if in.Format == "" {
		in.Format = sc.fallback
		if rf.Format.Known() {
			in.Format = rf.Format
		}
	}
	if in.FileSize == nil && rf.Format.Known() {
		size := rf.Size
		in.FileSize = &size
	}

	report := sc.scorer.Score(in)
	sc.logger.Debug("Scored resume",
		"file", path,
		"score", report.TotalScore,
		"grade", report.Grade,
		"keyword_source", report.KeywordSource)
	return &report, nil
}

// scoreFiles scores paths concurrently, keeping argument order. A file that
// fails to load is reported in its slot rather than aborting the batch.
func (sc *fileScorer) scoreFiles(ctx context.Context, paths []string, concurrency int) formatters.ScoreBatch {
	batch := make(formatters.ScoreBatch, len(paths))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for i, path := range paths {
		g.Go(func() error {
			batch[i].Path = path
			report, err := sc.scoreFile(path)
			if err != nil {
				batch[i].Error = err.Error()
				return nil
			}
			batch[i].Report = report
			return nil
		})
	}
	_ = g.Wait()
	return batch
}

func scoreAndPrint(ctx context.Context, r common.Runner, sc *fileScorer, paths []string, opts scoreOptions) error {
	if len(paths) == 1 {
		report, err := sc.scoreFile(paths[0])
		if err != nil {
			return err
		}
		return r.Output.HandleOutput(report, opts.CommandConfig)
	}

	batch := sc.scoreFiles(ctx, paths, opts.Concurrency)
	if err := r.Output.HandleOutput(batch, opts.CommandConfig); err != nil {
		return err
	}
	var failed int
	for _, f := range batch {
		if f.Error != "" {
			failed++
		}
	}
	if failed == len(batch) {
		return fmt.Errorf("none of the %d files could be scored", failed)
	}
	return nil
}

const watchDebounce = 200 * time.Millisecond

// watchFiles calls onChange with the changed files until ctx is done.
// Editors often replace files on save, so the parent directories are
// watched and events are filtered by name.
func watchFiles(ctx context.Context, logger *errors.Logger, paths []string, onChange func([]string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	wanted := make(map[string]string, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		wanted[abs] = p
		dir := filepath.Dir(abs)
		if !slices.Contains(watcher.WatchList(), dir) {
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
		}
	}
	logger.Info("Watching for changes", "files", len(paths))

	pending := make(map[string]bool)
	timer := time.NewTimer(watchDebounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			original, tracked := wanted[event.Name]
			if !tracked || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			pending[original] = true
			timer.Reset(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.LogError(err, "File watcher error")
		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for _, p := range paths {
				if pending[p] {
					changed = append(changed, p)
				}
			}
			clear(pending)
			onChange(changed)
		}
	}
}
