package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tailorcv/internal/common"
	"tailorcv/internal/config"
	"tailorcv/internal/errors"
	"tailorcv/internal/storage"
	"tailorcv/internal/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [job-description-file]",
	Short: "Extract keywords and required skills from a job description",
	Long: `Analyze a job description the way an applicant tracking system screens
for it: title, company, seniority, keywords and required skills.

With --save the posting and its analysis are stored, and the printed job id
can be passed to score --job or generate --job.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: applyOutputFormat(&analyzeConfig.CommandConfig),
	RunE:    runAnalyze,
}

type analyzeOptions struct {
	common.CommandConfig
	Save bool
	URL  string
}

var analyzeConfig analyzeOptions

func init() {
	addOutputFlags(analyzeCmd, &analyzeConfig.CommandConfig, "Analysis")
	analyzeCmd.Flags().BoolVar(&analyzeConfig.Save, "save", false, "Store the job description and analysis")
	analyzeCmd.Flags().StringVar(&analyzeConfig.URL, "url", "", "Source URL recorded with a saved job")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, logger, err := fromContext(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireAI(); err != nil {
		return err
	}

	aiService, err := newAIService(cfg, config.OperationAnalyze, logger, nil)
	if err != nil {
		return err
	}
	defer func() { _ = aiService.Close() }()

	createInput := func(contents []string) (types.AnalyzeJobInput, error) {
		if len(contents) != 1 {
			return types.AnalyzeJobInput{}, fmt.Errorf("expected 1 file path, got %d", len(contents))
		}
		return types.AnalyzeJobInput{JobDescription: contents[0]}, nil
	}

	logDetails := func(input types.AnalyzeJobInput, cc common.CommandConfig) {
		logger.Info("Starting job description analysis",
			"job_chars", len(input.JobDescription),
			"output_format", cc.OutputFormat)
	}

	var jobText string
	analyzeOperation := func(ctx context.Context, input types.AnalyzeJobInput) (types.AnalyzeJobOutput, error) {
		jobText = input.JobDescription
		return aiService.AnalyzeJob(ctx, input.JobDescription)
	}

	out, err := common.RunAICommand(
		cmd.Context(),
		newRunner(cmd, cfg, logger),
		analyzeConfig.CommandConfig,
		args,
		createInput,
		analyzeOperation,
		logDetails,
	)
	if err != nil {
		return fmt.Errorf("failed to analyze job description: %w", err)
	}

	if analyzeConfig.Save {
		id, err := saveJob(cmd.Context(), cfg, logger, out, jobText, analyzeConfig.URL)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved job %s\n", id)
	}
	logger.Info("Job description analysis completed successfully")
	return nil
}

func saveJob(ctx context.Context, cfg *config.Config, logger *errors.Logger, out types.AnalyzeJobOutput, text, url string) (string, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return "", err
	}
	defer func() { _ = store.Close() }()

	job := &storage.JobDescription{
		Title:          out.Title,
		Company:        out.Company,
		URL:            url,
		Text:           text,
		Keywords:       out.Keywords,
		RequiredSkills: out.RequiredSkills,
	}
	if err := store.SaveJob(ctx, job); err != nil {
		return "", err
	}
	return job.ID, nil
}
