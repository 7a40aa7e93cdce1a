package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tailorcv/internal/common"
	"tailorcv/internal/config"
	"tailorcv/internal/types"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [base-resume-file] [tailored-resume-file]",
	Short: "Check a tailored resume for claims the base resume cannot back",
	Long: `Evaluate a tailored resume against the base resume to identify
potential fabrications, exaggerations, or incorrect attributions.
The command takes two arguments: the path to the base resume file and
the path to the tailored resume file.`,
	Args:    cobra.ExactArgs(2),
	PreRunE: applyOutputFormat(&evaluateConfig),
	RunE:    runEvaluate,
}

var evaluateConfig common.CommandConfig

func init() {
	addOutputFlags(evaluateCmd, &evaluateConfig, "Evaluation")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := fromContext(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireAI(); err != nil {
		return err
	}

	aiService, err := newAIService(cfg, config.OperationEvaluate, logger, nil)
	if err != nil {
		return err
	}
	defer func() { _ = aiService.Close() }()

	createInput := func(contents []string) (types.EvaluateResumeInput, error) {
		if len(contents) != 2 {
			return types.EvaluateResumeInput{}, fmt.Errorf("expected 2 file paths, got %d", len(contents))
		}
		return types.EvaluateResumeInput{
			BaseResume:     contents[0],
			TailoredResume: contents[1],
		}, nil
	}

	logDetails := func(input types.EvaluateResumeInput, cc common.CommandConfig) {
		logger.Info("Starting resume evaluation",
			"base_resume_chars", len(input.BaseResume),
			"tailored_resume_chars", len(input.TailoredResume),
			"output_format", cc.OutputFormat)
	}

	out, err := common.RunAICommand(
		cmd.Context(),
		newRunner(cmd, cfg, logger),
		evaluateConfig,
		args,
		createInput,
		func(ctx context.Context, in types.EvaluateResumeInput) (types.EvaluateResumeOutput, error) {
			return aiService.EvaluateResume(ctx, in)
		},
		logDetails,
	)
	if err != nil {
		return fmt.Errorf("failed to evaluate resume: %w", err)
	}
	logger.Info("Resume evaluation completed successfully", "findings", len(out.Findings))
	return nil
}
