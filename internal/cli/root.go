package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tailorcv/internal/common"
	"tailorcv/internal/config"
	"tailorcv/internal/errors"
	"tailorcv/internal/formatters"
)

// Define custom private types for context keys.
type configKeyType struct{}
type loggerKeyType struct{}

var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

var rootCmd = &cobra.Command{
	Use:   "tailorcv",
	Short: "Score, render and tailor resumes for applicant tracking systems",
	Long: `tailorcv scores markdown resumes the way an applicant tracking system
reads them, renders them to PDF or DOCX in one of three templates, and uses AI
to tailor a stored profile to a job description.

Scoring and rendering work offline. analyze, generate and evaluate need an
AI API key (TAILORCV_AI_APIKEY or GEMINI_API_KEY).`,
	SilenceUsage: true,
}

// Execute runs the root command with cfg and logger available to every
// subcommand.
func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	setContext(rootCmd, ctx)
	return rootCmd.ExecuteContext(ctx)
}

// setContext replaces the context on every command. Cobra only fills in a
// subcommand context when it has none.
func setContext(cmd *cobra.Command, ctx context.Context) {
	cmd.SetContext(ctx)
	for _, c := range cmd.Commands() {
		setContext(c, ctx)
	}
}

func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok && cfg != nil {
		return cfg, nil
	}
	return nil, fmt.Errorf("config not found in context")
}

func getLoggerFromContext(ctx context.Context) (*errors.Logger, error) {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok && logger != nil {
		return logger, nil
	}
	return nil, fmt.Errorf("logger not found in context")
}

// fromContext returns the config and logger attached by Execute.
func fromContext(cmd *cobra.Command) (*config.Config, *errors.Logger, error) {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// applyOutputFormat fills in the configured default report format and
// validates it. Every command printing a report uses it as PreRunE.
func applyOutputFormat(cc *common.CommandConfig) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := getConfigFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if cc.OutputFormat == "" {
			cc.OutputFormat = cfg.App.DefaultFormat
		}
		return common.ValidateOutputFormat(cc.OutputFormat, cfg.App.SupportedFormats)
	}
}

// addOutputFlags registers -o and --format with completion.
func addOutputFlags(cmd *cobra.Command, cc *common.CommandConfig, what string) {
	cmd.Flags().StringVarP(&cc.OutputFile, "output", "o", "", what+" file path (default: stdout)")
	cmd.Flags().StringVar(&cc.OutputFormat, "format", "", "Output format: json, text, or markdown")
	_ = cmd.RegisterFlagCompletionFunc("format", completeOutputFormats)
}

func completeOutputFormats(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	if len(cfg.App.SupportedFormats) > 0 {
		return cfg.App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	}
	return formatters.NewFormatterRegistry().GetSupportedFormats(), cobra.ShellCompDirectiveNoFileComp
}

// newRunner builds the file and output helpers a command needs.
func newRunner(cmd *cobra.Command, cfg *config.Config, logger *errors.Logger) common.Runner {
	return common.Runner{
		Logger: logger,
		Files:  common.NewFileProcessor(logger, cfg.App.MaxFileSize),
		Output: common.NewOutputHandlerWithWriter(logger, cmd.OutOrStdout()),
	}
}

func init() {
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(resumesCmd)
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}
