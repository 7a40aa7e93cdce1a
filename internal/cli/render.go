package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tailorcv/internal/common"
	"tailorcv/internal/rendering"
	"tailorcv/internal/resume"
	"tailorcv/internal/templates"
)

var renderCmd = &cobra.Command{
	Use:   "render [resume-file]",
	Short: "Render a markdown resume to PDF or DOCX",
	Long: `Render a markdown resume with one of the templates.

If the chosen template cannot lay out the resume, the original template is
used instead and a warning is logged. Use -o - to write to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

type renderOptions struct {
	Template     string
	OutputFormat string
	Output       string
	Title        string
}

var renderConfig renderOptions

func init() {
	renderCmd.Flags().StringVarP(&renderConfig.Template, "template", "t", "", "Template: original, modern, harvard")
	renderCmd.Flags().StringVar(&renderConfig.OutputFormat, "output-format", "", "Document format: pdf or docx (default: from -o extension, then app.defaultOutput)")
	renderCmd.Flags().StringVarP(&renderConfig.Output, "output", "o", "", "Output document path, or - for stdout")
	renderCmd.Flags().StringVar(&renderConfig.Title, "title", "", "Document title metadata")
	_ = renderCmd.MarkFlagRequired("output")
	_ = renderCmd.RegisterFlagCompletionFunc("template", completeTemplates)
	_ = renderCmd.RegisterFlagCompletionFunc("output-format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{string(rendering.PDF), string(rendering.DOCX)}, cobra.ShellCompDirectiveNoFileComp
	})
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, logger, err := fromContext(cmd)
	if err != nil {
		return err
	}
	r := newRunner(cmd, cfg, logger)

	tmpl, err := common.ResolveTemplate(renderConfig.Template, cfg.App.DefaultTemplate)
	if err != nil {
		return err
	}
	format, err := resolveDocumentFormat(renderConfig.OutputFormat, renderConfig.Output, cfg.App.DefaultOutput)
	if err != nil {
		return err
	}

	markdown, err := r.Files.ReadFile(args[0])
	if err != nil {
		return err
	}

	result, err := rendering.NewRenderer(rendering.WithLogger(logger)).RenderWithResult(
		resume.Parse(markdown), tmpl, format, rendering.Metadata{Title: renderConfig.Title})
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", args[0], err)
	}
	if result.FellBack {
		logger.Warn("Template could not lay out the resume, used original instead",
			"requested", tmpl.String())
	}

	if err := r.Output.WriteDocument(renderConfig.Output, result.Data); err != nil {
		return err
	}
	logger.Info("Resume rendered",
		"template", result.Template.String(),
		"format", string(format),
		"bytes", len(result.Data))
	return nil
}

// resolveDocumentFormat picks the flag, then the output extension, then the
// configured default.
func resolveDocumentFormat(flag, output, configured string) (rendering.Format, error) {
	if flag != "" {
		return rendering.ParseFormat(flag)
	}
	lower := strings.ToLower(output)
	for _, f := range []rendering.Format{rendering.PDF, rendering.DOCX} {
		if strings.HasSuffix(lower, f.Extension()) {
			return f, nil
		}
	}
	if configured == "" {
		return rendering.PDF, nil
	}
	return rendering.ParseFormat(configured)
}

func completeTemplates(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return templates.Names(), cobra.ShellCompDirectiveNoFileComp
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the available resume templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := getConfigFromContext(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, t := range templates.All() {
			spec := t.Spec()
			marker := " "
			if spec.Name == cfg.App.DefaultTemplate {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %-9s %-13s %-10s font: %s / %s\n",
				marker, spec.Name, spec.Layout, spec.Family, spec.PDFFont, spec.DOCXFont)
		}
		return nil
	},
}
