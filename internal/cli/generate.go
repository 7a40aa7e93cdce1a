package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"tailorcv/internal/common"
	"tailorcv/internal/workflow"
)

var generateCmd = &cobra.Command{
	Use:   "generate [job-description-file]",
	Short: "Tailor a resume to a job, render it and score it",
	Long: `Generate a tailored resume for one job.

The base resume is --resume, else the stored profile --profile, else the latest
stored profile. The job is the job description file, else --job (a stored job
id), else --job-url. With --research the hiring company is looked up first.

The document is written to --document and a summary with the ATS report is
printed in --format. Every generation is stored as a new resume version.`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: applyOutputFormat(&generateConfig.CommandConfig),
	RunE:    runGenerate,
}

type generateOptions struct {
	common.CommandConfig
	Resume       string
	ProfileID    string
	JobID        string
	JobURL       string
	Company      string
	Research     bool
	Template     string
	OutputFormat string
	Document     string
	Title        string
}

var generateConfig generateOptions

func init() {
	addOutputFlags(generateCmd, &generateConfig.CommandConfig, "Summary")
	f := generateCmd.Flags()
	f.StringVarP(&generateConfig.Resume, "resume", "r", "", "Base resume file (markdown, PDF or DOCX)")
	f.StringVar(&generateConfig.ProfileID, "profile", "", "Stored profile id to tailor")
	f.StringVar(&generateConfig.JobID, "job", "", "Stored job id")
	f.StringVar(&generateConfig.JobURL, "job-url", "", "Fetch the job posting from this URL")
	f.StringVar(&generateConfig.Company, "company", "", "Hiring company, when the posting does not say")
	f.BoolVar(&generateConfig.Research, "research", false, "Research the company before tailoring")
	f.StringVarP(&generateConfig.Template, "template", "t", "", "Template: original, modern, harvard")
	f.StringVar(&generateConfig.OutputFormat, "output-format", "", "Document format: pdf or docx")
	f.StringVarP(&generateConfig.Document, "document", "d", "", "Document output path (default: resume.<format>)")
	f.StringVar(&generateConfig.Title, "title", "", "Document title metadata")
	_ = generateCmd.RegisterFlagCompletionFunc("template", completeTemplates)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := fromContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	r := newRunner(cmd, cfg, logger)

	req := workflow.Request{
		ProfileID: generateConfig.ProfileID,
		JobID:     generateConfig.JobID,
		JobURL:    generateConfig.JobURL,
		Company:   generateConfig.Company,
		Research:  generateConfig.Research,
		Title:     generateConfig.Title,
	}
	if len(args) == 0 && req.JobID == "" && req.JobURL == "" {
		return fmt.Errorf("invalid request: a job description file, --job or --job-url is required")
	}

	if req.Template, err = common.ResolveTemplate(generateConfig.Template, cfg.App.DefaultTemplate); err != nil {
		return err
	}
	if req.Format, err = resolveDocumentFormat(generateConfig.OutputFormat, generateConfig.Document, cfg.App.DefaultOutput); err != nil {
		return err
	}
	if len(args) == 1 {
		if req.JobDescription, err = r.Files.ReadFile(args[0]); err != nil {
			return err
		}
	}
	if generateConfig.Resume != "" {
		rf, err := r.Files.LoadResume(generateConfig.Resume)
		if err != nil {
			return err
		}
		req.BaseResume = rf.Text
	}

	svc, err := newServices(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	logger.Info("Starting resume generation",
		"template", req.Template.String(),
		"format", string(req.Format),
		"research", req.Research)

	result, err := svc.workflow.Generate(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to generate resume: %w", err)
	}

	docPath := generateConfig.Document
	if docPath == "" {
		docPath = "resume" + req.Format.Extension()
	}
	if result.Document != nil {
		if err := r.Output.WriteDocument(docPath, result.Document.Data); err != nil {
			return err
		}
		if result.Document.FellBack {
			logger.Warn("Template could not lay out the resume, used original instead",
				"requested", req.Template.String())
		}
	}
	if !result.Verified {
		logger.Warn("Rendered document did not read back cleanly", "document", docPath)
	}

	if docPath == "-" && generateConfig.OutputFile == "" {
		return nil
	}
	return r.Output.HandleOutput(result, generateConfig.CommandConfig)
}
