package cli

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"tailorcv/internal/common"
	"tailorcv/internal/config"
	"tailorcv/internal/errors"
	"tailorcv/internal/storage"
)

var historyConfig common.CommandConfig

var historyLimit int

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the stored base resume",
}

var profileSetCmd = &cobra.Command{
	Use:     "set [resume-file]",
	Short:   "Store a resume as a profile",
	Args:    cobra.ExactArgs(1),
	PreRunE: applyOutputFormat(&historyConfig),
	RunE: withStore(func(ctx context.Context, cmd *cobra.Command, args []string, store storage.Store, r common.Runner) error {
		rf, err := r.Files.LoadResume(args[0])
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}
		profile := &storage.Profile{Name: name, Markdown: rf.Text}
		if err := store.SaveProfile(ctx, profile); err != nil {
			return err
		}
		return r.Output.HandleOutput(profile, historyConfig)
	}),
}

var profileShowCmd = &cobra.Command{
	Use:     "show [profile-id]",
	Short:   "Print a stored profile, the latest when no id is given",
	Args:    cobra.MaximumNArgs(1),
	PreRunE: applyOutputFormat(&historyConfig),
	RunE: withStore(func(ctx context.Context, _ *cobra.Command, args []string, store storage.Store, r common.Runner) error {
		var (
			profile *storage.Profile
			err     error
		)
		if len(args) == 1 {
			profile, err = store.GetProfile(ctx, args[0])
		} else {
			profile, err = store.LatestProfile(ctx)
		}
		if err != nil {
			return err
		}
		return r.Output.HandleOutput(profile, historyConfig)
	}),
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Browse stored job descriptions",
}

var jobsListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List stored jobs, newest first",
	Args:    cobra.NoArgs,
	PreRunE: applyOutputFormat(&historyConfig),
	RunE: withStore(func(ctx context.Context, _ *cobra.Command, _ []string, store storage.Store, r common.Runner) error {
		jobs, err := store.ListJobs(ctx, historyLimit)
		if err != nil {
			return err
		}
		return r.Output.HandleOutput(jobs, historyConfig)
	}),
}

var resumesCmd = &cobra.Command{
	Use:   "resumes",
	Short: "Browse generated resumes and their versions",
}

var resumesListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List generated resumes, newest first",
	Args:    cobra.NoArgs,
	PreRunE: applyOutputFormat(&historyConfig),
	RunE: withStore(func(ctx context.Context, _ *cobra.Command, _ []string, store storage.Store, r common.Runner) error {
		resumes, err := store.ListResumes(ctx, historyLimit)
		if err != nil {
			return err
		}
		return r.Output.HandleOutput(resumes, historyConfig)
	}),
}

var resumesVersionsCmd = &cobra.Command{
	Use:     "versions [resume-id]",
	Short:   "Show the version history of a resume",
	Args:    cobra.ExactArgs(1),
	PreRunE: applyOutputFormat(&historyConfig),
	RunE: withStore(func(ctx context.Context, _ *cobra.Command, args []string, store storage.Store, r common.Runner) error {
		if _, err := store.GetResume(ctx, args[0]); err != nil {
			return err
		}
		versions, err := store.ListVersions(ctx, args[0])
		if err != nil {
			return err
		}
		return r.Output.HandleOutput(versions, historyConfig)
	}),
}

type storeFunc func(ctx context.Context, cmd *cobra.Command, args []string, store storage.Store, r common.Runner) error

// withStore opens the configured store around fn.
func withStore(fn storeFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := fromContext(cmd)
		if err != nil {
			return err
		}
		return runWithStore(cmd, args, cfg, logger, fn)
	}
}

func runWithStore(cmd *cobra.Command, args []string, cfg *config.Config, logger *errors.Logger, fn storeFunc) error {
	store, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(cmd.Context(), cmd, args, store, newRunner(cmd, cfg, logger))
}

func init() {
	for _, c := range []*cobra.Command{profileSetCmd, profileShowCmd, jobsListCmd, resumesListCmd, resumesVersionsCmd} {
		addOutputFlags(c, &historyConfig, "Output")
	}
	for _, c := range []*cobra.Command{jobsListCmd, resumesListCmd} {
		c.Flags().IntVar(&historyLimit, "limit", 20, "Maximum entries to list")
	}
	profileSetCmd.Flags().String("name", "", "Profile name (default: file name)")

	profileCmd.AddCommand(profileSetCmd, profileShowCmd)
	jobsCmd.AddCommand(jobsListCmd)
	resumesCmd.AddCommand(resumesListCmd, resumesVersionsCmd)
}
