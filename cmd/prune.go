package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"hrvault/internal/application"
)

func createPruneCommand(flags *rootFlags) *cobra.Command {
	var (
		keep   int
		maxAge time.Duration
		dryRun bool
	)

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old artifacts from the artifact directory",
		Long: `Apply the retention policy to backup.artifact_dir. The newest N
artifacts and everything inside the age window survive; the newest
artifact is never deleted. Only files with the .hrvault extension are
considered.

Bounds come from backup.retention_max_count and retention_max_age in
the configuration; --keep and --max-age override them for one run.

Examples:
  hrvault prune --keep 5
  hrvault prune --max-age 720h --dry-run
  hrvault prune`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApplication(cmd, flags)
			if err != nil {
				return err
			}

			ctx, stop := application.SignalContext(cmd.Context())
			defer stop()

			return finish(app, app.RunPrune(ctx, application.PruneOptions{
				DryRun:   dryRun,
				MaxCount: keep,
				MaxAge:   maxAge,
			}))
		},
	}

	pruneCmd.Flags().IntVar(&keep, "keep", 0, "keep only the newest N artifacts")
	pruneCmd.Flags().DurationVar(&maxAge, "max-age", 0, "delete artifacts older than this (e.g. 720h)")
	pruneCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be deleted without deleting")

	return pruneCmd
}
