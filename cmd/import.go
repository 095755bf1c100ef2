package cmd

import (
	"github.com/spf13/cobra"

	"hrvault/internal/application"
)

func createImportCommand(flags *rootFlags) *cobra.Command {
	var (
		autoApprove bool
		dryRun      bool
	)

	importCmd := &cobra.Command{
		Use:   "import <artifact-path>",
		Short: "Restore the database from a backup artifact",
		Long: `Decrypt and verify an artifact, then replace the database contents
with the backup inside a single transaction. Existing rows in the
registered tables are dropped first; either the whole backup lands or
nothing changes.

The artifact is verified before anything touches the database, and a
confirmation prompt shows what is about to be restored. Use --yes for
unattended restores and --dry-run to stop after verification.

Examples:
  hrvault import /backups/friday.hrvault
  hrvault import --dry-run /backups/friday.hrvault
  HRVAULT_PASSPHRASE=... hrvault import --yes friday.hrvault`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApplication(cmd, flags)
			if err != nil {
				return err
			}

			passphrase, err := readPassphrase(false)
			if err != nil {
				return finish(app, err)
			}

			ctx, stop := application.SignalContext(cmd.Context())
			defer stop()

			return finish(app, app.RunImport(ctx, application.ImportOptions{
				ArtifactPath: args[0],
				Passphrase:   passphrase,
				AutoApprove:  autoApprove,
				DryRun:       dryRun,
			}))
		},
	}

	importCmd.Flags().BoolVarP(&autoApprove, "yes", "y", false, "skip the confirmation prompt")
	importCmd.Flags().BoolVar(&dryRun, "dry-run", false, "verify and show contents without restoring")

	return importCmd
}
