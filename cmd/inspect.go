package cmd

import (
	"github.com/spf13/cobra"

	"hrvault/internal/application"
)

func createVerifyCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <artifact-path>",
		Short: "Check an artifact's integrity without touching the database",
		Long: `Decrypt an artifact in memory and report what it contains. Nothing
is written anywhere; a verify that succeeds proves the passphrase is
right and the artifact has not been altered since export.

Examples:
  hrvault verify /backups/friday.hrvault
  hrvault verify -o json friday.hrvault`,
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

			return finish(app, app.RunVerify(ctx, application.VerifyOptions{
				ArtifactPath: args[0],
				Passphrase:   passphrase,
			}))
		},
	}
}

func createInspectCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <artifact-path>",
		Short: "Show an artifact's header without the passphrase",
		Long: `Print the format version and key derivation parameters an artifact
declares. No passphrase is needed because only the plaintext header is
read; table and row counts stay sealed until verify or import.

Examples:
  hrvault inspect /backups/friday.hrvault
  hrvault inspect -o json friday.hrvault`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApplication(cmd, flags)
			if err != nil {
				return err
			}
			return finish(app, app.RunInspect(args[0]))
		},
	}
}

func createTablesCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the tables a backup covers",
		Long: `List every registered table in dependency order. Exports snapshot
the tables in this order and restores load them the same way, parents
before children.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApplication(cmd, flags)
			if err != nil {
				return err
			}
			return finish(app, app.RunTables())
		},
	}
}
