package cmd

import (
	"github.com/spf13/cobra"

	"hrvault/internal/application"
	"hrvault/internal/config"
)

func createExportCommand(flags *rootFlags) *cobra.Command {
	var (
		compression    string
		kdfTimeCost    uint8
		kdfMemoryMiB   uint16
		kdfParallelism uint8
	)

	exportCmd := &cobra.Command{
		Use:   "export [artifact-path]",
		Short: "Export the database into an encrypted backup artifact",
		Long: `Export every registered table into a single encrypted, compressed
artifact. The passphrase is asked for twice so a typo cannot seal an
artifact nobody can open.

When no path is given the artifact lands in backup.artifact_dir under
a timestamped name. Compression and key derivation flags override the
configured values for this export only; the chosen KDF parameters are
recorded in the artifact header.

Examples:
  hrvault export
  hrvault export /backups/friday.hrvault
  hrvault export --compression lz4 --kdf-memory 256 nightly.hrvault
  HRVAULT_PASSPHRASE=... hrvault export --db hr.db -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			app, err := buildApplicationWith(cmd, flags, func(cfg *config.AppConfig) {
				if fs.Changed("compression") {
					cfg.Backup.Compression = compression
				}
				if fs.Changed("kdf-time-cost") {
					cfg.Backup.KDFTimeCost = kdfTimeCost
				}
				if fs.Changed("kdf-memory") {
					cfg.Backup.KDFMemoryMiB = kdfMemoryMiB
				}
				if fs.Changed("kdf-parallelism") {
					cfg.Backup.KDFParallelism = kdfParallelism
				}
			})
			if err != nil {
				return err
			}

			passphrase, err := readPassphrase(true)
			if err != nil {
				return finish(app, err)
			}

			var artifactPath string
			if len(args) > 0 {
				artifactPath = args[0]
			}

			ctx, stop := application.SignalContext(cmd.Context())
			defer stop()

			return finish(app, app.RunExport(ctx, application.ExportOptions{
				ArtifactPath: artifactPath,
				Passphrase:   passphrase,
			}))
		},
	}

	exportCmd.Flags().StringVar(&compression, "compression", "", "payload compression: none, gzip, lz4 or zstd")
	exportCmd.Flags().Uint8Var(&kdfTimeCost, "kdf-time-cost", 0, "Argon2id passes over memory")
	exportCmd.Flags().Uint16Var(&kdfMemoryMiB, "kdf-memory", 0, "Argon2id memory cost in MiB")
	exportCmd.Flags().Uint8Var(&kdfParallelism, "kdf-parallelism", 0, "Argon2id lanes")

	return exportCmd
}
