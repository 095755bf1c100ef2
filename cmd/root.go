// Package cmd wires the hrvault command line interface. Commands stay
// thin: they parse flags and collect the passphrase, then hand off to
// the application layer, which owns rendering and exit-code mapping.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hrvault/internal/application"
	"hrvault/internal/config"
	"hrvault/internal/database"
	"hrvault/internal/display"
	"hrvault/internal/logging"
)

// Version information (set by build flags via SetVersionInfo)
var (
	appVersion = "dev"
	buildTime  = "unknown"
	gitCommit  = "unknown"
	goVersion  = "unknown"
)

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, built, commit, goVer string) {
	appVersion = version
	buildTime = built
	gitCommit = commit
	goVersion = goVer
}

// rootFlags holds every persistent flag value. Commands receive the
// struct by pointer so a freshly built command tree carries its own
// flag state.
type rootFlags struct {
	cfgFile      string
	dbDSN        string
	dbDriver     string
	verbose      bool
	quiet        bool
	logFile      string
	logFormat    string
	noColor      bool
	noIcons      bool
	theme        string
	outputFormat string
}

var rootCmd = newRootCommand()

// newRootCommand builds the full command tree. Tests call it to get an
// isolated tree with fresh flag state.
func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "hrvault",
		Short: "Encrypted backup and restore for the HR coaching vault",
		Long: `hrvault exports the HR coaching database into a single encrypted,
compressed artifact and restores it atomically. Artifacts are sealed
with AES-256-GCM under a key derived from your passphrase with
Argon2id, so a backup file is safe to store or transfer as-is.

The passphrase is read from the HRVAULT_PASSPHRASE environment
variable when set, otherwise prompted for on the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.cfgFile, "config", "", "config file (default .hrvault.yaml, searched in . and $HOME)")
	pf.StringVar(&flags.dbDSN, "db", "", "database connection string (overrides config)")
	pf.StringVar(&flags.dbDriver, "db-driver", "", "database driver: mysql or sqlite (default inferred from --db)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "verbose output with debug detail")
	pf.BoolVarP(&flags.quiet, "quiet", "q", false, "suppress all output except errors")
	pf.StringVar(&flags.logFile, "log-file", "", "also write logs to this file")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: text or json")
	pf.BoolVar(&flags.noColor, "no-color", false, "disable colored output")
	pf.BoolVar(&flags.noIcons, "no-icons", false, "disable icons in output")
	pf.StringVar(&flags.theme, "theme", "", "color theme: dark, light or plain")
	pf.StringVarP(&flags.outputFormat, "output", "o", "table", "output format: table, json or yaml")

	root.AddCommand(
		createExportCommand(flags),
		createImportCommand(flags),
		createVerifyCommand(flags),
		createInspectCommand(flags),
		createPruneCommand(flags),
		createTablesCommand(flags),
		createConfigCommand(flags),
		createVersionCommand(),
	)

	return root
}

// buildApplication loads configuration, layers explicit flag overrides
// on top, and constructs the application service.
func buildApplication(cmd *cobra.Command, flags *rootFlags) (*application.Application, error) {
	return buildApplicationWith(cmd, flags, nil)
}

// buildApplicationWith additionally applies a command-local configuration
// override between the persistent flags and construction.
func buildApplicationWith(cmd *cobra.Command, flags *rootFlags, localOverride func(*config.AppConfig)) (*application.Application, error) {
	loader := config.NewLoader()
	cfg, err := loader.Load(flags.cfgFile)
	if err != nil {
		return nil, err
	}

	applyFlagOverrides(cmd, flags, cfg)
	if localOverride != nil {
		localOverride(cfg)
	}

	app, err := application.New(cfg)
	if err != nil {
		return nil, err
	}
	app.SetOutput(cmd.OutOrStdout())
	if err := app.SetOutputFormat(flags.outputFormat); err != nil {
		return nil, err
	}
	return app, nil
}

// applyFlagOverrides copies explicitly set flags into the loaded
// configuration. Only flags the user changed win over the file and
// environment so that defaults never clobber configured values.
func applyFlagOverrides(cmd *cobra.Command, flags *rootFlags, cfg *config.AppConfig) {
	fs := cmd.Flags()

	if fs.Changed("db") {
		cfg.Database.DSN = flags.dbDSN
		if !fs.Changed("db-driver") {
			cfg.Database.Driver = database.DetectDriver(flags.dbDSN)
		}
	}
	if fs.Changed("db-driver") {
		cfg.Database.Driver = flags.dbDriver
	}
	if fs.Changed("verbose") && flags.verbose {
		cfg.Logging.Level = string(logging.LogLevelVerbose)
		cfg.Display.VerboseMode = true
	}
	if fs.Changed("quiet") && flags.quiet {
		cfg.Logging.Level = string(logging.LogLevelQuiet)
		cfg.Display.QuietMode = true
	}
	if fs.Changed("log-file") {
		cfg.Logging.File = flags.logFile
	}
	if fs.Changed("log-format") {
		cfg.Logging.Format = flags.logFormat
	}
	if fs.Changed("no-color") {
		cfg.Display.ColorEnabled = !flags.noColor
	}
	if fs.Changed("no-icons") {
		cfg.Display.UseIcons = !flags.noIcons
	}
	if fs.Changed("theme") {
		cfg.Display.Theme = flags.theme
	}
}

// exitError carries the process exit code chosen by the application
// layer up through cobra without double-reporting the failure.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// finish routes an operation error through the application's error
// reporting and wraps the resulting exit code.
func finish(app *application.Application, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: app.HandleError(err)}
}

// Execute runs the root command and exits the process with the code
// chosen by the application layer.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(application.ExitFailure)
	}
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "hrvault version %s\n", appVersion)
			fmt.Fprintf(out, "Build time: %s\n", buildTime)
			fmt.Fprintf(out, "Git commit: %s\n", gitCommit)
			fmt.Fprintf(out, "Go version: %s\n", goVersion)
		},
	}
}

func createConfigCommand(flags *rootFlags) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage hrvault configuration",
		Long:  "Inspect, initialize and check the hrvault configuration.",
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a sample configuration file",
		Long: `Write a commented sample configuration file. The default path is
.hrvault.yaml in the current directory.

Examples:
  hrvault config init
  hrvault config init /etc/hrvault/config.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ".hrvault.yaml"
			if len(args) > 0 {
				path = args[0]
			}
			if err := config.WriteSampleConfig(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sample configuration written to %s\n", path)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long:  "Print the configuration after merging file, environment and flags. Credentials in the DSN are masked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader()
			cfg, err := loader.Load(flags.cfgFile)
			if err != nil {
				return err
			}
			applyFlagOverrides(cmd, flags, cfg)

			shown := *cfg
			shown.Database.DSN = logging.SanitizeDSN(shown.Database.DSN)

			format := display.FormatYAML
			if flags.outputFormat == string(display.FormatJSON) {
				format = display.FormatJSON
			}
			if used := loader.ConfigFileUsed(); used != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# loaded from %s\n", used)
			}
			return display.RenderStructured(cmd.OutOrStdout(), format, shown)
		},
	}

	envCmd := &cobra.Command{
		Use:   "env",
		Short: "List supported environment variables",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, line := range config.EnvironmentVariables() {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Run preflight checks against the current configuration",
		Long: `Validate the configuration, prepare the artifact directory, and
probe filesystem permissions and database connectivity. An unreachable
database is reported as a warning so artifact-only commands keep
working.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApplication(cmd, flags)
			if err != nil {
				return err
			}
			ctx, stop := application.SignalContext(cmd.Context())
			defer stop()
			return finish(app, app.RunCheck(ctx))
		},
	}

	configCmd.AddCommand(initCmd, showCmd, envCmd, checkCmd)
	return configCmd
}
