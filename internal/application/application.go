// Package application wires configuration, logging, display, and the backup
// engine into the operations the CLI exposes.
package application

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"hrvault/internal/config"
	"hrvault/internal/confirmation"
	"hrvault/internal/database"
	"hrvault/internal/display"
	"hrvault/internal/logging"
	"hrvault/internal/registry"
	"hrvault/internal/vault"
)

// Exit codes by failure class, so scripts can branch on what went wrong.
const (
	ExitOK                 = 0
	ExitFailure            = 1
	ExitValidation         = 2
	ExitAuthentication     = 3
	ExitUnsupportedVersion = 4
	ExitBusy               = 5
	ExitIO                 = 6
	ExitCorruption         = 7
)

// Application holds the long-lived collaborators every operation shares.
type Application struct {
	config  *config.AppConfig
	logger  *logging.Logger
	display display.Service
	confirm confirmation.Service
	out     io.Writer
	format  display.OutputFormat
}

// New builds an application from validated configuration. The database
// section is validated lazily, when an operation first connects, so
// artifact-only commands work without one.
func New(cfg *config.AppConfig) (*Application, error) {
	if err := cfg.Backup.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Display.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.Logging.LoggerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	displayService := display.NewService(&cfg.Display)

	return &Application{
		config:  cfg,
		logger:  logger,
		display: displayService,
		confirm: confirmation.NewService(displayService),
		out:     os.Stdout,
		format:  display.FormatTable,
	}, nil
}

// SetOutputFormat selects table, json, or yaml rendering for results.
func (app *Application) SetOutputFormat(format string) error {
	if !display.ValidOutputFormat(format) {
		return vault.NewValidationError(fmt.Sprintf("unknown output format: %s", format), nil)
	}
	app.format = display.OutputFormat(format)
	return nil
}

// SetOutput redirects result rendering and display output.
func (app *Application) SetOutput(w io.Writer) {
	app.out = w
	app.display.SetOutput(w)
}

// SetConfirmation replaces the confirmation service. Tests use it to script
// prompt answers.
func (app *Application) SetConfirmation(confirm confirmation.Service) {
	app.confirm = confirm
}

// Logger returns the application logger.
func (app *Application) Logger() *logging.Logger {
	return app.logger
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM, so an
// interrupted restore rolls back instead of half-applying.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// ExportOptions name the inputs of one export run.
type ExportOptions struct {
	ArtifactPath string
	Passphrase   string
}

// RunExport backs up the configured database into an encrypted artifact.
func (app *Application) RunExport(ctx context.Context, opts ExportOptions) error {
	engine, db, err := app.newDatabaseEngine(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	path := opts.ArtifactPath
	if path == "" {
		path = app.defaultArtifactPath()
	}

	summary, err := engine.Export(ctx, path, opts.Passphrase)
	if err != nil {
		return err
	}

	return app.renderBackupSummary(summary)
}

// ImportOptions name the inputs of one import run.
type ImportOptions struct {
	ArtifactPath string
	Passphrase   string
	AutoApprove  bool
	DryRun       bool
}

// RunImport restores an artifact into the configured database. The artifact
// is authenticated and decoded first so the confirmation prompt shows its
// real contents; nothing touches the database until the user approves.
func (app *Application) RunImport(ctx context.Context, opts ImportOptions) error {
	verify, err := app.verifyArtifact(ctx, opts.ArtifactPath, opts.Passphrase)
	if err != nil {
		return err
	}

	if opts.DryRun {
		return app.renderVerifySummary(verify)
	}

	approved, err := app.confirm.ConfirmRestore(app.restorePrompt(verify), opts.AutoApprove)
	if err != nil {
		return err
	}
	if !approved {
		return nil
	}

	engine, db, err := app.newDatabaseEngine(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	summary, err := engine.Import(ctx, opts.ArtifactPath, opts.Passphrase)
	if err != nil {
		return err
	}

	return app.renderRestoreSummary(summary)
}

// VerifyOptions name the inputs of one verify run.
type VerifyOptions struct {
	ArtifactPath string
	Passphrase   string
}

// RunVerify authenticates an artifact and reports its contents without
// touching any database.
func (app *Application) RunVerify(ctx context.Context, opts VerifyOptions) error {
	summary, err := app.verifyArtifact(ctx, opts.ArtifactPath, opts.Passphrase)
	if err != nil {
		return err
	}
	return app.renderVerifySummary(summary)
}

// InspectReport is the passwordless view of an artifact: header fields only,
// nothing that requires the key.
type InspectReport struct {
	Path            string `json:"path" yaml:"path"`
	SizeBytes       int64  `json:"size_bytes" yaml:"size_bytes"`
	FormatVersion   uint8  `json:"format_version" yaml:"format_version"`
	Salt            string `json:"salt" yaml:"salt"`
	Nonce           string `json:"nonce" yaml:"nonce"`
	KDFTimeCost     uint8  `json:"kdf_time_cost" yaml:"kdf_time_cost"`
	KDFMemoryMiB    uint16 `json:"kdf_memory_mib" yaml:"kdf_memory_mib"`
	KDFParallelism  uint8  `json:"kdf_parallelism" yaml:"kdf_parallelism"`
	CiphertextBytes int    `json:"ciphertext_bytes" yaml:"ciphertext_bytes"`
}

// RunInspect prints what an artifact header declares without asking for the
// passphrase. Salt and nonce are public values; showing them leaks nothing.
func (app *Application) RunInspect(path string) error {
	header, _, ciphertext, err := vault.NewArtifactReader().Read(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return vault.NewIoError("failed to stat artifact", err)
	}

	report := &InspectReport{
		Path:            path,
		SizeBytes:       info.Size(),
		FormatVersion:   header.FormatVersion,
		Salt:            hex.EncodeToString(header.Salt),
		Nonce:           hex.EncodeToString(header.Nonce),
		KDFTimeCost:     header.KDF.TimeCost,
		KDFMemoryMiB:    header.KDF.MemoryMiB,
		KDFParallelism:  header.KDF.Parallelism,
		CiphertextBytes: len(ciphertext),
	}

	if app.format != display.FormatTable {
		return display.RenderStructured(app.out, app.format, report)
	}

	app.display.PrintSummary("Artifact header", []display.KeyValue{
		{Key: "Path", Value: report.Path},
		{Key: "File size", Value: display.FormatBytes(report.SizeBytes)},
		{Key: "Format version", Value: fmt.Sprintf("%d", report.FormatVersion)},
		{Key: "Salt", Value: report.Salt},
		{Key: "Nonce", Value: report.Nonce},
		{Key: "KDF time cost", Value: fmt.Sprintf("%d", report.KDFTimeCost)},
		{Key: "KDF memory", Value: fmt.Sprintf("%d MiB", report.KDFMemoryMiB)},
		{Key: "KDF parallelism", Value: fmt.Sprintf("%d", report.KDFParallelism)},
		{Key: "Sealed payload", Value: display.FormatBytes(int64(report.CiphertextBytes))},
	})
	app.display.Info("Table and row counts require the passphrase; use the verify command.")
	return nil
}

// TableInfo describes one registered table for the tables listing.
type TableInfo struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
}

// RunTables lists every table a backup covers, in restore order.
func (app *Application) RunTables() error {
	tables := registry.Tables()
	infos := make([]TableInfo, 0, len(tables))
	for _, table := range tables {
		infos = append(infos, TableInfo{Name: table.Name, Columns: table.ColumnNames()})
	}

	if app.format != display.FormatTable {
		return display.RenderStructured(app.out, app.format, infos)
	}

	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{info.Name, strings.Join(info.Columns, ", ")})
	}
	app.display.PrintHeader("Registered tables")
	app.display.PrintTable([]string{"TABLE", "COLUMNS"}, rows)
	app.display.Info(fmt.Sprintf("Schema version %d; backups capture %s tables in this order and restores load parents first.",
		vault.CurrentSchemaVersion, display.FormatCount(len(infos))))
	return nil
}

// PruneOptions control a retention pass over the artifact directory.
// MaxCount and MaxAge override the configured bounds when set.
type PruneOptions struct {
	DryRun   bool
	MaxCount int
	MaxAge   time.Duration
}

// RunPrune applies the retention policy to the artifact directory and
// renders what was removed.
func (app *Application) RunPrune(ctx context.Context, opts PruneOptions) error {
	policy := app.config.Backup.RetentionPolicy()
	if opts.MaxCount > 0 {
		policy.MaxCount = opts.MaxCount
	}
	if opts.MaxAge > 0 {
		policy.MaxAge = opts.MaxAge
	}

	pruner, err := vault.NewPruner(app.config.Backup.ArtifactDir, policy, app.logger)
	if err != nil {
		return err
	}

	result, err := pruner.Prune(ctx, opts.DryRun)
	if err != nil {
		return err
	}

	return app.renderPruneResult(result)
}

func (app *Application) renderPruneResult(result *vault.PruneResult) error {
	if app.format != display.FormatTable {
		return display.RenderStructured(app.out, app.format, result)
	}

	app.display.PrintSummary("Retention", []display.KeyValue{
		{Key: "Directory", Value: result.Directory},
		{Key: "Artifacts scanned", Value: display.FormatCount(result.Scanned)},
		{Key: "Artifacts kept", Value: display.FormatCount(len(result.Kept))},
		{Key: "Artifacts deleted", Value: display.FormatCount(len(result.Deleted))},
		{Key: "Space freed", Value: display.FormatBytes(result.BytesFreed)},
		{Key: "Duration", Value: display.FormatDuration(result.Duration)},
	})

	if len(result.Deleted) > 0 {
		rows := make([][]string, 0, len(result.Deleted))
		for _, artifact := range result.Deleted {
			rows = append(rows, []string{
				filepath.Base(artifact.Path),
				display.FormatBytes(artifact.SizeBytes),
				artifact.ModifiedAt.Format(time.RFC3339),
			})
		}
		app.display.PrintTable([]string{"DELETED", "SIZE", "MODIFIED"}, rows)
	}

	for _, failure := range result.Errors {
		app.display.Warning(failure)
	}

	if result.DryRun {
		app.display.Info("Dry run: nothing was deleted.")
	} else if len(result.Deleted) > 0 {
		app.display.Success(fmt.Sprintf("Pruned %d artifacts, freed %s",
			len(result.Deleted), display.FormatBytes(result.BytesFreed)))
	} else {
		app.display.Info("Nothing to prune.")
	}
	return nil
}

// RunCheck executes the preflight checks and renders the outcome.
func (app *Application) RunCheck(ctx context.Context) error {
	result := config.NewPreflight(app.config, false).Run(ctx)

	if app.format != display.FormatTable {
		if err := display.RenderStructured(app.out, app.format, result); err != nil {
			return err
		}
	} else {
		app.renderPreflight(result)
	}

	if !result.Success {
		return errors.New("preflight checks failed")
	}
	return nil
}

func (app *Application) renderPreflight(result *config.PreflightResult) {
	app.display.PrintHeader("Preflight")
	app.display.PrintTable([]string{"CHECK", "STATUS"}, [][]string{
		{"configuration", statusWord(result.ConfigValid)},
		{"artifact directory", statusWord(result.ArtifactDirReady)},
		{"write permissions", statusWord(result.PermissionsOK)},
		{"database", statusWord(result.DatabaseReachable)},
	})

	for _, warning := range result.Warnings {
		app.display.Warning(warning)
	}
	for _, failure := range result.Errors {
		app.display.Error(failure)
	}
	for _, fix := range result.RecommendedFixes {
		app.display.Info("Hint: " + fix)
	}

	if result.Success {
		app.display.Success("All preflight checks passed")
	}
}

func statusWord(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

// HandleError reports a failed operation with a hint when one exists and
// returns the exit code for the failure class.
func (app *Application) HandleError(err error) int {
	if err == nil {
		return ExitOK
	}

	var vaultErr *vault.VaultError
	if !errors.As(err, &vaultErr) {
		if errors.Is(err, context.Canceled) {
			app.display.Warning("Operation cancelled")
			return ExitFailure
		}
		app.display.Error(err.Error())
		return ExitFailure
	}

	app.display.Error(vaultErr.Error())
	if hint := troubleshootingHint(vaultErr.Type); hint != "" {
		app.display.Info(hint)
	}

	app.logger.WithFields(map[string]interface{}{
		"error_type": string(vaultErr.Type),
		"context":    vaultErr.Context,
	}).Error("Operation failed")

	return exitCodeFor(vaultErr.Type)
}

func exitCodeFor(errorType vault.VaultErrorType) int {
	switch errorType {
	case vault.ErrorTypeValidation:
		return ExitValidation
	case vault.ErrorTypeAuthentication:
		return ExitAuthentication
	case vault.ErrorTypeUnsupportedVersion:
		return ExitUnsupportedVersion
	case vault.ErrorTypeBusy:
		return ExitBusy
	case vault.ErrorTypeIo:
		return ExitIO
	case vault.ErrorTypeCorruption, vault.ErrorTypeFormat:
		return ExitCorruption
	default:
		return ExitFailure
	}
}

func troubleshootingHint(errorType vault.VaultErrorType) string {
	switch errorType {
	case vault.ErrorTypeAuthentication:
		return "Check the passphrase. A wrong passphrase and a tampered artifact are indistinguishable."
	case vault.ErrorTypeUnsupportedVersion:
		return "The artifact was written by a newer hrvault. Upgrade and retry."
	case vault.ErrorTypeBusy:
		return "Another backup or restore is already running. Wait for it to finish."
	case vault.ErrorTypeFormat:
		return "The file is not an hrvault artifact or its header is damaged."
	case vault.ErrorTypeKeyDerivation:
		return "Key derivation failed. The artifact may demand more memory than max_kdf_memory_mib allows."
	case vault.ErrorTypeIo:
		return "Check that the path exists and the process can read and write it."
	}
	return ""
}

// newDatabaseEngine connects to the configured database and builds an engine
// over it. The caller owns the returned handle.
func (app *Application) newDatabaseEngine(ctx context.Context) (*vault.Engine, *sql.DB, error) {
	engineConfig, err := app.config.Backup.EngineConfig()
	if err != nil {
		return nil, nil, err
	}

	db, err := database.Connect(ctx, app.config.Database, app.logger)
	if err != nil {
		return nil, nil, err
	}

	store := database.NewStore(db, app.logger)
	engine, err := vault.NewEngine(engineConfig, store, store, app.logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	engine.SetProgressSink(app.display)

	return engine, db, nil
}

// verifyArtifact authenticates and decodes an artifact without a database.
func (app *Application) verifyArtifact(ctx context.Context, path, passphrase string) (*vault.VerifySummary, error) {
	engineConfig, err := app.config.Backup.EngineConfig()
	if err != nil {
		return nil, err
	}

	engine, err := vault.NewEngine(engineConfig, nil, nil, app.logger)
	if err != nil {
		return nil, err
	}
	engine.SetProgressSink(app.display)

	return engine.Verify(ctx, path, passphrase)
}

func (app *Application) restorePrompt(verify *vault.VerifySummary) confirmation.RestorePrompt {
	tables := make([]confirmation.TableLine, 0, len(verify.Tables))
	for _, table := range verify.Tables {
		tables = append(tables, confirmation.TableLine{Name: table.Name, Rows: table.Rows})
	}

	return confirmation.RestorePrompt{
		SourcePath:  verify.SourcePath,
		Destination: app.describeDestination(),
		TableCount:  verify.TableCount,
		RowCount:    verify.RowCount,
		Tables:      tables,
	}
}

// describeDestination names the restore target without leaking credentials.
func (app *Application) describeDestination() string {
	return fmt.Sprintf("%s %s", app.config.Database.Driver, logging.SanitizeDSN(app.config.Database.DSN))
}

func (app *Application) defaultArtifactPath() string {
	name := fmt.Sprintf("hrvault-%s.hrvault", time.Now().Format("20060102-150405"))
	return filepath.Join(app.config.Backup.ArtifactDir, name)
}

func (app *Application) renderBackupSummary(summary *vault.BackupSummary) error {
	if app.format != display.FormatTable {
		return display.RenderStructured(app.out, app.format, summary)
	}

	app.display.Success(fmt.Sprintf("Backup written to %s", summary.DestinationPath))
	app.display.PrintSummary("Backup summary", []display.KeyValue{
		{Key: "Operation", Value: summary.OperationID},
		{Key: "Tables", Value: display.FormatCount(summary.TableCount)},
		{Key: "Rows", Value: display.FormatCount(summary.RowCount)},
		{Key: "Artifact size", Value: display.FormatBytes(summary.ArtifactSizeBytes)},
		{Key: "Compression", Value: string(summary.Compression)},
		{Key: "Schema version", Value: fmt.Sprintf("%d", summary.SchemaVersion)},
		{Key: "Duration", Value: display.FormatDuration(summary.Duration)},
	})
	return nil
}

func (app *Application) renderRestoreSummary(summary *vault.RestoreSummary) error {
	if app.format != display.FormatTable {
		return display.RenderStructured(app.out, app.format, summary)
	}

	app.display.Success(fmt.Sprintf("Restore complete from %s", summary.SourcePath))
	app.display.PrintSummary("Restore summary", []display.KeyValue{
		{Key: "Operation", Value: summary.OperationID},
		{Key: "Tables restored", Value: display.FormatCount(summary.TablesRestored)},
		{Key: "Rows restored", Value: display.FormatCount(summary.RowsRestored)},
		{Key: "Schema version", Value: fmt.Sprintf("%d", summary.SchemaVersion)},
		{Key: "Duration", Value: display.FormatDuration(summary.Duration)},
	})
	return nil
}

func (app *Application) renderVerifySummary(summary *vault.VerifySummary) error {
	if app.format != display.FormatTable {
		return display.RenderStructured(app.out, app.format, summary)
	}

	app.display.Success(fmt.Sprintf("Artifact verified: %s", summary.SourcePath))
	app.display.PrintSummary("Artifact contents", []display.KeyValue{
		{Key: "Operation", Value: summary.OperationID},
		{Key: "Format version", Value: fmt.Sprintf("%d", summary.FormatVersion)},
		{Key: "Schema version", Value: fmt.Sprintf("%d", summary.SchemaVersion)},
		{Key: "Compression", Value: string(summary.Compression)},
		{Key: "Tables", Value: display.FormatCount(summary.TableCount)},
		{Key: "Rows", Value: display.FormatCount(summary.RowCount)},
	})

	rows := make([][]string, 0, len(summary.Tables))
	for _, table := range summary.Tables {
		rows = append(rows, []string{table.Name, display.FormatCount(table.Rows)})
	}
	app.display.PrintTable([]string{"TABLE", "ROWS"}, rows)
	return nil
}
