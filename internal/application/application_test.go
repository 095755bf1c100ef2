package application

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hrvault/internal/config"
	"hrvault/internal/confirmation"
	"hrvault/internal/database"
	"hrvault/internal/display"
	"hrvault/internal/registry"
	"hrvault/internal/vault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = filepath.Join(dir, "vault.db")
	cfg.Database.MaxRetries = 1
	cfg.Database.RetryDelay = time.Millisecond
	cfg.Backup.ArtifactDir = dir
	cfg.Backup.KDFTimeCost = 1
	cfg.Backup.KDFMemoryMiB = 8
	cfg.Backup.KDFParallelism = 1
	cfg.Logging.Level = "quiet"
	cfg.Display.ColorEnabled = false
	cfg.Display.UseIcons = false
	return cfg
}

func newTestApp(t *testing.T, cfg *config.AppConfig) (*Application, *bytes.Buffer) {
	t.Helper()
	app, err := New(cfg)
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	app.SetOutput(buf)
	return app, buf
}

// openVault opens the configured database directly and materializes the
// registered schema, the state an installed application starts from.
func openVault(t *testing.T, cfg *config.AppConfig) *sql.DB {
	t.Helper()
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := database.NewStore(db, nil)
	require.NoError(t, store.EnsureSchema(context.Background()))
	return db
}

func seedEmployees(t *testing.T, db *sql.DB, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		_, err := db.Exec(
			`INSERT INTO employees (id, full_name, email, role, manager_id, hired_at)
			 VALUES (?, ?, ?, ?, NULL, ?)`,
			fmt.Sprintf("emp-%03d", i),
			fmt.Sprintf("Employee %d", i),
			fmt.Sprintf("emp%d@example.test", i),
			"engineer",
			"2024-01-15",
		)
		require.NoError(t, err)
	}
}

func seedAuditLog(t *testing.T, db *sql.DB, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		_, err := db.Exec(
			`INSERT INTO audit_log (id, actor_id, action, entity, entity_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			i+1, "emp-000", "update", "employees", "emp-001", "2024-02-01T10:00:00Z",
		)
		require.NoError(t, err)
	}
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&count))
	return count
}

func TestApplication_ExportImportRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	db := openVault(t, cfg)
	seedEmployees(t, db, 4)
	seedAuditLog(t, db, 3)

	app, out := newTestApp(t, cfg)
	artifact := filepath.Join(t.TempDir(), "roundtrip.hrvault")

	err := app.RunExport(context.Background(), ExportOptions{
		ArtifactPath: artifact,
		Passphrase:   "correct-horse",
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Backup written to")

	_, err = os.Stat(artifact)
	require.NoError(t, err)

	// Mangle the live data, then restore over it.
	_, err = db.Exec("DELETE FROM audit_log")
	require.NoError(t, err)
	_, err = db.Exec("DELETE FROM employees")
	require.NoError(t, err)
	seedEmployees(t, db, 1)

	out.Reset()
	err = app.RunImport(context.Background(), ImportOptions{
		ArtifactPath: artifact,
		Passphrase:   "correct-horse",
		AutoApprove:  true,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Restore complete")

	assert.Equal(t, 4, countRows(t, db, "employees"))
	assert.Equal(t, 3, countRows(t, db, "audit_log"))
}

func TestApplication_ExportUsesArtifactDirByDefault(t *testing.T) {
	cfg := testConfig(t)
	openVault(t, cfg)

	app, _ := newTestApp(t, cfg)
	err := app.RunExport(context.Background(), ExportOptions{Passphrase: "pw"})
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(cfg.Backup.ArtifactDir, "hrvault-*.hrvault"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestApplication_EmptyDatabaseRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	openVault(t, cfg)

	app, out := newTestApp(t, cfg)
	require.NoError(t, app.SetOutputFormat("json"))

	artifact := filepath.Join(t.TempDir(), "empty.hrvault")
	err := app.RunExport(context.Background(), ExportOptions{
		ArtifactPath: artifact,
		Passphrase:   "pw",
	})
	require.NoError(t, err)

	out.Reset()
	err = app.RunVerify(context.Background(), VerifyOptions{
		ArtifactPath: artifact,
		Passphrase:   "pw",
	})
	require.NoError(t, err)

	var summary vault.VerifySummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, registry.Count(), summary.TableCount)
	assert.Equal(t, 0, summary.RowCount)
	assert.Len(t, summary.Tables, registry.Count())
}

func TestApplication_WrongPassphraseLeavesDatabaseUntouched(t *testing.T) {
	cfg := testConfig(t)
	db := openVault(t, cfg)
	seedEmployees(t, db, 2)

	app, _ := newTestApp(t, cfg)
	artifact := filepath.Join(t.TempDir(), "sealed.hrvault")

	err := app.RunExport(context.Background(), ExportOptions{
		ArtifactPath: artifact,
		Passphrase:   "correct-horse",
	})
	require.NoError(t, err)

	// Change the database after the export so surviving data is provable.
	seedEmployees(t, db, 1)
	_, err = db.Exec("UPDATE employees SET role = 'sentinel' WHERE id = 'emp-000'")
	require.NoError(t, err)

	err = app.RunImport(context.Background(), ImportOptions{
		ArtifactPath: artifact,
		Passphrase:   "wrong-horse",
		AutoApprove:  true,
	})
	require.Error(t, err)
	assert.True(t, vault.IsType(err, vault.ErrorTypeAuthentication))

	assert.Equal(t, 3, countRows(t, db, "employees"))
	var role string
	require.NoError(t, db.QueryRow("SELECT role FROM employees WHERE id = 'emp-000'").Scan(&role))
	assert.Equal(t, "sentinel", role)
}

func TestApplication_ImportDryRun(t *testing.T) {
	cfg := testConfig(t)
	db := openVault(t, cfg)
	seedEmployees(t, db, 2)

	app, out := newTestApp(t, cfg)
	artifact := filepath.Join(t.TempDir(), "dryrun.hrvault")

	require.NoError(t, app.RunExport(context.Background(), ExportOptions{
		ArtifactPath: artifact,
		Passphrase:   "pw",
	}))

	seedEmployees(t, db, 1)

	out.Reset()
	err := app.RunImport(context.Background(), ImportOptions{
		ArtifactPath: artifact,
		Passphrase:   "pw",
		DryRun:       true,
	})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Artifact contents")
	assert.Equal(t, 3, countRows(t, db, "employees"), "dry run never writes")
}

func TestApplication_ImportDeclined(t *testing.T) {
	cfg := testConfig(t)
	db := openVault(t, cfg)
	seedEmployees(t, db, 2)

	app, out := newTestApp(t, cfg)
	artifact := filepath.Join(t.TempDir(), "declined.hrvault")

	require.NoError(t, app.RunExport(context.Background(), ExportOptions{
		ArtifactPath: artifact,
		Passphrase:   "pw",
	}))

	seedEmployees(t, db, 1)

	// Script a "no" answer in place of the interactive prompt.
	displayService := display.NewService(&cfg.Display)
	displayService.SetOutput(out)
	app.SetConfirmation(confirmation.NewServiceWithReader(
		displayService, strings.NewReader("n\n"), io.Discard))

	err := app.RunImport(context.Background(), ImportOptions{
		ArtifactPath: artifact,
		Passphrase:   "pw",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, countRows(t, db, "employees"), "declined restore never writes")
}

func TestApplication_RunInspect(t *testing.T) {
	cfg := testConfig(t)
	openVault(t, cfg)

	app, out := newTestApp(t, cfg)
	artifact := filepath.Join(t.TempDir(), "inspect.hrvault")

	require.NoError(t, app.RunExport(context.Background(), ExportOptions{
		ArtifactPath: artifact,
		Passphrase:   "pw",
	}))

	out.Reset()
	require.NoError(t, app.RunInspect(artifact))
	assert.Contains(t, out.String(), "Format version")
	assert.Contains(t, out.String(), "passphrase")

	out.Reset()
	require.NoError(t, app.SetOutputFormat("json"))
	require.NoError(t, app.RunInspect(artifact))

	var report InspectReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, uint8(1), report.FormatVersion)
	assert.Equal(t, uint8(1), report.KDFTimeCost)
	assert.Equal(t, uint16(8), report.KDFMemoryMiB)
	assert.Len(t, report.Salt, 2*vault.SaltLength)
	assert.Len(t, report.Nonce, 2*vault.NonceLength)
	assert.Greater(t, report.SizeBytes, int64(0))
}

func TestApplication_RunCheck(t *testing.T) {
	cfg := testConfig(t)

	app, out := newTestApp(t, cfg)
	require.NoError(t, app.RunCheck(context.Background()))
	assert.Contains(t, out.String(), "All preflight checks passed")
}

func TestApplication_RunCheckFailsOnBrokenConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.DSN = ""

	app, out := newTestApp(t, cfg)
	err := app.RunCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preflight checks failed")
	assert.Contains(t, out.String(), "Configuration validation failed")
}

func TestApplication_SetOutputFormat(t *testing.T) {
	app, _ := newTestApp(t, testConfig(t))

	require.NoError(t, app.SetOutputFormat("yaml"))

	err := app.SetOutputFormat("xml")
	require.Error(t, err)
	assert.True(t, vault.IsType(err, vault.ErrorTypeValidation))
}

func TestApplication_HandleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"no error", nil, ExitOK},
		{"plain error", errors.New("boom"), ExitFailure},
		{"cancelled", context.Canceled, ExitFailure},
		{"validation", vault.NewValidationError("bad input", nil), ExitValidation},
		{"authentication", vault.NewAuthenticationError("denied", nil), ExitAuthentication},
		{"unsupported version", vault.NewUnsupportedVersionError("newer", nil), ExitUnsupportedVersion},
		{"busy", vault.NewBusyError("in flight", nil), ExitBusy},
		{"io", vault.NewIoError("no file", nil), ExitIO},
		{"corruption", vault.NewCorruptionError("mangled", nil), ExitCorruption},
		{"format", vault.NewFormatError("not an artifact", nil), ExitCorruption},
		{"restore", vault.NewRestoreError("failed", nil), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := newTestApp(t, testConfig(t))
			assert.Equal(t, tt.wantCode, app.HandleError(tt.err))
		})
	}
}

func TestApplication_HandleErrorPrintsHint(t *testing.T) {
	app, out := newTestApp(t, testConfig(t))

	code := app.HandleError(vault.NewAuthenticationError("message authentication failed", nil))
	assert.Equal(t, ExitAuthentication, code)
	assert.Contains(t, out.String(), "AUTHENTICATION_ERROR")
	assert.Contains(t, out.String(), "Check the passphrase")
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backup.Compression = "brotli"

	_, err := New(cfg)
	require.Error(t, err)
}

// writeAgedArtifact plants a fake artifact with a back-dated mtime.
func writeAgedArtifact(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("sealed"), 0o600))
	stamp := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, stamp, stamp))
	return path
}

func TestApplication_RunPrune(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backup.RetentionMaxCount = 1
	app, out := newTestApp(t, cfg)

	old := writeAgedArtifact(t, cfg.Backup.ArtifactDir, "old.hrvault", 3*time.Hour)
	fresh := writeAgedArtifact(t, cfg.Backup.ArtifactDir, "fresh.hrvault", time.Hour)

	err := app.RunPrune(context.Background(), PruneOptions{})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Pruned 1 artifacts")
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
}

func TestApplication_RunPruneDryRunOverridesConfig(t *testing.T) {
	cfg := testConfig(t)
	app, out := newTestApp(t, cfg)

	old := writeAgedArtifact(t, cfg.Backup.ArtifactDir, "old.hrvault", 3*time.Hour)
	writeAgedArtifact(t, cfg.Backup.ArtifactDir, "fresh.hrvault", time.Hour)

	// No retention configured; the one-shot bound comes from the options.
	err := app.RunPrune(context.Background(), PruneOptions{DryRun: true, MaxCount: 1})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Dry run")
	assert.FileExists(t, old)
}

func TestApplication_RunPruneWithoutRuleFails(t *testing.T) {
	app, _ := newTestApp(t, testConfig(t))

	err := app.RunPrune(context.Background(), PruneOptions{})
	require.Error(t, err)
	assert.True(t, vault.IsType(err, vault.ErrorTypeValidation))
}
