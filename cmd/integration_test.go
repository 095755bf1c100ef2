package cmd

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrvault/internal/application"
	"hrvault/internal/database"
)

// setupCLI isolates a test from the host: a throwaway HOME so no real
// config file is picked up, a throwaway working directory, a scripted
// passphrase, and cheap key derivation parameters.
func setupCLI(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("HRVAULT_PASSPHRASE", "correct-horse-battery")
	t.Setenv("HRVAULT_BACKUP_KDF_TIME_COST", "1")
	t.Setenv("HRVAULT_BACKUP_KDF_MEMORY_MIB", "8")
	t.Setenv("HRVAULT_BACKUP_KDF_PARALLELISM", "1")
	return t.TempDir()
}

// runCLI executes a freshly built command tree so flag state never
// leaks between tests.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// exitCodeOf unwraps the exit code a failed command chose, or 0.
func exitCodeOf(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 0
}

func openVault(t *testing.T, dsn string) *sql.DB {
	t.Helper()
	db, err := sql.Open(database.DriverSQLite, dsn)
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

func countEmployees(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM employees").Scan(&n))
	return n
}

func TestCLI_ExportImportRoundTrip(t *testing.T) {
	dir := setupCLI(t)
	dsn := filepath.Join(dir, "vault.db")
	artifact := filepath.Join(dir, "backup.hrvault")

	db := openVault(t, dsn)
	seedEmployees(t, db, 4)

	out, err := runCLI("export", artifact, "--db", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "Backup written to")
	require.FileExists(t, artifact)

	_, err = db.Exec("DELETE FROM employees")
	require.NoError(t, err)
	require.Equal(t, 0, countEmployees(t, db))

	out, err = runCLI("import", "--yes", artifact, "--db", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "Restore complete")
	assert.Equal(t, 4, countEmployees(t, db))
}

func TestCLI_VerifyReportsContents(t *testing.T) {
	dir := setupCLI(t)
	dsn := filepath.Join(dir, "vault.db")
	artifact := filepath.Join(dir, "backup.hrvault")

	db := openVault(t, dsn)
	seedEmployees(t, db, 2)

	_, err := runCLI("export", artifact, "--db", dsn)
	require.NoError(t, err)

	out, err := runCLI("verify", artifact)
	require.NoError(t, err)
	assert.Contains(t, out, "Artifact verified")
	assert.Contains(t, out, "employees")
}

func TestCLI_VerifyWrongPassphraseExitCode(t *testing.T) {
	dir := setupCLI(t)
	dsn := filepath.Join(dir, "vault.db")
	artifact := filepath.Join(dir, "backup.hrvault")

	openVault(t, dsn)
	_, err := runCLI("export", artifact, "--db", dsn)
	require.NoError(t, err)

	t.Setenv("HRVAULT_PASSPHRASE", "wrong-horse-battery")
	out, err := runCLI("verify", artifact)
	require.Error(t, err)
	assert.Equal(t, application.ExitAuthentication, exitCodeOf(err))
	assert.Contains(t, out, "Check the passphrase")
}

func TestCLI_ImportDryRunLeavesDatabaseAlone(t *testing.T) {
	dir := setupCLI(t)
	dsn := filepath.Join(dir, "vault.db")
	artifact := filepath.Join(dir, "backup.hrvault")

	db := openVault(t, dsn)
	seedEmployees(t, db, 3)

	_, err := runCLI("export", artifact, "--db", dsn)
	require.NoError(t, err)

	_, err = db.Exec("DELETE FROM employees")
	require.NoError(t, err)

	out, err := runCLI("import", "--dry-run", artifact, "--db", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "Artifact contents")
	assert.Equal(t, 0, countEmployees(t, db), "dry run must not restore")
}

func TestCLI_InspectJSON(t *testing.T) {
	dir := setupCLI(t)
	dsn := filepath.Join(dir, "vault.db")
	artifact := filepath.Join(dir, "backup.hrvault")

	openVault(t, dsn)
	_, err := runCLI("export", artifact, "--db", dsn)
	require.NoError(t, err)

	out, err := runCLI("inspect", "-o", "json", artifact)
	require.NoError(t, err)

	var report application.InspectReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, uint8(1), report.FormatVersion)
	assert.Equal(t, uint8(1), report.KDFTimeCost)
	assert.Equal(t, uint16(8), report.KDFMemoryMiB)
	assert.Len(t, report.Salt, 32, "hex of the 16-byte salt")
	assert.Len(t, report.Nonce, 24, "hex of the 12-byte nonce")
	assert.Positive(t, report.SizeBytes)
}

func TestCLI_ExportFlagsOverrideConfig(t *testing.T) {
	dir := setupCLI(t)
	dsn := filepath.Join(dir, "vault.db")
	artifact := filepath.Join(dir, "backup.hrvault")

	openVault(t, dsn)
	_, err := runCLI("export", artifact, "--db", dsn, "--compression", "none", "--kdf-memory", "16")
	require.NoError(t, err)

	out, err := runCLI("inspect", "-o", "json", artifact)
	require.NoError(t, err)

	var report application.InspectReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, uint16(16), report.KDFMemoryMiB)
}

func TestCLI_MissingPassphraseIsValidationError(t *testing.T) {
	dir := setupCLI(t)
	t.Setenv("HRVAULT_PASSPHRASE", "")

	out, err := runCLI("export", filepath.Join(dir, "backup.hrvault"), "--db", filepath.Join(dir, "vault.db"))
	require.Error(t, err)
	assert.Equal(t, application.ExitValidation, exitCodeOf(err))
	assert.Contains(t, out, "HRVAULT_PASSPHRASE")
}

func TestCLI_Tables(t *testing.T) {
	setupCLI(t)

	out, err := runCLI("tables")
	require.NoError(t, err)
	assert.Contains(t, out, "employees")
	assert.Contains(t, out, "conversation_messages")
	assert.Contains(t, out, "audit_log")
	assert.Contains(t, out, "Schema version 1")
}

func TestCLI_ConfigInitAndEnv(t *testing.T) {
	dir := setupCLI(t)
	path := filepath.Join(dir, "config.yaml")

	out, err := runCLI("config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "compression: zstd")

	out, err = runCLI("config", "env")
	require.NoError(t, err)
	assert.Contains(t, out, "HRVAULT_PASSPHRASE")
	assert.Contains(t, out, "HRVAULT_DB_DSN")
}

func TestCLI_ConfigShowMasksCredentials(t *testing.T) {
	setupCLI(t)

	out, err := runCLI("config", "show", "--db", "hr:sekret@tcp(db.internal:3306)/hr")
	require.NoError(t, err)
	assert.Contains(t, out, "driver: mysql")
	assert.NotContains(t, out, "sekret")
}

func TestCLI_ConfigCheck(t *testing.T) {
	dir := setupCLI(t)
	dsn := filepath.Join(dir, "vault.db")
	t.Setenv("HRVAULT_BACKUP_ARTIFACT_DIR", filepath.Join(dir, "artifacts"))

	out, err := runCLI("config", "check", "--db", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "All preflight checks passed")
	assert.DirExists(t, filepath.Join(dir, "artifacts"))
}

func TestCLI_UnknownOutputFormat(t *testing.T) {
	setupCLI(t)

	_, err := runCLI("tables", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestCLI_Version(t *testing.T) {
	setupCLI(t)
	SetVersionInfo("1.2.3", "2026-01-02", "abc1234", "go1.25")

	out, err := runCLI("version")
	require.NoError(t, err)
	assert.Contains(t, out, "hrvault version 1.2.3")
	assert.Contains(t, out, "abc1234")
}

func TestCLI_PruneKeepsNewest(t *testing.T) {
	dir := setupCLI(t)
	artifactDir := filepath.Join(dir, "artifacts")
	t.Setenv("HRVAULT_BACKUP_ARTIFACT_DIR", artifactDir)
	require.NoError(t, os.MkdirAll(artifactDir, 0o755))

	old := filepath.Join(artifactDir, "old.hrvault")
	require.NoError(t, os.WriteFile(old, []byte("sealed"), 0o600))
	stamp := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(old, stamp, stamp))
	fresh := filepath.Join(artifactDir, "fresh.hrvault")
	require.NoError(t, os.WriteFile(fresh, []byte("sealed"), 0o600))

	out, err := runCLI("prune", "--keep", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Pruned 1 artifacts")
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
}

func TestCLI_PruneWithoutRuleIsValidationError(t *testing.T) {
	setupCLI(t)

	_, err := runCLI("prune")
	require.Error(t, err)
	assert.Equal(t, application.ExitValidation, exitCodeOf(err))
}

func TestCLI_ExportDefaultsToArtifactDir(t *testing.T) {
	dir := setupCLI(t)
	dsn := filepath.Join(dir, "vault.db")
	artifactDir := filepath.Join(dir, "artifacts")
	t.Setenv("HRVAULT_BACKUP_ARTIFACT_DIR", artifactDir)
	require.NoError(t, os.MkdirAll(artifactDir, 0o755))

	openVault(t, dsn)
	_, err := runCLI("export", "--db", dsn)
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(artifactDir, "hrvault-*.hrvault"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}
