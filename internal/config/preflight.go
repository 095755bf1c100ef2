package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"hrvault/internal/database"
	"hrvault/internal/vault"
)

// Preflight verifies that the environment is ready for backup and restore
// operations: configuration sane, artifact directory writable, database
// reachable.
type Preflight struct {
	config  *AppConfig
	verbose bool
}

// NewPreflight creates a preflight checker for the given configuration.
func NewPreflight(config *AppConfig, verbose bool) *Preflight {
	return &Preflight{
		config:  config,
		verbose: verbose,
	}
}

// PreflightResult reports the outcome of every preflight step.
type PreflightResult struct {
	Success           bool     `json:"success" yaml:"success"`
	ConfigValid       bool     `json:"config_valid" yaml:"config_valid"`
	ArtifactDirReady  bool     `json:"artifact_dir_ready" yaml:"artifact_dir_ready"`
	PermissionsOK     bool     `json:"permissions_ok" yaml:"permissions_ok"`
	DatabaseReachable bool     `json:"database_reachable" yaml:"database_reachable"`
	Warnings          []string `json:"warnings" yaml:"warnings"`
	Errors            []string `json:"errors" yaml:"errors"`
	RecommendedFixes  []string `json:"recommended_fixes" yaml:"recommended_fixes"`
}

// Run executes every preflight step and collects the results. A failed
// database probe is reported as a warning rather than a failure so the
// checker stays useful on machines that only inspect artifacts.
func (p *Preflight) Run(ctx context.Context) *PreflightResult {
	result := &PreflightResult{
		Success:           true,
		ConfigValid:       true,
		ArtifactDirReady:  true,
		PermissionsOK:     true,
		DatabaseReachable: true,
		Warnings:          []string{},
		Errors:            []string{},
		RecommendedFixes:  []string{},
	}

	if p.verbose {
		fmt.Println("Running preflight checks...")
	}

	if err := p.validateConfiguration(); err != nil {
		result.Success = false
		result.ConfigValid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Configuration validation failed: %v", err))
	}

	if err := p.ensureArtifactDir(); err != nil {
		result.Success = false
		result.ArtifactDirReady = false
		result.Errors = append(result.Errors, fmt.Sprintf("Artifact directory check failed: %v", err))
	}

	if err := p.checkPermissions(); err != nil {
		result.PermissionsOK = false
		result.Warnings = append(result.Warnings, fmt.Sprintf("Permission check warning: %v", err))
	}

	if err := p.testDatabase(ctx); err != nil {
		result.DatabaseReachable = false
		result.Warnings = append(result.Warnings, fmt.Sprintf("Database connectivity warning: %v", err))
	}

	p.generateRecommendations(result)

	if p.verbose {
		if result.Success {
			fmt.Println("Preflight checks completed successfully")
		} else {
			fmt.Println("Preflight checks completed with errors")
		}
	}

	return result
}

// validateConfiguration validates the full configuration tree.
func (p *Preflight) validateConfiguration() error {
	if p.verbose {
		fmt.Println("  Validating configuration...")
	}

	return p.config.Validate()
}

// ensureArtifactDir creates the artifact directory if it is missing and
// confirms it really is a directory.
func (p *Preflight) ensureArtifactDir() error {
	if p.verbose {
		fmt.Println("  Checking artifact directory...")
	}

	dir := p.config.Backup.ArtifactDir
	if dir == "" {
		dir = "."
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create artifact directory: %w", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot access artifact directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("artifact path is not a directory: %s", dir)
	}

	return nil
}

// checkPermissions probes the artifact directory for write access.
func (p *Preflight) checkPermissions() error {
	if p.verbose {
		fmt.Println("  Checking permissions...")
	}

	dir := p.config.Backup.ArtifactDir
	if dir == "" {
		dir = "."
	}

	testFile := filepath.Join(dir, ".hrvault_write_probe")
	if err := os.WriteFile(testFile, []byte("probe"), 0o600); err != nil {
		return fmt.Errorf("insufficient write permissions for artifact directory: %w", err)
	}
	os.Remove(testFile)

	return nil
}

// testDatabase opens and pings the configured database, then closes it.
func (p *Preflight) testDatabase(ctx context.Context) error {
	if p.verbose {
		fmt.Println("  Testing database connectivity...")
	}

	db, err := database.Connect(ctx, p.config.Database, nil)
	if err != nil {
		return err
	}
	return db.Close()
}

// generateRecommendations appends setup advice derived from the
// configuration.
func (p *Preflight) generateRecommendations(result *PreflightResult) {
	defaults := vault.DefaultKDFParams()

	if p.config.Backup.KDFMemoryMiB < defaults.MemoryMiB {
		result.RecommendedFixes = append(result.RecommendedFixes,
			fmt.Sprintf("Raise kdf_memory_mib to at least %d for stronger key derivation", defaults.MemoryMiB))
	}

	if p.config.Backup.Compression == string(vault.CompressionNone) {
		result.RecommendedFixes = append(result.RecommendedFixes,
			"Enable zstd compression to shrink artifacts")
	}

	if p.config.Backup.ArtifactDir == "." {
		result.RecommendedFixes = append(result.RecommendedFixes,
			"Set backup.artifact_dir to a dedicated directory to keep exports together")
	}
}
