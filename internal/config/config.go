// Package config defines the application configuration tree, its defaults,
// validation, and the loaders that populate it from files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"hrvault/internal/database"
	"hrvault/internal/display"
	"hrvault/internal/logging"
	"hrvault/internal/vault"
)

// AppConfig is the top-level configuration for the hrvault CLI.
type AppConfig struct {
	Database database.Config `mapstructure:"database" yaml:"database"`
	Backup   BackupConfig    `mapstructure:"backup" yaml:"backup"`
	Logging  LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Display  display.Config  `mapstructure:"display" yaml:"display"`
}

// BackupConfig holds the artifact and key derivation settings used by the
// backup engine.
type BackupConfig struct {
	// Compression selects the payload transform: none, gzip, lz4, or zstd.
	Compression string `mapstructure:"compression" yaml:"compression"`

	// Argon2id cost parameters. They are embedded in every artifact header,
	// so tuning them only affects new exports.
	KDFTimeCost    uint8  `mapstructure:"kdf_time_cost" yaml:"kdf_time_cost"`
	KDFMemoryMiB   uint16 `mapstructure:"kdf_memory_mib" yaml:"kdf_memory_mib"`
	KDFParallelism uint8  `mapstructure:"kdf_parallelism" yaml:"kdf_parallelism"`

	// MaxKDFMemoryMiB caps the memory cost this process will honor when
	// importing an artifact, whatever its header demands.
	MaxKDFMemoryMiB uint32 `mapstructure:"max_kdf_memory_mib" yaml:"max_kdf_memory_mib"`

	// ArtifactDir is where exports land when no output path is given.
	ArtifactDir string `mapstructure:"artifact_dir" yaml:"artifact_dir"`

	// Retention bounds for the prune command. Zero values disable a rule;
	// with both at zero, prune refuses to run rather than guess.
	RetentionMaxCount int           `mapstructure:"retention_max_count" yaml:"retention_max_count"`
	RetentionMaxAge   time.Duration `mapstructure:"retention_max_age" yaml:"retention_max_age"`
}

// LoggingConfig controls log verbosity and destination.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // quiet, normal, verbose, debug
	Format string `mapstructure:"format" yaml:"format"` // text or json
	File   string `mapstructure:"file" yaml:"file"`     // empty writes to stderr
}

// Default returns an AppConfig with every optional setting at its default.
// The database connection has no default and must be provided.
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills in zero-valued fields across every section.
func (c *AppConfig) SetDefaults() {
	c.Database.SetDefaults()
	c.Backup.SetDefaults()
	c.Logging.SetDefaults()
	c.Display.SetDefaults()
}

// Validate checks every section and reports all problems at once.
func (c *AppConfig) Validate() error {
	var errs []error

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}

	if err := c.Backup.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("backup: %w", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	if err := c.Display.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("display: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// LoadFromEnvironment overrides configuration from HRVAULT_* environment
// variables.
func (c *AppConfig) LoadFromEnvironment() {
	if val := os.Getenv("HRVAULT_DB_DSN"); val != "" {
		c.Database.DSN = val
	}
	if val := os.Getenv("HRVAULT_DB_DRIVER"); val != "" {
		c.Database.Driver = strings.ToLower(val)
	}

	c.Backup.LoadFromEnvironment()
	c.Logging.LoadFromEnvironment()
}

// Validate checks the backup settings.
func (bc *BackupConfig) Validate() error {
	var errs []error

	if _, err := vault.ParseCompressionType(bc.Compression); err != nil {
		errs = append(errs, err)
	}

	if bc.KDFTimeCost == 0 {
		errs = append(errs, errors.New("kdf_time_cost must be at least 1"))
	}
	if bc.KDFMemoryMiB == 0 {
		errs = append(errs, errors.New("kdf_memory_mib must be at least 1"))
	}
	if bc.KDFParallelism == 0 {
		errs = append(errs, errors.New("kdf_parallelism must be at least 1"))
	}

	if bc.MaxKDFMemoryMiB > 0 && uint32(bc.KDFMemoryMiB) > bc.MaxKDFMemoryMiB {
		errs = append(errs, fmt.Errorf("kdf_memory_mib %d exceeds max_kdf_memory_mib %d",
			bc.KDFMemoryMiB, bc.MaxKDFMemoryMiB))
	}

	if err := bc.RetentionPolicy().Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("backup configuration validation failed: %v", errs)
	}

	return nil
}

// SetDefaults fills in zero-valued backup settings from the engine defaults.
func (bc *BackupConfig) SetDefaults() {
	engineDefaults := vault.DefaultEngineConfig()

	if bc.Compression == "" {
		bc.Compression = string(engineDefaults.Compression)
	}
	if bc.KDFTimeCost == 0 {
		bc.KDFTimeCost = engineDefaults.KDF.TimeCost
	}
	if bc.KDFMemoryMiB == 0 {
		bc.KDFMemoryMiB = engineDefaults.KDF.MemoryMiB
	}
	if bc.KDFParallelism == 0 {
		bc.KDFParallelism = engineDefaults.KDF.Parallelism
	}
	if bc.MaxKDFMemoryMiB == 0 {
		bc.MaxKDFMemoryMiB = engineDefaults.MaxKDFMemoryMiB
	}
	if bc.ArtifactDir == "" {
		bc.ArtifactDir = "."
	}
}

// LoadFromEnvironment overrides backup settings from environment variables.
func (bc *BackupConfig) LoadFromEnvironment() {
	if val := os.Getenv("HRVAULT_BACKUP_COMPRESSION"); val != "" {
		bc.Compression = strings.ToLower(val)
	}
	if val := os.Getenv("HRVAULT_BACKUP_KDF_TIME_COST"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 8); err == nil {
			bc.KDFTimeCost = uint8(n)
		}
	}
	if val := os.Getenv("HRVAULT_BACKUP_KDF_MEMORY_MIB"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 16); err == nil {
			bc.KDFMemoryMiB = uint16(n)
		}
	}
	if val := os.Getenv("HRVAULT_BACKUP_KDF_PARALLELISM"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 8); err == nil {
			bc.KDFParallelism = uint8(n)
		}
	}
	if val := os.Getenv("HRVAULT_BACKUP_ARTIFACT_DIR"); val != "" {
		bc.ArtifactDir = val
	}
	if val := os.Getenv("HRVAULT_BACKUP_RETENTION_MAX_COUNT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			bc.RetentionMaxCount = n
		}
	}
	if val := os.Getenv("HRVAULT_BACKUP_RETENTION_MAX_AGE"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			bc.RetentionMaxAge = d
		}
	}
}

// RetentionPolicy converts the retention bounds into the pruner's policy.
func (bc *BackupConfig) RetentionPolicy() vault.RetentionPolicy {
	return vault.RetentionPolicy{
		MaxCount: bc.RetentionMaxCount,
		MaxAge:   bc.RetentionMaxAge,
	}
}

// EngineConfig converts the backup settings into the engine's configuration,
// canonicalizing compression aliases like "gz" along the way.
func (bc *BackupConfig) EngineConfig() (vault.EngineConfig, error) {
	compression, err := vault.ParseCompressionType(bc.Compression)
	if err != nil {
		return vault.EngineConfig{}, err
	}

	cfg := vault.DefaultEngineConfig()
	cfg.Compression = compression
	cfg.KDF = vault.KDFParams{
		TimeCost:    bc.KDFTimeCost,
		MemoryMiB:   bc.KDFMemoryMiB,
		Parallelism: bc.KDFParallelism,
	}
	cfg.MaxKDFMemoryMiB = bc.MaxKDFMemoryMiB
	return cfg, nil
}

// Validate checks the logging settings.
func (lc *LoggingConfig) Validate() error {
	var errs []error

	switch lc.Level {
	case "quiet", "normal", "verbose", "debug":
	case "":
		errs = append(errs, errors.New("level is required"))
	default:
		errs = append(errs, fmt.Errorf("invalid level %q (expected quiet, normal, verbose, or debug)", lc.Level))
	}

	switch lc.Format {
	case "text", "json":
	case "":
		errs = append(errs, errors.New("format is required"))
	default:
		errs = append(errs, fmt.Errorf("invalid format %q (expected text or json)", lc.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("logging configuration validation failed: %v", errs)
	}

	return nil
}

// SetDefaults fills in zero-valued logging settings.
func (lc *LoggingConfig) SetDefaults() {
	if lc.Level == "" {
		lc.Level = string(logging.LogLevelNormal)
	}
	if lc.Format == "" {
		lc.Format = "text"
	}
}

// LoadFromEnvironment overrides logging settings from environment variables.
func (lc *LoggingConfig) LoadFromEnvironment() {
	if val := os.Getenv("HRVAULT_LOG_LEVEL"); val != "" {
		lc.Level = strings.ToLower(val)
	}
	if val := os.Getenv("HRVAULT_LOG_FORMAT"); val != "" {
		lc.Format = strings.ToLower(val)
	}
	if val := os.Getenv("HRVAULT_LOG_FILE"); val != "" {
		lc.File = val
	}
}

// LoggerConfig converts the logging settings into the logger's configuration.
func (lc *LoggingConfig) LoggerConfig() logging.Config {
	return logging.Config{
		Level:   logging.LogLevel(lc.Level),
		Format:  lc.Format,
		LogFile: lc.File,
	}
}
