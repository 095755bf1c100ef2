package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader resolves the application configuration from a file, environment
// variables, and built-in defaults, in that order of precedence (lowest
// first). CLI flag overrides are applied by the caller after Load.
type Loader struct {
	viper *viper.Viper
}

// NewLoader creates a configuration loader with its own viper instance.
func NewLoader() *Loader {
	return &Loader{
		viper: viper.New(),
	}
}

// Load reads the configuration file at configPath, or searches the standard
// locations when configPath is empty. A missing file is only an error when
// it was requested explicitly. The result has environment overrides and
// defaults applied but is not validated; callers validate after layering
// their own overrides on top.
func (l *Loader) Load(configPath string) (*AppConfig, error) {
	l.setupViper(configPath)
	l.setDefaults()

	if err := l.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &AppConfig{}
	if err := l.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	cfg.LoadFromEnvironment()
	cfg.SetDefaults()

	return cfg, nil
}

// ConfigFileUsed reports the path of the configuration file the last Load
// consumed, or an empty string when none was found.
func (l *Loader) ConfigFileUsed() string {
	return l.viper.ConfigFileUsed()
}

// setupViper configures viper for configuration loading.
func (l *Loader) setupViper(configPath string) {
	if configPath != "" {
		l.viper.SetConfigFile(configPath)
	} else {
		l.viper.SetConfigName(".hrvault")
		l.viper.SetConfigType("yaml")
		l.viper.AddConfigPath(".")
		l.viper.AddConfigPath("$HOME/.config/hrvault")
		l.viper.AddConfigPath("$HOME")
	}

	l.viper.AutomaticEnv()
	l.viper.SetEnvPrefix("HRVAULT")
	l.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

// setDefaults registers defaults so keys resolve even when the file omits
// whole sections.
func (l *Loader) setDefaults() {
	defaults := Default()

	l.viper.SetDefault("database.driver", defaults.Database.Driver)
	l.viper.SetDefault("database.timeout", defaults.Database.Timeout)
	l.viper.SetDefault("database.max_retries", defaults.Database.MaxRetries)
	l.viper.SetDefault("database.retry_delay", defaults.Database.RetryDelay)

	l.viper.SetDefault("backup.compression", defaults.Backup.Compression)
	l.viper.SetDefault("backup.kdf_time_cost", defaults.Backup.KDFTimeCost)
	l.viper.SetDefault("backup.kdf_memory_mib", defaults.Backup.KDFMemoryMiB)
	l.viper.SetDefault("backup.kdf_parallelism", defaults.Backup.KDFParallelism)
	l.viper.SetDefault("backup.max_kdf_memory_mib", defaults.Backup.MaxKDFMemoryMiB)
	l.viper.SetDefault("backup.artifact_dir", defaults.Backup.ArtifactDir)
	l.viper.SetDefault("backup.retention_max_count", defaults.Backup.RetentionMaxCount)
	l.viper.SetDefault("backup.retention_max_age", defaults.Backup.RetentionMaxAge)

	l.viper.SetDefault("logging.level", defaults.Logging.Level)
	l.viper.SetDefault("logging.format", defaults.Logging.Format)

	l.viper.SetDefault("display.color_enabled", defaults.Display.ColorEnabled)
	l.viper.SetDefault("display.theme", defaults.Display.Theme)
	l.viper.SetDefault("display.use_icons", defaults.Display.UseIcons)
}

// SampleYAML returns a complete, commented configuration template.
func SampleYAML() string {
	return `# hrvault configuration file
# Place this file at ./.hrvault.yaml or ~/.hrvault.yaml, or pass it
# explicitly with --config.

# Database connection for the vault being backed up or restored.
database:
  driver: sqlite            # sqlite or mysql
  dsn: hr-vault.db          # file path for sqlite, user:pass@tcp(host:port)/db for mysql
  timeout: 30s              # connection timeout
  max_retries: 3            # connection attempts before giving up
  retry_delay: 2s           # pause between connection attempts

# Backup artifact settings.
backup:
  compression: zstd         # payload transform: none, gzip, lz4, zstd
  kdf_time_cost: 3          # Argon2id passes over memory
  kdf_memory_mib: 64        # Argon2id memory cost in MiB
  kdf_parallelism: 4        # Argon2id lanes
  max_kdf_memory_mib: 1024  # refuse imported artifacts demanding more than this
  artifact_dir: .           # where exports land when no path is given
  retention_max_count: 0    # prune keeps the newest N artifacts (0 disables)
  retention_max_age: 0s     # prune drops artifacts older than this (0s disables)

# Log verbosity and destination.
logging:
  level: normal             # quiet, normal, verbose, debug
  format: text              # text or json
  file: ""                  # empty writes to stderr

# Terminal output settings.
display:
  color_enabled: true       # colorized output (NO_COLOR is also honored)
  theme: dark               # dark, light, plain
  use_icons: true           # Unicode icons with ASCII fallbacks

# The passphrase is never read from this file. Supply it interactively or
# via the HRVAULT_PASSPHRASE environment variable.
`
}

// WriteSampleConfig writes the commented template to path. It refuses to
// overwrite an existing file.
func WriteSampleConfig(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("config file already exists: %s", path)
		}
		return fmt.Errorf("failed to create config file: %w", err)
	}

	if _, err := f.WriteString(SampleYAML()); err != nil {
		f.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return f.Close()
}

// EnvironmentVariables lists the environment variables the loader honors,
// each with a short description.
func EnvironmentVariables() []string {
	return []string{
		"HRVAULT_PASSPHRASE - passphrase for export and import (skips the prompt)",
		"HRVAULT_DB_DSN - database connection string",
		"HRVAULT_DB_DRIVER - database driver (sqlite or mysql)",
		"HRVAULT_BACKUP_COMPRESSION - payload compression (none, gzip, lz4, zstd)",
		"HRVAULT_BACKUP_KDF_TIME_COST - Argon2id passes over memory",
		"HRVAULT_BACKUP_KDF_MEMORY_MIB - Argon2id memory cost in MiB",
		"HRVAULT_BACKUP_KDF_PARALLELISM - Argon2id lanes",
		"HRVAULT_BACKUP_ARTIFACT_DIR - default directory for exported artifacts",
		"HRVAULT_BACKUP_RETENTION_MAX_COUNT - prune keeps only the newest N artifacts",
		"HRVAULT_BACKUP_RETENTION_MAX_AGE - prune drops artifacts older than this (e.g. 720h)",
		"HRVAULT_LOG_LEVEL - log verbosity (quiet, normal, verbose, debug)",
		"HRVAULT_LOG_FORMAT - log format (text or json)",
		"HRVAULT_LOG_FILE - log destination file",
	}
}
