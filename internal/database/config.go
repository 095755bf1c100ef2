package database

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Driver names accepted by Connect
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Config holds the connection parameters for the vault's database
type Config struct {
	Driver     string        `mapstructure:"driver" yaml:"driver"`
	DSN        string        `mapstructure:"dsn" yaml:"dsn"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

// Validate checks if the configuration has all required parameters
func (c *Config) Validate() error {
	var errs []error

	if c.DSN == "" {
		errs = append(errs, errors.New("dsn is required"))
	}

	switch c.Driver {
	case DriverSQLite, DriverMySQL:
	case "":
		errs = append(errs, errors.New("driver is required"))
	default:
		errs = append(errs, fmt.Errorf("unsupported driver %q (expected %s or %s)",
			c.Driver, DriverSQLite, DriverMySQL))
	}

	if len(errs) > 0 {
		return fmt.Errorf("database configuration validation failed: %v", errs)
	}

	return nil
}

// SetDefaults sets default values for the configuration
func (c *Config) SetDefaults() {
	if c.Driver == "" && c.DSN != "" {
		c.Driver = DetectDriver(c.DSN)
	}

	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
}

// DetectDriver guesses the driver from the DSN shape. MySQL DSNs carry an
// address segment like user:pass@tcp(host:port)/db; everything else is
// treated as a SQLite file path.
func DetectDriver(dsn string) string {
	if strings.Contains(dsn, "@tcp(") || strings.Contains(dsn, "@unix(") {
		return DriverMySQL
	}
	return DriverSQLite
}
