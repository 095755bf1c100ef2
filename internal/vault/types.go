package vault

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CompressionType represents the supported compression transforms
type CompressionType string

const (
	CompressionNone CompressionType = "none"
	CompressionGzip CompressionType = "gzip"
	CompressionLZ4  CompressionType = "lz4"
	CompressionZstd CompressionType = "zstd"
)

// ParseCompressionType converts a user-supplied string into a CompressionType
func ParseCompressionType(s string) (CompressionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return CompressionNone, nil
	case "gzip", "gz":
		return CompressionGzip, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd", "zst":
		return CompressionZstd, nil
	default:
		return "", NewValidationError(fmt.Sprintf("unknown compression type: %s", s), nil)
	}
}

// EngineConfig holds the tunable parameters of an Engine
type EngineConfig struct {
	// SchemaVersion is written into every exported document and is the
	// maximum version an import will accept.
	SchemaVersion uint32

	// Compression selects the transform applied before encryption
	Compression CompressionType

	// KDF holds the key derivation cost parameters for new exports. Imports
	// always use the parameters stored in the artifact header.
	KDF KDFParams

	// MaxKDFMemoryMiB caps the memory cost an imported artifact may demand.
	// Headers asking for more are rejected before derivation starts.
	MaxKDFMemoryMiB uint32
}

// DefaultEngineConfig returns the production defaults
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SchemaVersion:   CurrentSchemaVersion,
		Compression:     CompressionZstd,
		KDF:             DefaultKDFParams(),
		MaxKDFMemoryMiB: DefaultMaxKDFMemoryMiB,
	}
}

// Validate checks the configuration for internal consistency
func (c *EngineConfig) Validate() error {
	if c.SchemaVersion == 0 {
		return NewValidationError("schema version must be at least 1", nil)
	}
	switch c.Compression {
	case CompressionNone, CompressionGzip, CompressionLZ4, CompressionZstd:
	default:
		return NewValidationError(fmt.Sprintf("unknown compression type: %s", c.Compression), nil)
	}
	if err := c.KDF.Validate(); err != nil {
		return err
	}
	if c.MaxKDFMemoryMiB > 0 && uint32(c.KDF.MemoryMiB) > c.MaxKDFMemoryMiB {
		return NewValidationError(
			fmt.Sprintf("kdf memory cost %d MiB exceeds the configured ceiling of %d MiB",
				c.KDF.MemoryMiB, c.MaxKDFMemoryMiB), nil)
	}
	return nil
}

// BackupSummary describes a completed export
type BackupSummary struct {
	OperationID       string          `json:"operation_id" yaml:"operation_id"`
	TableCount        int             `json:"table_count" yaml:"table_count"`
	RowCount          int             `json:"row_count" yaml:"row_count"`
	ArtifactSizeBytes int64           `json:"artifact_size_bytes" yaml:"artifact_size_bytes"`
	Compression       CompressionType `json:"compression" yaml:"compression"`
	SchemaVersion     uint32          `json:"schema_version" yaml:"schema_version"`
	DestinationPath   string          `json:"destination_path" yaml:"destination_path"`
	Duration          time.Duration   `json:"duration" yaml:"duration"`
}

// RestoreSummary describes a completed import
type RestoreSummary struct {
	OperationID    string        `json:"operation_id" yaml:"operation_id"`
	TablesRestored int           `json:"tables_restored" yaml:"tables_restored"`
	RowsRestored   int           `json:"rows_restored" yaml:"rows_restored"`
	SchemaVersion  uint32        `json:"schema_version" yaml:"schema_version"`
	SourcePath     string        `json:"source_path" yaml:"source_path"`
	Duration       time.Duration `json:"duration" yaml:"duration"`
}

// VerifySummary describes a dry-run verification of an artifact. The database
// is never touched; the pipeline stops after decode and version gating.
type VerifySummary struct {
	OperationID   string          `json:"operation_id" yaml:"operation_id"`
	FormatVersion uint8           `json:"format_version" yaml:"format_version"`
	SchemaVersion uint32          `json:"schema_version" yaml:"schema_version"`
	Compression   CompressionType `json:"compression" yaml:"compression"`
	TableCount    int             `json:"table_count" yaml:"table_count"`
	RowCount      int             `json:"row_count" yaml:"row_count"`
	Tables        []TableRowCount `json:"tables" yaml:"tables"`
	SourcePath    string          `json:"source_path" yaml:"source_path"`
	Duration      time.Duration   `json:"duration" yaml:"duration"`
}

// TableRowCount is one table's row count inside an artifact.
type TableRowCount struct {
	Name string `json:"name" yaml:"name"`
	Rows int    `json:"rows" yaml:"rows"`
}

// GenerateOperationID creates a unique identifier for one export or import,
// e.g. "export-20250114-093042-a1b2c3d4"
func GenerateOperationID(kind string) string {
	timestamp := time.Now().Format("20060102-150405")
	id := uuid.New().String()[:8]
	return fmt.Sprintf("%s-%s-%s", kind, timestamp, id)
}
