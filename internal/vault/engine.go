package vault

import (
	"context"
	"time"

	"hrvault/internal/logging"
)

// Engine drives the export and import pipelines end to end. It owns the
// process-wide operation guard, records per-stage metrics, and scrubs key and
// plaintext buffers as each stage completes.
type Engine struct {
	config     EngineConfig
	source     RowSource
	target     RestoreTarget
	compressor *CompressionManager
	deriver    *KeyDeriver
	writer     *ArtifactWriter
	reader     *ArtifactReader
	guard      *OperationGuard
	metrics    *MetricsCollector
	logger     *logging.Logger
	progress   ProgressSink
}

// NewEngine creates an engine that shares the process-wide operation guard
func NewEngine(config EngineConfig, source RowSource, target RestoreTarget, logger *logging.Logger) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return NewEngineWithDependencies(config, source, target, logger, defaultGuard, NewMetricsCollector()), nil
}

// NewEngineWithDependencies creates an engine with explicit collaborators.
// Use it when tests need an isolated guard or metrics collector.
func NewEngineWithDependencies(
	config EngineConfig,
	source RowSource,
	target RestoreTarget,
	logger *logging.Logger,
	guard *OperationGuard,
	metrics *MetricsCollector,
) *Engine {
	return &Engine{
		config:     config,
		source:     source,
		target:     target,
		compressor: NewCompressionManager(),
		deriver:    NewKeyDeriver(config.MaxKDFMemoryMiB),
		writer:     NewArtifactWriter(),
		reader:     NewArtifactReader(),
		guard:      guard,
		metrics:    metrics,
		logger:     logger,
	}
}

// SetProgressSink sets the sink for user-facing progress
func (e *Engine) SetProgressSink(sink ProgressSink) {
	e.progress = sink
}

// Metrics returns the engine's stage metrics collector
func (e *Engine) Metrics() *MetricsCollector {
	return e.metrics
}

// Export serializes, compresses, and seals the whole database into a single
// artifact at destinationPath. Nothing appears at the destination unless the
// full artifact, trailing tag included, was produced successfully.
func (e *Engine) Export(ctx context.Context, destinationPath, password string) (*BackupSummary, error) {
	started := time.Now()

	if destinationPath == "" {
		return nil, NewValidationError("destination path must not be empty", nil)
	}
	if password == "" {
		return nil, NewValidationError("password must not be empty", nil)
	}

	operationID := GenerateOperationID("export")
	release, err := e.guard.TryAcquire(operationID)
	if err != nil {
		return nil, err
	}
	defer release()

	done := e.logOperationStart("export", map[string]interface{}{
		"operation_id": operationID,
		"path":         destinationPath,
	})

	summary, err := e.runExport(ctx, operationID, destinationPath, password)
	done(err)
	if err != nil {
		return nil, err
	}

	summary.Duration = time.Since(started)
	return summary, nil
}

func (e *Engine) runExport(ctx context.Context, operationID, path, password string) (*BackupSummary, error) {
	collector := NewCollector(e.source, e.config.SchemaVersion)
	collector.SetProgressSink(e.progress)

	stageStart := time.Now()
	doc, err := collector.Collect(ctx)
	if err != nil {
		return nil, err
	}
	e.recordStage(operationID, StageCollect, stageStart, 0)

	stageStart = time.Now()
	plaintext, err := doc.Encode()
	if err != nil {
		return nil, NewCollectionError("failed to serialize snapshot document", err)
	}
	defer ZeroBytes(plaintext)
	e.recordStage(operationID, StageSerialize, stageStart, int64(len(plaintext)))

	stageStart = time.Now()
	compressed, stats, err := e.compressor.Compress(plaintext, e.config.Compression, 0)
	if err != nil {
		return nil, err
	}
	defer ZeroBytes(compressed)
	e.recordStage(operationID, StageCompress, stageStart, int64(len(compressed)))
	if e.logger != nil {
		e.logger.Debugf("compressed %d bytes to %d (ratio %.3f)",
			stats.OriginalSize, stats.CompressedSize, stats.CompressionRatio)
	}

	// Fresh material for every export; a salt/nonce pair is never reused
	salt, err := GenerateSecureRandomBytes(SaltLength)
	if err != nil {
		return nil, NewEncryptionError("failed to generate salt", err)
	}
	nonce, err := GenerateSecureRandomBytes(NonceLength)
	if err != nil {
		return nil, NewEncryptionError("failed to generate nonce", err)
	}

	stageStart = time.Now()
	passwordBytes := []byte(password)
	defer ZeroBytes(passwordBytes)
	key, err := e.deriver.DeriveKey(passwordBytes, salt, e.config.KDF)
	if err != nil {
		return nil, err
	}
	defer ZeroBytes(key)
	e.recordStage(operationID, StageDeriveKey, stageStart, 0)

	header, err := NewHeader(salt, nonce, e.config.KDF)
	if err != nil {
		return nil, err
	}

	stageStart = time.Now()
	ciphertext, err := Seal(key, nonce, compressed, header.MarshalBinary())
	if err != nil {
		return nil, err
	}
	e.recordStage(operationID, StageEncrypt, stageStart, int64(len(ciphertext)))

	stageStart = time.Now()
	size, err := e.writer.Write(ctx, path, header, ciphertext)
	if err != nil {
		return nil, err
	}
	e.recordStage(operationID, StageWrite, stageStart, size)

	if e.logger != nil {
		e.logger.LogArtifactWritten(operationID, path, size, len(doc.Tables), doc.RowCount())
	}

	return &BackupSummary{
		OperationID:       operationID,
		TableCount:        len(doc.Tables),
		RowCount:          doc.RowCount(),
		ArtifactSizeBytes: size,
		Compression:       e.config.Compression,
		SchemaVersion:     e.config.SchemaVersion,
		DestinationPath:   path,
	}, nil
}

// Import opens the artifact at sourcePath and atomically repopulates the
// destination database from it. On any failure the database is left exactly
// as it was.
func (e *Engine) Import(ctx context.Context, sourcePath, password string) (*RestoreSummary, error) {
	started := time.Now()

	if sourcePath == "" {
		return nil, NewValidationError("source path must not be empty", nil)
	}
	if password == "" {
		return nil, NewValidationError("password must not be empty", nil)
	}

	operationID := GenerateOperationID("import")
	release, err := e.guard.TryAcquire(operationID)
	if err != nil {
		return nil, err
	}
	defer release()

	done := e.logOperationStart("import", map[string]interface{}{
		"operation_id": operationID,
		"path":         sourcePath,
	})

	summary, err := e.runImport(ctx, operationID, sourcePath, password)
	done(err)
	if err != nil {
		return nil, err
	}

	summary.Duration = time.Since(started)
	if e.logger != nil {
		e.logger.LogRestoreCompleted(operationID, summary.TablesRestored, summary.RowsRestored, summary.Duration)
	}
	return summary, nil
}

func (e *Engine) runImport(ctx context.Context, operationID, path, password string) (*RestoreSummary, error) {
	doc, _, _, err := e.openArtifact(ctx, operationID, path, password)
	if err != nil {
		return nil, err
	}

	restorer := NewRestoreEngine(e.target, e.config.SchemaVersion)
	restorer.SetProgressSink(e.progress)

	stageStart := time.Now()
	tables, rows, err := restorer.Restore(ctx, doc)
	if err != nil {
		return nil, err
	}
	e.recordStage(operationID, StageRestore, stageStart, 0)

	return &RestoreSummary{
		OperationID:    operationID,
		TablesRestored: tables,
		RowsRestored:   rows,
		SchemaVersion:  doc.SchemaVersion,
		SourcePath:     path,
	}, nil
}

// Verify runs the import pipeline up to and including document decode and
// version gating, but never touches the database. It proves the artifact is
// intact and the password correct.
func (e *Engine) Verify(ctx context.Context, sourcePath, password string) (*VerifySummary, error) {
	started := time.Now()

	if sourcePath == "" {
		return nil, NewValidationError("source path must not be empty", nil)
	}
	if password == "" {
		return nil, NewValidationError("password must not be empty", nil)
	}

	operationID := GenerateOperationID("verify")
	release, err := e.guard.TryAcquire(operationID)
	if err != nil {
		return nil, err
	}
	defer release()

	done := e.logOperationStart("verify", map[string]interface{}{
		"operation_id": operationID,
		"path":         sourcePath,
	})

	summary, err := e.runVerify(ctx, operationID, sourcePath, password)
	done(err)
	if err != nil {
		return nil, err
	}

	summary.Duration = time.Since(started)
	return summary, nil
}

func (e *Engine) runVerify(ctx context.Context, operationID, path, password string) (*VerifySummary, error) {
	doc, header, algorithm, err := e.openArtifact(ctx, operationID, path, password)
	if err != nil {
		return nil, err
	}

	if doc.SchemaVersion > e.config.SchemaVersion {
		return nil, NewUnsupportedVersionError(
			"artifact schema version is newer than the supported maximum", nil).
			WithContext("schema_version", doc.SchemaVersion).
			WithContext("max_schema_version", e.config.SchemaVersion)
	}

	tables := make([]TableRowCount, 0, len(doc.Tables))
	for _, table := range doc.Tables {
		tables = append(tables, TableRowCount{Name: table.Name, Rows: len(table.Rows)})
	}

	return &VerifySummary{
		OperationID:   operationID,
		FormatVersion: header.FormatVersion,
		SchemaVersion: doc.SchemaVersion,
		Compression:   algorithm,
		TableCount:    len(doc.Tables),
		RowCount:      doc.RowCount(),
		Tables:        tables,
		SourcePath:    path,
	}, nil
}

// openArtifact runs the shared import prefix: read, re-derive the key from
// the stored salt and parameters, authenticate, decompress, decode. No byte
// of the payload is trusted before the tag verifies.
func (e *Engine) openArtifact(ctx context.Context, operationID, path, password string) (*SnapshotDocument, *Header, CompressionType, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, "", err
	}

	stageStart := time.Now()
	header, associatedData, ciphertext, err := e.reader.Read(path)
	if err != nil {
		return nil, nil, "", err
	}
	e.recordStage(operationID, StageRead, stageStart, int64(len(associatedData)+len(ciphertext)))

	stageStart = time.Now()
	passwordBytes := []byte(password)
	defer ZeroBytes(passwordBytes)
	key, err := e.deriver.DeriveKey(passwordBytes, header.Salt, header.KDF)
	if err != nil {
		return nil, nil, "", err
	}
	defer ZeroBytes(key)
	e.recordStage(operationID, StageDeriveKey, stageStart, 0)

	stageStart = time.Now()
	compressed, err := Open(key, header.Nonce, ciphertext, associatedData)
	if err != nil {
		return nil, nil, "", err
	}
	defer ZeroBytes(compressed)
	e.recordStage(operationID, StageDecrypt, stageStart, int64(len(compressed)))

	stageStart = time.Now()
	plaintext, algorithm, err := e.compressor.Decompress(compressed)
	if err != nil {
		return nil, nil, "", err
	}
	defer ZeroBytes(plaintext)
	e.recordStage(operationID, StageDecompress, stageStart, int64(len(plaintext)))

	stageStart = time.Now()
	doc, err := DecodeSnapshotDocument(plaintext)
	if err != nil {
		return nil, nil, "", NewCorruptionError(
			"authenticated payload does not decode to a snapshot document", err)
	}
	e.recordStage(operationID, StageDecode, stageStart, 0)

	return doc, header, algorithm, nil
}

// Helper methods for metrics and logging
func (e *Engine) recordStage(operationID, stage string, startedAt time.Time, bytes int64) {
	duration := time.Since(startedAt)
	if e.metrics != nil {
		e.metrics.RecordStage(operationID, stage, duration, bytes)
	}
	if e.logger != nil {
		e.logger.LogStage(operationID, stage, duration, bytes)
	}
}

func (e *Engine) logOperationStart(operation string, fields map[string]interface{}) func(error) {
	if e.logger == nil {
		return func(error) {}
	}
	return e.logger.LogOperationStart(operation, fields)
}
