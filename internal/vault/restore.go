package vault

import (
	"context"
	"fmt"
)

// RestoreEngine atomically repopulates a destination database from a snapshot
// document. The destination ends up either exactly as it was or exactly
// matching the document; no intermediate state is observable outside the
// transaction.
type RestoreEngine struct {
	target           RestoreTarget
	maxSchemaVersion uint32
	progress         ProgressSink
}

// NewRestoreEngine creates a restore engine for the given target.
// maxSchemaVersion is the newest document row shape the engine accepts.
func NewRestoreEngine(target RestoreTarget, maxSchemaVersion uint32) *RestoreEngine {
	return &RestoreEngine{
		target:           target,
		maxSchemaVersion: maxSchemaVersion,
	}
}

// SetProgressSink sets the sink for user-facing restore progress
func (re *RestoreEngine) SetProgressSink(sink ProgressSink) {
	re.progress = sink
}

// Restore applies the document inside a single transaction and returns the
// number of tables and rows restored.
//
// The schema version gate runs first, before any transaction is opened.
// Tables are cleared children-first (reverse registry order) and repopulated
// parents-first, so referential constraints hold throughout. Any failure
// rolls the whole transaction back. A cancellation arriving mid-transaction
// is honored by rolling back.
func (re *RestoreEngine) Restore(ctx context.Context, doc *SnapshotDocument) (int, int, error) {
	if re.target == nil {
		return 0, 0, NewRestoreError("no restore target configured", nil)
	}
	if doc == nil {
		return 0, 0, NewValidationError("no document to restore", nil)
	}

	if doc.SchemaVersion > re.maxSchemaVersion {
		return 0, 0, NewUnsupportedVersionError(
			fmt.Sprintf("artifact schema version %d is newer than the supported maximum %d",
				doc.SchemaVersion, re.maxSchemaVersion), nil).
			WithContext("schema_version", doc.SchemaVersion).
			WithContext("max_schema_version", re.maxSchemaVersion)
	}

	registered, err := re.target.ListRegisteredTables(ctx)
	if err != nil {
		return 0, 0, NewRestoreError("failed to list registered tables", err)
	}
	if err := validateAgainstRegistry(doc, registered); err != nil {
		return 0, 0, err
	}

	// Idempotent DDL happens outside the transaction; creating a missing
	// empty table alters no existing data.
	if err := re.target.EnsureSchema(ctx); err != nil {
		return 0, 0, NewRestoreError("failed to ensure destination schema", err)
	}

	tx, err := re.target.BeginTransaction(ctx)
	if err != nil {
		return 0, 0, NewRestoreError("failed to open restore transaction", err)
	}

	tablesRestored, rowsRestored, err := re.applyDocument(ctx, tx, doc)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			re.reportError(fmt.Sprintf("rollback failed after restore error: %v", rbErr))
		}
		return 0, 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, NewRestoreError("failed to commit restore transaction", err)
	}

	return tablesRestored, rowsRestored, nil
}

func (re *RestoreEngine) applyDocument(ctx context.Context, tx RestoreTx, doc *SnapshotDocument) (int, int, error) {
	// Clear children before parents
	for i := len(doc.Tables) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		name := doc.Tables[i].Name
		if err := tx.ClearTable(ctx, name); err != nil {
			return 0, 0, NewRestoreError(
				fmt.Sprintf("failed to clear table %s", name), err).
				WithContext("table", name)
		}
	}

	rowsRestored := 0
	for i, table := range doc.Tables {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		re.showProgress(i+1, len(doc.Tables), fmt.Sprintf("Restoring table %s", table.Name))

		if len(table.Rows) > 0 {
			if err := tx.BulkInsert(ctx, table.Name, table.Columns, table.Rows); err != nil {
				return 0, 0, NewRestoreError(
					fmt.Sprintf("failed to insert rows into table %s", table.Name), err).
					WithContext("table", table.Name).
					WithContext("rows", len(table.Rows))
			}
		}
		rowsRestored += len(table.Rows)
	}

	return len(doc.Tables), rowsRestored, nil
}

// validateAgainstRegistry rejects documents naming tables or column shapes
// the registry does not know. A mismatch after successful authentication
// signals a logic bug, so it surfaces as corruption rather than a restore
// failure.
func validateAgainstRegistry(doc *SnapshotDocument, registered []TableSpec) error {
	specs := make(map[string]TableSpec, len(registered))
	for _, spec := range registered {
		specs[spec.Name] = spec
	}

	for _, table := range doc.Tables {
		spec, ok := specs[table.Name]
		if !ok {
			return NewCorruptionError(
				fmt.Sprintf("document contains unregistered table %s", table.Name), nil).
				WithContext("table", table.Name)
		}
		if !equalColumns(table.Columns, spec.Columns) {
			return NewCorruptionError(
				fmt.Sprintf("document table %s does not match the registered column shape", table.Name), nil).
				WithContext("table", table.Name)
		}
	}
	return nil
}

func equalColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Helper methods for progress tracking
func (re *RestoreEngine) showProgress(current, total int, message string) {
	if re.progress != nil {
		re.progress.ShowProgress(current, total, message)
	}
}

func (re *RestoreEngine) reportError(message string) {
	if re.progress != nil {
		re.progress.Error(message)
	}
}
