package vault

import (
	"context"
)

// TableSpec identifies a registered table and its canonical column order
type TableSpec struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// RowSource is the database collaborator an export reads from
type RowSource interface {
	// ListRegisteredTables returns the closed table registry in canonical
	// order. The set is fixed per schema version, never discovered.
	ListRegisteredTables(ctx context.Context) ([]TableSpec, error)

	// ReadAllRows returns every row of the table in a stable order, each row
	// holding values positionally matching the table's canonical columns.
	// Null values and empty strings are distinct.
	ReadAllRows(ctx context.Context, table TableSpec) ([]Row, error)
}

// RestoreTarget is the database collaborator an import writes to
type RestoreTarget interface {
	// ListRegisteredTables returns the closed table registry in canonical order
	ListRegisteredTables(ctx context.Context) ([]TableSpec, error)

	// EnsureSchema creates any registered tables that do not exist yet. It is
	// idempotent, runs before the restore transaction, and never modifies
	// existing data.
	EnsureSchema(ctx context.Context) error

	// BeginTransaction opens the single transaction a restore runs inside
	BeginTransaction(ctx context.Context) (RestoreTx, error)
}

// RestoreTx is an all-or-nothing restore transaction
type RestoreTx interface {
	ClearTable(ctx context.Context, table string) error
	BulkInsert(ctx context.Context, table string, columns []string, rows []Row) error
	Commit() error
	Rollback() error
}

// ProgressSink receives user-facing progress and status during an operation.
// Implementations must tolerate concurrent use from a single operation only.
type ProgressSink interface {
	ShowProgress(current, total int, message string)
	Info(message string)
	Debug(message string)
	Error(message string)
}
