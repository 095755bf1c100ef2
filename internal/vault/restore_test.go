package vault

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRestoreTx struct {
	ops         *[]string
	clearErr    map[string]error
	insertErr   map[string]error
	commitErr   error
	rollbackErr error

	committed  bool
	rolledBack bool
}

func (t *fakeRestoreTx) ClearTable(ctx context.Context, name string) error {
	*t.ops = append(*t.ops, "clear:"+name)
	return t.clearErr[name]
}

func (t *fakeRestoreTx) BulkInsert(ctx context.Context, table string, columns []string, rows []Row) error {
	*t.ops = append(*t.ops, fmt.Sprintf("insert:%s:%d", table, len(rows)))
	return t.insertErr[table]
}

func (t *fakeRestoreTx) Commit() error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	*t.ops = append(*t.ops, "commit")
	return nil
}

func (t *fakeRestoreTx) Rollback() error {
	t.rolledBack = true
	*t.ops = append(*t.ops, "rollback")
	return t.rollbackErr
}

type fakeRestoreTarget struct {
	specs       []TableSpec
	listErr     error
	ensureErr   error
	beginErr    error
	clearErr    map[string]error
	insertErr   map[string]error
	commitErr   error
	rollbackErr error

	ops []string
	tx  *fakeRestoreTx
}

func (f *fakeRestoreTarget) ListRegisteredTables(ctx context.Context) ([]TableSpec, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.specs, nil
}

func (f *fakeRestoreTarget) EnsureSchema(ctx context.Context) error {
	if f.ensureErr != nil {
		return f.ensureErr
	}
	f.ops = append(f.ops, "ensure_schema")
	return nil
}

func (f *fakeRestoreTarget) BeginTransaction(ctx context.Context) (RestoreTx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	f.ops = append(f.ops, "begin")
	f.tx = &fakeRestoreTx{
		ops:         &f.ops,
		clearErr:    f.clearErr,
		insertErr:   f.insertErr,
		commitErr:   f.commitErr,
		rollbackErr: f.rollbackErr,
	}
	return f.tx, nil
}

func restoreFixture() (*fakeRestoreTarget, *SnapshotDocument) {
	target := &fakeRestoreTarget{
		specs: []TableSpec{
			{Name: "employees", Columns: []string{"id", "full_name"}},
			{Name: "review_cycles", Columns: []string{"id", "name"}},
			{Name: "reviews", Columns: []string{"id", "rating"}},
		},
	}

	doc := &SnapshotDocument{
		SchemaVersion: CurrentSchemaVersion,
		Tables: []TableSnapshot{
			{
				Name:    "employees",
				Columns: []string{"id", "full_name"},
				Rows: []Row{
					{TextValue("emp-1"), TextValue("Ada Lovelace")},
					{TextValue("emp-2"), TextValue("Grace Hopper")},
				},
			},
			{Name: "review_cycles", Columns: []string{"id", "name"}, Rows: []Row{}},
			{
				Name:    "reviews",
				Columns: []string{"id", "rating"},
				Rows: []Row{
					{TextValue("rev-1"), IntegerValue(5)},
				},
			},
		},
	}

	return target, doc
}

func TestRestoreEngine_Restore(t *testing.T) {
	target, doc := restoreFixture()
	engine := NewRestoreEngine(target, CurrentSchemaVersion)

	tables, rows, err := engine.Restore(context.Background(), doc)
	require.NoError(t, err)

	// Every document table counts as restored, empty ones included
	assert.Equal(t, 3, tables)
	assert.Equal(t, 3, rows)
	assert.True(t, target.tx.committed)
	assert.False(t, target.tx.rolledBack)

	// Clears run children-first and inserts parents-first; the empty
	// review_cycles table skips its insert entirely
	assert.Equal(t, []string{
		"ensure_schema",
		"begin",
		"clear:reviews",
		"clear:review_cycles",
		"clear:employees",
		"insert:employees:2",
		"insert:reviews:1",
		"commit",
	}, target.ops)
}

func TestRestoreEngine_VersionGate(t *testing.T) {
	target, doc := restoreFixture()
	doc.SchemaVersion = CurrentSchemaVersion + 1
	engine := NewRestoreEngine(target, CurrentSchemaVersion)

	_, _, err := engine.Restore(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, IsType(err, ErrorTypeUnsupportedVersion))
	assert.Contains(t, err.Error(), "newer than the supported maximum")

	// The gate fires before any database work
	assert.Empty(t, target.ops)
	assert.Nil(t, target.tx)
}

func TestRestoreEngine_NilDocument(t *testing.T) {
	target, _ := restoreFixture()
	engine := NewRestoreEngine(target, CurrentSchemaVersion)

	_, _, err := engine.Restore(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, IsType(err, ErrorTypeValidation))
	assert.Empty(t, target.ops)
}

func TestRestoreEngine_NilTarget(t *testing.T) {
	_, doc := restoreFixture()
	engine := NewRestoreEngine(nil, CurrentSchemaVersion)

	_, _, err := engine.Restore(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, IsType(err, ErrorTypeRestore))
}

func TestRestoreEngine_UnregisteredTable(t *testing.T) {
	target, doc := restoreFixture()
	doc.Tables = append(doc.Tables, TableSnapshot{
		Name:    "payroll",
		Columns: []string{"id"},
		Rows:    []Row{},
	})
	engine := NewRestoreEngine(target, CurrentSchemaVersion)

	_, _, err := engine.Restore(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, IsType(err, ErrorTypeCorruption))
	assert.Contains(t, err.Error(), "payroll")
	assert.Empty(t, target.ops)
}

func TestRestoreEngine_ColumnShapeMismatch(t *testing.T) {
	target, doc := restoreFixture()
	doc.Tables[0].Columns = []string{"id", "name"} // registry says full_name
	engine := NewRestoreEngine(target, CurrentSchemaVersion)

	_, _, err := engine.Restore(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, IsType(err, ErrorTypeCorruption))
	assert.Empty(t, target.ops)
}

func TestRestoreEngine_ListFailure(t *testing.T) {
	target, doc := restoreFixture()
	target.listErr = errors.New("connection refused")
	engine := NewRestoreEngine(target, CurrentSchemaVersion)

	_, _, err := engine.Restore(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, IsType(err, ErrorTypeRestore))
	assert.Contains(t, err.Error(), "failed to list registered tables")
}

func TestRestoreEngine_EnsureSchemaFailure(t *testing.T) {
	target, doc := restoreFixture()
	target.ensureErr = errors.New("permission denied")
	engine := NewRestoreEngine(target, CurrentSchemaVersion)

	_, _, err := engine.Restore(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, IsType(err, ErrorTypeRestore))
	assert.NotContains(t, target.ops, "begin")
}

func TestRestoreEngine_BeginFailure(t *testing.T) {
	target, doc := restoreFixture()
	target.beginErr = errors.New("too many connections")
	engine := NewRestoreEngine(target, CurrentSchemaVersion)

	_, _, err := engine.Restore(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, IsType(err, ErrorTypeRestore))
	assert.Equal(t, []string{"ensure_schema"}, target.ops)
}

func TestRestoreEngine_ClearFailureRollsBack(t *testing.T) {
	target, doc := restoreFixture()
	target.clearErr = map[string]error{"review_cycles": errors.New("table is locked")}
	engine := NewRestoreEngine(target, CurrentSchemaVersion)

	tables, rows, err := engine.Restore(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, IsType(err, ErrorTypeRestore))
	assert.Contains(t, err.Error(), "review_cycles")
	assert.Zero(t, tables)
	assert.Zero(t, rows)

	assert.True(t, target.tx.rolledBack)
	assert.False(t, target.tx.committed)

	// The first clear succeeded, the second failed, nothing was inserted
	assert.Equal(t, []string{
		"ensure_schema",
		"begin",
		"clear:reviews",
		"clear:review_cycles",
		"rollback",
	}, target.ops)
}

func TestRestoreEngine_InsertFailureRollsBack(t *testing.T) {
	target, doc := restoreFixture()
	target.insertErr = map[string]error{"reviews": errors.New("constraint violation")}
	engine := NewRestoreEngine(target, CurrentSchemaVersion)

	_, _, err := engine.Restore(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, IsType(err, ErrorTypeRestore))
	assert.Contains(t, err.Error(), "failed to insert rows into table reviews")

	assert.True(t, target.tx.rolledBack)
	assert.False(t, target.tx.committed)
	assert.Equal(t, []string{
		"ensure_schema",
		"begin",
		"clear:reviews",
		"clear:review_cycles",
		"clear:employees",
		"insert:employees:2",
		"insert:reviews:1",
		"rollback",
	}, target.ops)
}

func TestRestoreEngine_CommitFailure(t *testing.T) {
	target, doc := restoreFixture()
	target.commitErr = errors.New("disk full")
	engine := NewRestoreEngine(target, CurrentSchemaVersion)

	_, _, err := engine.Restore(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, IsType(err, ErrorTypeRestore))
	assert.Contains(t, err.Error(), "failed to commit restore transaction")
	assert.False(t, target.tx.committed)
}

func TestRestoreEngine_CancelledContext(t *testing.T) {
	target, doc := restoreFixture()
	engine := NewRestoreEngine(target, CurrentSchemaVersion)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := engine.Restore(ctx, doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// The transaction had already opened, so cancellation rolls it back
	assert.True(t, target.tx.rolledBack)
	assert.Equal(t, []string{"ensure_schema", "begin", "rollback"}, target.ops)
}

func TestRestoreEngine_ReportsProgress(t *testing.T) {
	target, doc := restoreFixture()
	engine := NewRestoreEngine(target, CurrentSchemaVersion)

	sink := &fakeProgressSink{}
	engine.SetProgressSink(sink)

	_, _, err := engine.Restore(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 3, sink.progressCalls)
}

func TestRestoreEngine_RollbackFailureReported(t *testing.T) {
	target, doc := restoreFixture()
	target.clearErr = map[string]error{"reviews": errors.New("table is locked")}
	target.rollbackErr = errors.New("connection lost")
	engine := NewRestoreEngine(target, CurrentSchemaVersion)

	sink := &fakeProgressSink{}
	engine.SetProgressSink(sink)

	_, _, err := engine.Restore(context.Background(), doc)
	require.Error(t, err)

	// The original restore error wins; the rollback failure is only reported
	assert.True(t, IsType(err, ErrorTypeRestore))
	assert.Contains(t, err.Error(), "failed to clear table reviews")
	require.Len(t, sink.errors, 1)
	assert.Contains(t, sink.errors[0], "rollback failed")
}
