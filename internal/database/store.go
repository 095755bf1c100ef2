package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"hrvault/internal/logging"
	"hrvault/internal/registry"
	"hrvault/internal/vault"
)

// Store adapts a SQL database to the vault engine's RowSource and
// RestoreTarget contracts. Table names and column lists come from the closed
// registry, never from user input, so identifiers are interpolated directly.
type Store struct {
	db     *sql.DB
	tables []registry.Table
	logger *logging.Logger
}

// NewStore wraps an open database handle
func NewStore(db *sql.DB, logger *logging.Logger) *Store {
	return &Store{
		db:     db,
		tables: registry.Tables(),
		logger: logger,
	}
}

// ListRegisteredTables returns the registered table shapes in parent-first order
func (s *Store) ListRegisteredTables(ctx context.Context) ([]vault.TableSpec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	specs := make([]vault.TableSpec, len(s.tables))
	for i, table := range s.tables {
		specs[i] = table.Spec()
	}
	return specs, nil
}

// ReadAllRows reads every row of one registered table in primary key order.
// The fixed ordering keeps repeated exports of unchanged data byte-identical
// before encryption.
func (s *Store) ReadAllRows(ctx context.Context, spec vault.TableSpec) ([]vault.Row, error) {
	table, ok := s.lookup(spec.Name)
	if !ok {
		return nil, fmt.Errorf("table %s is not registered", spec.Name)
	}

	s.logDebugf("reading table %s", table.Name)

	rows, err := s.db.QueryContext(ctx, selectQuery(table))
	if err != nil {
		return nil, fmt.Errorf("failed to query table %s: %w", table.Name, err)
	}
	defer rows.Close()

	var result []vault.Row
	for rows.Next() {
		row, err := scanRow(rows, table.Columns)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row from table %s: %w", table.Name, err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate table %s: %w", table.Name, err)
	}

	return result, nil
}

// EnsureSchema creates any missing registered tables. Existing tables are
// left untouched.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, table := range s.tables {
		if _, err := s.db.ExecContext(ctx, table.CreateDDL); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.Name, err)
		}
	}
	return nil
}

// BeginTransaction opens the transaction a restore runs inside
func (s *Store) BeginTransaction(ctx context.Context) (vault.RestoreTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &restoreTx{tx: tx, store: s}, nil
}

func (s *Store) lookup(name string) (registry.Table, bool) {
	for _, table := range s.tables {
		if table.Name == name {
			return table, true
		}
	}
	return registry.Table{}, false
}

func (s *Store) logDebugf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debugf(format, args...)
	}
}

// restoreTx wraps the single transaction a restore runs inside
type restoreTx struct {
	tx    *sql.Tx
	store *Store
}

// ClearTable deletes every row of one registered table
func (t *restoreTx) ClearTable(ctx context.Context, name string) error {
	if _, ok := t.store.lookup(name); !ok {
		return fmt.Errorf("table %s is not registered", name)
	}
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM `"+name+"`"); err != nil {
		return fmt.Errorf("failed to clear table %s: %w", name, err)
	}
	return nil
}

// BulkInsert inserts rows through a single prepared statement
func (t *restoreTx) BulkInsert(ctx context.Context, table string, columns []string, rows []vault.Row) error {
	if len(rows) == 0 {
		return nil
	}

	stmt, err := t.tx.PrepareContext(ctx, insertQuery(table, columns))
	if err != nil {
		return fmt.Errorf("failed to prepare insert for table %s: %w", table, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		args := make([]interface{}, len(row))
		for j, value := range row {
			args[j] = driverValue(value)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row %d into table %s: %w", i, table, err)
		}
	}

	return nil
}

func (t *restoreTx) Commit() error   { return t.tx.Commit() }
func (t *restoreTx) Rollback() error { return t.tx.Rollback() }

// scanRow scans one result row into canonical values using the registered
// column kinds. Scanning through sql.Null wrappers keeps MySQL's []byte
// results and SQLite's native types on the same path.
func scanRow(rows *sql.Rows, columns []registry.Column) (vault.Row, error) {
	targets := make([]interface{}, len(columns))
	for i, column := range columns {
		switch column.Kind {
		case registry.KindInteger:
			targets[i] = new(sql.NullInt64)
		case registry.KindReal:
			targets[i] = new(sql.NullFloat64)
		default:
			targets[i] = new(sql.NullString)
		}
	}

	if err := rows.Scan(targets...); err != nil {
		return nil, err
	}

	row := make(vault.Row, len(columns))
	for i, target := range targets {
		switch v := target.(type) {
		case *sql.NullInt64:
			if v.Valid {
				row[i] = vault.IntegerValue(v.Int64)
			} else {
				row[i] = vault.NullValue()
			}
		case *sql.NullFloat64:
			if v.Valid {
				row[i] = vault.RealValue(v.Float64)
			} else {
				row[i] = vault.NullValue()
			}
		case *sql.NullString:
			if v.Valid {
				row[i] = vault.TextValue(v.String)
			} else {
				row[i] = vault.NullValue()
			}
		}
	}

	return row, nil
}

// driverValue converts a canonical value to a database/sql argument
func driverValue(value vault.Value) interface{} {
	switch value.Kind {
	case vault.KindText:
		return value.Text
	case vault.KindInteger:
		return value.Integer
	case vault.KindReal:
		return value.Real
	default:
		return nil
	}
}

func selectQuery(table registry.Table) string {
	names := table.ColumnNames()
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = "`" + name + "`"
	}
	return fmt.Sprintf("SELECT %s FROM `%s` ORDER BY `%s`",
		strings.Join(quoted, ", "), table.Name, names[0])
}

func insertQuery(table string, columns []string) string {
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, name := range columns {
		quoted[i] = "`" + name + "`"
		placeholders[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO `%s` (%s) VALUES (%s)",
		table, strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
}
