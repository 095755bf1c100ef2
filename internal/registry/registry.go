// Package registry defines the closed set of tables the vault operates on.
//
// The backup document format is positional: each row carries values in the
// order the registry declares the table's columns. Adding, removing, or
// reordering columns therefore requires bumping vault.CurrentSchemaVersion.
//
// Tables are listed in parent-first order. Restore clears them in reverse
// (children before parents) and inserts them in declaration order, so foreign
// key constraints hold at every point inside the restore transaction.
package registry

import "hrvault/internal/vault"

// ColumnKind declares how a column's values are coerced when rows are read
// from or written to the database.
type ColumnKind string

const (
	KindText    ColumnKind = "text"
	KindInteger ColumnKind = "integer"
	KindReal    ColumnKind = "real"
)

// Column is a single registered column
type Column struct {
	Name string
	Kind ColumnKind
}

// Table is a registered table: its columns in canonical order and the DDL
// used to materialize it on an empty database.
type Table struct {
	Name      string
	Columns   []Column
	CreateDDL string
}

// Spec returns the table's shape as the vault engine sees it
func (t Table) Spec() vault.TableSpec {
	columns := make([]string, len(t.Columns))
	for i, column := range t.Columns {
		columns[i] = column.Name
	}
	return vault.TableSpec{Name: t.Name, Columns: columns}
}

// ColumnNames returns the column names in canonical order
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, column := range t.Columns {
		names[i] = column.Name
	}
	return names
}

// registeredTables is the authoritative table list, parents before children.
// The DDL sticks to types both SQLite and MySQL accept.
var registeredTables = []Table{
	{
		Name: "employees",
		Columns: []Column{
			{Name: "id", Kind: KindText},
			{Name: "full_name", Kind: KindText},
			{Name: "email", Kind: KindText},
			{Name: "role", Kind: KindText},
			{Name: "manager_id", Kind: KindText},
			{Name: "hired_at", Kind: KindText},
		},
		CreateDDL: `CREATE TABLE IF NOT EXISTS employees (
	id VARCHAR(64) PRIMARY KEY,
	full_name TEXT,
	email TEXT,
	role TEXT,
	manager_id VARCHAR(64),
	hired_at TEXT
)`,
	},
	{
		Name: "review_cycles",
		Columns: []Column{
			{Name: "id", Kind: KindText},
			{Name: "name", Kind: KindText},
			{Name: "starts_on", Kind: KindText},
			{Name: "ends_on", Kind: KindText},
			{Name: "status", Kind: KindText},
		},
		CreateDDL: `CREATE TABLE IF NOT EXISTS review_cycles (
	id VARCHAR(64) PRIMARY KEY,
	name TEXT,
	starts_on TEXT,
	ends_on TEXT,
	status TEXT
)`,
	},
	{
		Name: "reviews",
		Columns: []Column{
			{Name: "id", Kind: KindText},
			{Name: "cycle_id", Kind: KindText},
			{Name: "employee_id", Kind: KindText},
			{Name: "reviewer_id", Kind: KindText},
			{Name: "rating", Kind: KindInteger},
			{Name: "summary", Kind: KindText},
			{Name: "submitted_at", Kind: KindText},
		},
		CreateDDL: `CREATE TABLE IF NOT EXISTS reviews (
	id VARCHAR(64) PRIMARY KEY,
	cycle_id VARCHAR(64),
	employee_id VARCHAR(64),
	reviewer_id VARCHAR(64),
	rating BIGINT,
	summary TEXT,
	submitted_at TEXT,
	CONSTRAINT fk_reviews_cycle FOREIGN KEY (cycle_id) REFERENCES review_cycles (id),
	CONSTRAINT fk_reviews_employee FOREIGN KEY (employee_id) REFERENCES employees (id)
)`,
	},
	{
		Name: "survey_scores",
		Columns: []Column{
			{Name: "id", Kind: KindText},
			{Name: "employee_id", Kind: KindText},
			{Name: "cycle_id", Kind: KindText},
			{Name: "dimension", Kind: KindText},
			{Name: "score", Kind: KindReal},
			{Name: "recorded_at", Kind: KindText},
		},
		CreateDDL: `CREATE TABLE IF NOT EXISTS survey_scores (
	id VARCHAR(64) PRIMARY KEY,
	employee_id VARCHAR(64),
	cycle_id VARCHAR(64),
	dimension TEXT,
	score DOUBLE,
	recorded_at TEXT,
	CONSTRAINT fk_scores_employee FOREIGN KEY (employee_id) REFERENCES employees (id),
	CONSTRAINT fk_scores_cycle FOREIGN KEY (cycle_id) REFERENCES review_cycles (id)
)`,
	},
	{
		Name: "conversations",
		Columns: []Column{
			{Name: "id", Kind: KindText},
			{Name: "employee_id", Kind: KindText},
			{Name: "coach_id", Kind: KindText},
			{Name: "topic", Kind: KindText},
			{Name: "started_at", Kind: KindText},
		},
		CreateDDL: `CREATE TABLE IF NOT EXISTS conversations (
	id VARCHAR(64) PRIMARY KEY,
	employee_id VARCHAR(64),
	coach_id VARCHAR(64),
	topic TEXT,
	started_at TEXT,
	CONSTRAINT fk_conversations_employee FOREIGN KEY (employee_id) REFERENCES employees (id)
)`,
	},
	{
		Name: "conversation_messages",
		Columns: []Column{
			{Name: "id", Kind: KindText},
			{Name: "conversation_id", Kind: KindText},
			{Name: "sender", Kind: KindText},
			{Name: "body", Kind: KindText},
			{Name: "sentiment", Kind: KindReal},
			{Name: "sent_at", Kind: KindText},
		},
		CreateDDL: `CREATE TABLE IF NOT EXISTS conversation_messages (
	id VARCHAR(64) PRIMARY KEY,
	conversation_id VARCHAR(64),
	sender TEXT,
	body TEXT,
	sentiment DOUBLE,
	sent_at TEXT,
	CONSTRAINT fk_messages_conversation FOREIGN KEY (conversation_id) REFERENCES conversations (id)
)`,
	},
	{
		Name: "audit_log",
		Columns: []Column{
			{Name: "id", Kind: KindInteger},
			{Name: "actor_id", Kind: KindText},
			{Name: "action", Kind: KindText},
			{Name: "entity", Kind: KindText},
			{Name: "entity_id", Kind: KindText},
			{Name: "created_at", Kind: KindText},
		},
		CreateDDL: `CREATE TABLE IF NOT EXISTS audit_log (
	id BIGINT PRIMARY KEY,
	actor_id VARCHAR(64),
	action TEXT,
	entity TEXT,
	entity_id VARCHAR(64),
	created_at TEXT
)`,
	},
}

// Tables returns the registered tables in parent-first order. The returned
// slice is a copy; callers may reorder it freely.
func Tables() []Table {
	tables := make([]Table, len(registeredTables))
	copy(tables, registeredTables)
	return tables
}

// Specs returns the registered table shapes in parent-first order
func Specs() []vault.TableSpec {
	specs := make([]vault.TableSpec, len(registeredTables))
	for i, table := range registeredTables {
		specs[i] = table.Spec()
	}
	return specs
}

// Lookup finds a registered table by name
func Lookup(name string) (Table, bool) {
	for _, table := range registeredTables {
		if table.Name == name {
			return table, true
		}
	}
	return Table{}, false
}

// Count returns the number of registered tables
func Count() int {
	return len(registeredTables)
}
