package vault

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CurrentSchemaVersion is the logical row-shape version this engine writes
// into new exports and the newest version it accepts on import. It is
// independent of the artifact container's format version.
const CurrentSchemaVersion uint32 = 1

// ValueKind enumerates the four types a snapshot cell may hold
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindText
	KindInteger
	KindReal
)

// Value is a single snapshot cell: exactly one of null, text, integer, or
// real. The zero Value is null. The JSON encoding keeps the four kinds
// distinguishable: null stays null, text is always a string, integers are
// bare integer literals, and reals always carry a decimal point or exponent.
type Value struct {
	Kind    ValueKind
	Text    string
	Integer int64
	Real    float64
}

// NullValue returns the null cell
func NullValue() Value {
	return Value{Kind: KindNull}
}

// TextValue returns a text cell. An empty string is distinct from null.
func TextValue(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// IntegerValue returns an integer cell
func IntegerValue(i int64) Value {
	return Value{Kind: KindInteger, Integer: i}
}

// RealValue returns a real cell
func RealValue(f float64) Value {
	return Value{Kind: KindReal, Real: f}
}

// Equal reports whether two cells hold the same kind and payload
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindText:
		return v.Text == other.Text
	case KindInteger:
		return v.Integer == other.Integer
	default:
		return v.Real == other.Real
	}
}

// String renders the cell for logs and error context, never for the wire
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindText:
		return strconv.Quote(v.Text)
	case KindInteger:
		return strconv.FormatInt(v.Integer, 10)
	default:
		return strconv.FormatFloat(v.Real, 'g', -1, 64)
	}
}

// MarshalJSON implements json.Marshaler with a canonical, deterministic form
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindText:
		return json.Marshal(v.Text)
	case KindInteger:
		return strconv.AppendInt(nil, v.Integer, 10), nil
	case KindReal:
		if math.IsNaN(v.Real) || math.IsInf(v.Real, 0) {
			return nil, fmt.Errorf("real value %v has no JSON representation", v.Real)
		}
		s := strconv.FormatFloat(v.Real, 'g', -1, 64)
		// A real must stay recognizable as a real after a round trip
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return []byte(s), nil
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.Kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler, classifying the literal back
// into the kind that produced it
func (v *Value) UnmarshalJSON(data []byte) error {
	token := strings.TrimSpace(string(data))
	if token == "null" {
		*v = NullValue()
		return nil
	}
	if strings.HasPrefix(token, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid text literal: %w", err)
		}
		*v = TextValue(s)
		return nil
	}
	if strings.ContainsAny(token, ".eE") {
		f, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return fmt.Errorf("invalid real literal %q: %w", token, err)
		}
		*v = RealValue(f)
		return nil
	}
	i, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer literal %q: %w", token, err)
	}
	*v = IntegerValue(i)
	return nil
}

// Row is one table row, values in the table's canonical column order
type Row []Value

// TableSnapshot holds every row of one registered table
type TableSnapshot struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// SnapshotDocument is the complete logical content of the database at one
// point in time. Tables appear in fixed registry order, every registered
// table included even when empty, so two exports of an unchanged database
// encode to identical bytes.
type SnapshotDocument struct {
	SchemaVersion uint32          `json:"schema_version"`
	Tables        []TableSnapshot `json:"tables"`
}

// RowCount returns the total number of rows across all tables
func (d *SnapshotDocument) RowCount() int {
	total := 0
	for _, table := range d.Tables {
		total += len(table.Rows)
	}
	return total
}

// Validate checks the document for structural consistency
func (d *SnapshotDocument) Validate() error {
	if d.SchemaVersion == 0 {
		return fmt.Errorf("schema version must be at least 1")
	}
	seen := make(map[string]bool, len(d.Tables))
	for _, table := range d.Tables {
		if table.Name == "" {
			return fmt.Errorf("table with empty name")
		}
		if seen[table.Name] {
			return fmt.Errorf("duplicate table %q", table.Name)
		}
		seen[table.Name] = true
		if len(table.Columns) == 0 {
			return fmt.Errorf("table %q has no columns", table.Name)
		}
		for i, row := range table.Rows {
			if len(row) != len(table.Columns) {
				return fmt.Errorf("table %q row %d has %d values, want %d",
					table.Name, i, len(row), len(table.Columns))
			}
		}
	}
	return nil
}

// Encode serializes the document to its canonical byte form
func (d *SnapshotDocument) Encode() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("cannot encode invalid document: %w", err)
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot document: %w", err)
	}
	return data, nil
}

// DecodeSnapshotDocument parses and validates canonical document bytes
func DecodeSnapshotDocument(data []byte) (*SnapshotDocument, error) {
	var doc SnapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("decoded document is invalid: %w", err)
	}
	return &doc, nil
}
