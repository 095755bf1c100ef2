package vault

import (
	"context"
	"fmt"
)

// Collector reads every row of every registered table into a canonical
// snapshot document. Tables are visited in registry order and rows keep the
// source's stable ordering, so an unchanged database always collects into
// identical bytes.
type Collector struct {
	source        RowSource
	schemaVersion uint32
	progress      ProgressSink
}

// NewCollector creates a collector for the given row source
func NewCollector(source RowSource, schemaVersion uint32) *Collector {
	return &Collector{
		source:        source,
		schemaVersion: schemaVersion,
	}
}

// SetProgressSink sets the sink for user-facing collection progress
func (c *Collector) SetProgressSink(sink ProgressSink) {
	c.progress = sink
}

// Collect reads all registered tables. Any failure abandons the entire
// export; a partial document is never passed downstream.
func (c *Collector) Collect(ctx context.Context) (*SnapshotDocument, error) {
	if c.source == nil {
		return nil, NewCollectionError("no row source configured", nil)
	}

	tables, err := c.source.ListRegisteredTables(ctx)
	if err != nil {
		return nil, NewCollectionError("failed to list registered tables", err)
	}
	if len(tables) == 0 {
		return nil, NewCollectionError("table registry is empty", nil)
	}

	doc := &SnapshotDocument{
		SchemaVersion: c.schemaVersion,
		Tables:        make([]TableSnapshot, 0, len(tables)),
	}

	for i, table := range tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.showProgress(i+1, len(tables), fmt.Sprintf("Reading table %s", table.Name))

		rows, err := c.source.ReadAllRows(ctx, table)
		if err != nil {
			return nil, NewCollectionError(
				fmt.Sprintf("failed to read table %s", table.Name), err).
				WithContext("table", table.Name)
		}
		for n, row := range rows {
			if len(row) != len(table.Columns) {
				return nil, NewCollectionError(
					fmt.Sprintf("table %s row %d has %d values, want %d",
						table.Name, n, len(row), len(table.Columns)), nil).
					WithContext("table", table.Name)
			}
		}
		// Canonical form: an empty table encodes as [], never null
		if rows == nil {
			rows = []Row{}
		}

		doc.Tables = append(doc.Tables, TableSnapshot{
			Name:    table.Name,
			Columns: table.Columns,
			Rows:    rows,
		})
	}

	return doc, nil
}

// Helper methods for progress tracking
func (c *Collector) showProgress(current, total int, message string) {
	if c.progress != nil {
		c.progress.ShowProgress(current, total, message)
	}
}
