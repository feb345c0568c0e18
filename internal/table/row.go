// Package table holds the in-memory tabular model used by the ingestion
// pipeline: rows keyed by partition/row key, the merged schema of a batch and
// the column-major buffer handed to a sink.
package table

// Cell is a single named value of a Row.
type Cell struct {
	Name  string
	Value any
}

// Row is one input record.
//
// Cells keep insertion order. A Row is treated as read-only by the ingestion
// pipeline; callers build it with NewRow/Set before handing it over.
type Row struct {
	PartitionKey string
	RowKey       string
	Cells        []Cell
}

// NewRow builds a Row from cells, keeping the last value for duplicate names.
func NewRow(partitionKey, rowKey string, cells ...Cell) Row {
	r := Row{PartitionKey: partitionKey, RowKey: rowKey}
	for _, c := range cells {
		r.Set(c.Name, c.Value)
	}
	return r
}

// Set replaces the value of an existing cell in place, or appends a new one.
func (r *Row) Set(name string, v any) {
	for i := range r.Cells {
		if r.Cells[i].Name == name {
			r.Cells[i].Value = v
			return
		}
	}
	r.Cells = append(r.Cells, Cell{Name: name, Value: v})
}

// Get returns the value of the named cell.
func (r Row) Get(name string) (any, bool) {
	for _, c := range r.Cells {
		if c.Name == name {
			return c.Value, true
		}
	}
	return nil, false
}

// Len returns the number of cells (keys excluded).
func (r Row) Len() int { return len(r.Cells) }

// KeyColumns names the two reserved columns every destination carries.
type KeyColumns struct {
	PartitionKey string
	RowKey       string
}

// DefaultKeyColumns matches the column names used when nothing is configured.
var DefaultKeyColumns = KeyColumns{PartitionKey: "PartitionKey", RowKey: "RowKey"}

// withDefaults fills empty names from DefaultKeyColumns.
func (k KeyColumns) withDefaults() KeyColumns {
	if k.PartitionKey == "" {
		k.PartitionKey = DefaultKeyColumns.PartitionKey
	}
	if k.RowKey == "" {
		k.RowKey = DefaultKeyColumns.RowKey
	}
	return k
}

// isKey reports whether name collides with one of the reserved key columns.
func (k KeyColumns) isKey(name string) bool {
	return name == k.PartitionKey || name == k.RowKey
}
