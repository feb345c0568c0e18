package table

// Buffer is a batch of rows materialized against a Schema: one value slot per
// schema column, one slice per input row. It is what a sink bulk-writes.
type Buffer struct {
	Schema Schema
	Rows   [][]any
}

// Columns returns the column names in schema order.
func (b *Buffer) Columns() []string { return b.Schema.Names() }

// Len returns the number of rows.
func (b *Buffer) Len() int { return len(b.Rows) }

// Materialize lays rows out against schema. Cells a row does not carry stay
// nil. Values are not copied or converted; sinks own any driver-specific
// binding.
func Materialize(schema Schema, rows []Row) *Buffer {
	pos := make(map[string]int, len(schema.Columns))
	for i, c := range schema.Columns {
		pos[c.Name] = i
	}
	pk := pos[schema.Keys.PartitionKey]
	rk := pos[schema.Keys.RowKey]

	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		vals := make([]any, len(schema.Columns))
		vals[pk] = r.PartitionKey
		vals[rk] = r.RowKey
		for _, c := range r.Cells {
			if schema.Keys.isKey(c.Name) {
				continue
			}
			if i, ok := pos[c.Name]; ok {
				vals[i] = c.Value
			}
		}
		out = append(out, vals)
	}
	return &Buffer{Schema: schema, Rows: out}
}
