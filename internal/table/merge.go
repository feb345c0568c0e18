package table

// Column is one entry of a merged schema.
type Column struct {
	Name     string
	Kind     Kind
	Nullable bool
	// Key marks the reserved partition/row key columns.
	Key bool
}

// Schema is the ordered superset of columns seen across a batch of rows.
type Schema struct {
	Keys    KeyColumns
	Columns []Column
}

// Names returns column names in schema order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Index returns the position of the named column, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Merge computes the merged schema of a batch.
//
// The partition key and row key columns always occupy the first two positions.
// Every other cell name is appended the first time it is seen while scanning
// rows in batch order, so the result is deterministic for a given batch.
//
// Edge cases:
//   - An empty batch yields just the two key columns.
//   - Cells named like a key column are ignored; the key fields win.
//   - Column kinds are inferred from the same batch (see widen). A column with
//     only nil values is typed as string.
//   - A non-key column is nullable when at least one row lacks it or holds nil.
func Merge(rows []Row, keys KeyColumns) Schema {
	keys = keys.withDefaults()

	s := Schema{
		Keys: keys,
		Columns: []Column{
			{Name: keys.PartitionKey, Kind: KindString, Key: true},
			{Name: keys.RowKey, Kind: KindString, Key: true},
		},
	}

	pos := make(map[string]int)
	present := make([]int, 0, 8)

	for _, r := range rows {
		for _, c := range r.Cells {
			if keys.isKey(c.Name) {
				continue
			}
			i, ok := pos[c.Name]
			if !ok {
				i = len(s.Columns)
				pos[c.Name] = i
				s.Columns = append(s.Columns, Column{Name: c.Name, Kind: KindNull})
				present = append(present, 0)
			}
			k := KindOf(c.Value)
			s.Columns[i].Kind = widen(s.Columns[i].Kind, k)
			if k == KindNull {
				s.Columns[i].Nullable = true
			} else {
				present[i-2]++
			}
		}
	}

	for i := 2; i < len(s.Columns); i++ {
		if s.Columns[i].Kind == KindNull {
			s.Columns[i].Kind = KindString
		}
		if present[i-2] < len(rows) {
			s.Columns[i].Nullable = true
		}
	}
	return s
}
