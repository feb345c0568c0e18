// Package parser holds what the CSV and JSON readers share: key selection
// and the Row a parsed record becomes.
package parser

import (
	"fmt"

	"github.com/google/uuid"

	"lakeio/internal/table"
)

// ErrorFunc receives recoverable per-record errors. line is 1-based; 0 means
// the error is not tied to a record.
type ErrorFunc func(line int, err error)

// Keys chooses the partition and row key of every parsed record.
//
// Edge cases:
//   - Empty PartitionKeyField: every row gets DefaultPartition.
//   - Empty RowKeyField, or a record missing that field: a random UUID.
//   - The key fields also stay in the row as ordinary cells.
type Keys struct {
	PartitionKeyField string
	RowKeyField       string
	DefaultPartition  string

	// newID generates row keys (test seam); nil means uuid.NewString.
	newID func() string
}

// Row builds a table.Row from a record's cells.
func (k Keys) Row(cells []table.Cell) table.Row {
	pk := k.DefaultPartition
	if k.PartitionKeyField != "" {
		if v, ok := lookup(cells, k.PartitionKeyField); ok {
			pk = v
		}
	}

	var rk string
	if k.RowKeyField != "" {
		rk, _ = lookup(cells, k.RowKeyField)
	}
	if rk == "" {
		if k.newID != nil {
			rk = k.newID()
		} else {
			rk = uuid.NewString()
		}
	}
	return table.NewRow(pk, rk, cells...)
}

func lookup(cells []table.Cell, name string) (string, bool) {
	for _, c := range cells {
		if c.Name == name && c.Value != nil {
			return fmt.Sprint(c.Value), true
		}
	}
	return "", false
}
