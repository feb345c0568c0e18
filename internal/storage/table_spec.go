// TableSpec types live here so the ingestion executor and every backend
// package can share them without circular deps.
package storage

import (
	"fmt"
	"strings"

	"lakeio/internal/table"
)

// TableSpec describes a destination table to create.
type TableSpec struct {
	Name       string       `json:"name"`
	Columns    []ColumnSpec `json:"columns"`
	PrimaryKey []string     `json:"primary_key,omitempty"`
}

// ColumnSpec is a single column definition. Type is backend-native SQL.
type ColumnSpec struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable *bool  `json:"nullable,omitempty"`
}

// TypeMapper maps a merged-schema column to a backend-native SQL type.
type TypeMapper func(c table.Column) string

// SpecFor derives a TableSpec from a merged schema.
//
// Key columns become NOT NULL and form the primary key (partition key, row key).
// Every other column is nullable when the schema says so.
//
// Errors:
//   - destination is empty.
//   - typeOf returns an empty type for some column.
func SpecFor(destination string, schema table.Schema, typeOf TypeMapper) (TableSpec, error) {
	if strings.TrimSpace(destination) == "" {
		return TableSpec{}, fmt.Errorf("storage: destination name is empty")
	}

	t := TableSpec{Name: destination}
	for _, c := range schema.Columns {
		typ := typeOf(c)
		if typ == "" {
			return TableSpec{}, fmt.Errorf("storage: no SQL type for column %s (%s)", c.Name, c.Kind)
		}
		nullable := c.Nullable && !c.Key
		t.Columns = append(t.Columns, ColumnSpec{Name: c.Name, Type: typ, Nullable: &nullable})
		if c.Key {
			t.PrimaryKey = append(t.PrimaryKey, c.Name)
		}
	}
	return t, nil
}

// IsNullable reports the effective nullability of a column (default true).
func (c ColumnSpec) IsNullable() bool {
	if c.Nullable == nil {
		return true
	}
	return *c.Nullable
}
