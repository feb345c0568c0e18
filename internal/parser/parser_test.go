package parser

import (
	"testing"

	"github.com/google/uuid"

	"lakeio/internal/table"
)

func TestKeys_Row(t *testing.T) {
	cells := []table.Cell{{Name: "region", Value: "eu"}, {Name: "id", Value: int64(42)}, {Name: "note", Value: nil}}

	r := Keys{PartitionKeyField: "region", RowKeyField: "id"}.Row(cells)
	if r.PartitionKey != "eu" || r.RowKey != "42" {
		t.Fatalf("keys=(%q,%q)", r.PartitionKey, r.RowKey)
	}
	if r.Len() != 3 {
		t.Fatalf("key fields must remain cells, got %d", r.Len())
	}

	r = Keys{DefaultPartition: "batch-1"}.Row(cells)
	if r.PartitionKey != "batch-1" {
		t.Fatalf("pk=%q", r.PartitionKey)
	}
	if _, err := uuid.Parse(r.RowKey); err != nil {
		t.Fatalf("generated row key %q is not a uuid: %v", r.RowKey, err)
	}

	// A null key field falls back like a missing one.
	n := 0
	r = Keys{RowKeyField: "note", newID: func() string { n++; return "gen" }}.Row(cells)
	if r.RowKey != "gen" || n != 1 {
		t.Fatalf("rk=%q calls=%d", r.RowKey, n)
	}
}
