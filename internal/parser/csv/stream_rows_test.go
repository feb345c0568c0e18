package csv

import (
	"context"
	"strings"
	"testing"

	"lakeio/internal/parser"
	"lakeio/internal/table"
)

func collect(t *testing.T, src string, opts Options) ([]table.Row, []int, error) {
	t.Helper()
	out := make(chan table.Row, 64)
	var badLines []int
	err := StreamRows(context.Background(), strings.NewReader(src), opts, out, func(line int, _ error) {
		badLines = append(badLines, line)
	})
	close(out)
	var rows []table.Row
	for r := range out {
		rows = append(rows, r)
	}
	return rows, badLines, err
}

func TestStreamRows_HeaderKeysAndNulls(t *testing.T) {
	t.Parallel()
	src := "\uFEFF id , region,note\n1,eu,\n2, us ,hello\n"
	rows, bad, err := collect(t, src, Options{Keys: parser.Keys{PartitionKeyField: "region", RowKeyField: "id"}})
	if err != nil || len(bad) != 0 {
		t.Fatalf("err=%v bad=%v", err, bad)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d, want 2", len(rows))
	}
	r := rows[1]
	if r.PartitionKey != "us" || r.RowKey != "2" {
		t.Fatalf("keys=(%q,%q)", r.PartitionKey, r.RowKey)
	}
	if v, _ := r.Get("note"); v != "hello" {
		t.Fatalf("note=%v", v)
	}
	if v, ok := rows[0].Get("note"); !ok || v != nil {
		t.Fatalf("empty field must be a nil cell, got %v ok=%v", v, ok)
	}
}

func TestStreamRows_NoHeaderSemicolonAndHeaderMap(t *testing.T) {
	t.Parallel()
	rows, _, err := collect(t, "a;b\n", Options{Comma: ';', NoHeader: true, Keys: parser.Keys{RowKeyField: "col1"}})
	if err != nil {
		t.Fatalf("StreamRows: %v", err)
	}
	if len(rows) != 1 || rows[0].RowKey != "a" {
		t.Fatalf("rows=%+v", rows)
	}
	if v, _ := rows[0].Get("col2"); v != "b" {
		t.Fatalf("col2=%v", v)
	}

	rows, _, err = collect(t, "Full Name\nAda\n", Options{HeaderMap: map[string]string{"Full Name": "name"}})
	if err != nil {
		t.Fatalf("StreamRows: %v", err)
	}
	if v, ok := rows[0].Get("name"); !ok || v != "Ada" {
		t.Fatalf("mapped header: %v %v", v, ok)
	}
}

func TestStreamRows_DecodesLegacyEncoding(t *testing.T) {
	t.Parallel()
	// "město" in windows-1250, where 0xEC is ě.
	src := "name\nm\xecsto\n"
	rows, _, err := collect(t, src, Options{Encoding: "windows-1250"})
	if err != nil {
		t.Fatalf("StreamRows: %v", err)
	}
	if v, _ := rows[0].Get("name"); v != "město" {
		t.Fatalf("name=%q", v)
	}

	if _, _, err := collect(t, src, Options{Encoding: "klingon"}); err == nil {
		t.Fatalf("expected unknown encoding error")
	}
}

func TestStreamRows_SkipsMalformedRecords(t *testing.T) {
	t.Parallel()
	src := "a,b\n1,2\n\"x,3\n"
	rows, bad, err := collect(t, src, Options{})
	if err != nil {
		t.Fatalf("StreamRows: %v", err)
	}
	if len(rows) != 1 || len(bad) != 1 {
		t.Fatalf("rows=%d bad=%v", len(rows), bad)
	}
}

func TestStreamRows_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := make(chan table.Row)
	if err := StreamRows(ctx, strings.NewReader("a\n1\n"), Options{}, out, nil); err != context.Canceled {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}
