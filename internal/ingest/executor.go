// Package ingest writes batches of heterogeneous rows into a relational sink.
//
// Rows in one batch may carry different column sets. The executor merges
// their schemas, materializes a dense buffer and bulk-writes it. When the
// destination table does not exist yet it is created from the merged schema
// and the write is retried exactly once.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lakeio/internal/metrics"
	"lakeio/internal/storage"
	"lakeio/internal/table"
)

// Logger is the minimal logging surface. A nil Logger discards output.
type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Options configures an Executor.
type Options struct {
	// Keys names the partition/row key columns. Zero value means
	// "PartitionKey"/"RowKey".
	Keys table.KeyColumns
	// Logger receives one line per state transition. Nil discards.
	Logger Logger
}

// Executor owns one sink. It is not safe for concurrent use.
type Executor struct {
	sink storage.Sink
	keys table.KeyColumns
	log  Logger
}

// New returns an Executor writing to sink. The sink is opened lazily on the
// first Insert.
func New(sink storage.Sink, opts Options) (*Executor, error) {
	if sink == nil {
		return nil, fmt.Errorf("ingest: sink is nil")
	}
	log := opts.Logger
	if log == nil {
		log = nopLogger{}
	}
	return &Executor{sink: sink, keys: opts.Keys, log: log}, nil
}

type state int

const (
	stateWrite  state = iota // first bulk write
	stateCreate              // destination missing: create it
	stateRetry               // single retry after create
	stateDone
)

/*
Insert writes rows into destination.

Steps:
 1. Merge the row schemas and materialize a dense buffer (missing cells are nil).
 2. Open the sink if it is not open.
 3. Bulk write. If the sink reports storage.ErrInvalidState (destination does
    not exist), render CREATE TABLE from the merged schema, execute it and
    retry the bulk write once with the same buffer.

Edge cases:
  - An empty batch is a no-op and does not open the sink.
  - The retry happens at most once; its failure is returned as is (wrapped).

Errors:
  - Open, DDL and retry failures are wrapped with the failing step.
  - Any other first-write error (including *storage.BackendError) is returned
    immediately and never triggers create/retry.
*/
func (e *Executor) Insert(ctx context.Context, destination string, rows []table.Row) error {
	if len(rows) == 0 {
		return nil
	}
	if destination == "" {
		return fmt.Errorf("ingest: destination is empty")
	}

	schema := table.Merge(rows, e.keys)
	buf := table.Materialize(schema, rows)

	if !e.sink.IsOpen() {
		start := time.Now()
		err := e.sink.Open(ctx)
		metrics.RecordStep("open", err, time.Since(start))
		if err != nil {
			return fmt.Errorf("ingest: open sink: %w", err)
		}
	}

	metrics.RecordBatch()

	st := stateWrite
	for st != stateDone {
		switch st {
		case stateWrite:
			err := e.bulkWrite(ctx, "bulk_write", destination, buf)
			switch {
			case err == nil:
				st = stateDone
			case errors.Is(err, storage.ErrInvalidState):
				e.log.Printf("ingest: destination=%s missing; creating (%d columns)", destination, len(schema.Columns))
				st = stateCreate
			default:
				metrics.RecordRows("failed", buf.Len())
				return fmt.Errorf("ingest: bulk write %s: %w", destination, err)
			}

		case stateCreate:
			if err := e.createTable(ctx, destination, schema); err != nil {
				metrics.RecordRows("failed", buf.Len())
				return err
			}
			st = stateRetry

		case stateRetry:
			if err := e.bulkWrite(ctx, "bulk_write_retry", destination, buf); err != nil {
				metrics.RecordRows("failed", buf.Len())
				return fmt.Errorf("ingest: bulk write %s after create: %w", destination, err)
			}
			st = stateDone
		}
	}

	metrics.RecordRows("written", buf.Len())
	e.log.Printf("ingest: destination=%s rows=%d columns=%d ok", destination, buf.Len(), len(schema.Columns))
	return nil
}

// Close closes the underlying sink.
func (e *Executor) Close() error {
	return e.sink.Close()
}

func (e *Executor) bulkWrite(ctx context.Context, step, destination string, buf *table.Buffer) error {
	start := time.Now()
	err := e.sink.BulkWrite(ctx, destination, buf)
	metrics.RecordStep(step, err, time.Since(start))
	return err
}

func (e *Executor) createTable(ctx context.Context, destination string, schema table.Schema) error {
	start := time.Now()
	stmt, err := e.sink.CreateTableSQL(destination, schema)
	if err == nil {
		err = e.sink.ExecDDL(ctx, stmt)
	}
	metrics.RecordStep("create_table", err, time.Since(start))
	if err != nil {
		return fmt.Errorf("ingest: create %s: %w", destination, err)
	}
	return nil
}
