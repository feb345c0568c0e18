package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	gomssql "github.com/microsoft/go-mssqldb"

	"lakeio/internal/storage"
	"lakeio/internal/table"
)

// errInvalidObjectName is SQL Server error 208 ("Invalid object name"), raised
// by the bulk copy metadata probe when the destination table does not exist.
const errInvalidObjectName = 208

// Sink implements storage.Sink for Microsoft SQL Server using the bulk copy
// protocol (gomssql.CopyIn).
//
// Each BulkWrite runs in its own transaction: either every row of the buffer
// lands or none does, which keeps the create-and-retry path in the ingestion
// executor safe to re-run with the same buffer.
//
// Concurrency:
//   - A Sink is single-owner. The connection is opened lazily and reused.
type Sink struct {
	cfg    storage.Config
	openDB func(dsn string) (dbConn, error)
	db     dbConn
}

func init() {
	storage.Register("mssql", New)
	storage.Register("sqlserver", New)
}

// New constructs a Sink. It does not connect; see Open.
func New(cfg storage.Config) (storage.Sink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mssql: dsn is empty")
	}
	return &Sink{cfg: cfg, openDB: openSQLServer}, nil
}

func openSQLServer(dsn string) (dbConn, error) {
	raw, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, err
	}
	// A sink drives one bulk copy at a time.
	raw.SetMaxOpenConns(1)
	raw.SetMaxIdleConns(1)
	return &sqlDB{raw}, nil
}

// IsOpen reports whether Open succeeded and Close has not been called.
func (s *Sink) IsOpen() bool { return s.db != nil }

// Open connects and validates connectivity via PingContext. Calling Open on an
// open sink is a no-op.
func (s *Sink) Open(ctx context.Context) error {
	if s.db != nil {
		return nil
	}
	db, err := s.openDB(s.cfg.DSN)
	if err != nil {
		return fmt.Errorf("mssql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("mssql: ping: %w", err)
	}
	s.db = db
	return nil
}

// Close releases database resources held by this sink.
func (s *Sink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// BulkWrite copies every row of buf into destination inside one transaction.
//
// Errors:
//   - storage.ErrInvalidState when SQL Server reports error 208 for the
//     destination (table missing).
//   - *storage.BackendError carrying the SQL Server error number for any other
//     server-reported failure.
func (s *Sink) BulkWrite(ctx context.Context, destination string, buf *table.Buffer) error {
	if s.db == nil {
		return fmt.Errorf("mssql: sink is not open")
	}
	if destination == "" {
		return fmt.Errorf("mssql: destination is empty")
	}

	ctx, cancel := storage.WithBulkTimeout(ctx, s.cfg.BulkTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(destination, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, gomssql.CopyIn(mssqlTableIdent(destination), gomssql.BulkOptions{
		KeepNulls:    true,
		RowsPerBatch: buf.Len(),
	}, buf.Columns()...))
	if err != nil {
		return classify(destination, err)
	}

	strCols := storage.StringColumns(buf.Schema)
	for _, row := range buf.Rows {
		if _, err := stmt.ExecContext(ctx, storage.BindRow(row, strCols)...); err != nil {
			_ = stmt.Close()
			return classify(destination, err)
		}
	}

	// An Exec without arguments flushes the bulk copy.
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return classify(destination, err)
	}
	if err := stmt.Close(); err != nil {
		return classify(destination, err)
	}
	if err := tx.Commit(); err != nil {
		return classify(destination, err)
	}
	committed = true
	return nil
}

// CreateTableSQL renders an idempotent CREATE TABLE for schema.
func (s *Sink) CreateTableSQL(destination string, schema table.Schema) (string, error) {
	spec, err := storage.SpecFor(destination, schema, mssqlType)
	if err != nil {
		return "", err
	}
	return buildCreateSQL(spec)
}

// ExecDDL executes stmt on the open connection.
func (s *Sink) ExecDDL(ctx context.Context, stmt string) error {
	if s.db == nil {
		return fmt.Errorf("mssql: sink is not open")
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return classify("", err)
	}
	return nil
}

// sqlErrorNumber matches mssql.Error by value or by pointer.
type sqlErrorNumber interface {
	SQLErrorNumber() int32
}

// classify converts a driver error into the storage error taxonomy.
func classify(destination string, err error) error {
	if err == nil {
		return nil
	}
	var se sqlErrorNumber
	if !errors.As(err, &se) {
		return err
	}
	n := se.SQLErrorNumber()
	if n == errInvalidObjectName && destination != "" {
		return storage.MissingDestination(destination, err)
	}
	return storage.NewBackendError("mssql", strconv.Itoa(int(n)), err)
}

var _ storage.Sink = (*Sink)(nil)
