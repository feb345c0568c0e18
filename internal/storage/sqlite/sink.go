package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"modernc.org/sqlite"

	"lakeio/internal/storage"
	"lakeio/internal/table"
)

// Sink implements storage.Sink for SQLite.
//
// SQLite has no bulk-copy protocol. BulkWrite runs one prepared INSERT per row
// inside a transaction, so a batch lands completely or not at all.
//
// Timestamps are stored as RFC3339Nano TEXT for reliable round-trips with
// modernc.org/sqlite.
type Sink struct {
	cfg storage.Config
	db  *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

// New constructs a Sink. It does not open the database; see Open.
func New(cfg storage.Config) (storage.Sink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sqlite: dsn is empty")
	}
	return &Sink{cfg: cfg}, nil
}

func (s *Sink) IsOpen() bool { return s.db != nil }

// Open opens the database and pings it. Calling Open on an open sink is a no-op.
//
// The pool is capped at one connection: SQLite serializes writers anyway, and
// a ":memory:" database is private to the connection that created it.
func (s *Sink) Open(ctx context.Context) error {
	if s.db != nil {
		return nil
	}
	db, err := sql.Open("sqlite", s.cfg.DSN)
	if err != nil {
		return fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	s.db = db
	return nil
}

func (s *Sink) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// BulkWrite inserts buf into destination in a single transaction.
func (s *Sink) BulkWrite(ctx context.Context, destination string, buf *table.Buffer) error {
	if s.db == nil {
		return fmt.Errorf("sqlite: sink is not open")
	}
	if destination == "" {
		return fmt.Errorf("sqlite: destination is empty")
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

	stmt, err := tx.PrepareContext(ctx, buildInsertSQL(destination, buf.Columns()))
	if err != nil {
		return classify(destination, err)
	}
	defer stmt.Close()

	strCols := storage.StringColumns(buf.Schema)
	for _, r := range buf.Rows {
		if _, err := stmt.ExecContext(ctx, bindRow(r, strCols)...); err != nil {
			return classify(destination, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classify(destination, err)
	}
	committed = true
	return nil
}

// CreateTableSQL renders CREATE TABLE IF NOT EXISTS for schema.
func (s *Sink) CreateTableSQL(destination string, schema table.Schema) (string, error) {
	spec, err := storage.SpecFor(destination, schema, sqliteType)
	if err != nil {
		return "", err
	}
	return buildCreateSQL(spec)
}

func (s *Sink) ExecDDL(ctx context.Context, stmt string) error {
	if s.db == nil {
		return fmt.Errorf("sqlite: sink is not open")
	}
	_, err := s.db.ExecContext(ctx, stmt)
	return classify("", err)
}

// bindRow prepares values for the modernc driver.
func bindRow(row []any, strCols []bool) []any {
	out := storage.BindRow(row, strCols)
	for i, v := range out {
		if ts, ok := v.(time.Time); ok {
			out[i] = formatSQLiteTime(ts)
		}
	}
	return out
}

// classify converts a driver error into the storage error taxonomy.
//
// SQLite reports a missing table as a generic SQLITE_ERROR, so the message is
// the only reliable signal.
func classify(destination string, err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	if destination != "" && strings.Contains(se.Error(), "no such table") {
		return storage.MissingDestination(destination, err)
	}
	return storage.NewBackendError("sqlite", strconv.Itoa(se.Code()), err)
}

// formatSQLiteTime formats a time as RFC3339Nano in UTC.
func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

var _ storage.Sink = (*Sink)(nil)
