package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lakeio/internal/storage"
	"lakeio/internal/table"
)

// undefinedTable is the SQLSTATE Postgres reports for a missing relation.
const undefinedTable = "42P01"

/*
Sink implements storage.Sink for Postgres.

Bulk writes use the COPY protocol (pgx CopyFrom), which is a single statement:
a failed copy leaves the destination untouched, so the executor may retry it
with the same buffer after creating the table.
*/
type Sink struct {
	cfg     storage.Config
	newPool func(ctx context.Context, dsn string) (pgConn, error)
	pool    pgConn
}

func init() {
	storage.Register("postgres", New)
}

// New constructs a Sink. It does not connect; see Open.
func New(cfg storage.Config) (storage.Sink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: dsn is empty")
	}
	return &Sink{
		cfg: cfg,
		newPool: func(ctx context.Context, dsn string) (pgConn, error) {
			return pgxpool.New(ctx, dsn)
		},
	}, nil
}

// IsOpen reports whether Open succeeded and Close has not been called.
func (s *Sink) IsOpen() bool { return s.pool != nil }

// Open creates the pool and pings it. Calling Open on an open sink is a no-op.
func (s *Sink) Open(ctx context.Context) error {
	if s.pool != nil {
		return nil
	}
	pool, err := s.newPool(ctx, s.cfg.DSN)
	if err != nil {
		return fmt.Errorf("postgres: open: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("postgres: ping: %w", err)
	}
	s.pool = pool
	return nil
}

// Close closes the connection pool.
func (s *Sink) Close() error {
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return nil
}

// BulkWrite copies buf into destination with COPY FROM STDIN.
func (s *Sink) BulkWrite(ctx context.Context, destination string, buf *table.Buffer) error {
	if s.pool == nil {
		return fmt.Errorf("postgres: sink is not open")
	}
	if destination == "" {
		return fmt.Errorf("postgres: destination is empty")
	}

	ctx, cancel := storage.WithBulkTimeout(ctx, s.cfg.BulkTimeout)
	defer cancel()

	strCols := storage.StringColumns(buf.Schema)
	rows := make([][]any, len(buf.Rows))
	for i, r := range buf.Rows {
		rows[i] = bindRow(r, strCols)
	}

	_, err := s.pool.CopyFrom(ctx, pgIdentifier(destination), buf.Columns(), pgx.CopyFromRows(rows))
	return classify(destination, err)
}

// CreateTableSQL renders CREATE [SCHEMA|TABLE] IF NOT EXISTS for schema.
func (s *Sink) CreateTableSQL(destination string, schema table.Schema) (string, error) {
	spec, err := storage.SpecFor(destination, schema, pgType)
	if err != nil {
		return "", err
	}
	schemaSQL, tableSQL, err := buildCreateSQL(spec)
	if err != nil {
		return "", err
	}
	if schemaSQL != "" {
		return schemaSQL + " " + tableSQL, nil
	}
	return tableSQL, nil
}

// ExecDDL executes stmt using the simple protocol (multiple statements allowed).
func (s *Sink) ExecDDL(ctx context.Context, stmt string) error {
	if s.pool == nil {
		return fmt.Errorf("postgres: sink is not open")
	}
	_, err := s.pool.Exec(ctx, stmt)
	return classify("", err)
}

// bindRow adapts values for the binary COPY encoder. UUIDs go over the wire
// as [16]byte unless the merged schema typed the column as text.
func bindRow(row []any, strCols []bool) []any {
	out := storage.BindRow(row, strCols)
	for i, v := range row {
		if u, ok := v.(uuid.UUID); ok && !strCols[i] {
			out[i] = [16]byte(u)
		}
	}
	return out
}

// classify converts a pgx error into the storage error taxonomy.
func classify(destination string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	if pgErr.Code == undefinedTable && destination != "" {
		return storage.MissingDestination(destination, err)
	}
	return storage.NewBackendError("postgres", pgErr.Code, err)
}

// pgConn is the subset of *pgxpool.Pool used by Sink (test seam).
type pgConn interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Close()
}

var (
	_ storage.Sink = (*Sink)(nil)
	_ pgConn       = (*pgxpool.Pool)(nil)
)
