package mssql

import (
	"context"
	"database/sql"
)

// dbConn, txConn and stmtConn narrow *sql.DB, *sql.Tx and *sql.Stmt to what
// Sink uses, so tests can record the bulk copy without a server.
type dbConn interface {
	PingContext(ctx context.Context) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error)
	Close() error
}

// txConn is where bulk copy statements are prepared; go-mssqldb requires a
// transaction for CopyIn.
type txConn interface {
	PrepareContext(ctx context.Context, query string) (stmtConn, error)
	Commit() error
	Rollback() error
}

type stmtConn interface {
	ExecContext(ctx context.Context, args ...any) (sql.Result, error)
	Close() error
}

// sqlDB adapts *sql.DB; only BeginTx needs translating.
type sqlDB struct{ *sql.DB }

func (s *sqlDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error) {
	tx, err := s.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return sqlTx{tx}, nil
}

type sqlTx struct{ *sql.Tx }

func (t sqlTx) PrepareContext(ctx context.Context, query string) (stmtConn, error) {
	return t.Tx.PrepareContext(ctx, query)
}

var (
	_ dbConn   = (*sqlDB)(nil)
	_ txConn   = sqlTx{}
	_ stmtConn = (*sql.Stmt)(nil)
)
