package mssql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	gomssql "github.com/microsoft/go-mssqldb"

	"lakeio/internal/storage"
	"lakeio/internal/table"
)

// fakeDB records the statements a Sink issues. Errors are injected per step.
type fakeDB struct {
	pings     int
	execs     []string
	prepared  []string
	rowsExec  [][]any
	flushes   int
	commits   int
	rollbacks int
	closed    bool

	pingErr    error
	prepareErr error
	rowErr     error
	execErr    error
}

type fakeResult struct{}

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error) { return 1, nil }

func (f *fakeDB) PingContext(context.Context) error { f.pings++; return f.pingErr }

func (f *fakeDB) ExecContext(_ context.Context, q string, _ ...any) (sql.Result, error) {
	f.execs = append(f.execs, q)
	return fakeResult{}, f.execErr
}

func (f *fakeDB) BeginTx(context.Context, *sql.TxOptions) (txConn, error) { return &fakeTx{db: f}, nil }

func (f *fakeDB) Close() error { f.closed = true; return nil }

type fakeTx struct{ db *fakeDB }

func (t *fakeTx) PrepareContext(_ context.Context, q string) (stmtConn, error) {
	t.db.prepared = append(t.db.prepared, q)
	if t.db.prepareErr != nil {
		return nil, t.db.prepareErr
	}
	return &fakeStmt{db: t.db}, nil
}

func (t *fakeTx) Commit() error   { t.db.commits++; return nil }
func (t *fakeTx) Rollback() error { t.db.rollbacks++; return nil }

type fakeStmt struct{ db *fakeDB }

func (s *fakeStmt) ExecContext(_ context.Context, args ...any) (sql.Result, error) {
	if len(args) == 0 {
		s.db.flushes++
		return fakeResult{}, nil
	}
	if s.db.rowErr != nil {
		return nil, s.db.rowErr
	}
	s.db.rowsExec = append(s.db.rowsExec, args)
	return fakeResult{}, nil
}

func (s *fakeStmt) Close() error { return nil }

func newTestSink(t *testing.T, db *fakeDB) *Sink {
	t.Helper()
	s, err := New(storage.Config{Kind: "mssql", DSN: "sqlserver://test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sink := s.(*Sink)
	sink.openDB = func(string) (dbConn, error) { return db, nil }
	return sink
}

func testBuffer() *table.Buffer {
	rows := []table.Row{
		table.NewRow("p", "1", table.Cell{Name: "A", Value: int64(1)}),
		table.NewRow("p", "2", table.Cell{Name: "B", Value: "x"}),
	}
	return table.Materialize(table.Merge(rows, table.KeyColumns{}), rows)
}

func TestOpen_IsIdempotent(t *testing.T) {
	db := &fakeDB{}
	s := newTestSink(t, db)
	ctx := context.Background()

	if s.IsOpen() {
		t.Fatalf("new sink must not be open")
	}
	for i := 0; i < 3; i++ {
		if err := s.Open(ctx); err != nil {
			t.Fatalf("Open: %v", err)
		}
	}
	if db.pings != 1 {
		t.Fatalf("pings=%d, want 1", db.pings)
	}
	if !s.IsOpen() {
		t.Fatalf("sink must be open")
	}
	if err := s.Close(); err != nil || !db.closed || s.IsOpen() {
		t.Fatalf("Close: err=%v closed=%v open=%v", err, db.closed, s.IsOpen())
	}
}

func TestOpen_PingFailureLeavesSinkClosed(t *testing.T) {
	db := &fakeDB{pingErr: errors.New("no route")}
	s := newTestSink(t, db)
	if err := s.Open(context.Background()); err == nil {
		t.Fatalf("expected ping error")
	}
	if s.IsOpen() || !db.closed {
		t.Fatalf("failed Open must close the handle and stay closed")
	}
}

func TestBulkWrite_CopiesRowsAndCommits(t *testing.T) {
	db := &fakeDB{}
	s := newTestSink(t, db)
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := s.BulkWrite(context.Background(), "dbo.events", testBuffer()); err != nil {
		t.Fatalf("BulkWrite: %v", err)
	}
	if len(db.prepared) != 1 || !strings.Contains(db.prepared[0], "[dbo].[events]") {
		t.Fatalf("prepared=%v", db.prepared)
	}
	if len(db.rowsExec) != 2 || db.flushes != 1 || db.commits != 1 || db.rollbacks != 0 {
		t.Fatalf("rows=%d flushes=%d commits=%d rollbacks=%d", len(db.rowsExec), db.flushes, db.commits, db.rollbacks)
	}
	// Column B is a string column; the missing value stays nil.
	if got := db.rowsExec[0]; got[0] != "p" || got[1] != "1" || got[2] != int64(1) || got[3] != nil {
		t.Fatalf("first row=%v", got)
	}
}

func TestBulkWrite_NotOpen(t *testing.T) {
	s := newTestSink(t, &fakeDB{})
	if err := s.BulkWrite(context.Background(), "t", testBuffer()); err == nil {
		t.Fatalf("expected error when sink is not open")
	}
}

func TestBulkWrite_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name        string
		db          *fakeDB
		wantMissing bool
		wantCode    string
	}{
		{
			name:        "missing_table_on_prepare",
			db:          &fakeDB{prepareErr: gomssql.Error{Number: 208, Message: "Invalid object name 'dbo.events'."}},
			wantMissing: true,
		},
		{
			name:        "missing_table_on_first_row",
			db:          &fakeDB{rowErr: gomssql.Error{Number: 208, Message: "Invalid object name 'dbo.events'."}},
			wantMissing: true,
		},
		{
			name:     "duplicate_key",
			db:       &fakeDB{rowErr: gomssql.Error{Number: 2627, Message: "Violation of PRIMARY KEY constraint"}},
			wantCode: "2627",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSink(t, tc.db)
			if err := s.Open(context.Background()); err != nil {
				t.Fatalf("Open: %v", err)
			}
			err := s.BulkWrite(context.Background(), "dbo.events", testBuffer())
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := errors.Is(err, storage.ErrInvalidState); got != tc.wantMissing {
				t.Fatalf("errors.Is(ErrInvalidState)=%v, want %v (err=%v)", got, tc.wantMissing, err)
			}
			if tc.wantCode != "" {
				if code, ok := storage.CodeOf(err); !ok || code != tc.wantCode {
					t.Fatalf("CodeOf=(%q,%v), want %q", code, ok, tc.wantCode)
				}
			}
			if tc.db.commits != 0 || tc.db.rollbacks != 1 {
				t.Fatalf("commits=%d rollbacks=%d, want 0/1", tc.db.commits, tc.db.rollbacks)
			}
		})
	}
}

func TestClassify_PassesThroughNonServerErrors(t *testing.T) {
	err := classify("t", context.Canceled)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("classify must keep context errors: %v", err)
	}
	if _, ok := storage.CodeOf(err); ok {
		t.Fatalf("context errors must not become BackendError")
	}
}

func TestCreateTableSQL(t *testing.T) {
	s := newTestSink(t, &fakeDB{})
	rows := []table.Row{table.NewRow("p", "1",
		table.Cell{Name: "Amount", Value: 1.5},
		table.Cell{Name: "Flag", Value: true},
		table.Cell{Name: "Note", Value: nil},
	)}

	got, err := s.CreateTableSQL("dbo.events", table.Merge(rows, table.KeyColumns{}))
	if err != nil {
		t.Fatalf("CreateTableSQL: %v", err)
	}
	want := "IF OBJECT_ID(N'dbo.events', N'U') IS NULL BEGIN CREATE TABLE [dbo].[events] (" +
		"[PartitionKey] NVARCHAR(450) NOT NULL, [RowKey] NVARCHAR(450) NOT NULL, " +
		"[Amount] FLOAT NOT NULL, [Flag] BIT NOT NULL, [Note] NVARCHAR(MAX) NULL, " +
		"PRIMARY KEY ([PartitionKey], [RowKey])); END;"
	if got != want {
		t.Fatalf("CreateTableSQL:\n got=%s\nwant=%s", got, want)
	}
}

func TestExecDDL_ClassifiesServerErrors(t *testing.T) {
	db := &fakeDB{execErr: gomssql.Error{Number: 2714, Message: "There is already an object named"}}
	s := newTestSink(t, db)
	if err := s.ExecDDL(context.Background(), "CREATE TABLE x (a INT)"); err == nil {
		t.Fatalf("expected not-open error")
	}
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	err := s.ExecDDL(context.Background(), "CREATE TABLE x (a INT)")
	if code, ok := storage.CodeOf(err); !ok || code != "2714" {
		t.Fatalf("CodeOf=(%q,%v), want 2714", code, ok)
	}
}

func TestMssqlTableIdent(t *testing.T) {
	tests := map[string]string{
		"imports":     "[imports]",
		"dbo.imports": "[dbo].[imports]",
		"a]b":         "[a]]b]",
	}
	for in, want := range tests {
		if got := mssqlTableIdent(in); got != want {
			t.Fatalf("mssqlTableIdent(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestOpenSQLServer_SingleConnectionPool(t *testing.T) {
	conn, err := openSQLServer("sqlserver://user:pw@localhost?database=lakeio")
	if err != nil {
		t.Fatalf("openSQLServer: %v", err)
	}
	defer conn.Close()
	db, ok := conn.(*sqlDB)
	if !ok {
		t.Fatalf("conn=%T, want *sqlDB", conn)
	}
	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Fatalf("MaxOpenConnections=%d, want 1", got)
	}
}
