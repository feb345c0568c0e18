package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"lakeio/internal/blob"
)

type env struct {
	root   string
	dbPath string
	cfg    string
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	e := env{root: filepath.Join(dir, "remote"), dbPath: filepath.Join(dir, "lake.db"), cfg: filepath.Join(dir, "lakeio.yaml")}
	if err := os.MkdirAll(e.root, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	body := "blob:\n  kind: local\n  root: " + e.root + "\n" +
		"sink:\n  kind: sqlite\n  dsn: " + e.dbPath + "\n" +
		"ingest:\n  batch_size: 2\n"
	if err := os.WriteFile(e.cfg, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return e
}

func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd, a := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", e.cfg}, args...))
	err := cmd.ExecuteContext(context.Background())
	a.shutdown()
	return out.String(), err
}

func (e env) local(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestBlobCommands(t *testing.T) {
	e := newEnv(t)
	src := e.local(t, "a.txt", "hello lake")

	if _, err := e.run(t, "put", src, `data\raw\a.txt`); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := e.run(t, "put", src, "/data/b.txt"); err != nil {
		t.Fatalf("put: %v", err)
	}

	out, err := e.run(t, "cat", "/data/raw/a.txt")
	if err != nil || out != "hello lake" {
		t.Fatalf("cat=%q err=%v", out, err)
	}

	out, err = e.run(t, "ls", "-r", "/data")
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	for _, want := range []string{"/data/raw", "/data/raw/a.txt", "/data/b.txt"} {
		if !strings.Contains(out, want) {
			t.Fatalf("ls output missing %s:\n%s", want, out)
		}
	}

	out, err = e.run(t, "exists", "/data/b.txt", "/data/nope")
	if err != nil || !strings.Contains(out, "/data/b.txt\ttrue") || !strings.Contains(out, "/data/nope\tfalse") {
		t.Fatalf("exists=%q err=%v", out, err)
	}

	out, err = e.run(t, "stat", "/data/nope")
	if err != nil || !strings.Contains(out, "absent") {
		t.Fatalf("stat=%q err=%v", out, err)
	}

	if _, err := e.run(t, "rm", "/data/raw"); err != nil {
		t.Fatalf("rm: %v", err)
	}
	if _, err := os.Stat(filepath.Join(e.root, "data", "raw")); !os.IsNotExist(err) {
		t.Fatalf("rm must delete the folder recursively, stat err=%v", err)
	}

	_, err = e.run(t, "cat", "/data/raw/a.txt")
	if !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("cat of a removed file: %v", err)
	}
}

func TestPut_AppendIsUnsupported(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "put", "--append", e.local(t, "x", "x"), "/x")
	if !errors.Is(err, blob.ErrUnsupportedOperation) {
		t.Fatalf("err=%v, want ErrUnsupportedOperation", err)
	}
}

func TestReadOnlyFlag(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "--read-only", "put", e.local(t, "x", "x"), "/x")
	if !errors.Is(err, blob.ErrReadOnly) {
		t.Fatalf("err=%v, want ErrReadOnly", err)
	}
}

func TestLoad_CreatesTableAndLoadsBatches(t *testing.T) {
	e := newEnv(t)
	csvPath := e.local(t, "people.csv", "id,name,age\n1,Ada,36\n2,Linus,\n3,Grace,85\n")

	out, err := e.run(t, "load", "--rk-column", "id", csvPath, "people")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.Contains(out, "loaded 3 rows into people in 2 batches") {
		t.Fatalf("load output=%q", out)
	}

	db, err := sql.Open("sqlite", e.dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "people"`).Scan(&n); err != nil || n != 3 {
		t.Fatalf("count=%d err=%v", n, err)
	}
	var pk, name string
	if err := db.QueryRow(`SELECT "PartitionKey", "name" FROM "people" WHERE "RowKey" = '3'`).Scan(&pk, &name); err != nil {
		t.Fatalf("select: %v", err)
	}
	if pk != "people.csv" || name != "Grace" {
		t.Fatalf("pk=%q name=%q", pk, name)
	}
}

func TestLoad_JSONFromRemote(t *testing.T) {
	e := newEnv(t)
	if err := os.WriteFile(filepath.Join(e.root, "events.json"), []byte(`[{"id":"e1","n":1},{"id":"e2","n":2.5}]`), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	out, err := e.run(t, "load", "--from-remote", "--rk-column", "id", "--partition", "p1", "/events.json", "events")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.Contains(out, "loaded 2 rows into events in 1 batches") {
		t.Fatalf("load output=%q", out)
	}
}

func TestValidate(t *testing.T) {
	e := newEnv(t)
	out, err := e.run(t, "--validate")
	if exitCode(err) != 0 || !strings.Contains(out, "configuration is valid") {
		t.Fatalf("out=%q err=%v", out, err)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("blob:\n  kind: ftp\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cmd, a := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", bad, "ls"})
	err = cmd.ExecuteContext(context.Background())
	a.shutdown()
	if exitCode(err) != 2 {
		t.Fatalf("exit code=%d err=%v, want 2", exitCode(err), err)
	}
}

func TestLoad_UnknownFormat(t *testing.T) {
	e := newEnv(t)
	if _, err := e.run(t, "load", e.local(t, "x.parquet", ""), "t"); err == nil {
		t.Fatalf("expected unknown format error")
	}
}

func TestProbe(t *testing.T) {
	e := newEnv(t)
	csvPath := e.local(t, "people.csv", "id,name,age\n1,Ada,36\n2,Linus,\n3,Ada,85\n4,Bob,1\n")

	out, err := e.run(t, "probe", "--rows", "3", csvPath, "people")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	for _, want := range []string{
		"sampled 3 rows; row key candidates: id",
		"age",
		"-- sqlite",
		`CREATE TABLE IF NOT EXISTS "people"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("probe output missing %q:\n%s", want, out)
		}
	}
}
