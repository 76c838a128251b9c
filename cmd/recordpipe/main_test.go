package main

import (
	"bytes"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"recordpipe/internal/failure"
)

func init() { color.NoColor = true }

type workspace struct {
	dir, system, fileConfig string
}

func newWorkspace(t *testing.T, extraSystem string) workspace {
	t.Helper()
	dir := t.TempDir()
	ws := workspace{
		dir:        dir,
		system:     filepath.Join(dir, "system.yaml"),
		fileConfig: filepath.Join(dir, "customers.yaml"),
	}
	mustWrite(t, ws.system, `
input_dir: `+filepath.Join(dir, "in")+`
processed_dir: `+filepath.Join(dir, "processed")+`
error_dir: `+filepath.Join(dir, "errors")+`
file_config_dir: `+dir+`
concurrency: 2
`+extraSystem)
	mustWrite(t, ws.fileConfig, `
file_type: csv
columns:
  - { name: id, mandatory: true, unique: true }
  - { name: name, mandatory: true, length: 10 }
  - { name: age, type: int }
target_table: customers
`)
	return ws
}

func mustWrite(t *testing.T, p, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--env-file", ""))
	err := root.Execute()
	return out.String(), err
}

func TestRun_InputDir(t *testing.T) {
	ws := newWorkspace(t, "")
	mustWrite(t, filepath.Join(ws.dir, "in", "a.csv"), "id,name,age\n1,Alice,30\n2,,25\n")
	mustWrite(t, filepath.Join(ws.dir, "in", "b.csv"), "id,name,age\n1,Bob,x\n1,Bob,4\n")
	mustWrite(t, filepath.Join(ws.dir, "in", ".hidden.csv"), "id\n")

	out, err := execute(t, "run", "--config", ws.system, "--file-key", "customers", "--pattern", "*.csv")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "2 file(s): 1 clean, 3 rejected") {
		t.Fatalf("summary missing:\n%s", out)
	}
	for _, p := range []string{
		filepath.Join(ws.dir, "processed", "clean_a.csv"),
		filepath.Join(ws.dir, "errors", "error_a.csv"),
		filepath.Join(ws.dir, "processed", "clean_b.csv"),
		filepath.Join(ws.dir, "errors", "error_b.csv"),
	} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("missing output %s: %v", p, err)
		}
	}
}

func TestRun_MissingInputFails(t *testing.T) {
	ws := newWorkspace(t, "")
	out, err := execute(t, "run", "--config", ws.system, "--file-config", ws.fileConfig, filepath.Join(ws.dir, "nope.csv"))
	if !errors.Is(err, failure.ErrFileNotFound) {
		t.Fatalf("want FileNotFoundError, got %v", err)
	}
	if !strings.Contains(out, "1 failed") {
		t.Fatalf("summary should report the failure:\n%s", out)
	}
}

func TestRun_LoadsIntoSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "load.db")
	ws := newWorkspace(t, `
features:
  enable_db_load: true
database:
  kind: sqlite
  dsn: `+dbPath+`
  auto_create_table: true
`)
	input := filepath.Join(ws.dir, "in", "c.csv")
	mustWrite(t, input, "id,name,age\n1,Ann,3\n2,Ben,4\n3,,5\n")

	out, err := execute(t, "run", "--config", ws.system, "--file-key", "customers", input)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM customers`).Scan(&n); err != nil {
		t.Fatalf("query: %v", err)
	}
	if n != 2 {
		t.Fatalf("loaded %d rows, want 2", n)
	}
}

func TestCheck(t *testing.T) {
	ws := newWorkspace(t, "")
	out, err := execute(t, "check", "--config", ws.system, "--file-key", "customers")
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	if !strings.Contains(out, "ok customers (csv, 3 columns)") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	bad := filepath.Join(ws.dir, "bad.yaml")
	mustWrite(t, bad, "file_type: csv\ncolumns: [{name: id}]\nunique_constraints: [[nope]]\n")
	out, err = execute(t, "check", "--config", ws.system, "--file-config", bad)
	if !errors.Is(err, failure.ErrConfiguration) {
		t.Fatalf("want ConfigurationError, got %v", err)
	}
	if !strings.Contains(out, `unknown column "nope"`) {
		t.Fatalf("issue not printed:\n%s", out)
	}
}

func TestBackends(t *testing.T) {
	out, err := execute(t, "backends")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"csv", "fixed_width", "xml", "duplicate", "postgres", "sqlite"} {
		if !strings.Contains(out, want) {
			t.Errorf("backends output lacks %q:\n%s", want, out)
		}
	}
}
