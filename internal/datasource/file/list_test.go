package file

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"recordpipe/internal/failure"
)

func writeTempFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestReadList_Basic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	content := `
# nightly drop
customers.csv
   # indented comment
/abs/orders.dat

   sub/items.xml
https://example.com/exports/stock.dat
`
	path := writeTempFile(t, dir, "list.txt", content)

	got, err := ReadList(path)
	if err != nil {
		t.Fatalf("ReadList error: %v", err)
	}

	want := []string{
		filepath.Join(dir, "customers.csv"),
		"/abs/orders.dat",
		filepath.Join(dir, "sub", "items.xml"),
		"https://example.com/exports/stock.dat",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ReadList(%q) = %#v, want %#v", path, got, want)
	}
}

func TestReadList_EmptyFile(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, t.TempDir(), "list.txt", "")
	got, err := ReadList(path)
	if err != nil {
		t.Fatalf("ReadList error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty slice, got %#v", got)
	}
}

func TestReadList_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := ReadList(filepath.Join(t.TempDir(), "does-not-exist.txt"))
	if !errors.Is(err, failure.ErrFileNotFound) {
		t.Fatalf("expected FileNotFoundError, got %v", err)
	}
}

func TestGlob(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeTempFile(t, dir, "b.csv", "x")
	writeTempFile(t, dir, "a.csv", "x")
	writeTempFile(t, dir, "notes.txt", "x")
	writeTempFile(t, dir, ".hidden.csv", "x")
	writeTempFile(t, dir, "c.csv.part", "x")
	if err := os.Mkdir(filepath.Join(dir, "d.csv"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := Glob(dir, "*.csv")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	want := []string{filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Glob = %v, want %v", got, want)
	}

	all, err := Glob(dir, "")
	if err != nil {
		t.Fatalf("Glob all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Glob(\"\") = %v, want 3 files", all)
	}
}

func TestGlob_Errors(t *testing.T) {
	t.Parallel()

	if _, err := Glob(filepath.Join(t.TempDir(), "nope"), "*"); !errors.Is(err, failure.ErrFileNotFound) {
		t.Fatalf("missing dir: got %v", err)
	}
	if _, err := Glob(t.TempDir(), "["); !errors.Is(err, failure.ErrConfiguration) {
		t.Fatalf("bad pattern: got %v", err)
	}
}
