package sink

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"recordpipe/internal/failure"
	"recordpipe/pkg/records"
)

func readFile(t *testing.T, p string) string {
	t.Helper()
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read %s: %v", p, err)
	}
	return string(b)
}

func TestPaths(t *testing.T) {
	t.Parallel()

	ok, bad := Paths("out/processed", "out/errors", "/in/customers.dat")
	if ok != filepath.Join("out/processed", "clean_customers.csv") {
		t.Errorf("success path = %q", ok)
	}
	if bad != filepath.Join("out/errors", "error_customers.csv") {
		t.Errorf("error path = %q", bad)
	}
}

func TestSink_PublishesOnlyOnClose(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "nested", "clean_x.csv")
	s, err := Create(p, []string{"id", "name"}, false, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Write(records.Outcome{Record: records.New(2, []string{"name", "id"}, []string{"Ann, Jr.", "1"})}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("final file visible before Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got, want := readFile(t, p), "id,name\n1,\"Ann, Jr.\"\n"; got != want {
		t.Fatalf("content = %q, want %q", got, want)
	}
	if _, err := os.Stat(p + ".part"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file left behind")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := s.Write(records.Outcome{}); !errors.Is(err, failure.ErrSinkWrite) {
		t.Fatalf("write after close: %v", err)
	}
}

func TestSink_ErrorColumn(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "error_x.csv")
	s, err := Create(p, []string{"id", "name"}, true, '|')
	if err != nil {
		t.Fatal(err)
	}
	o := records.Outcome{
		Record: records.New(3, []string{"id"}, []string{"2"}),
		Errors: []string{"Missing mandatory column: name", "Duplicate record found for unique constraint [id]: (2)"},
	}
	if err := s.Write(o); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	want := "id|name|errors\n2||Missing mandatory column: name; Duplicate record found for unique constraint [id]: (2)\n"
	if got := readFile(t, p); got != want {
		t.Fatalf("content = %q\nwant %q", got, want)
	}
}

func TestSink_Abort(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "clean_x.csv")
	s, err := Create(p, []string{"a"}, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	for _, q := range []string{p, p + ".part"} {
		if _, err := os.Stat(q); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("%s exists after Abort", q)
		}
	}
}

func TestCreate_UnwritableDirIsSinkWriteError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Create(filepath.Join(blocker, "clean.csv"), []string{"a"}, false, 0)
	if !errors.Is(err, failure.ErrSinkWrite) {
		t.Fatalf("want SinkWriteError, got %v", err)
	}
}

func TestRouter_RoutesExactlyOnce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	okPath, badPath := Paths(filepath.Join(dir, "p"), filepath.Join(dir, "e"), "people.csv")
	r, err := Open(okPath, badPath, []string{"id"}, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	outcomes := []records.Outcome{
		{Record: records.New(2, []string{"id"}, []string{"1"})},
		{Record: records.New(3, []string{"id"}, []string{"2"}), Errors: []string{"bad"}},
		{Record: records.New(4, []string{"id"}, []string{"3"})},
	}
	for _, o := range outcomes {
		if err := r.Route(o); err != nil {
			t.Fatalf("Route: %v", err)
		}
	}
	if s, e := r.Counts(); s != 2 || e != 1 {
		t.Fatalf("counts = %d/%d, want 2/1", s, e)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := readFile(t, r.SuccessPath()); got != "id\n1\n3\n" {
		t.Errorf("clean = %q", got)
	}
	if got := readFile(t, r.ErrorPath()); got != "id,errors\n2,bad\n" {
		t.Errorf("errors = %q", got)
	}
}

func TestOpen_SecondSinkFailureAbortsFirst(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	okPath := filepath.Join(dir, "clean_x.csv")
	if _, err := Open(okPath, filepath.Join(blocker, "error_x.csv"), []string{"a"}, 0); !errors.Is(err, failure.ErrSinkWrite) {
		t.Fatalf("want SinkWriteError, got %v", err)
	}
	if _, err := os.Stat(okPath + ".part"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("first sink not aborted")
	}
}

func TestRouter_CloseIsAllOrNothing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	okPath, badPath := Paths(filepath.Join(dir, "p"), filepath.Join(dir, "e"), "people.csv")
	r, err := Open(okPath, badPath, []string{"id"}, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := r.Route(records.Outcome{Record: records.New(2, []string{"id"}, []string{"1"})}); err != nil {
		t.Fatal(err)
	}
	if err := r.Route(records.Outcome{Record: records.New(3, []string{"id"}, []string{""}), Errors: []string{"missing id"}}); err != nil {
		t.Fatal(err)
	}

	// A non-empty directory at the error file's final path makes its rename fail.
	if err := os.MkdirAll(filepath.Join(badPath, "occupied"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := r.Close(); !errors.Is(err, failure.ErrSinkWrite) {
		t.Fatalf("want SinkWriteError, got %v", err)
	}
	for _, p := range []string{okPath, okPath + ".part", badPath + ".part"} {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s must not survive a failed close", p)
		}
	}
}
