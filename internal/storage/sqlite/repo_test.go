package sqlite

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"recordpipe/internal/ddl"
	"recordpipe/internal/storage"
)

// newMemRepo opens a private shared-cache in-memory database so that every
// pooled connection sees the same tables.
func newMemRepo(tb testing.TB, table string, cols []string) *Repository {
	tb.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(tb.Name())
	r, closeFn, err := NewRepository(context.Background(), Config{
		DSN:     fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		Table:   table,
		Columns: cols,
	})
	if err != nil {
		tb.Fatalf("NewRepository: %v", err)
	}
	tb.Cleanup(closeFn)
	return r
}

func countRows(tb testing.TB, r *Repository, table string) int {
	tb.Helper()
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM " + quoteIdent(table)).Scan(&n); err != nil {
		tb.Fatalf("count: %v", err)
	}
	return n
}

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	got, err := BuildCreateTableSQL(ddl.TextTable("customers", []string{"id", "name"}))
	if err != nil {
		t.Fatalf("BuildCreateTableSQL: %v", err)
	}
	want := "CREATE TABLE IF NOT EXISTS \"customers\" (\n  \"id\" TEXT,\n  \"name\" TEXT\n);"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestEnsureTableAndCopyFrom(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cols := []string{"id", "name", "age"}
	r := newMemRepo(t, "customers", cols)
	w := &wrappedRepo{Repository: r}

	td := ddl.TextTable("customers", cols)
	if err := storage.EnsureTable(ctx, "sqlite", w, td); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	// Idempotent.
	if err := storage.EnsureTable(ctx, "sqlite", w, td); err != nil {
		t.Fatalf("EnsureTable (second): %v", err)
	}

	rows := [][]any{{"1", "Ann", "30"}, {"2", "Bob", ""}}
	n, err := r.CopyFrom(ctx, cols, rows)
	if err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	if n != 2 {
		t.Fatalf("CopyFrom inserted %d, want 2", n)
	}
	if got := countRows(t, r, "customers"); got != 2 {
		t.Fatalf("row count = %d, want 2", got)
	}

	var name string
	if err := r.db.QueryRow(`SELECT "name" FROM "customers" WHERE "id" = '2'`).Scan(&name); err != nil {
		t.Fatalf("select: %v", err)
	}
	if name != "Bob" {
		t.Fatalf("name = %q, want Bob", name)
	}
}

func TestCopyFrom_RowLengthMismatchRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cols := []string{"a", "b"}
	r := newMemRepo(t, "t", cols)
	if err := EnsureTable(ctx, &wrappedRepo{Repository: r}, ddl.TextTable("t", cols)); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}

	_, err := r.CopyFrom(ctx, cols, [][]any{{"1", "x"}, {"2"}})
	if err == nil || !strings.Contains(err.Error(), "row length 1 != columns length 2") {
		t.Fatalf("err = %v, want row length error", err)
	}
	if got := countRows(t, r, "t"); got != 0 {
		t.Fatalf("row count = %d after rollback, want 0", got)
	}
}

func TestCopyFrom_Guards(t *testing.T) {
	t.Parallel()

	r := &Repository{cfg: Config{Table: "t"}}
	if _, err := r.CopyFrom(context.Background(), nil, [][]any{{"x"}}); err == nil {
		t.Fatalf("expected error for empty columns")
	}
	n, err := r.CopyFrom(context.Background(), []string{"a"}, nil)
	if err != nil || n != 0 {
		t.Fatalf("CopyFrom(no rows) = (%d, %v), want (0, nil)", n, err)
	}
	if _, _, err := NewRepository(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}

func TestCopyFrom_ThroughLoadBatches(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cols := []string{"n"}
	r := newMemRepo(t, "nums", cols)
	if err := EnsureTable(ctx, &wrappedRepo{Repository: r}, ddl.TextTable("nums", cols)); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}

	in := make(chan storage.Row, 10)
	for i := 0; i < 10; i++ {
		in <- storage.RowFromFields(i+2, []string{fmt.Sprint(i)})
	}
	close(in)

	total, err := storage.LoadBatches(ctx, storage.BatchConfig{Columns: cols, Size: 4}, in, r.CopyFrom)
	if err != nil {
		t.Fatalf("LoadBatches: %v", err)
	}
	if total != 10 || countRows(t, r, "nums") != 10 {
		t.Fatalf("total = %d, want 10", total)
	}
}
