// Package storage contains storage-agnostic contracts for loading clean files
// into a database.
//
// Backends register a Factory for their kind at init time (see storage/all);
// callers obtain a Repository through New and stay backend-agnostic.
package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"recordpipe/internal/failure"
)

// Config describes the target of one load.
type Config struct {
	Kind    string   // postgres, mssql, mysql, sqlite
	DSN     string   // passed to the driver unchanged
	Table   string   // possibly schema-qualified, e.g. "public.customers"
	Columns []string // destination columns, in row order
}

// Repository is the minimal surface a backend exposes to the loader.
type Repository interface {
	// CopyFrom inserts rows (aligned to columns) and returns the number of
	// rows the backend reports as inserted.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	// Exec runs a single statement, typically DDL.
	Exec(ctx context.Context, sql string) error
	Close()
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind.
func Register(kind string, fn Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[strings.ToLower(kind)] = fn
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	fn, ok := factories[strings.ToLower(cfg.Kind)]
	mu.RUnlock()
	if !ok {
		return nil, failure.Configuration("unsupported storage.kind=%s", cfg.Kind)
	}
	return fn(ctx, cfg)
}
