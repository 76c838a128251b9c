package storage

import (
	"context"
	"strings"
	"sync"

	"recordpipe/internal/ddl"
	"recordpipe/internal/failure"
)

// DDLBootstrapper applies backend-specific DDL for td via repo.Exec
// (typically CREATE TABLE IF NOT EXISTS).
type DDLBootstrapper func(ctx context.Context, repo Repository, td ddl.TableDef) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) the DDLBootstrapper for kind.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[strings.ToLower(kind)] = fn
}

// EnsureTable creates the table described by td on a repository of the given
// kind, if it does not already exist.
func EnsureTable(ctx context.Context, kind string, repo Repository, td ddl.TableDef) error {
	ddlMu.RLock()
	fn, ok := ddlFns[strings.ToLower(kind)]
	ddlMu.RUnlock()
	if !ok {
		return failure.Configuration("no DDL bootstrapper registered for storage.kind=%q", kind)
	}
	return fn(ctx, repo, td)
}
