package mssql

import (
	"context"

	"recordpipe/internal/storage"
)

// openRepository is swapped in tests.
var openRepository = Open

var _ storage.Repository = (*Repository)(nil)

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return openRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table, Columns: cfg.Columns})
	})
	storage.RegisterDDL("mssql", EnsureTable)
}
