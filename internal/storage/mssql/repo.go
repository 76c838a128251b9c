// Package mssql loads clean files into SQL Server through the TDS bulk copy
// protocol. Every batch is copied inside its own transaction, so a rejected
// batch leaves none of its rows behind.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN     string
	Table   string
	Columns []string
}

// bulkOptions keeps NULLs for empty clean-file fields instead of letting the
// server substitute column defaults, and enforces CHECK constraints.
var bulkOptions = mssql.BulkOptions{KeepNulls: true, CheckConstraints: true}

// Repository bulk-copies clean rows into one table.
type Repository struct {
	db    *sql.DB
	table string
}

// Open validates the DSN, connects and pings the server.
func Open(ctx context.Context, cfg Config) (*Repository, error) {
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mssql open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mssql ping: %w", err)
	}
	return &Repository{db: db, table: cfg.Table}, nil
}

// CopyFrom copies rows into the table and returns the server's row count.
// nil values are sent as NULL.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	var copied int64
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(r.table, bulkOptions, columns...))
		if err != nil {
			return fmt.Errorf("prepare bulk copy into %s: %w", r.table, err)
		}
		defer stmt.Close()

		for i, row := range rows {
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				return fmt.Errorf("bulk row %d of %d: %w", i+1, len(rows), err)
			}
		}
		// An Exec without arguments flushes the buffered rows to the server.
		res, err := stmt.ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("bulk flush: %w", err)
		}
		copied, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return copied, nil
}

// inTx runs fn in a transaction, committing on success.
func (r *Repository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Exec runs one statement. Blank statements are skipped.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if strings.TrimSpace(sqlText) == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

// Close releases the connection pool.
func (r *Repository) Close() {
	if r.db != nil {
		_ = r.db.Close()
	}
}

// msIdent quotes a SQL Server identifier with brackets, doubling any ].
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }
