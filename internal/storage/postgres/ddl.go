package postgres

import (
	"context"
	"fmt"
	"strings"

	"recordpipe/internal/ddl"
	"recordpipe/internal/storage"
)

// TextType is the column type used for auto-created tables.
const TextType = "TEXT"

// BuildCreateTableSQL renders a CREATE TABLE IF NOT EXISTS statement with
// double-quoted identifiers.
func BuildCreateTableSQL(t ddl.TableDef) (string, error) {
	cols, err := ddl.ColumnClauses(ddl.WithDefaultType(t, TextType), pgIdent)
	if err != nil {
		return "", fmt.Errorf("postgres %w", err)
	}
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		ddl.QuoteFQN(t.FQN, pgIdent),
		strings.Join(cols, ",\n  "),
	), nil
}

// EnsureTable creates the target table if it does not exist.
func EnsureTable(ctx context.Context, repo storage.Repository, td ddl.TableDef) error {
	sql, err := BuildCreateTableSQL(td)
	if err != nil {
		return err
	}
	if err := repo.Exec(ctx, sql); err != nil {
		return fmt.Errorf("apply DDL: %w", err)
	}
	return nil
}
