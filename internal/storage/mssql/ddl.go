package mssql

import (
	"context"
	"fmt"
	"strings"

	"recordpipe/internal/ddl"
	"recordpipe/internal/storage"
)

// TextType is the column type used for auto-created tables.
const TextType = "NVARCHAR(MAX)"

// BuildCreateTableSQL returns a T-SQL script that creates the table if it
// does not already exist. T-SQL has no CREATE TABLE IF NOT EXISTS, so the
// statement is guarded by OBJECT_ID:
//
//	IF OBJECT_ID(N'[dbo].[t]', N'U') IS NULL
//	BEGIN
//	  CREATE TABLE [dbo].[t] (
//	    [col] NVARCHAR(MAX)
//	  );
//	END;
func BuildCreateTableSQL(t ddl.TableDef) (string, error) {
	cols, err := ddl.ColumnClauses(ddl.WithDefaultType(t, TextType), msIdent)
	if err != nil {
		return "", fmt.Errorf("mssql %w", err)
	}
	fqn := ddl.QuoteFQN(t.FQN, msIdent)
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n  CREATE TABLE %s (\n    %s\n  );\nEND;",
		strings.ReplaceAll(fqn, "'", "''"),
		fqn,
		strings.Join(cols, ",\n    "),
	), nil
}

// EnsureTable creates the target table if it does not already exist.
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
