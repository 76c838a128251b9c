// Package ddl defines a small, backend-agnostic model for CREATE TABLE
// statements. Dialect packages supply identifier quoting and the statement
// wrapper; this package renders the column clauses they share.
package ddl

import (
	"fmt"
	"strings"
)

// ColumnDef describes a single column. Name is unquoted; quoting happens at
// render time. Default is emitted as raw SQL.
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the dotted table name (e.g. "schema.table") and its columns
// in order.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// TextTable returns a definition where every column is nullable and has no
// SQLType, leaving the dialect to supply its text type via WithDefaultType.
// Loaded files carry raw values, so no conversion is attempted.
func TextTable(fqn string, columns []string) TableDef {
	t := TableDef{FQN: fqn, Columns: make([]ColumnDef, len(columns))}
	for i, c := range columns {
		t.Columns[i] = ColumnDef{Name: c, Nullable: true}
	}
	return t
}

// WithDefaultType returns a copy of t with empty SQLTypes set to typ.
func WithDefaultType(t TableDef, typ string) TableDef {
	out := TableDef{FQN: t.FQN, Columns: append([]ColumnDef(nil), t.Columns...)}
	for i := range out.Columns {
		if out.Columns[i].SQLType == "" {
			out.Columns[i].SQLType = typ
		}
	}
	return out
}

// ColumnClauses renders "<col> TYPE [NOT NULL] [DEFAULT expr]" for every
// column plus a trailing PRIMARY KEY clause when any column is a key. Primary
// key columns are always NOT NULL.
func ColumnClauses(t TableDef, quote func(string) string) ([]string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return nil, fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	var pks []string
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return nil, fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable || c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, quote(name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}
	return cols, nil
}

// QuoteFQN quotes each dotted segment of fqn with quote, skipping empty
// segments: "public.users" -> "public"."users".
func QuoteFQN(fqn string, quote func(string) string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, quote(p))
	}
	return strings.Join(out, ".")
}
