// Package ddl defines a small, backend-agnostic model for the store's tables
// and renders it into dialect-specific, idempotent CREATE statements.
//
// Backends (internal/storage/sqlite, mysql, mssql, postgres) supply a Dialect
// with their identifier quoting and type mapping; the table layout itself is
// shared (see StoreTables) so every backend persists the same shape.
package ddl

import (
	"fmt"
	"strings"
)

// Dialect captures the differences between SQL engines that matter for the
// store DDL.
type Dialect struct {
	// Name is used in error messages only.
	Name string

	// Quote quotes a single identifier.
	Quote func(id string) string

	// MapType maps a logical Kind to a SQL column type.
	MapType func(kind string) string

	// GuardTable wraps a CREATE TABLE body so it is a no-op when the table
	// exists. The default emits CREATE TABLE IF NOT EXISTS.
	GuardTable func(table, stmt string) string

	// GuardIndex does the same for CREATE INDEX. When InlineIndexes is set it
	// is never called.
	GuardIndex func(table, index, stmt string) string

	// InlineIndexes renders secondary indexes inside CREATE TABLE (MySQL).
	InlineIndexes bool
}

// BuildCreateTableSQL renders the statements that create t and its indexes.
//
// Rules:
//
//   - t.Name must be non-empty; each column needs a Name and a Kind the
//     dialect knows.
//
//   - A column is rendered as
//
//     <quoted name> <mapped type> [NOT NULL]
//
//   - Columns with PrimaryKey == true are collected into a trailing
//     PRIMARY KEY (...) clause.
//
// The first returned statement creates the table; one statement per index
// follows unless the dialect inlines them.
func BuildCreateTableSQL(d Dialect, t TableDef) ([]string, error) {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return nil, fmt.Errorf("%s ddl: table name must not be empty", d.Name)
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("%s ddl: at least one column is required", d.Name)
	}

	cols := make([]string, 0, len(t.Columns)+len(t.Indexes)+1)
	pks := make([]string, 0, 1)

	for _, c := range t.Columns {
		cname := strings.TrimSpace(c.Name)
		if cname == "" {
			return nil, fmt.Errorf("%s ddl: column with empty name in table %s", d.Name, name)
		}
		typ := d.MapType(c.Kind)
		if typ == "" {
			return nil, fmt.Errorf("%s ddl: column %s has unknown kind %q", d.Name, cname, c.Kind)
		}

		var sb strings.Builder
		sb.WriteString(d.Quote(cname))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable && c.Kind != KindID {
			sb.WriteString(" NOT NULL")
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, d.Quote(cname))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}
	if d.InlineIndexes {
		for _, ix := range t.Indexes {
			cols = append(cols, fmt.Sprintf("INDEX %s (%s)", d.Quote(ix.Name), quoteAll(d, ix.Columns)))
		}
	}

	body := fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", d.Quote(name), strings.Join(cols, ",\n  "))
	stmts := []string{guardTable(d, name, body)}

	if !d.InlineIndexes {
		for _, ix := range t.Indexes {
			stmt := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", d.Quote(ix.Name), d.Quote(name), quoteAll(d, ix.Columns))
			stmts = append(stmts, guardIndex(d, name, ix.Name, stmt))
		}
	}
	return stmts, nil
}

// BuildAll renders StoreTables for d in creation order.
func BuildAll(d Dialect) ([]string, error) {
	var out []string
	for _, t := range StoreTables() {
		stmts, err := BuildCreateTableSQL(d, t)
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}
	return out, nil
}

func guardTable(d Dialect, table, stmt string) string {
	if d.GuardTable != nil {
		return d.GuardTable(table, stmt)
	}
	return strings.Replace(stmt, "CREATE TABLE ", "CREATE TABLE IF NOT EXISTS ", 1)
}

func guardIndex(d Dialect, table, index, stmt string) string {
	if d.GuardIndex != nil {
		return d.GuardIndex(table, index, stmt)
	}
	return strings.Replace(stmt, "CREATE INDEX ", "CREATE INDEX IF NOT EXISTS ", 1)
}

func quoteAll(d Dialect, ids []string) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = d.Quote(id)
	}
	return strings.Join(out, ", ")
}

// QuoteDouble is the ANSI identifier quoting used by SQLite and Postgres.
func QuoteDouble(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
