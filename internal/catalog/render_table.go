package catalog

import (
	"fmt"
	"strings"
)

// RenderCreateTable builds the canonical
// "CREATE TABLE ( cols, constraints ); GO <indexes> GO..." text of
// §4.2: constraints are emitted in order primary key, uniques,
// foreign keys, check constraints; non-constraint indexes follow as
// separate CREATE [UNIQUE] INDEX statements.
func RenderCreateTable(lt *LiveTable) string {
	var body []string
	for _, c := range lt.Columns {
		body = append(body, renderColumnLine(c, true))
	}
	if lt.PrimaryKey != nil && len(lt.PrimaryKey.Columns) > 0 {
		cols := bracketJoin(lt.PrimaryKey.Columns)
		clustered := "NONCLUSTERED"
		if lt.PrimaryKey.Clustered {
			clustered = "CLUSTERED"
		}
		body = append(body, fmt.Sprintf("CONSTRAINT [%s] PRIMARY KEY %s (%s)", lt.PrimaryKey.Name, clustered, cols))
	}
	for _, u := range lt.Uniques {
		body = append(body, fmt.Sprintf("CONSTRAINT [%s] UNIQUE (%s)", u.Name, bracketJoin(u.Columns)))
	}
	for _, fk := range lt.ForeignKeys {
		body = append(body, fmt.Sprintf(
			"CONSTRAINT [%s] FOREIGN KEY (%s) REFERENCES [%s].[%s] (%s)",
			fk.Name, bracketJoin(fk.Columns), fk.ReferencedSchema, fk.ReferencedTable, bracketJoin(fk.ReferencedColumns),
		))
	}
	for _, ck := range lt.Checks {
		body = append(body, fmt.Sprintf("CONSTRAINT [%s] CHECK (%s)", ck.Name, ck.Expression))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE [%s].[%s] (\n  %s\n);\nGO\n", lt.Schema, lt.Name, strings.Join(body, ",\n  "))

	for _, idx := range lt.Indexes {
		sb.WriteString(renderCreateIndex(idx))
		sb.WriteString("GO\n")
	}
	return sb.String()
}

func renderCreateIndex(idx Index) string {
	kw := "INDEX"
	if idx.Unique {
		kw = "UNIQUE INDEX"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE %s [%s] ON %s (%s)", kw, idx.Name, idx.OnClause, bracketJoin(idx.Columns))
	if idx.FilterExpr != "" {
		fmt.Fprintf(&sb, " WHERE %s", idx.FilterExpr)
	}
	sb.WriteString(";\n")
	return sb.String()
}

func bracketJoin(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = "[" + c + "]"
	}
	return strings.Join(out, ", ")
}
