package tablediff

import (
	"fmt"
	"strings"

	"github.com/dbascode/dbsync/internal/catalog"
)

// GenerateAlterScript implements the ordered, data-preserving ALTER
// plan of §4.3. storedDef is the repository's stored CREATE TABLE
// script (the desired state); live is the table as it currently
// exists in the database, or nil if the table does not exist yet.
//
// When the table does not exist, the stored definition is returned
// unchanged so the caller can CREATE it outright. When the parsed and
// live shapes already match on every attribute the planner tracks, an
// empty string is returned: there is nothing to do.
func GenerateAlterScript(storedDef string, live *catalog.LiveTable) (string, error) {
	parsed, err := ParseTableDef(storedDef)
	if err != nil {
		return "", err
	}

	if live == nil {
		return storedDef, nil
	}

	if tablesMatch(parsed, live) {
		return "", nil
	}

	var stmts []string
	ref := fmt.Sprintf("[%s].[%s]", live.Schema, live.Name)

	// 1. Drop the primary key first if its column set changed, so
	// dependent column drops/alters below are not blocked by it.
	pkChanged := primaryKeyChanged(parsed.PrimaryKey, live.PrimaryKey)
	if pkChanged && live.PrimaryKey != nil {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT [%s];", ref, live.PrimaryKey.Name))
	}

	// 2. Drop live columns absent from the parsed definition, dropping
	// their dependent check, default, and foreign-key constraints first.
	for _, lc := range live.Columns {
		if _, ok := parsed.ColumnByName(lc.Name); ok {
			continue
		}
		for _, ck := range live.Checks {
			if columnsInclude(ck.Columns, lc.Name) {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT [%s];", ref, ck.Name))
			}
		}
		for _, fk := range live.ForeignKeys {
			if columnsInclude(fk.Columns, lc.Name) {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT [%s];", ref, fk.Name))
			}
		}
		if lc.HasDefault && lc.DefaultName != "" {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT [%s];", ref, lc.DefaultName))
		}
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP COLUMN [%s];", ref, lc.Name))
	}

	// 3. Add new columns, or alter ones whose type/nullability changed.
	for _, pc := range parsed.Columns {
		lc, ok := live.ColumnByName(pc.Name)
		if !ok {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD %s;", ref, renderParsedColumn(pc)))
			continue
		}
		if pc.IsIdentity || lc.IsIdentity {
			continue // identity columns cannot be altered in place
		}
		if !strings.EqualFold(pc.RenderedType, lc.RenderedType) || pc.Nullable != lc.Nullable {
			for _, idx := range live.Indexes {
				if columnsInclude(idx.Columns, lc.Name) || filterReferencesColumn(idx.FilterExpr, lc.Name) {
					stmts = append(stmts, fmt.Sprintf("DROP INDEX IF EXISTS [%s] ON %s;", idx.Name, ref))
				}
			}
			nullability := "NOT NULL"
			if pc.Nullable {
				nullability = "NULL"
			}
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN [%s] %s %s;", ref, pc.Name, pc.RenderedType, nullability))
		}
	}

	// 4. Re-add the primary key if it changed and the new definition is
	// non-empty. Synthesize a name when the stored file left it unnamed.
	if pkChanged && parsed.PrimaryKey != nil && len(parsed.PrimaryKey.Columns) > 0 {
		name := parsed.PrimaryKey.Name
		if name == "" {
			name = fmt.Sprintf("PK_%s_%s", live.Schema, live.Name)
		}
		clustered := "NONCLUSTERED"
		if parsed.PrimaryKey.Clustered {
			clustered = "CLUSTERED"
		}
		stmts = append(stmts, fmt.Sprintf(
			"ALTER TABLE %s ADD CONSTRAINT [%s] PRIMARY KEY %s (%s);",
			ref, name, clustered, bracketJoin(parsed.PrimaryKey.Columns),
		))
	}

	// 5. Add check constraints present in the parsed file but not live.
	for _, pck := range parsed.Checks {
		if checkExists(live.Checks, pck) {
			continue
		}
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT [%s] CHECK (%s);", ref, pck.Name, pck.Expression))
	}

	// 6. Reissue indexes idempotently: drop-if-exists then recreate, in
	// file order, trailing every other change.
	for _, idx := range parsed.Indexes {
		stmts = append(stmts, fmt.Sprintf("DROP INDEX IF EXISTS [%s] ON %s;", idx.Name, ref))
		stmt := idx.Statement
		if !strings.HasSuffix(stmt, ";") {
			stmt += ";"
		}
		stmts = append(stmts, stmt)
	}

	return strings.Join(stmts, "\n"), nil
}

func tablesMatch(p *ParsedTable, lt *catalog.LiveTable) bool {
	if len(p.Columns) != len(lt.Columns) {
		return false
	}
	for _, pc := range p.Columns {
		lc, ok := lt.ColumnByName(pc.Name)
		if !ok {
			return false
		}
		if !strings.EqualFold(pc.RenderedType, lc.RenderedType) || pc.Nullable != lc.Nullable {
			return false
		}
	}
	if primaryKeyChanged(p.PrimaryKey, lt.PrimaryKey) {
		return false
	}
	if len(p.Checks) != len(lt.Checks) {
		return false
	}
	for _, pck := range p.Checks {
		if !checkExists(lt.Checks, pck) {
			return false
		}
	}
	if len(p.Indexes) != len(lt.Indexes) {
		return false
	}
	return true
}

func primaryKeyChanged(p *ParsedPrimaryKey, lt *catalog.PrimaryKey) bool {
	if p == nil && lt == nil {
		return false
	}
	if p == nil || lt == nil {
		return true
	}
	if p.Clustered != lt.Clustered {
		return true
	}
	if len(p.Columns) != len(lt.Columns) {
		return true
	}
	for i := range p.Columns {
		if !eqFold(p.Columns[i], lt.Columns[i]) {
			return true
		}
	}
	return false
}

func checkExists(live []catalog.CheckConstraint, pck ParsedCheck) bool {
	for _, lck := range live {
		if normalizeExpr(lck.Expression) == normalizeExpr(pck.Expression) {
			return true
		}
	}
	return false
}

func normalizeExpr(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func columnsInclude(cols []string, name string) bool {
	for _, c := range cols {
		if eqFold(c, name) {
			return true
		}
	}
	return false
}

// filterReferencesColumn is a naive token match of name against a
// filtered index's WHERE predicate, used to decide whether altering
// that column requires dropping the index first. It errs toward
// dropping: a false positive costs a reissue, a false negative leaves
// a stale or invalid filtered index behind.
func filterReferencesColumn(filterExpr, name string) bool {
	if filterExpr == "" {
		return false
	}
	expr := strings.ToLower(filterExpr)
	expr = strings.NewReplacer("[", " ", "]", " ", "(", " ", ")", " ").Replace(expr)
	for _, tok := range strings.Fields(expr) {
		if eqFold(tok, name) {
			return true
		}
	}
	return false
}

func renderParsedColumn(c ParsedColumn) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", c.Name, c.RenderedType)
	if c.IsIdentity {
		fmt.Fprintf(&sb, " IDENTITY(%d,%d)", c.IdentitySeed, c.IdentityIncr)
	}
	if c.Nullable {
		sb.WriteString(" NULL")
	} else {
		sb.WriteString(" NOT NULL")
	}
	if c.HasDefault {
		fmt.Fprintf(&sb, " DEFAULT %s", c.DefaultExpr)
	}
	return sb.String()
}

func bracketJoin(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = "[" + c + "]"
	}
	return strings.Join(out, ", ")
}
