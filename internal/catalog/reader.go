// Package catalog implements the Catalog Reader: it extracts
// canonical, reproducible DDL text for every managed object class from
// a live SQL Server database's system catalog.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/denisenkom/go-mssqldb"

	"github.com/dbascode/dbsync/internal/dsyncerr"
	"github.com/dbascode/dbsync/internal/objects"
)

// moduleTypeCodes maps sys.objects.type codes to managed object types
// for the module classes (procedures, functions, views, triggers).
var moduleTypeCodes = map[string]objects.Type{
	"P":  objects.TypeProcedure,
	"FN": objects.TypeFunction,
	"IF": objects.TypeFunction,
	"TF": objects.TypeFunction,
	"FS": objects.TypeFunction,
	"FT": objects.TypeFunction,
	"V":  objects.TypeView,
	"TR": objects.TypeTrigger,
}

// Reader extracts Objects from a bound database connection.
type Reader struct {
	DB            *sql.DB
	DefaultSchema string
}

// New wraps an open *sql.DB already bound to the target database.
func New(db *sql.DB, defaultSchema string) *Reader {
	return &Reader{DB: db, DefaultSchema: defaultSchema}
}

// ListObjects enumerates all non-system objects across the nine
// managed types, ordered by schema, type, name within module objects
// and by schema, name for the rest, per §4.2.
func (r *Reader) ListObjects(ctx context.Context) ([]objects.Object, error) {
	var all []objects.Object

	modules, err := r.listModules(ctx)
	if err != nil {
		return nil, err
	}
	all = append(all, modules...)

	tables, err := r.listTables(ctx)
	if err != nil {
		return nil, err
	}
	all = append(all, tables...)

	tableTypes, err := r.listTableTypes(ctx)
	if err != nil {
		return nil, err
	}
	all = append(all, tableTypes...)

	scalarTypes, err := r.listScalarTypes(ctx)
	if err != nil {
		return nil, err
	}
	all = append(all, scalarTypes...)

	sequences, err := r.listSequences(ctx)
	if err != nil {
		return nil, err
	}
	all = append(all, sequences...)

	synonyms, err := r.listSynonyms(ctx)
	if err != nil {
		return nil, err
	}
	all = append(all, synonyms...)

	return all, nil
}

// listModules extracts procedures, functions, views, and triggers:
// stored module text prefixed with the SET ANSI_NULLS/QUOTED_IDENTIFIER
// header matching the module's stored flags, with a trailing GO.
func (r *Reader) listModules(ctx context.Context) ([]objects.Object, error) {
	const q = `
SELECT
	s.name AS schema_name,
	o.name AS obj_name,
	o.type AS obj_type,
	m.definition AS def,
	m.uses_ansi_nulls AS ansi_nulls,
	m.uses_quoted_identifier AS quoted_ident
FROM sys.objects o
JOIN sys.schemas s ON s.schema_id = o.schema_id
JOIN sys.sql_modules m ON m.object_id = o.object_id
WHERE o.is_ms_shipped = 0
  AND o.type IN ('P','FN','IF','TF','FS','FT','V','TR')
ORDER BY s.name, o.type, o.name`

	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "listing modules")
	}
	defer rows.Close()

	var out []objects.Object
	for rows.Next() {
		var schema, name, typeCode, def string
		var ansiNulls, quotedIdent bool
		if err := rows.Scan(&schema, &name, &typeCode, &def, &ansiNulls, &quotedIdent); err != nil {
			return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "scanning module row")
		}
		t, ok := moduleTypeCodes[typeCode]
		if !ok {
			continue
		}
		def = buildModuleDefinition(def, ansiNulls, quotedIdent)
		out = append(out, objects.Object{
			Schema:     strings.ToLower(schema),
			Name:       strings.ToLower(name),
			Type:       t,
			Definition: objects.Str(def),
		})
	}
	return out, rows.Err()
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

func buildModuleDefinition(body string, ansiNulls, quotedIdent bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SET ANSI_NULLS %s\nGO\nSET QUOTED_IDENTIFIER %s\nGO\n", onOff(ansiNulls), onOff(quotedIdent))
	sb.WriteString(strings.TrimRight(body, "\n"))
	sb.WriteString("\nGO\n")
	return sb.String()
}

// listSynonyms extracts CREATE SYNONYM definitions.
func (r *Reader) listSynonyms(ctx context.Context) ([]objects.Object, error) {
	const q = `
SELECT s.name, sy.name, sy.base_object_name
FROM sys.synonyms sy
JOIN sys.schemas s ON s.schema_id = sy.schema_id
ORDER BY s.name, sy.name`

	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "listing synonyms")
	}
	defer rows.Close()

	var out []objects.Object
	for rows.Next() {
		var schema, name, base string
		if err := rows.Scan(&schema, &name, &base); err != nil {
			return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "scanning synonym row")
		}
		def := fmt.Sprintf("CREATE SYNONYM [%s].[%s] FOR %s;\nGO\n", schema, name, base)
		out = append(out, objects.Object{
			Schema:     strings.ToLower(schema),
			Name:       strings.ToLower(name),
			Type:       objects.TypeSynonym,
			Definition: objects.Str(def),
		})
	}
	return out, rows.Err()
}

// listSequences extracts full CREATE SEQUENCE definitions.
func (r *Reader) listSequences(ctx context.Context) ([]objects.Object, error) {
	const q = `
SELECT
	s.name, sq.name, t.name AS type_name,
	sq.start_value, sq.increment, sq.minimum_value, sq.maximum_value,
	sq.is_cycling, sq.cache_size, sq.is_cached
FROM sys.sequences sq
JOIN sys.schemas s ON s.schema_id = sq.schema_id
JOIN sys.types t ON t.user_type_id = sq.user_type_id
ORDER BY s.name, sq.name`

	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "listing sequences")
	}
	defer rows.Close()

	var out []objects.Object
	for rows.Next() {
		var schema, name, typeName string
		var start, incr, minV, maxV int64
		var cycling, cached bool
		var cacheSize sql.NullInt64
		if err := rows.Scan(&schema, &name, &typeName, &start, &incr, &minV, &maxV, &cycling, &cacheSize, &cached); err != nil {
			return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "scanning sequence row")
		}
		cycle := "NO CYCLE"
		if cycling {
			cycle = "CYCLE"
		}
		cacheClause := "NO CACHE"
		if cached {
			if cacheSize.Valid && cacheSize.Int64 > 0 {
				cacheClause = fmt.Sprintf("CACHE %d", cacheSize.Int64)
			} else {
				cacheClause = "CACHE"
			}
		}
		def := fmt.Sprintf(
			"CREATE SEQUENCE [%s].[%s] AS %s START WITH %d INCREMENT BY %d MINVALUE %d MAXVALUE %d %s %s;\nGO\n",
			schema, name, typeName, start, incr, minV, maxV, cycle, cacheClause,
		)
		out = append(out, objects.Object{
			Schema:     strings.ToLower(schema),
			Name:       strings.ToLower(name),
			Type:       objects.TypeSequence,
			Definition: objects.Str(def),
		})
	}
	return out, rows.Err()
}

// listScalarTypes extracts CREATE TYPE ... FROM definitions.
func (r *Reader) listScalarTypes(ctx context.Context) ([]objects.Object, error) {
	const q = `
SELECT s.name, t.name, bt.name AS base_type, t.max_length, t.precision, t.scale, t.is_nullable
FROM sys.types t
JOIN sys.schemas s ON s.schema_id = t.schema_id
JOIN sys.types bt ON bt.user_type_id = t.system_type_id AND bt.is_user_defined = 0
WHERE t.is_user_defined = 1 AND t.is_table_type = 0
ORDER BY s.name, t.name`

	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "listing scalar types")
	}
	defer rows.Close()

	var out []objects.Object
	for rows.Next() {
		var schema, name, baseType string
		var maxLen, precision, scale int
		var nullable bool
		if err := rows.Scan(&schema, &name, &baseType, &maxLen, &precision, &scale, &nullable); err != nil {
			return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "scanning scalar type row")
		}
		rendered := RenderDataType(baseType, maxLen, precision, scale)
		nullClause := ""
		if !nullable {
			nullClause = " NOT NULL"
		}
		def := fmt.Sprintf("CREATE TYPE [%s].[%s]\n  FROM %s%s;\nGO\n", schema, name, rendered, nullClause)
		out = append(out, objects.Object{
			Schema:     strings.ToLower(schema),
			Name:       strings.ToLower(name),
			Type:       objects.TypeScalarType,
			Definition: objects.Str(def),
		})
	}
	return out, rows.Err()
}

// listTableTypes extracts CREATE TYPE ... AS TABLE definitions.
func (r *Reader) listTableTypes(ctx context.Context) ([]objects.Object, error) {
	const q = `
SELECT s.name, tt.name, tt.type_table_id
FROM sys.table_types tt
JOIN sys.schemas s ON s.schema_id = tt.schema_id
ORDER BY s.name, tt.name`

	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "listing table types")
	}
	defer rows.Close()

	type ttRow struct {
		schema, name string
		tableID      int
	}
	var ttRows []ttRow
	for rows.Next() {
		var row ttRow
		if err := rows.Scan(&row.schema, &row.name, &row.tableID); err != nil {
			rows.Close()
			return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "scanning table type row")
		}
		ttRows = append(ttRows, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []objects.Object
	for _, row := range ttRows {
		cols, err := r.readColumns(ctx, row.tableID)
		if err != nil {
			return nil, err
		}
		var lines []string
		for _, c := range cols {
			lines = append(lines, renderColumnLine(c, false))
		}
		def := fmt.Sprintf("CREATE TYPE [%s].[%s] AS TABLE (\n  %s\n);\nGO\n", row.schema, row.name, strings.Join(lines, ",\n  "))
		out = append(out, objects.Object{
			Schema:     strings.ToLower(row.schema),
			Name:       strings.ToLower(row.name),
			Type:       objects.TypeTableType,
			Definition: objects.Str(def),
		})
	}
	return out, nil
}

// renderColumnLine renders one column per §4.2's table/table-type
// column rendering rules. includeDefault controls whether a DEFAULT
// clause is emitted (tables carry it; table types never do).
func renderColumnLine(c Column, includeDefault bool) string {
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
	if includeDefault && c.HasDefault {
		fmt.Fprintf(&sb, " DEFAULT %s", c.DefaultExpr)
	}
	return sb.String()
}

// readColumns reads columns for an object_id in ordinal position
// order, shared by table-type and table extraction.
func (r *Reader) readColumns(ctx context.Context, objectID int) ([]Column, error) {
	const q = `
SELECT
	c.name, t.name AS type_name, c.max_length, c.precision, c.scale,
	c.is_nullable, c.is_identity,
	ISNULL(ic.seed_value, 0), ISNULL(ic.increment_value, 0),
	dc.definition, dc.name
FROM sys.columns c
JOIN sys.types t ON t.user_type_id = c.user_type_id
LEFT JOIN sys.identity_columns ic ON ic.object_id = c.object_id AND ic.column_id = c.column_id
LEFT JOIN sys.default_constraints dc ON dc.parent_object_id = c.object_id AND dc.parent_column_id = c.column_id
WHERE c.object_id = @p1
ORDER BY c.column_id`

	rows, err := r.DB.QueryContext(ctx, q, objectID)
	if err != nil {
		return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "reading columns for object %d", objectID)
	}
	defer rows.Close()

	var out []Column
	for rows.Next() {
		var name, typeName string
		var maxLen, precision, scale int
		var nullable, identity bool
		var seed, incr int64
		var defExpr, defName sql.NullString
		if err := rows.Scan(&name, &typeName, &maxLen, &precision, &scale, &nullable, &identity, &seed, &incr, &defExpr, &defName); err != nil {
			return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "scanning column row")
		}
		col := Column{
			Name:         name,
			RenderedType: RenderDataType(typeName, maxLen, precision, scale),
			Nullable:     nullable,
			IsIdentity:   identity,
			IdentitySeed: seed,
			IdentityIncr: incr,
		}
		if defExpr.Valid {
			col.HasDefault = true
			col.DefaultExpr = unwrapDefaultParens(defExpr.String)
			col.DefaultName = defName.String
		}
		out = append(out, col)
	}
	return out, rows.Err()
}

// unwrapDefaultParens peels outer parentheses off the "(( ))" wrapper
// SQL Server adds around literal default expressions, for as long as
// the text starts with "((" and ends with "))": "((0))" becomes "(0)".
// The remaining layer is kept, and the normalizer has no rule that
// removes parentheses.
func unwrapDefaultParens(expr string) string {
	for strings.HasPrefix(expr, "((") && strings.HasSuffix(expr, "))") {
		inner := expr[1 : len(expr)-1]
		if balancedParens(inner) {
			expr = inner
			continue
		}
		break
	}
	return expr
}

func balancedParens(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth < 0 {
			return false
		}
	}
	return depth == 0
}
