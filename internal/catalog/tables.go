package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/dbascode/dbsync/internal/dsyncerr"
	"github.com/dbascode/dbsync/internal/objects"
)

// listTables extracts full CREATE TABLE scripts plus their
// non-constraint indexes, per §4.2's table rendering rules.
func (r *Reader) listTables(ctx context.Context) ([]objects.Object, error) {
	const q = `
SELECT o.object_id, s.name, o.name
FROM sys.objects o
JOIN sys.schemas s ON s.schema_id = o.schema_id
WHERE o.type = 'U' AND o.is_ms_shipped = 0
ORDER BY s.name, o.name`

	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "listing tables")
	}
	type tblRow struct {
		objectID     int
		schema, name string
	}
	var tbls []tblRow
	for rows.Next() {
		var t tblRow
		if err := rows.Scan(&t.objectID, &t.schema, &t.name); err != nil {
			rows.Close()
			return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "scanning table row")
		}
		tbls = append(tbls, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []objects.Object
	for _, t := range tbls {
		lt, err := r.ReadLiveTable(ctx, t.objectID, t.schema, t.name)
		if err != nil {
			return nil, err
		}
		def := RenderCreateTable(lt)
		out = append(out, objects.Object{
			Schema:     strings.ToLower(t.schema),
			Name:       strings.ToLower(t.name),
			Type:       objects.TypeTable,
			Definition: objects.Str(def),
		})
	}
	return out, nil
}

// ReadLiveTable reads the full live structure of one table: columns,
// primary key, unique/foreign-key/check constraints, and indexable
// non-constraint indexes. It is shared by full extraction (§4.2) and
// the Table Diff Planner's live read (§4.3).
func (r *Reader) ReadLiveTable(ctx context.Context, objectID int, schema, name string) (*LiveTable, error) {
	cols, err := r.readColumns(ctx, objectID)
	if err != nil {
		return nil, err
	}
	// readColumns has already attached each column's default
	// constraint name: DEFAULT clause emission only needs the
	// expression, while the Table Diff Planner drops the named default
	// before dropping its column.
	lt := &LiveTable{Schema: schema, Name: name, Columns: cols}

	pk, err := r.readPrimaryKey(ctx, objectID)
	if err != nil {
		return nil, err
	}
	lt.PrimaryKey = pk

	uniques, err := r.readUniques(ctx, objectID, name)
	if err != nil {
		return nil, err
	}
	lt.Uniques = uniques

	fks, err := r.readForeignKeys(ctx, objectID, name)
	if err != nil {
		return nil, err
	}
	lt.ForeignKeys = fks

	checks, err := r.readChecks(ctx, objectID, name)
	if err != nil {
		return nil, err
	}
	lt.Checks = checks

	indexes, err := r.readIndexes(ctx, objectID, schema, name, cols)
	if err != nil {
		return nil, err
	}
	lt.Indexes = indexes

	return lt, nil
}

func (r *Reader) readPrimaryKey(ctx context.Context, objectID int) (*PrimaryKey, error) {
	const q = `
SELECT kc.name, i.type = 1 AS clustered, c.name AS col_name
FROM sys.key_constraints kc
JOIN sys.indexes i ON i.object_id = kc.parent_object_id AND i.index_id = kc.unique_index_id
JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
WHERE kc.parent_object_id = @p1 AND kc.type = 'PK'
ORDER BY ic.key_ordinal`

	rows, err := r.DB.QueryContext(ctx, q, objectID)
	if err != nil {
		return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "reading primary key for object %d", objectID)
	}
	defer rows.Close()

	var pk *PrimaryKey
	for rows.Next() {
		var name, col string
		var clustered bool
		if err := rows.Scan(&name, &clustered, &col); err != nil {
			return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "scanning primary key row")
		}
		if pk == nil {
			pk = &PrimaryKey{Name: name, Clustered: clustered}
		}
		pk.Columns = append(pk.Columns, col)
	}
	return pk, rows.Err()
}

func (r *Reader) readUniques(ctx context.Context, objectID int, table string) ([]UniqueConstraint, error) {
	const q = `
SELECT kc.name, c.name AS col_name
FROM sys.key_constraints kc
JOIN sys.indexes i ON i.object_id = kc.parent_object_id AND i.index_id = kc.unique_index_id
JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
WHERE kc.parent_object_id = @p1 AND kc.type = 'UQ'
ORDER BY kc.name, ic.key_ordinal`

	rows, err := r.DB.QueryContext(ctx, q, objectID)
	if err != nil {
		return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "reading unique constraints for object %d", objectID)
	}
	defer rows.Close()

	byName := map[string]*UniqueConstraint{}
	var order []string
	for rows.Next() {
		var name, col string
		if err := rows.Scan(&name, &col); err != nil {
			return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "scanning unique constraint row")
		}
		u, ok := byName[name]
		if !ok {
			u = &UniqueConstraint{Name: name}
			byName[name] = u
			order = append(order, name)
		}
		u.Columns = append(u.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var out []UniqueConstraint
	for _, n := range order {
		u := *byName[n]
		u.Name = NormalizeUQName(u.Name, table, u.Columns)
		out = append(out, u)
	}
	return out, nil
}

func (r *Reader) readForeignKeys(ctx context.Context, objectID int, table string) ([]ForeignKey, error) {
	const q = `
SELECT fk.name, c.name AS col_name, rs.name AS ref_schema, rt.name AS ref_table, rc.name AS ref_col
FROM sys.foreign_keys fk
JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
JOIN sys.columns c ON c.object_id = fkc.parent_object_id AND c.column_id = fkc.parent_column_id
JOIN sys.columns rc ON rc.object_id = fkc.referenced_object_id AND rc.column_id = fkc.referenced_column_id
JOIN sys.tables rt ON rt.object_id = fk.referenced_object_id
JOIN sys.schemas rs ON rs.schema_id = rt.schema_id
WHERE fk.parent_object_id = @p1
ORDER BY fk.name, fkc.constraint_column_id`

	rows, err := r.DB.QueryContext(ctx, q, objectID)
	if err != nil {
		return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "reading foreign keys for object %d", objectID)
	}
	defer rows.Close()

	byName := map[string]*ForeignKey{}
	var order []string
	for rows.Next() {
		var name, col, refSchema, refTable, refCol string
		if err := rows.Scan(&name, &col, &refSchema, &refTable, &refCol); err != nil {
			return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "scanning foreign key row")
		}
		fk, ok := byName[name]
		if !ok {
			fk = &ForeignKey{Name: name, ReferencedSchema: refSchema, ReferencedTable: refTable}
			byName[name] = fk
			order = append(order, name)
		}
		fk.Columns = append(fk.Columns, col)
		fk.ReferencedColumns = append(fk.ReferencedColumns, refCol)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var out []ForeignKey
	for _, n := range order {
		fk := *byName[n]
		fk.Name = NormalizeFKName(fk.Name, table, fk.ReferencedTable)
		out = append(out, fk)
	}
	return out, nil
}

func (r *Reader) readChecks(ctx context.Context, objectID int, table string) ([]CheckConstraint, error) {
	const q = `
SELECT cc.name, cc.definition, COL_NAME(cc.parent_object_id, cc.parent_column_id)
FROM sys.check_constraints cc
WHERE cc.parent_object_id = @p1
ORDER BY cc.name`

	rows, err := r.DB.QueryContext(ctx, q, objectID)
	if err != nil {
		return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "reading check constraints for object %d", objectID)
	}
	defer rows.Close()

	var out []CheckConstraint
	for rows.Next() {
		var name, def string
		var col sql.NullString
		if err := rows.Scan(&name, &def, &col); err != nil {
			return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "scanning check constraint row")
		}
		def = unwrapDefaultParens(def)
		normalized := NormalizeCKName(name, table, def)
		cc := CheckConstraint{Name: normalized, Expression: def}
		if col.Valid {
			cc.Columns = []string{col.String}
		} else {
			cc.Columns = referencedColumns(def)
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

// readIndexes reads non-constraint indexes, excluding any whose key
// columns use a non-indexable type per the Indexability rule.
func (r *Reader) readIndexes(ctx context.Context, objectID int, schema, table string, cols []Column) ([]Index, error) {
	const q = `
SELECT i.index_id, i.name, i.is_unique, i.filter_definition, c.name AS col_name
FROM sys.indexes i
JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
WHERE i.object_id = @p1 AND i.is_primary_key = 0 AND i.is_unique_constraint = 0 AND i.type > 0
ORDER BY i.index_id, ic.key_ordinal`

	rows, err := r.DB.QueryContext(ctx, q, objectID)
	if err != nil {
		return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "reading indexes for object %d", objectID)
	}
	defer rows.Close()

	typeByCol := map[string]string{}
	for _, c := range cols {
		typeByCol[c.Name] = c.RenderedType
	}

	byID := map[int]*Index{}
	var order []int
	skip := map[int]bool{}
	for rows.Next() {
		var id int
		var name string
		var unique bool
		var filter sql.NullString
		var col string
		if err := rows.Scan(&id, &name, &unique, &filter, &col); err != nil {
			return nil, dsyncerr.Wrap(dsyncerr.KindDBIO, err, "scanning index row")
		}
		idx, ok := byID[id]
		if !ok {
			idx = &Index{Name: name, Unique: unique, OnClause: fmt.Sprintf("[%s].[%s]", schema, table)}
			if filter.Valid {
				idx.FilterExpr = filter.String
			}
			byID[id] = idx
			order = append(order, id)
		}
		idx.Columns = append(idx.Columns, col)
		if t, ok := typeByCol[col]; ok && !IsIndexableColumnType(t) {
			skip[id] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var out []Index
	for _, id := range order {
		if skip[id] {
			continue
		}
		out = append(out, *byID[id])
	}
	return out, nil
}

var checkIdentRe = regexp.MustCompile(`\[([^\]]+)\]`)

// referencedColumns is a best-effort scan for bracketed identifiers in
// a check-constraint expression, used when the catalog does not
// attribute the constraint to a single column (multi-column checks).
// Every bracketed name is returned; callers match them against column
// names.
func referencedColumns(expr string) []string {
	var out []string
	for _, m := range checkIdentRe.FindAllStringSubmatch(expr, -1) {
		out = append(out, m[1])
	}
	return out
}
