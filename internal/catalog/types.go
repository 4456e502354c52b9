package catalog

import "strings"

// Column is a catalog-derived column description shared by the full
// object extraction path (§4.2) and the Table Diff Planner's live
// read (§4.3).
type Column struct {
	Name         string // original catalog case
	RenderedType string // per RenderDataType
	Nullable     bool
	IsIdentity   bool
	IdentitySeed int64
	IdentityIncr int64
	HasDefault   bool
	DefaultExpr  string
	DefaultName  string // constraint name backing the default, if any
}

// PrimaryKey is the live or parsed primary key of a table.
type PrimaryKey struct {
	Name      string
	Clustered bool
	Columns   []string
}

// CheckConstraint is a live or parsed CHECK constraint.
type CheckConstraint struct {
	Name       string
	Expression string
	Columns    []string // best-effort columns referenced, for drop-dependency detection
}

// ForeignKey is a live foreign-key constraint.
type ForeignKey struct {
	Name              string
	Columns           []string
	ReferencedSchema  string
	ReferencedTable   string
	ReferencedColumns []string
}

// UniqueConstraint is a live UNIQUE constraint (not the primary key).
type UniqueConstraint struct {
	Name    string
	Columns []string
}

// Index is a non-constraint index, or a unique/PK-backing index when
// the caller needs its DDL form.
type Index struct {
	Name        string
	Unique      bool
	Columns     []string
	FilterExpr  string // non-empty for filtered indexes
	OnClause    string // "[schema].[table]"
}

// LiveTable is the full live structure of a table, as read from the
// system catalog, used both for full extraction (§4.2) and for diffing
// against a parsed file (§4.3).
type LiveTable struct {
	Schema      string
	Name        string
	Columns     []Column
	PrimaryKey  *PrimaryKey
	Uniques     []UniqueConstraint
	ForeignKeys []ForeignKey
	Checks      []CheckConstraint
	Indexes     []Index // non-constraint indexes only, indexable types only
}

// ColumnByName looks up a live column case-insensitively.
func (lt *LiveTable) ColumnByName(name string) (Column, bool) {
	for _, c := range lt.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}
