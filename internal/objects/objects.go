// Package objects defines the shared data model the synchronization
// engine's components pass between each other: object identity, the
// catalog-agnostic Object record, and the transient FullObject used
// by the three-way resolver.
package objects

import "strings"

// Type is the closed set of object classes the engine manages.
type Type string

const (
	TypeProcedure  Type = "PROCEDURE"
	TypeFunction   Type = "FUNCTION"
	TypeView       Type = "VIEW"
	TypeTrigger    Type = "TRIGGER"
	TypeTable      Type = "TABLE"
	TypeTableType  Type = "TABLE_TYPE"
	TypeScalarType Type = "SCALAR_TYPE"
	TypeSequence   Type = "SEQUENCE"
	TypeSynonym    Type = "SYNONYM"
)

// AllTypes lists the closed set in the dependency order objects must
// be applied: types/sequences/synonyms before tables, tables before
// routines, views last (see orchestrator.SortForApply, which further
// topologically sorts within TABLE and VIEW).
var AllTypes = []Type{
	TypeScalarType,
	TypeTableType,
	TypeSequence,
	TypeSynonym,
	TypeTable,
	TypeFunction,
	TypeProcedure,
	TypeView,
	TypeTrigger,
}

// ParseType maps an uppercase path segment to a Type, failing for
// anything outside the closed set.
func ParseType(s string) (Type, bool) {
	t := Type(strings.ToUpper(s))
	switch t {
	case TypeProcedure, TypeFunction, TypeView, TypeTrigger, TypeTable,
		TypeTableType, TypeScalarType, TypeSequence, TypeSynonym:
		return t, true
	default:
		return "", false
	}
}

// Key identifies an object by the (type, schema, name) triple, all
// lowercased. It is the primary key everywhere except at the
// repository path boundary, where the Path Codec mediates.
type Key struct {
	Type   Type
	Schema string
	Name   string
}

// NewKey lowercases schema and name, matching the identity invariant.
func NewKey(t Type, schema, name string) Key {
	return Key{Type: t, Schema: strings.ToLower(schema), Name: strings.ToLower(name)}
}

func (k Key) String() string {
	return string(k.Type) + "/" + k.Schema + "/" + k.Name
}

// Object is a complete catalog record. A nil Definition denotes
// deletion.
type Object struct {
	Schema     string
	Name       string
	Type       Type
	Definition *string
}

// Key returns the object's identity triple.
func (o Object) Key() Key {
	return NewKey(o.Type, o.Schema, o.Name)
}

// IsDelete reports whether this record represents a deletion.
func (o Object) IsDelete() bool {
	return o.Definition == nil
}

// DefString returns the definition text, or "" when absent.
func (o Object) DefString() string {
	if o.Definition == nil {
		return ""
	}
	return *o.Definition
}

// Str builds a non-nil *string, the common case when constructing an
// Object from catalog or file content.
func Str(s string) *string { return &s }

// FullObject is the per-key view the Three-Way Resolver materializes:
// the live catalog definition, the base tree definition, and the
// per-database diff overlay definition, any of which may be absent.
type FullObject struct {
	Key            Key
	DBDefinition   *string
	BaseDefinition *string
	DiffDefinition *string
}
