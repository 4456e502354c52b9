package catalog

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// RenderDataType applies the width/precision rendering rules of §4.2
// to a catalog-reported (typeName, maxLength, precision, scale).
// maxLength follows sys.columns semantics: byte length, -1 for MAX.
func RenderDataType(typeName string, maxLength int, precision, scale int) string {
	t := strings.ToLower(typeName)
	switch t {
	case "varchar", "char", "varbinary", "binary":
		if maxLength == -1 {
			return fmt.Sprintf("%s(MAX)", t)
		}
		return fmt.Sprintf("%s(%d)", t, maxLength)
	case "nvarchar", "nchar":
		if maxLength == -1 {
			return fmt.Sprintf("%s(MAX)", t)
		}
		return fmt.Sprintf("%s(%d)", t, maxLength/2)
	case "decimal", "numeric":
		return fmt.Sprintf("%s(%d, %d)", t, precision, scale)
	case "datetime2", "time", "datetimeoffset":
		if scale > 0 {
			return fmt.Sprintf("%s(%d)", t, scale)
		}
		return t
	default:
		return t
	}
}

// systemGenerated reports whether name looks like a SQL Server
// auto-generated constraint name (PK__, UQ__, FK__, CK__ followed by
// a hex suffix), which must be rewritten to a deterministic form.
func systemGenerated(name, prefix string) bool {
	return strings.HasPrefix(name, prefix+"__")
}

// NormalizePKName returns name unchanged unless it is
// system-generated, in which case it returns PK_<table>.
func NormalizePKName(name, table string) string {
	if systemGenerated(name, "PK") {
		return "PK_" + table
	}
	return name
}

// NormalizeUQName returns name unchanged unless it is
// system-generated, in which case it returns
// UQ_<table>_<col1>_<col2>....
func NormalizeUQName(name, table string, columns []string) string {
	if systemGenerated(name, "UQ") {
		return "UQ_" + table + "_" + strings.Join(columns, "_")
	}
	return name
}

// NormalizeFKName returns name unchanged unless it is
// system-generated, in which case it returns
// FK_<table>_<referencedTable>.
func NormalizeFKName(name, table, referencedTable string) string {
	if systemGenerated(name, "FK") {
		return "FK_" + table + "_" + referencedTable
	}
	return name
}

// NormalizeCKName returns name unchanged unless it is
// system-generated, in which case it returns
// CK_<table>_<hash10000(definition)>.
func NormalizeCKName(name, table, definition string) string {
	if systemGenerated(name, "CK") {
		return fmt.Sprintf("CK_%s_%d", table, hash10000(definition))
	}
	return name
}

// hash10000 deterministically maps definition into [0, 10000), giving
// a short, stable disambiguator for anonymous check constraints.
func hash10000(definition string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(definition))
	return h.Sum32() % 10000
}

// nonIndexableTypes are excluded from extracted index key columns per
// the Indexability rule (§4.3): *VARCHAR(MAX), VARBINARY(MAX), TEXT,
// NTEXT, IMAGE, XML, GEOGRAPHY, GEOMETRY.
var nonIndexableTypes = map[string]bool{
	"text": true, "ntext": true, "image": true,
	"xml": true, "geography": true, "geometry": true,
}

// IsIndexableColumnType reports whether a column of the given
// rendered type may participate in an extracted index. MAX-length
// character/binary types are excluded by checking for the "(MAX)"
// suffix; the fixed large-object types are excluded by name.
func IsIndexableColumnType(renderedType string) bool {
	lower := strings.ToLower(renderedType)
	if strings.HasSuffix(lower, "(max)") {
		return false
	}
	base := lower
	if i := strings.Index(base, "("); i >= 0 {
		base = base[:i]
	}
	return !nonIndexableTypes[base]
}
