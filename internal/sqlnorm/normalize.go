// Package sqlnorm produces a canonical, whitespace- and
// quoting-insensitive textual form of a SQL module and decides
// equivalence between two such forms. It is deliberately a small,
// purely textual library rather than a real SQL parser: every rule
// here absorbs one specific way the SQL Server scripter varies its
// output across environments, and nothing more.
package sqlnorm

import (
	"regexp"
	"strings"
	"sync"
)

// DefaultSchema is the schema name stripped from object references
// when it matches the database's configured default (normally "dbo").
const DefaultSchema = "dbo"

var (
	lineComment  = regexp.MustCompile(`--[^\n]*`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespace   = regexp.MustCompile(`\s+`)
	bracketIdent = regexp.MustCompile(`\[(\w+)\]`)
	goBoundary   = regexp.MustCompile(`\bgo\b`)
	orAlter      = regexp.MustCompile(`\bcreate\s+or\s+alter\b`)

	objTypes = []string{"procedure", "function", "view", "trigger"}

	cacheMu sync.Mutex
	cache   = map[string]*string{}
)

// Normalize reduces sql to its canonical form. A nil input returns
// nil; normalization never otherwise fails.
func Normalize(sql *string) *string {
	return normalizeWithSchema(sql, DefaultSchema)
}

// NormalizeWithSchema is Normalize parameterized by the configured
// default schema, for databases that don't use "dbo".
func NormalizeWithSchema(sql *string, defaultSchema string) *string {
	return normalizeWithSchema(sql, defaultSchema)
}

func normalizeWithSchema(sql *string, defaultSchema string) *string {
	if sql == nil {
		return nil
	}
	key := defaultSchema + "\x00" + *sql
	cacheMu.Lock()
	if v, ok := cache[key]; ok {
		cacheMu.Unlock()
		return v
	}
	cacheMu.Unlock()

	s := *sql

	// 1. Comment stripping. Block comments first so a "--" inside an
	// open /* */ never starts a line comment.
	s = blockComment.ReplaceAllString(s, " ")
	s = lineComment.ReplaceAllString(s, " ")

	// 2. Case fold.
	s = strings.ToLower(s)

	// 3. Whitespace collapse.
	s = whitespace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	// 4. Statement-terminator elision.
	s = strings.ReplaceAll(s, ";", "")

	// 5. Identifier unquoting.
	s = bracketIdent.ReplaceAllString(s, "$1")

	// 6. Batch selection: split on word-bounded "go", keep the first
	// batch containing "create".
	s = selectCreateBatch(s)

	// 7. create or alter -> create.
	s = orAlter.ReplaceAllString(s, "create")

	// 8. Default-schema stripping.
	s = stripDefaultSchema(s, defaultSchema)

	cacheMu.Lock()
	cache[key] = &s
	cacheMu.Unlock()
	return &s
}

func selectCreateBatch(s string) string {
	batches := goBoundary.Split(s, -1)
	for _, b := range batches {
		trimmed := strings.TrimSpace(b)
		if strings.Contains(trimmed, "create") {
			return trimmed
		}
	}
	return ""
}

func stripDefaultSchema(s, defaultSchema string) string {
	if defaultSchema == "" {
		return s
	}
	for _, obj := range objTypes {
		pat := regexp.MustCompile(`\b(create|alter)\s+` + obj + `\s+` + regexp.QuoteMeta(defaultSchema) + `\.`)
		s = pat.ReplaceAllString(s, "$1 "+obj+" ")
	}
	remaining := regexp.MustCompile(`\b` + regexp.QuoteMeta(defaultSchema) + `\.`)
	s = remaining.ReplaceAllString(s, "")
	return s
}

// Equivalent reports whether a and b normalize to the same canonical
// string. Two nils are equivalent; one nil and one non-nil are not.
func Equivalent(a, b *string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == nil || nb == nil {
		return na == nb
	}
	return *na == *nb
}

// EquivalentWithSchema is Equivalent parameterized by default schema.
func EquivalentWithSchema(a, b *string, defaultSchema string) bool {
	na, nb := NormalizeWithSchema(a, defaultSchema), NormalizeWithSchema(b, defaultSchema)
	if na == nil || nb == nil {
		return na == nb
	}
	return *na == *nb
}
