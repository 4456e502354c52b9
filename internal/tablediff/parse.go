package tablediff

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	lineComment    = regexp.MustCompile(`--[^\n]*`)
	createTableRe  = regexp.MustCompile(`(?is)create\s+table\s+\[?(\w+)\]?\.\[?(\w+)\]?\s*\(`)
	constraintKwRe = regexp.MustCompile(`(?i)^\s*constraint\b`)
	bracketNameRe  = regexp.MustCompile(`^\[(\w+)\]`)
	typeTokenRe    = regexp.MustCompile(`(?i)^(\w+)\s*(\([^)]*\))?`)
	identityRe     = regexp.MustCompile(`(?i)identity\s*\(\s*(-?\d+)\s*,\s*(-?\d+)\s*\)`)
	notNullRe      = regexp.MustCompile(`(?i)\bnot\s+null\b`)
	nullRe         = regexp.MustCompile(`(?i)\bnull\b`)
	defaultRe      = regexp.MustCompile(`(?is)\bdefault\s+(.+)$`)
	pkRe           = regexp.MustCompile(`(?is)(?:constraint\s+\[?(\w+)\]?\s+)?primary\s+key\s*(clustered|nonclustered)?\s*\(([^)]*)\)`)
	checkRe        = regexp.MustCompile(`(?is)constraint\s+\[?(\w+)\]?\s+check\s*\((.*?)\)\s*(?:,|\)\s*;|\)\s*$)`)
	createIndexRe  = regexp.MustCompile(`(?is)create\s+(unique\s+)?index\s+\[?(\w+)\]?\s+on\s+(\[?\w+\]?\.\[?\w+\]?)\s*\(([^)]*)\)(\s+where\s+[^;]+)?;?`)
	trailingNullRe = regexp.MustCompile(`(?i)\s+(not\s+)?null\s*$`)
)

// ParseTableDef parses a stored CREATE TABLE script into a
// ParsedTable, per the column-block isolation and top-level-comma
// splitting rules of §4.3.
func ParseTableDef(def string) (*ParsedTable, error) {
	stripped := lineComment.ReplaceAllString(def, "")

	m := createTableRe.FindStringSubmatchIndex(stripped)
	if m == nil {
		return &ParsedTable{}, nil
	}
	schema := stripped[m[2]:m[3]]
	name := stripped[m[4]:m[5]]
	openParenPos := m[1] - 1 // index of the '(' the regex matched

	body, closeParenPos := extractColumnBlock(stripped, openParenPos)

	pt := &ParsedTable{Schema: strings.ToLower(schema), Name: strings.ToLower(name)}

	fields := splitTopLevel(body)
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if constraintKwRe.MatchString(f) {
			continue // constraints are parsed from the whole clause list below
		}
		col, ok := parseColumn(f)
		if ok {
			pt.Columns = append(pt.Columns, col)
		}
	}

	// The constraint clause list sits between the column block and the
	// matching close-paren of the CREATE TABLE statement. The text
	// searched below runs up to and including that close-paren, which
	// checkRe uses to find the end of the last clause.
	constraintsEnd := closeParenPos
	if constraintsEnd < len(stripped) {
		constraintsEnd++
	}
	constraintsText := stripped[:constraintsEnd]
	if pkm := pkRe.FindStringSubmatch(constraintsText); pkm != nil {
		cols := splitTopLevel(pkm[3])
		var colNames []string
		for _, c := range cols {
			colNames = append(colNames, unbracket(strings.TrimSpace(c)))
		}
		pt.PrimaryKey = &ParsedPrimaryKey{
			Name:      pkm[1],
			Clustered: !strings.EqualFold(pkm[2], "nonclustered"),
			Columns:   colNames,
		}
	}
	for _, cm := range checkRe.FindAllStringSubmatch(constraintsText, -1) {
		pt.Checks = append(pt.Checks, ParsedCheck{Name: cm[1], Expression: strings.TrimSpace(cm[2])})
	}

	for _, im := range createIndexRe.FindAllStringSubmatch(def, -1) {
		pt.Indexes = append(pt.Indexes, ParsedIndex{
			Name:      im[2],
			OnClause:  im[3],
			Statement: strings.TrimSpace(im[0]),
		})
	}

	return pt, nil
}

// extractColumnBlock isolates the text between the first unmatched
// '(' (at openParenPos) and either the first top-level CONSTRAINT
// keyword or the matching ')'. It returns the column-block text and
// the absolute index of the statement's matching close paren.
func extractColumnBlock(s string, openParenPos int) (string, int) {
	depth := 0
	i := openParenPos
	start := openParenPos + 1
	constraintCut := -1
	for ; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				goto done
			}
		}
		if depth == 1 && constraintCut == -1 {
			// look ahead for a top-level CONSTRAINT keyword at this position
			rest := s[i:]
			if loc := constraintKwRe.FindStringIndex(strings.TrimLeft(rest, " \t\r\n")); loc != nil && loc[0] == 0 {
				constraintCut = i
			}
		}
	}
done:
	end := i
	if constraintCut != -1 && constraintCut < end {
		return s[start:constraintCut], end
	}
	return s[start:end], end
}

// splitTopLevel splits s on commas that are not nested inside
// parentheses, so DECIMAL(10,2) is not split.
func splitTopLevel(s string) []string {
	var out []string
	depth := 0
	last := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[last:i])
				last = i + 1
			}
		}
	}
	out = append(out, s[last:])
	return out
}

func unbracket(s string) string {
	s = strings.TrimSpace(s)
	return strings.Trim(s, "[]")
}

func parseColumn(field string) (ParsedColumn, bool) {
	field = strings.TrimSpace(field)
	nameMatch := bracketNameRe.FindStringSubmatch(field)
	if nameMatch == nil {
		return ParsedColumn{}, false
	}
	name := nameMatch[1]
	rest := strings.TrimSpace(field[len(nameMatch[0]):])

	typeMatch := typeTokenRe.FindStringSubmatch(rest)
	if typeMatch == nil {
		return ParsedColumn{}, false
	}
	renderedType := strings.ToLower(typeMatch[1])
	if typeMatch[2] != "" {
		renderedType += normalizeTypeArgs(typeMatch[2])
	}
	tail := rest[len(typeMatch[0]):]

	col := ParsedColumn{Name: name, RenderedType: renderedType, Nullable: true}

	if im := identityRe.FindStringSubmatch(tail); im != nil {
		col.IsIdentity = true
		col.IdentitySeed, _ = strconv.ParseInt(im[1], 10, 64)
		col.IdentityIncr, _ = strconv.ParseInt(im[2], 10, 64)
	}

	switch {
	case notNullRe.MatchString(tail):
		col.Nullable = false
	case nullRe.MatchString(tail):
		col.Nullable = true
	}

	if dm := defaultRe.FindStringSubmatch(tail); dm != nil {
		col.HasDefault = true
		col.DefaultExpr = strings.TrimSpace(trimTrailingNullKeyword(dm[1]))
	}

	return col, true
}

// normalizeTypeArgs tightens "( 10 , 2 )" to "(10, 2)" and renders a
// max length as "(MAX)".
func normalizeTypeArgs(args string) string {
	inner := strings.Trim(strings.TrimSpace(args), "()")
	parts := splitTopLevel(inner)
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	if strings.EqualFold(strings.TrimSpace(inner), "max") {
		return "(MAX)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// trimTrailingNullKeyword removes a trailing " NULL"/" NOT NULL" that
// a loosely-written DEFAULT clause sometimes carries after the
// expression (DEFAULT's own grammar has no such trailer, but files
// copy-pasted from generated scripts occasionally do).
func trimTrailingNullKeyword(s string) string {
	return trailingNullRe.ReplaceAllString(s, "")
}
