// Package ignorefile implements the Ignore Matcher: a small glob-list
// filter over repository-relative paths, parsed from plain text with
// "#" comments and blank lines skipped.
package ignorefile

import (
	"bufio"
	"io"
	"os"
	"path"
	"strings"
)

// Matcher filters repository paths against a set of glob patterns.
type Matcher struct {
	patterns []string
}

// DefaultPatterns seeds a Matcher with a handful of common noise
// patterns so a fresh checkout has sane defaults before any
// .syncignore file exists.
var DefaultPatterns = []string{
	"**/*.tmp.sql",
}

// New builds a Matcher from an explicit pattern list.
func New(patterns []string) *Matcher {
	cp := make([]string, len(patterns))
	copy(cp, patterns)
	return &Matcher{patterns: cp}
}

// Load reads patterns from a .syncignore file at path, seeded with
// DefaultPatterns. A missing file yields a Matcher carrying just the
// defaults, not an error.
func Load(filePath string) (*Matcher, error) {
	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return New(DefaultPatterns), nil
		}
		return nil, err
	}
	defer f.Close()
	m, err := LoadFrom(f)
	if err != nil {
		return nil, err
	}
	m.patterns = append(append([]string{}, DefaultPatterns...), m.patterns...)
	return m, nil
}

// LoadFrom parses .syncignore content from an arbitrary reader, so
// callers can load it from an embedded resource as well as a file.
func LoadFrom(r io.Reader) (*Matcher, error) {
	var patterns []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return New(patterns), nil
}

// ShouldProcess reports whether p should be processed, i.e. no
// configured pattern matches it.
func (m *Matcher) ShouldProcess(p string) bool {
	p = strings.TrimPrefix(filepathToSlash(p), "/")
	for _, pat := range m.patterns {
		if matchGlob(pat, p) {
			return false
		}
	}
	return true
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// matchGlob implements */**/? glob semantics over forward-slash paths.
// "**" matches any number of path segments (including zero); "*"
// matches within a single segment; "?" matches one non-separator rune.
func matchGlob(pattern, name string) bool {
	pSegs := strings.Split(pattern, "/")
	nSegs := strings.Split(name, "/")
	return matchSegments(pSegs, nSegs)
}

func matchSegments(pSegs, nSegs []string) bool {
	if len(pSegs) == 0 {
		return len(nSegs) == 0
	}
	head := pSegs[0]
	if head == "**" {
		if matchSegments(pSegs[1:], nSegs) {
			return true
		}
		if len(nSegs) == 0 {
			return false
		}
		return matchSegments(pSegs, nSegs[1:])
	}
	if len(nSegs) == 0 {
		return false
	}
	ok, err := path.Match(head, nSegs[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pSegs[1:], nSegs[1:])
}
