// Package glob translates simple glob patterns into path-matching predicates.
//
// Supported metacharacters: `**` matches any number of path segments, `*`
// matches within a single segment, `?` matches one character. The pattern is
// anchored at both ends. Other regex metacharacters in the pattern are NOT
// escaped, so a pattern containing `.` or `(` is interpreted with regex
// semantics. Known limitation, kept for compatibility with existing patterns.
package glob

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher is a compiled glob pattern.
type Matcher struct {
	pattern string
	re      *regexp.Regexp
}

// Compile builds a Matcher from a glob pattern.
func Compile(pattern string) (*Matcher, error) {
	expr := strings.ReplaceAll(pattern, "**", "\x00")
	expr = strings.ReplaceAll(expr, "*", "[^/]*")
	expr = strings.ReplaceAll(expr, "\x00", ".*")
	expr = strings.ReplaceAll(expr, "?", ".")

	re, err := regexp.Compile("^" + expr + "$")
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}

	return &Matcher{pattern: pattern, re: re}, nil
}

// Pattern returns the source glob pattern.
func (m *Matcher) Pattern() string {
	return m.pattern
}

// Match reports whether the path matches the compiled pattern.
func (m *Matcher) Match(path string) bool {
	return m.re.MatchString(path)
}

// Match is a one-shot convenience; an uncompilable pattern matches nothing.
func Match(pattern, path string) bool {
	m, err := Compile(pattern)
	if err != nil {
		return false
	}

	return m.Match(path)
}
