// Package normalize trims and canonicalizes user-supplied strings before
// they are validated or stored.
package normalize

import (
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
)

// Name trims surrounding whitespace and collapses inner runs of spaces.
// Case is preserved.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Code trims a module or term code. Codes keep their case.
func Code(s string) string {
	return strings.TrimSpace(s)
}

// Kind lowercases and trims a group kind.
func Kind(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Tag trims an expertise tag. Case is preserved for display; comparisons
// use text.Fold.
func Tag(s string) string {
	return strings.TrimSpace(s)
}

// Names normalizes a list of names, dropping blanks and case-insensitive
// duplicates. The first spelling of each name wins and order is kept.
func Names(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		n := Name(raw)
		if n == "" {
			continue
		}
		key := text.Fold(n)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Folded returns text.Fold of every name.
func Folded(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = text.Fold(n)
	}
	return out
}

// QueryParam trims a query or form value.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}

// CSV splits a comma-separated query value into trimmed, non-empty parts.
func CSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
