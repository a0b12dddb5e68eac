// Package normalize applies the per-category field cleanup rules shared by
// every organization after scraping. All functions are pure and idempotent:
// normalizing an already-normalized record yields no change.
package normalize

import (
	"strings"

	"github.com/mygovdir/dirsync/internal/schema"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Malay)

// Batch normalizes every record in place-order, returning a new slice of
// new maps. Input records are not mutated.
func Batch(records []map[string]any, c schema.Category) []map[string]any {
	out := make([]map[string]any, len(records))
	for i, rec := range records {
		out[i] = Record(rec, c)
	}
	return out
}

// Record applies the category rules to one validated record: deprecated
// keys removed, whitespace collapsed, selected fields case-normalized.
// Canonical key ordering is a serialization concern handled by the content
// hasher and the sheet row renderer.
func Record(rec map[string]any, c schema.Category) map[string]any {
	cleaned := make(map[string]any, len(rec))
	for k, v := range rec {
		cleaned[k] = v
	}

	for _, key := range c.Rules.DeprecatedKeys {
		delete(cleaned, key)
	}

	for k, v := range cleaned {
		if s, ok := v.(string); ok {
			cleaned[k] = CollapseSpace(s)
		}
	}
	for _, key := range c.Rules.TitleCaseFields {
		if s, ok := cleaned[key].(string); ok {
			cleaned[key] = TitleCase(s)
		}
	}
	for _, key := range c.Rules.LowerCaseFields {
		if s, ok := cleaned[key].(string); ok {
			cleaned[key] = strings.ToLower(s)
		}
	}
	for _, key := range c.Rules.PhoneFields {
		if s, ok := cleaned[key].(string); ok {
			cleaned[key] = CleanPhone(s)
		}
	}

	return cleaned
}

// CollapseSpace trims the string and collapses internal whitespace runs
// (including NBSP, common in scraped ministry pages) to single spaces.
func CollapseSpace(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.Join(strings.Fields(s), " ")
}

// TitleCase applies Malay-locale title casing. All-caps abbreviations like
// "YB" and "ICT" are preserved, except when the whole string is uppercase:
// fully shouted values come from scrapers that uppercase everything, and
// carry no casing signal worth preserving.
func TitleCase(s string) string {
	if s == "" {
		return s
	}
	shouted := s == strings.ToUpper(s)
	words := strings.Split(s, " ")
	for i, w := range words {
		if !shouted && isAbbreviation(w) {
			continue
		}
		words[i] = titleCaser.String(strings.ToLower(w))
	}
	return strings.Join(words, " ")
}

// isAbbreviation reports whether a word should keep its original casing:
// short all-caps tokens and parenthesized ones.
func isAbbreviation(w string) bool {
	trimmed := strings.Trim(w, "()")
	if len(trimmed) == 0 || len(trimmed) > 4 {
		return false
	}
	for _, r := range trimmed {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// CleanPhone strips everything but digits, '+', '-' and spaces from a
// phone/fax value and collapses separator runs.
func CleanPhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '+', r == '-':
			b.WriteRune(r)
		case r == ' ', r == '\t':
			b.WriteRune(' ')
		}
	}
	return CollapseSpace(b.String())
}
