// Package plate canonicalizes recognized plate text so that stored and
// recognized plates compare in the same equivalence class.
package plate

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	disallowed = regexp.MustCompile(`[^A-Z0-9 ]+`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Normalize uppercases text with full Unicode case mapping (so "ß" becomes
// "SS" and "ﬁ" becomes "FI"), replaces every run of characters outside
// [A-Z0-9 ] with a space, collapses whitespace and trims the ends.
func Normalize(text string) string {
	// A Caser keeps state between calls and must not be shared.
	cleaned := cases.Upper(language.Und).String(text)
	cleaned = disallowed.ReplaceAllString(cleaned, " ")
	cleaned = whitespace.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
