// Package slug builds URL-safe slugs from free-text titles.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Make returns the slug of text: diacritics stripped, lowercased, every run of
// characters outside [a-z0-9] replaced by a single hyphen and no hyphens at
// either end. Make is idempotent.
func Make(text string) string {
	stripped := StripDiacritics(text)
	lowered := strings.ToLower(stripped)
	return strings.Trim(nonAlphanumeric.ReplaceAllString(lowered, "-"), "-")
}

// StripDiacritics decomposes text and drops combining marks ("Dvořák" -> "Dvorak").
func StripDiacritics(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return result
}
