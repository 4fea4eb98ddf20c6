package canon

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English, cases.NoLower)

// NormalizeKey canonicalizes a raw topic string into the unique lookup key:
// lower-cased, trimmed, inner whitespace collapsed to single spaces.
func NormalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	if lowered == "" {
		return ""
	}
	return strings.Join(strings.Fields(lowered), " ")
}

// TitleFor derives a display title from a raw topic string. The raw casing
// wins when the user typed anything beyond lowercase; otherwise the key is
// title-cased for presentation.
func TitleFor(raw string) string {
	trimmed := strings.Join(strings.Fields(strings.TrimSpace(raw)), " ")
	if trimmed == "" {
		return ""
	}
	if trimmed != strings.ToLower(trimmed) {
		return trimmed
	}
	return titleCaser.String(trimmed)
}
