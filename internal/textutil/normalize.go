package textutil

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeTag returns the canonical form of a tag or dictionary entry.
func NormalizeTag(value string) string {
	value = norm.NFC.String(value)
	return strings.Join(strings.Fields(value), " ")
}

// SplitList splits a comma-separated list into normalized, non-empty items.
// Both ASCII and full-width commas separate items.
func SplitList(value string) []string {
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == '，'
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := NormalizeTag(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// JoinList is the inverse of SplitList.
func JoinList(items []string) string {
	return strings.Join(items, ", ")
}

// SanitizeFileName replaces path separators and other characters that are
// unsafe in filenames. The result is trimmed.
func SanitizeFileName(name string) string {
	return strings.TrimSpace(fileNameReplacer.Replace(strings.TrimSpace(name)))
}

var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)
