package language

import "strings"

// DefaultISO is reported when no known language appears in a list.
const DefaultISO = "en"

type entry struct {
	code2 string   // ISO 639-1 (2-letter)
	words []string // substrings matched against the lowercased list
}

// priority is the match order; the first entry with a hit wins.
var priority = []entry{
	{"zh", []string{"chinese"}},
	{"ja", []string{"japanese"}},
}

const translatedMarker = "translated"

func joined(languages []string) string {
	return strings.ToLower(strings.Join(languages, ", "))
}

// ISO returns the ISO 639-1 code for a gallery language list. Matching is by
// substring so "chinese" also matches values like "chinese (simplified)".
func ISO(languages []string) string {
	list := joined(languages)
	for _, e := range priority {
		for _, w := range e.words {
			if strings.Contains(list, w) {
				return e.code2
			}
		}
	}
	return DefaultISO
}

// Translated reports whether the list marks the gallery as a translation.
func Translated(languages []string) bool {
	return strings.Contains(joined(languages), translatedMarker)
}
