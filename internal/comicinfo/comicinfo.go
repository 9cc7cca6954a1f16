// Package comicinfo renders the ComicInfo.xml summary document read by comic
// library software and edits its tag list in place.
package comicinfo

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mangameta/internal/language"
	"mangameta/internal/metadata"
	"mangameta/internal/textutil"
)

const header = `<?xml version="1.0" encoding="utf-8"?>
<ComicInfo xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
`

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

var unescaper = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

// Generate renders a ComicInfo document for m.
func Generate(m *metadata.Metadata) []byte {
	var b strings.Builder
	b.WriteString(header)

	tags := textutil.JoinList(m.Tags)

	var year, month, day string
	if date, ok := parseDate(m.UploadDate); ok {
		year = strconv.Itoa(date.Year())
		month = strconv.Itoa(int(date.Month()))
		day = strconv.Itoa(date.Day())
	}

	element(&b, "Manga", "Yes")
	element(&b, "Title", m.Title)
	element(&b, "Summary", m.Subtitle)
	element(&b, "PageCount", strconv.Itoa(m.Pages))
	element(&b, "URL", m.URL)
	element(&b, "GalleryId", m.ID)
	element(&b, "Favorites", strconv.Itoa(m.Favorites))
	element(&b, "Genre", textutil.JoinList(m.Categories))
	element(&b, "BlackAndWhite", yesNo(strings.Contains(strings.ToLower(tags), "greyscale")))
	element(&b, "Year", year)
	element(&b, "Month", month)
	element(&b, "Day", day)
	element(&b, "Series", textutil.JoinList(m.Parodies))
	element(&b, "Characters", textutil.JoinList(m.Characters))
	element(&b, "Tags", tags)
	element(&b, "Writer", textutil.JoinList(m.Artists))
	element(&b, "Translated", yesNo(language.Translated(m.Languages)))
	element(&b, "LanguageISO", language.ISO(m.Languages))

	b.WriteString("</ComicInfo>")
	return []byte(b.String())
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDate reads an ISO-8601 style date. The calendar date is taken as
// written, without conversion to another zone.
func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func element(b *strings.Builder, name, value string) {
	fmt.Fprintf(b, " <%s>%s</%s>\n", name, escaper.Replace(value), name)
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

var tagsPattern = regexp.MustCompile(`(?s)<Tags>(.*?)</Tags>`)

// Tags returns the unescaped items of the document's Tags element. ok is
// false when the document has no Tags element.
func Tags(doc []byte) (tags []string, ok bool) {
	match := tagsPattern.FindSubmatch(doc)
	if match == nil {
		return nil, false
	}
	return textutil.SplitList(unescaper.Replace(string(match[1]))), true
}

// WithTags returns doc with the Tags element content replaced. Documents
// without a Tags element are returned unchanged.
func WithTags(doc []byte, tags []string) []byte {
	loc := tagsPattern.FindSubmatchIndex(doc)
	if loc == nil {
		return doc
	}
	out := make([]byte, 0, len(doc))
	out = append(out, doc[:loc[2]]...)
	out = append(out, escaper.Replace(textutil.JoinList(tags))...)
	out = append(out, doc[loc[3]:]...)
	return out
}
