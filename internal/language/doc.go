// Package language maps gallery language lists to the codes written into
// ComicInfo summaries.
package language
