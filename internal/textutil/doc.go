// Package textutil normalizes tag text so that dictionary keys, archive
// metadata and ComicInfo documents compare equal regardless of Unicode
// composition or stray whitespace.
//
// Normalization applies NFC composition, trims surrounding whitespace and
// collapses internal runs of whitespace to a single space. Case is preserved;
// tag dictionaries are case-sensitive.
package textutil
