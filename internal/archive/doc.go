// Package archive detects and normalizes the internal layout of ZIP/CBZ
// archives and atomically replaces their reserved metadata entries.
//
// Every mutation writes a complete new archive into a temporary file beside
// the original and then swaps it in: original to backup, temporary to
// original, backup removed. A reader therefore always sees either the old
// archive or the new one. Failures before the swap discard the temporary file
// and leave the original untouched; a failed swap restores the backup.
//
// Payload entries are copied raw, so their compressed bytes are preserved
// exactly. Only metadata.json and ComicInfo.xml have meaning to this package.
package archive
