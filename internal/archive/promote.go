package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrTargetExists is returned by Promote when the .cbz name is already taken.
var ErrTargetExists = errors.New("promotion target already exists")

// PromotedName returns the .cbz form of a .zip filename. ok is false for
// names that are not .zip.
func PromotedName(name string) (string, bool) {
	ext := filepath.Ext(name)
	if !strings.EqualFold(ext, ".zip") {
		return name, false
	}
	return strings.TrimSuffix(name, ext) + ".cbz", true
}

// Promote renames a .zip archive to .cbz and returns the new path. Archives
// that are not .zip are returned unchanged.
func Promote(path string) (string, error) {
	target, ok := PromotedName(path)
	if !ok {
		return path, nil
	}
	if _, err := os.Lstat(target); err == nil {
		return path, fmt.Errorf("%w: %s", ErrTargetExists, target)
	} else if !errors.Is(err, os.ErrNotExist) {
		return path, fmt.Errorf("stat promotion target: %w", err)
	}
	if err := os.Rename(path, target); err != nil {
		return path, fmt.Errorf("promote archive: %w", err)
	}
	return target, nil
}
