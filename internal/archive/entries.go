package archive

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/klauspost/compress/zip"

	"mangameta/internal/services"
	"mangameta/internal/throttle"
)

// ReplaceEntries rewrites path so that each name in entries holds the given
// bytes. Existing entries with those names are dropped and the new ones are
// appended after the retained entries in sorted name order.
func (r *Rewriter) ReplaceEntries(path string, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	if err := r.replace(path, entries, nil); err != nil {
		return services.Wrap(services.ErrRewrite, "rewrite", "replace entries", path, err)
	}
	return nil
}

// InjectMetadata writes metadata.json and, when summary is non-nil,
// ComicInfo.xml. Both reserved names are always removed from the old content
// so a stale summary never survives an injection without one.
func (r *Rewriter) InjectMetadata(path string, metadata, summary []byte) error {
	entries := map[string][]byte{MetadataEntry: metadata}
	if summary != nil {
		entries[SummaryEntry] = summary
	}
	drop := map[string]struct{}{MetadataEntry: {}, SummaryEntry: {}}
	if err := r.replace(path, entries, drop); err != nil {
		return services.Wrap(services.ErrRewrite, "inject", "write metadata", path, err)
	}
	return nil
}

// AppendEntry adds a single entry. When the name is absent the existing
// entries are carried over without inspection; otherwise it falls back to
// ReplaceEntries.
func (r *Rewriter) AppendEntry(path, name string, data []byte) error {
	_, found, err := ReadEntry(path, name)
	if err != nil {
		return services.Wrap(services.ErrRewrite, "rewrite", "append entry", path, err)
	}
	if found {
		return r.ReplaceEntries(path, map[string][]byte{name: data})
	}

	err = r.rewrite(path, func(zw *zip.Writer) error {
		rc, err := zip.OpenReader(path)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer rc.Close()
		for _, f := range rc.File {
			if err := copyRaw(zw, f, f.Name); err != nil {
				return err
			}
		}
		return writeEntry(zw, name, data)
	})
	if err != nil {
		return services.Wrap(services.ErrRewrite, "rewrite", "append entry", path, err)
	}
	return nil
}

func (r *Rewriter) replace(path string, entries map[string][]byte, drop map[string]struct{}) error {
	return r.rewrite(path, func(zw *zip.Writer) error {
		rc, err := zip.OpenReader(path)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer rc.Close()

		for _, f := range rc.File {
			if _, replaced := entries[f.Name]; replaced {
				continue
			}
			if _, dropped := drop[f.Name]; dropped {
				continue
			}
			if err := copyRaw(zw, f, f.Name); err != nil {
				return err
			}
		}
		for _, name := range slices.Sorted(maps.Keys(entries)) {
			if err := writeEntry(zw, name, entries[name]); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadEntry returns the decompressed content of name. found is false when
// the archive has no such entry.
func ReadEntry(path, name string) ([]byte, bool, error) {
	got, err := ReadEntries(path, name)
	if err != nil {
		return nil, false, err
	}
	data, ok := got[name]
	return data, ok, nil
}

// ReadEntries returns the content of every requested name present in the
// archive. Missing names are absent from the result.
func ReadEntries(path string, names ...string) (map[string][]byte, error) {
	return readEntries(path, nil, names)
}

// ReadEntries reads like the package function, with entry reads paced by
// the rewriter's throttle.
func (r *Rewriter) ReadEntries(path string, names ...string) (map[string][]byte, error) {
	return readEntries(path, r.throttle, names)
}

func readEntries(path string, limiter *throttle.Throttle, names []string) (map[string][]byte, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer rc.Close()

	want := make(map[string]struct{}, len(names))
	for _, name := range names {
		want[name] = struct{}{}
	}
	out := make(map[string][]byte, len(names))
	for _, f := range rc.File {
		if _, ok := want[f.Name]; !ok {
			continue
		}
		data, err := readFile(f, limiter)
		if err != nil {
			return nil, err
		}
		out[f.Name] = data
	}
	return out, nil
}

func readFile(f *zip.File, limiter *throttle.Throttle) ([]byte, error) {
	src, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer src.Close()
	data, err := io.ReadAll(limiter.Reader(src))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read entry %s: %w", f.Name, err)
	}
	return data, nil
}
