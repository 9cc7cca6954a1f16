// Package tagdict translates metadata tags through a JSON dictionary and
// records tags the dictionary does not cover.
package tagdict

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"mangameta/internal/fileutil"
	"mangameta/internal/logging"
	"mangameta/internal/textutil"
)

// Dictionary maps source tags to translations. It is safe for concurrent use.
type Dictionary struct {
	logger  *slog.Logger
	forward map[string]string
	reverse map[string]string

	mu      sync.Mutex
	missing map[string]struct{}
}

// New builds a dictionary from an in-memory mapping.
func New(entries map[string]string, logger *slog.Logger) *Dictionary {
	d := &Dictionary{
		logger:  logging.NewComponentLogger(logger, "tagdict"),
		forward: make(map[string]string, len(entries)),
		reverse: make(map[string]string, len(entries)),
		missing: make(map[string]struct{}),
	}
	for source, target := range entries {
		source = textutil.NormalizeTag(source)
		target = textutil.NormalizeTag(target)
		if source == "" || target == "" {
			continue
		}
		d.forward[source] = target
		d.reverse[target] = source
	}
	return d
}

// Load reads a JSON object of source to translation pairs. A missing file
// yields an empty dictionary so every tag is reported untranslated.
func Load(path string, logger *slog.Logger) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		d := New(nil, logger)
		logging.WarnWithContext(d.logger, "translation dictionary not found", "tagdict_missing",
			logging.String("path", path),
			logging.String(logging.FieldErrorHint, "set translation.dictionary_path"),
			logging.String(logging.FieldImpact, "every tag will be reported untranslated"))
		return d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}

	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode dictionary %s: %w", path, err)
	}
	d := New(entries, logger)
	d.logger.Info("translation dictionary loaded",
		logging.String(logging.FieldEventType, "tagdict_loaded"),
		logging.String("path", path),
		logging.Int("entries", d.Len()))
	return d, nil
}

// Len returns the number of dictionary entries.
func (d *Dictionary) Len() int {
	return len(d.forward)
}

// IsTranslated reports whether tag is already a translation.
func (d *Dictionary) IsTranslated(tag string) bool {
	_, ok := d.reverse[textutil.NormalizeTag(tag)]
	return ok
}

// Translate returns the translation of tag. Already translated tags and empty
// tags are returned as found. Misses are recorded for SaveUntranslated.
func (d *Dictionary) Translate(tag string) (string, bool) {
	clean := textutil.NormalizeTag(tag)
	if clean == "" {
		return clean, true
	}
	if _, ok := d.reverse[clean]; ok {
		return clean, true
	}
	if target, ok := d.forward[clean]; ok {
		return target, true
	}

	d.mu.Lock()
	d.missing[clean] = struct{}{}
	d.mu.Unlock()
	d.logger.Debug("no translation for tag",
		logging.String(logging.FieldEventType, "tag_untranslated"),
		logging.String("tag", clean))
	return clean, false
}

// Untranslated returns the recorded misses in sorted order.
func (d *Dictionary) Untranslated() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.missing))
	for tag := range d.missing {
		out = append(out, tag)
	}
	slices.Sort(out)
	return out
}

type untranslatedFile struct {
	Timestamp string   `json:"timestamp"`
	Tags      []string `json:"tags"`
}

// SaveUntranslated merges the recorded misses into the JSON file at path.
// Nothing is written when there are no misses. An unreadable existing file is
// replaced.
func (d *Dictionary) SaveUntranslated(path string) (int, error) {
	tags := d.Untranslated()
	if len(tags) == 0 {
		return 0, nil
	}

	merged := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		merged[tag] = struct{}{}
	}
	if data, err := os.ReadFile(path); err == nil {
		var existing untranslatedFile
		if jsonErr := json.Unmarshal(data, &existing); jsonErr == nil {
			for _, tag := range existing.Tags {
				merged[tag] = struct{}{}
			}
		} else {
			logging.WarnWithContext(d.logger, "existing untranslated tag file unreadable", "tagdict_untranslated_corrupt",
				logging.String("path", path),
				logging.Error(jsonErr),
				logging.String(logging.FieldImpact, "file will be overwritten with this run's tags"))
		}
	}

	out := untranslatedFile{Timestamp: time.Now().Format(time.DateTime)}
	for tag := range merged {
		out.Tags = append(out.Tags, tag)
	}
	slices.Sort(out.Tags)

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encode untranslated tags: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return 0, fmt.Errorf("write untranslated tags: %w", err)
	}
	return len(out.Tags), nil
}
