package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"mangameta/internal/archive"
	"mangameta/internal/comicinfo"
	"mangameta/internal/logging"
	"mangameta/internal/services"
	"mangameta/internal/tasks"
	"mangameta/internal/textutil"
)

// maxReportedTags bounds the missing tags listed in a translation error.
const maxReportedTags = 5

// TranslateFile runs only the translation phase for a file whose metadata
// was injected by an earlier run.
func (p *Pipeline) TranslateFile(ctx context.Context, task tasks.Task, filename string) Outcome {
	start := time.Now()
	ctx = services.WithFile(services.WithTaskID(ctx, task.ID), filename)
	logger := logging.WithContext(ctx, p.logger)
	out := Outcome{File: filename}

	if ctx.Err() != nil {
		out.Deferred = true
		out.TranslationStatus = tasks.StatusPending
		return out
	}

	path := filepath.Join(task.FolderPath, filename)
	err := p.translateArchive(services.WithStage(context.WithoutCancel(ctx), "translate"), path)
	if p.cfg.Processing.DryRun {
		out.Deferred = true
		out.Err = err
		return out
	}

	out.Err = err
	out.TranslationStatus = tasks.StatusSuccess
	errMsg := ""
	if err != nil {
		out.TranslationStatus = tasks.StatusFailed
		errMsg = err.Error()
	}
	if storeErr := p.store.UpdateTranslationStatus(task.ID, filename, out.TranslationStatus, errMsg); storeErr != nil {
		logging.ErrorWithContext(logger, "failed to record translation status", "translation_status_update_failed",
			logging.Error(storeErr))
	}

	// A file that failed only because of translation becomes a success.
	if err == nil {
		if current, getErr := p.store.Get(task.ID); getErr == nil {
			rec := current.Files[filename]
			if rec.Status == tasks.StatusFailed && rec.ErrorKind == tasks.KindTranslation {
				if storeErr := p.store.SetFileResult(task.ID, filename, tasks.StatusSuccess, "", ""); storeErr != nil {
					logging.ErrorWithContext(logger, "failed to record file status", "file_status_update_failed",
						logging.Error(storeErr))
				}
			}
		}
	} else if storeErr := p.store.SetFileResult(task.ID, filename, tasks.StatusFailed, tasks.KindTranslation, errMsg); storeErr != nil {
		logging.ErrorWithContext(logger, "failed to record file status", "file_status_update_failed",
			logging.Error(storeErr))
	}

	if err != nil {
		logging.WarnWithContext(logger, "translation failed", "translation_failed",
			logging.Error(err),
			logging.Duration("elapsed", elapsedSince(start)),
			logging.String(logging.FieldErrorHint, failureHint(tasks.KindTranslation)),
			logging.String(logging.FieldImpact, "tags left untranslated"))
	} else {
		logger.Info("file translated",
			logging.String(logging.FieldEventType, "translation_success"),
			logging.Duration("elapsed", elapsedSince(start)))
	}
	return out
}

// translateArchive translates the tags in both reserved entries of path and
// rewrites them together. Nothing is written unless every tag translates.
func (p *Pipeline) translateArchive(ctx context.Context, path string) error {
	logger := logging.WithContext(ctx, p.logger)
	entries, err := p.reservedEntries(path)
	if err != nil {
		return services.Wrap(services.ErrPartialTranslation, "translate", "read entries", filepath.Base(path), err)
	}
	metaJSON, hasMeta := entries[archive.MetadataEntry]
	summaryXML, hasSummary := entries[archive.SummaryEntry]
	if !hasMeta && !hasSummary {
		return services.Wrap(services.ErrPartialTranslation, "translate", "read entries", "no metadata entries in archive", nil)
	}

	var (
		missing []string
		updates = make(map[string][]byte, 2)
	)

	if hasMeta {
		translated, miss, changed, err := p.translateMetadataJSON(metaJSON)
		if err != nil {
			return services.Wrap(services.ErrPartialTranslation, "translate", "decode metadata.json", filepath.Base(path), err)
		}
		missing = append(missing, miss...)
		if changed {
			updates[archive.MetadataEntry] = translated
		}
	}
	if hasSummary {
		if tags, ok := comicinfo.Tags(summaryXML); ok {
			translated, miss := p.translateTags(tags)
			missing = append(missing, miss...)
			if !slices.Equal(tags, translated) {
				updates[archive.SummaryEntry] = comicinfo.WithTags(summaryXML, translated)
			}
		}
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		missing = slices.Compact(missing)
		return services.Wrap(services.ErrPartialTranslation, "translate", "lookup", describeMissing(missing), nil)
	}
	if len(updates) == 0 {
		logger.Debug("tags already translated", logging.String(logging.FieldEventType, "translation_noop"))
		return nil
	}
	if p.cfg.Processing.DryRun {
		logger.Info("dry run: would rewrite translated entries",
			logging.String(logging.FieldEventType, "dry_run_translation"),
			logging.Int("entries", len(updates)))
		return nil
	}

	if err := p.rewriter.ReplaceEntries(path, updates); err != nil {
		return err
	}
	for name, data := range updates {
		p.cache.Put(path, name, data)
	}
	return nil
}

// reservedEntries returns metadata.json and ComicInfo.xml, from the cache
// when possible. Entries read from the archive are cached.
func (p *Pipeline) reservedEntries(path string) (map[string][]byte, error) {
	out := make(map[string][]byte, 2)
	var toRead []string
	for _, name := range []string{archive.MetadataEntry, archive.SummaryEntry} {
		if data, ok := p.cache.Get(path, name); ok {
			out[name] = data
			continue
		}
		toRead = append(toRead, name)
	}
	if len(toRead) == 0 {
		return out, nil
	}
	read, err := p.rewriter.ReadEntries(path, toRead...)
	if err != nil {
		return nil, err
	}
	for name, data := range read {
		p.cache.Put(path, name, data)
		out[name] = data
	}
	return out, nil
}

// translateMetadataJSON translates the "tags" field, which is either a list
// or a comma separated string. Other fields are carried over unchanged.
func (p *Pipeline) translateMetadataJSON(data []byte) ([]byte, []string, bool, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, false, err
	}
	raw, ok := doc["tags"]
	if !ok {
		return data, nil, false, nil
	}

	var (
		asList   []string
		asString string
		encoded  any
		missing  []string
		changed  bool
	)
	switch {
	case json.Unmarshal(raw, &asList) == nil:
		translated, miss := p.translateTags(asList)
		missing = miss
		changed = !slices.Equal(asList, translated)
		encoded = translated
	case json.Unmarshal(raw, &asString) == nil:
		tags := textutil.SplitList(asString)
		translated, miss := p.translateTags(tags)
		missing = miss
		changed = !slices.Equal(tags, translated)
		encoded = textutil.JoinList(translated)
	default:
		return nil, nil, false, fmt.Errorf("tags field is neither a list nor a string")
	}
	if len(missing) > 0 || !changed {
		return data, missing, false, nil
	}

	value, err := marshalCompact(encoded)
	if err != nil {
		return nil, nil, false, err
	}
	doc["tags"] = value
	out, err := marshalCompact(doc)
	if err != nil {
		return nil, nil, false, err
	}
	return out, nil, true, nil
}

// translateTags returns the translated list and the tags without a translation.
func (p *Pipeline) translateTags(tags []string) ([]string, []string) {
	translated := make([]string, 0, len(tags))
	var missing []string
	for _, tag := range tags {
		if p.translator.IsTranslated(tag) {
			translated = append(translated, textutil.NormalizeTag(tag))
			continue
		}
		text, found := p.translator.Translate(tag)
		if !found {
			missing = append(missing, textutil.NormalizeTag(tag))
		}
		translated = append(translated, text)
	}
	return translated, missing
}

func describeMissing(missing []string) string {
	shown := missing
	if len(shown) > maxReportedTags {
		shown = shown[:maxReportedTags]
	}
	msg := fmt.Sprintf("%d untranslated tag(s): %s", len(missing), strings.Join(shown, ", "))
	if len(missing) > len(shown) {
		msg += ", ..."
	}
	return msg
}

func marshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
