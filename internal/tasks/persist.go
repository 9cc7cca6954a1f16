package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"mangameta/internal/fileutil"
	"mangameta/internal/logging"
)

const recordExt = ".json"

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.dir, id+recordExt)
}

// loadAll reads every task record in the store directory. Unreadable records
// are skipped with a warning so one corrupt file does not hide the others.
func (s *Store) loadAll() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read task directory: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != recordExt {
			continue
		}
		t, err := s.load(filepath.Join(s.dir, name))
		if err != nil {
			logging.WarnWithContext(s.logger, "failed to load task record", "task_load_failed",
				logging.String("path", name),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect or delete the record file"),
				logging.String(logging.FieldImpact, "task is unavailable until the record is repaired"))
			continue
		}
		s.tasks[t.ID] = t
	}
	s.logger.Debug("loaded task records", logging.Int("task_count", len(s.tasks)))
	return nil
}

func (s *Store) load(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task record: %w", err)
	}
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse task record: %w", err)
	}
	if strings.TrimSpace(t.ID) == "" {
		return nil, errors.New("task record missing id")
	}
	if t.Files == nil {
		t.Files = make(map[string]FileRecord)
	}
	for name, rec := range t.Files {
		if _, ok := statusSet[rec.Status]; !ok {
			rec.Status = StatusPending
		}
		if _, ok := translationStatusSet[rec.TranslationStatus]; !ok {
			rec.TranslationStatus = StatusPending
		}
		t.Files[name] = rec
	}

	recomputed := computeStatistics(t.Files)
	if recomputed != t.Statistics {
		logging.WarnWithContext(s.logger, "task statistics out of sync", "task_statistics_repaired",
			logging.String(logging.FieldTaskID, t.ID),
			logging.Int("stored_total", t.Statistics.Total),
			logging.Int("actual_total", recomputed.Total),
			logging.String(logging.FieldErrorHint, "a previous run may have been interrupted during a write"),
			logging.String(logging.FieldImpact, "statistics recomputed from file records"))
		t.Statistics = recomputed
	}
	return &t, nil
}

func (s *Store) save(t *Task) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	return fileutil.WriteFileAtomic(s.recordPath(t.ID), data, 0o644)
}

// persistLocked writes the task and logs failures. The caller holds s.mu.
func (s *Store) persistLocked(t *Task) {
	if err := s.save(t); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			s.logger.Error("task record not writable",
				logging.String(logging.FieldTaskID, t.ID),
				logging.Error(err))
			return
		}
		logging.ErrorWithContext(s.logger, "failed to persist task record", "task_persist_failed",
			logging.String(logging.FieldTaskID, t.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions on the data directory"))
	}
}
