package tasks

import (
	"fmt"
	"sort"

	"mangameta/internal/logging"
)

// UpdateFileStatus applies a status transition for filename and persists the task.
func (s *Store) UpdateFileStatus(id, filename string, status Status, errMsg string) error {
	return s.SetFileResult(id, filename, status, "", errMsg)
}

// SetFileResult applies a status transition together with a failure
// classification. kind and errMsg are cleared when status is not failed or
// skipped.
func (s *Store) SetFileResult(id, filename string, status Status, kind, errMsg string) error {
	if _, ok := statusSet[status]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, rec, err := s.recordLocked(id, filename)
	if err != nil {
		return err
	}
	if !canTransition(rec.Status, status) {
		return fmt.Errorf("%w: %s -> %s for %s", ErrInvalidTransition, rec.Status, status, filename)
	}

	t.Statistics.add(rec.Status, -1)
	t.Statistics.add(status, 1)
	rec.Status = status
	if status == StatusFailed || status == StatusSkipped {
		rec.Error = errMsg
		rec.ErrorKind = kind
	} else {
		rec.Error = ""
		rec.ErrorKind = ""
	}
	s.commitLocked(t, filename, rec)
	return nil
}

// UpdateTranslationStatus applies a translation sub-state transition and persists the task.
func (s *Store) UpdateTranslationStatus(id, filename string, status Status, errMsg string) error {
	if _, ok := translationStatusSet[status]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, rec, err := s.recordLocked(id, filename)
	if err != nil {
		return err
	}
	if status == StatusPending && rec.TranslationStatus != StatusPending {
		return fmt.Errorf("%w: translation %s -> %s for %s", ErrInvalidTransition, rec.TranslationStatus, status, filename)
	}

	t.Statistics.addTranslation(rec.TranslationStatus, -1)
	t.Statistics.addTranslation(status, 1)
	rec.TranslationStatus = status
	if status == StatusFailed {
		rec.TranslationError = errMsg
	} else {
		rec.TranslationError = ""
	}
	s.commitLocked(t, filename, rec)
	return nil
}

// canTransition encodes the forward-only file state machine: pending is only
// re-entered through Retry and skipped is terminal.
func canTransition(from, to Status) bool {
	switch {
	case from == to:
		return true
	case to == StatusPending:
		return false
	case from == StatusSkipped:
		return false
	default:
		return true
	}
}

// Retry moves the records matched by selector back to pending and returns
// their filenames. Only failed records are eligible.
func (s *Store) Retry(id string, selector RetrySelector) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	now := s.now()
	var moved []string
	for name, rec := range t.Files {
		switch selector {
		case RetryFailed:
			if rec.Status != StatusFailed {
				continue
			}
			t.Statistics.add(StatusFailed, -1)
			t.Statistics.add(StatusPending, 1)
			rec.Status = StatusPending
			rec.Error = ""
			rec.ErrorKind = ""
		case RetryTranslationFailed:
			if rec.TranslationStatus != StatusFailed {
				continue
			}
			t.Statistics.addTranslation(StatusFailed, -1)
			t.Statistics.addTranslation(StatusPending, 1)
			rec.TranslationStatus = StatusPending
			rec.TranslationError = ""
		default:
			return nil, fmt.Errorf("unknown retry selector %d", selector)
		}
		rec.UpdatedAt = now
		t.Files[name] = rec
		moved = append(moved, name)
	}
	sort.Strings(moved)

	if len(moved) > 0 {
		t.UpdatedAt = now
		s.persistLocked(t)
		s.logger.Info("files reset for retry",
			logging.String(logging.FieldEventType, "task_retry"),
			logging.String(logging.FieldTaskID, id),
			logging.String("selector", selector.String()),
			logging.Int("file_count", len(moved)))
	}
	return moved, nil
}

// RenameFile moves the record for oldName to newName. renameFn performs the
// matching filesystem rename and runs under the store lock; when it fails the
// record is left untouched so the key never diverges from the file on disk.
func (s *Store) RenameFile(id, oldName, newName string, renameFn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, rec, err := s.recordLocked(id, oldName)
	if err != nil {
		return err
	}
	if oldName == newName {
		return nil
	}
	if _, exists := t.Files[newName]; exists {
		return fmt.Errorf("%w: %s", ErrFileExists, newName)
	}
	if renameFn != nil {
		if err := renameFn(); err != nil {
			return fmt.Errorf("rename %s: %w", oldName, err)
		}
	}

	delete(t.Files, oldName)
	s.commitLocked(t, newName, rec)
	s.logger.Debug("file record renamed",
		logging.String(logging.FieldTaskID, id),
		logging.String("from", oldName),
		logging.String("to", newName))
	return nil
}

func (s *Store) recordLocked(id, filename string) (*Task, FileRecord, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, FileRecord{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	rec, ok := t.Files[filename]
	if !ok {
		return nil, FileRecord{}, fmt.Errorf("%w: %s", ErrFileNotFound, filename)
	}
	return t, rec, nil
}

func (s *Store) commitLocked(t *Task, filename string, rec FileRecord) {
	now := s.now()
	rec.UpdatedAt = now
	t.Files[filename] = rec
	t.UpdatedAt = now
	s.persistLocked(t)
}
