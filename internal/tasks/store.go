package tasks

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"mangameta/internal/logging"
)

// Store manages task persistence backed by one JSON file per task.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	tasks map[string]*Task
}

// Open loads every task record found in dir, creating the directory if needed.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("task directory must be set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create task directory: %w", err)
	}
	s := &Store{
		dir:    dir,
		logger: logging.NewComponentLogger(logger, "tasks"),
		now:    func() time.Time { return time.Now().UTC() },
		tasks:  make(map[string]*Task),
	}
	if err := s.loadAll(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the directory holding task records.
func (s *Store) Dir() string {
	return s.dir
}

// Create registers folder as a task and seeds its files from the supported
// archives found there. When the folder is already registered the existing
// task is returned and created is false.
func (s *Store) Create(folder string) (task Task, created bool, err error) {
	abs, err := filepath.Abs(strings.TrimSpace(folder))
	if err != nil {
		return Task{}, false, fmt.Errorf("resolve folder: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Task{}, false, fmt.Errorf("stat folder: %w", err)
	}
	if !info.IsDir() {
		return Task{}, false, fmt.Errorf("%s is not a directory", abs)
	}

	names, err := ScanArchives(abs)
	if err != nil {
		return Task{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.tasks {
		if existing.FolderPath == abs {
			return existing.clone(), false, nil
		}
	}

	now := s.now()
	t := &Task{
		ID:         s.nextIDLocked(abs),
		FolderPath: abs,
		CreatedAt:  now,
		UpdatedAt:  now,
		Files:      make(map[string]FileRecord, len(names)),
	}
	for _, name := range names {
		t.Files[name] = FileRecord{
			Status:            StatusPending,
			TranslationStatus: StatusPending,
			UpdatedAt:         now,
		}
	}
	t.Statistics = computeStatistics(t.Files)

	if err := s.save(t); err != nil {
		return Task{}, false, fmt.Errorf("persist task: %w", err)
	}
	s.tasks[t.ID] = t

	s.logger.Info("task created",
		logging.String(logging.FieldEventType, "task_created"),
		logging.String(logging.FieldTaskID, t.ID),
		logging.String("folder", abs),
		logging.Int("file_count", len(names)))
	return t.clone(), true, nil
}

// nextIDLocked derives the short folder hash and appends a numeric suffix when
// another folder already owns it.
func (s *Store) nextIDLocked(folder string) string {
	sum := md5.Sum([]byte(folder))
	base := hex.EncodeToString(sum[:])[:8]
	id := base
	for n := 1; ; n++ {
		if _, taken := s.tasks[id]; !taken {
			return id
		}
		id = fmt.Sprintf("%s_%d", base, n)
	}
}

// ScanArchives lists the .zip and .cbz files directly inside folder, sorted by name.
func ScanArchives(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("read folder: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if IsArchiveName(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// IsArchiveName reports whether name carries a supported archive extension.
func IsArchiveName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zip", ".cbz":
		return true
	default:
		return false
	}
}

// Get returns a snapshot of the task.
func (s *Store) Get(id string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return t.clone(), nil
}

// List returns snapshots of every task ordered by creation time.
func (s *Store) List() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Delete removes the task record. Archives on disk are never touched.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if err := os.Remove(s.recordPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove task record: %w", err)
	}
	delete(s.tasks, id)
	s.logger.Info("task deleted",
		logging.String(logging.FieldEventType, "task_deleted"),
		logging.String(logging.FieldTaskID, id))
	return nil
}

// PendingFiles returns the files still awaiting processing.
func (s *Store) PendingFiles(id string) ([]string, error) {
	return s.FilesWithStatus(id, StatusPending)
}

// FailedFiles returns the files whose last processing attempt failed.
func (s *Store) FailedFiles(id string) ([]string, error) {
	return s.FilesWithStatus(id, StatusFailed)
}

// UntranslatedFiles returns files whose translation sub-state is still pending.
func (s *Store) UntranslatedFiles(id string) ([]string, error) {
	return s.FilesWithTranslationStatus(id, StatusPending)
}

// TranslationFailedFiles returns files whose translation phase failed.
func (s *Store) TranslationFailedFiles(id string) ([]string, error) {
	return s.FilesWithTranslationStatus(id, StatusFailed)
}

// FilesWithStatus returns the sorted filenames in the given status.
func (s *Store) FilesWithStatus(id string, status Status) ([]string, error) {
	return s.selectFiles(id, func(rec FileRecord) bool { return rec.Status == status })
}

// FilesWithTranslationStatus returns the sorted filenames in the given translation status.
func (s *Store) FilesWithTranslationStatus(id string, status Status) ([]string, error) {
	return s.selectFiles(id, func(rec FileRecord) bool { return rec.TranslationStatus == status })
}

func (s *Store) selectFiles(id string, match func(FileRecord) bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	names := make([]string, 0, len(t.Files))
	for name, rec := range t.Files {
		if match(rec) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
