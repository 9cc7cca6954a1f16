package tasks

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a file inside a task. The translation
// sub-state uses the pending, success, and failed values.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

var allStatuses = []Status{
	StatusPending,
	StatusSuccess,
	StatusFailed,
	StatusSkipped,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var translationStatusSet = map[Status]struct{}{
	StatusPending: {},
	StatusSuccess: {},
	StatusFailed:  {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// FileRecord tracks one archive inside a task.
type FileRecord struct {
	Status            Status    `json:"status"`
	Error             string    `json:"error,omitempty"`
	ErrorKind         string    `json:"error_kind,omitempty"`
	TranslationStatus Status    `json:"translation_status"`
	TranslationError  string    `json:"translation_error,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Statistics counts files per status. Both groups always sum to Total.
type Statistics struct {
	Total              int `json:"total"`
	Pending            int `json:"pending"`
	Success            int `json:"success"`
	Failed             int `json:"failed"`
	Skipped            int `json:"skipped"`
	TranslationPending int `json:"translation_pending"`
	TranslationSuccess int `json:"translation_success"`
	TranslationFailed  int `json:"translation_failed"`
}

// Count returns the counter for a file status.
func (s Statistics) Count(status Status) int {
	switch status {
	case StatusPending:
		return s.Pending
	case StatusSuccess:
		return s.Success
	case StatusFailed:
		return s.Failed
	case StatusSkipped:
		return s.Skipped
	default:
		return 0
	}
}

func (s *Statistics) add(status Status, delta int) {
	switch status {
	case StatusPending:
		s.Pending += delta
	case StatusSuccess:
		s.Success += delta
	case StatusFailed:
		s.Failed += delta
	case StatusSkipped:
		s.Skipped += delta
	}
}

func (s *Statistics) addTranslation(status Status, delta int) {
	switch status {
	case StatusPending:
		s.TranslationPending += delta
	case StatusSuccess:
		s.TranslationSuccess += delta
	case StatusFailed:
		s.TranslationFailed += delta
	}
}

// Task is a registered folder of archives with durable per-file progress.
type Task struct {
	ID         string                `json:"id"`
	FolderPath string                `json:"folder_path"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
	Files      map[string]FileRecord `json:"files"`
	Statistics Statistics            `json:"statistics"`
}

// Progress returns the share of files no longer pending, in percent.
func (t Task) Progress() float64 {
	if t.Statistics.Total == 0 {
		return 0
	}
	done := t.Statistics.Total - t.Statistics.Pending
	return float64(done) * 100 / float64(t.Statistics.Total)
}

func (t *Task) clone() Task {
	cp := *t
	cp.Files = make(map[string]FileRecord, len(t.Files))
	for name, rec := range t.Files {
		cp.Files[name] = rec
	}
	return cp
}

func computeStatistics(files map[string]FileRecord) Statistics {
	stats := Statistics{Total: len(files)}
	for _, rec := range files {
		stats.add(rec.Status, 1)
		stats.addTranslation(rec.TranslationStatus, 1)
	}
	return stats
}

// RetrySelector chooses which records Retry moves back to pending.
type RetrySelector int

const (
	// RetryFailed moves failed files back to pending.
	RetryFailed RetrySelector = iota
	// RetryTranslationFailed moves failed translation sub-states back to pending.
	RetryTranslationFailed
)

func (r RetrySelector) String() string {
	switch r {
	case RetryFailed:
		return "failed"
	case RetryTranslationFailed:
		return "translation_failed"
	default:
		return "unknown"
	}
}
