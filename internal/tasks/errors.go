package tasks

import (
	"context"
	"errors"
)

var (
	// ErrTaskNotFound is returned for unknown task identifiers.
	ErrTaskNotFound = errors.New("task not found")
	// ErrFileNotFound is returned when a filename is not part of the task.
	ErrFileNotFound = errors.New("file not found in task")
	// ErrFileExists is returned when a rename target already exists in the task.
	ErrFileExists = errors.New("file already exists in task")
	// ErrInvalidStatus is returned for statuses outside the allowed set.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidTransition is returned when a status change violates the state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrTaskBusy indicates another process holds the task run lock.
	ErrTaskBusy = errors.New("task is already running")
)

// ErrorClassifier allows errors to declare their classification for status mapping.
type ErrorClassifier interface {
	// ErrorKind returns a short classification of the error. The kind
	// "name_format" maps to StatusSkipped; all other kinds map to StatusFailed.
	ErrorKind() string
}

// Failure kinds persisted on FileRecord.ErrorKind.
const (
	KindNameFormat  = "name_format"
	KindTranslation = "translation"
	KindTimeout     = "timeout"
	KindTransient   = "transient"
)

// FailureStatus maps a per-file error to the status the pipeline persists.
func FailureStatus(err error) Status {
	if FailureKind(err) == KindNameFormat {
		return StatusSkipped
	}
	return StatusFailed
}

// FailureKind returns the classification stored alongside the error message.
func FailureKind(err error) string {
	if err == nil {
		return ""
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindTransient
}
