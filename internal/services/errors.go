package services

import (
	"fmt"
	"strings"
)

// classifiedError is a sentinel that reports its own failure kind so the task
// store can map it to a file status without importing this package.
type classifiedError struct {
	kind    string
	message string
}

func (e *classifiedError) Error() string { return e.message }

// ErrorKind implements tasks.ErrorClassifier.
func (e *classifiedError) ErrorKind() string { return e.kind }

var (
	ErrNameFormat         error = &classifiedError{kind: "name_format", message: "filename does not match naming convention"}
	ErrNotFound           error = &classifiedError{kind: "not_found", message: "metadata not found"}
	ErrTransient          error = &classifiedError{kind: "transient", message: "transient failure"}
	ErrStructure          error = &classifiedError{kind: "structure", message: "structure conversion error"}
	ErrRewrite            error = &classifiedError{kind: "rewrite", message: "archive rewrite error"}
	ErrPartialTranslation error = &classifiedError{kind: "translation", message: "untranslated tags present"}
	ErrValidation         error = &classifiedError{kind: "validation", message: "validation error"}
	ErrConfiguration      error = &classifiedError{kind: "configuration", message: "configuration error"}
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
