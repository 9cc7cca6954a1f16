package services_test

import (
	"errors"
	"strings"
	"testing"

	"mangameta/internal/services"
	"mangameta/internal/tasks"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrRewrite, "rewrite", "commit", "rename failed", base)
	if !errors.Is(err, services.ErrRewrite) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"rewrite", "commit", "rename failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestMarkersClassifyFileStatus(t *testing.T) {
	nameErr := services.Wrap(services.ErrNameFormat, "extract", "", "no id", nil)
	if status := tasks.FailureStatus(nameErr); status != tasks.StatusSkipped {
		t.Fatalf("expected skipped for name format error, got %s", status)
	}
	for _, marker := range []error{services.ErrNotFound, services.ErrTransient, services.ErrStructure, services.ErrRewrite, services.ErrPartialTranslation} {
		err := services.Wrap(marker, "stage", "op", "msg", errors.New("cause"))
		if status := tasks.FailureStatus(err); status != tasks.StatusFailed {
			t.Fatalf("expected failed for %v, got %s", marker, status)
		}
	}
	translationErr := services.Wrap(services.ErrPartialTranslation, "translate", "", "2 tags", nil)
	if kind := tasks.FailureKind(translationErr); kind != tasks.KindTranslation {
		t.Fatalf("expected translation kind, got %q", kind)
	}
}
