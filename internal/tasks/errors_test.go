package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type kindError string

func (k kindError) Error() string     { return string(k) }
func (k kindError) ErrorKind() string { return string(k) }

func TestFailureClassification(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus Status
		wantKind   string
	}{
		{"nil", nil, StatusFailed, ""},
		{"name format", fmt.Errorf("extract: %w", kindError(KindNameFormat)), StatusSkipped, KindNameFormat},
		{"translation", fmt.Errorf("translate: %w", kindError(KindTranslation)), StatusFailed, KindTranslation},
		{"deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), StatusFailed, KindTimeout},
		{"plain", errors.New("boom"), StatusFailed, KindTransient},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FailureStatus(tc.err); got != tc.wantStatus {
				t.Fatalf("FailureStatus = %s, want %s", got, tc.wantStatus)
			}
			if got := FailureKind(tc.err); got != tc.wantKind {
				t.Fatalf("FailureKind = %q, want %q", got, tc.wantKind)
			}
		})
	}
}
