package preflight

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mangameta/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 1); !result.Passed {
		t.Fatalf("expected pass for 1 byte, got: %s", result.Detail)
	}
	result := CheckFreeSpace("space", dir, math.MaxUint64)
	if result.Passed {
		t.Fatal("expected failure for impossible threshold")
	}
	if !strings.Contains(result.Detail, "required") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckReadableFile(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "dict.json")
	if err := os.WriteFile(f, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckReadableFile("dict", f); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckReadableFile("dict", dir); result.Passed {
		t.Fatal("expected failure for directory")
	}
	if result := CheckReadableFile("dict", filepath.Join(dir, "missing.json")); result.Passed {
		t.Fatal("expected failure for missing file")
	}
}

func TestCheckProvider_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "ua" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := CheckProvider(context.Background(), srv.URL, "ua", "")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckProvider_Forbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	result := CheckProvider(context.Background(), srv.URL, "other", "")
	if result.Passed {
		t.Fatal("expected failure for forbidden response")
	}
}

func TestCheckProvider_MissingURL(t *testing.T) {
	result := CheckProvider(context.Background(), "", "ua", "")
	if result.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(nil, t.TempDir())
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Processing.MinFreeSpaceMB = 0
	cfg.Translation.Enabled = false

	results := RunAll(&cfg, t.TempDir())
	// Should have folder + data directory checks
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if err := Failed(results); err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
}

func TestRunAll_TranslationAndSpace(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = dir
	cfg.Processing.MinFreeSpaceMB = 1
	cfg.Translation.Enabled = true
	cfg.Translation.DictionaryPath = filepath.Join(dir, "missing.json")
	cfg.Translation.UntranslatedPath = filepath.Join(dir, "untranslated.json")

	results := RunAll(&cfg, dir)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	err := Failed(results)
	if err == nil {
		t.Fatal("expected missing dictionary to fail")
	}
	if !strings.Contains(err.Error(), "Translation dictionary") {
		t.Fatalf("unexpected error %v", err)
	}
}
