package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"mangameta/internal/archive"
	"mangameta/internal/config"
	"mangameta/internal/metadata"
	"mangameta/internal/services"
	"mangameta/internal/tasks"
)

type fixture struct {
	cfg    *config.Config
	store  *tasks.Store
	folder string
	task   tasks.Task
}

func newFixture(t *testing.T, files map[string][]string) *fixture {
	t.Helper()
	root := t.TempDir()
	folder := filepath.Join(root, "library")
	require.NoError(t, os.MkdirAll(folder, 0o755))
	for name, entries := range files {
		writeZip(t, filepath.Join(folder, name), entries...)
	}

	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.LogDir = ""
	cfg.Processing.Workers = 2
	cfg.Processing.DispatchDelaySeconds = 0
	cfg.Processing.JobTimeoutSeconds = 0
	cfg.Processing.MinFreeSpaceMB = 0
	cfg.Translation.Enabled = false
	require.NoError(t, cfg.EnsureDirectories())

	store, err := tasks.Open(cfg.TasksDir(), nil)
	require.NoError(t, err)
	task, created, err := store.Create(folder)
	require.NoError(t, err)
	require.True(t, created)

	return &fixture{cfg: &cfg, store: store, folder: folder, task: task}
}

func writeZip(t *testing.T, path string, names ...string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		if name != "" && name[len(name)-1] != '/' {
			_, err = w.Write([]byte("data:" + name))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func zipNames(t *testing.T, path string) []string {
	t.Helper()
	rc, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer rc.Close()
	var names []string
	for _, f := range rc.File {
		names = append(names, f.Name)
	}
	return names
}

func readMetadata(t *testing.T, path string) map[string]any {
	t.Helper()
	data, found, err := archive.ReadEntry(path, archive.MetadataEntry)
	require.NoError(t, err)
	require.True(t, found, "metadata.json missing from %s", path)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func (f *fixture) record(t *testing.T, name string) tasks.FileRecord {
	t.Helper()
	task, err := f.store.Get(f.task.ID)
	require.NoError(t, err)
	rec, ok := task.Files[name]
	require.True(t, ok, "no record for %s", name)
	return rec
}

func (f *fixture) stats(t *testing.T) tasks.Statistics {
	t.Helper()
	task, err := f.store.Get(f.task.ID)
	require.NoError(t, err)
	return task.Statistics
}

// fakeProvider serves fixed records and fails for ids listed in errs.
type fakeProvider struct {
	mu    sync.Mutex
	calls map[string]int
	tags  []string
	errs  map[string]error
	hook  func(call int) error
	total int
}

func newFakeProvider(tags ...string) *fakeProvider {
	return &fakeProvider{calls: make(map[string]int), errs: make(map[string]error), tags: tags}
}

func (p *fakeProvider) Fetch(ctx context.Context, id string) (*metadata.Metadata, error) {
	p.mu.Lock()
	p.calls[id]++
	p.total++
	call := p.total
	err := p.errs[id]
	hook := p.hook
	p.mu.Unlock()

	if hook != nil {
		if hookErr := hook(call); hookErr != nil {
			return nil, hookErr
		}
	}
	if err != nil {
		return nil, err
	}
	return &metadata.Metadata{
		ID:        id,
		Title:     "Title " + id,
		Pages:     3,
		Tags:      append([]string(nil), p.tags...),
		Languages: []string{"chinese"},
		URL:       "https://example.test/g/" + id + "/",
	}, nil
}

func notFound(id string) error {
	return services.Wrap(services.ErrNotFound, "fetch", "lookup", id, nil)
}

func transient(id string) error {
	return services.Wrap(services.ErrTransient, "fetch", "lookup", id, nil)
}
