package archive

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangameta/internal/services"
	"mangameta/internal/throttle"
)

type entry struct {
	name string
	data string
}

func writeArchive(t *testing.T, path string, entries ...entry) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		method := zip.Deflate
		if strings.HasSuffix(e.name, "/") {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: method})
		require.NoError(t, err)
		if e.data != "" {
			_, err = w.Write([]byte(e.data))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func listEntries(t *testing.T, path string) map[string]string {
	t.Helper()
	rc, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer rc.Close()
	out := make(map[string]string)
	for _, f := range rc.File {
		data, err := readFile(f, nil)
		require.NoError(t, err)
		out[f.Name] = string(data)
	}
	return out
}

func assertNoLeftovers(t *testing.T, dir string, keep ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, keep, names)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		names  []string
		layout Layout
		folder string
	}{
		{name: "empty", layout: LayoutUnknown},
		{name: "flat", names: []string{"001.jpg", "002.jpg"}, layout: LayoutFlat},
		{name: "nested", names: []string{"book/", "book/001.jpg", "book/002.jpg"}, layout: LayoutNested, folder: "book"},
		{name: "nested without marker", names: []string{"book/001.jpg"}, layout: LayoutNested, folder: "book"},
		{name: "single file", names: []string{"001.jpg"}, layout: LayoutFlat},
		{name: "two folders", names: []string{"a/001.jpg", "b/001.jpg"}, layout: LayoutFlat},
		{name: "folder plus root file", names: []string{"book/001.jpg", "metadata.json"}, layout: LayoutFlat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.names)
			assert.Equal(t, tt.layout, got.Layout)
			assert.Equal(t, tt.folder, got.Folder)
		})
	}
}

func TestNormalizeNested(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "[123456]book.zip")
	writeArchive(t, path,
		entry{name: "book/"},
		entry{name: "book/001.jpg", data: "one"},
		entry{name: "book/002.jpg", data: "two"},
		entry{name: "book/extra/"},
		entry{name: "book/extra/003.jpg", data: "three"},
	)

	changed, err := NewRewriter(nil, nil).Normalize(t.Context(), path)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, map[string]string{
		"001.jpg":       "one",
		"002.jpg":       "two",
		"extra/003.jpg": "three",
	}, listEntries(t, path))

	structure, err := DetectStructure(path)
	require.NoError(t, err)
	assert.Equal(t, LayoutFlat, structure.Layout)
	assertNoLeftovers(t, dir, "[123456]book.zip")
}

func TestNormalizeFlatUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flat.zip")
	writeArchive(t, path, entry{name: "001.jpg", data: "one"}, entry{name: "002.jpg", data: "two"})
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	changed, err := NewRewriter(nil, nil).Normalize(t.Context(), path)
	require.NoError(t, err)
	assert.False(t, changed)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestNormalizeCorruptArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := NewRewriter(nil, nil).Normalize(t.Context(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrStructure)
}

func TestInjectMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.cbz")
	writeArchive(t, path,
		entry{name: "001.jpg", data: "one"},
		entry{name: MetadataEntry, data: `{"old":true}`},
		entry{name: SummaryEntry, data: "<old/>"},
	)
	rw := NewRewriter(throttle.New(0), nil)

	require.NoError(t, rw.InjectMetadata(path, []byte(`{"id":1}`), []byte("<ComicInfo/>")))
	assert.Equal(t, map[string]string{
		"001.jpg":     "one",
		MetadataEntry: `{"id":1}`,
		SummaryEntry:  "<ComicInfo/>",
	}, listEntries(t, path))

	// Without a summary the old one must not survive.
	require.NoError(t, rw.InjectMetadata(path, []byte(`{"id":2}`), nil))
	assert.Equal(t, map[string]string{
		"001.jpg":     "one",
		MetadataEntry: `{"id":2}`,
	}, listEntries(t, path))
	assertNoLeftovers(t, dir, "book.cbz")
}

func TestReplaceEntriesPreservesPayloadBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.zip")
	writeArchive(t, path, entry{name: "001.jpg", data: "payload payload payload"})

	rawBefore := rawEntry(t, path, "001.jpg")
	require.NoError(t, NewRewriter(nil, nil).ReplaceEntries(path, map[string][]byte{MetadataEntry: []byte("{}")}))
	assert.Equal(t, rawBefore, rawEntry(t, path, "001.jpg"))
}

func rawEntry(t *testing.T, path, name string) []byte {
	t.Helper()
	rc, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer rc.Close()
	for _, f := range rc.File {
		if f.Name != name {
			continue
		}
		r, err := f.OpenRaw()
		require.NoError(t, err)
		var buf bytes.Buffer
		_, err = buf.ReadFrom(r)
		require.NoError(t, err)
		return buf.Bytes()
	}
	t.Fatalf("entry %s not found", name)
	return nil
}

func TestCrashBeforeCommitLeavesOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.zip")
	writeArchive(t, path, entry{name: "001.jpg", data: "one"})
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	rw := NewRewriter(nil, nil)
	rw.beforeCommit = func(string) error { return errors.New("simulated crash") }

	err = rw.InjectMetadata(path, []byte("{}"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrRewrite)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assertNoLeftovers(t, dir, "book.zip")
}

func TestFailedSwapRestoresBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.zip")
	writeArchive(t, path, entry{name: "book/001.jpg", data: "one"})
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	rw := NewRewriter(nil, nil)
	rw.afterBackup = func(string) error { return errors.New("rename refused") }

	_, err = rw.Normalize(t.Context(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrStructure)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assertNoLeftovers(t, dir, "book.zip")
}

func TestRecoverBackupAfterInterruptedSwap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.zip")
	writeArchive(t, path+backupSuffix, entry{name: "001.jpg", data: "one"})

	require.NoError(t, NewRewriter(nil, nil).ReplaceEntries(path, map[string][]byte{MetadataEntry: []byte("{}")}))
	assert.Equal(t, map[string]string{"001.jpg": "one", MetadataEntry: "{}"}, listEntries(t, path))
	assertNoLeftovers(t, dir, "book.zip")
}

func TestAppendEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.zip")
	writeArchive(t, path, entry{name: "001.jpg", data: "one"})
	rw := NewRewriter(nil, nil)

	require.NoError(t, rw.AppendEntry(path, "note.txt", []byte("first")))
	require.NoError(t, rw.AppendEntry(path, "note.txt", []byte("second")))

	assert.Equal(t, map[string]string{"001.jpg": "one", "note.txt": "second"}, listEntries(t, path))
}

func TestReadEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.zip")
	writeArchive(t, path, entry{name: "001.jpg", data: "one"}, entry{name: MetadataEntry, data: "{}"})

	got, err := ReadEntries(path, MetadataEntry, SummaryEntry)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{MetadataEntry: []byte("{}")}, got)

	_, found, err := ReadEntry(path, SummaryEntry)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRewriterReadEntriesThroughThrottle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.zip")
	payload := strings.Repeat("x", 4096)
	writeArchive(t, path, entry{name: "001.jpg", data: "one"}, entry{name: MetadataEntry, data: payload})

	rw := NewRewriter(throttle.New(1<<30), nil)
	got, err := rw.ReadEntries(path, MetadataEntry, SummaryEntry)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{MetadataEntry: []byte(payload)}, got)
}

func TestPromote(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.ZIP")
	writeArchive(t, path, entry{name: "001.jpg", data: "one"})

	got, err := Promote(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "book.cbz"), got)
	assert.FileExists(t, got)
	assert.NoFileExists(t, path)

	same, err := Promote(got)
	require.NoError(t, err)
	assert.Equal(t, got, same)
}

func TestPromoteRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.zip")
	writeArchive(t, path, entry{name: "001.jpg", data: "one"})
	writeArchive(t, filepath.Join(dir, "book.cbz"), entry{name: "other.jpg", data: "two"})

	_, err := Promote(path)
	require.ErrorIs(t, err, ErrTargetExists)
	assert.FileExists(t, path)
}

func TestInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.zip")
	writeArchive(t, path,
		entry{name: "book/"},
		entry{name: "book/001.jpg", data: "one"},
		entry{name: "book/" + MetadataEntry, data: "{}"},
	)

	report, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Entries)
	assert.Equal(t, 1, report.Directories)
	assert.Equal(t, Structure{Layout: LayoutNested, Folder: "book"}, report.Structure)
	assert.False(t, report.HasMetadata)
	assert.Len(t, report.SHA256, 64)
	assert.EqualValues(t, len("one")+len("{}"), report.UncompressedBytes)
}
