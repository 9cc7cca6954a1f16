package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangameta/internal/archive"
	"mangameta/internal/comicinfo"
	"mangameta/internal/services"
	"mangameta/internal/tagdict"
	"mangameta/internal/tasks"
)

const (
	fileA = "[123456]Alpha.zip"
	fileB = "[654321]Beta.zip"
	fileC = "Gamma.zip"
)

func TestRunSuccessFailureSkip(t *testing.T) {
	f := newFixture(t, map[string][]string{
		fileA: {"001.jpg", "002.jpg"},
		fileB: {"001.jpg"},
		fileC: {"001.jpg"},
	})
	provider := newFakeProvider("full color")
	provider.errs["654321"] = notFound("654321")

	report, err := New(f.cfg, f.store, provider, nil).Run(context.Background(), f.task.ID, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Files)
	assert.Equal(t, 3, report.Summary.Dispatched)
	assert.Equal(t, 1, report.Statistics.Success)
	assert.Equal(t, 1, report.Statistics.Failed)
	assert.Equal(t, 1, report.Statistics.Skipped)
	assert.Zero(t, report.Statistics.Pending)

	assert.Equal(t, tasks.StatusSuccess, f.record(t, fileA).Status)
	b := f.record(t, fileB)
	assert.Equal(t, tasks.StatusFailed, b.Status)
	assert.Equal(t, "not_found", b.ErrorKind)
	assert.NotEmpty(t, b.Error)
	c := f.record(t, fileC)
	assert.Equal(t, tasks.StatusSkipped, c.Status)
	assert.Equal(t, tasks.KindNameFormat, c.ErrorKind)
	assert.Equal(t, 1, provider.calls["654321"])

	pathA := filepath.Join(f.folder, fileA)
	assert.ElementsMatch(t, []string{"001.jpg", "002.jpg", archive.MetadataEntry}, zipNames(t, pathA))
	doc := readMetadata(t, pathA)
	assert.Equal(t, "123456", doc["id"])
	assert.Equal(t, []any{"full color"}, doc["tags"])
	assert.Equal(t, []string{"001.jpg"}, zipNames(t, filepath.Join(f.folder, fileB)))
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(t, map[string][]string{fileA: {"001.jpg"}})
	p := New(f.cfg, f.store, newFakeProvider("a"), nil)

	_, err := p.Run(context.Background(), f.task.ID, RunOptions{})
	require.NoError(t, err)
	before, err := os.ReadFile(filepath.Join(f.folder, fileA))
	require.NoError(t, err)

	report, err := p.Run(context.Background(), f.task.ID, RunOptions{})
	require.NoError(t, err)
	assert.Zero(t, report.Files)
	assert.Zero(t, report.Summary.Dispatched)

	after, err := os.ReadFile(filepath.Join(f.folder, fileA))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRunCancellationLeavesRestPending(t *testing.T) {
	files := map[string][]string{}
	for _, name := range []string{"[100001]a.zip", "[100002]b.zip", "[100003]c.zip", "[100004]d.zip", "[100005]e.zip"} {
		files[name] = []string{"001.jpg"}
	}
	f := newFixture(t, files)
	f.cfg.Processing.Workers = 1

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	provider := newFakeProvider("a")
	provider.hook = func(call int) error {
		if call == 3 {
			cancel()
			return services.Wrap(services.ErrTransient, "fetch", "request", "", ctx.Err())
		}
		return nil
	}

	report, err := New(f.cfg, f.store, provider, nil).Run(ctx, f.task.ID, RunOptions{})
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 2, report.Statistics.Success)
	assert.Equal(t, 3, report.Statistics.Pending)
	assert.Zero(t, report.Statistics.Failed)
	assert.Equal(t, 2, report.Summary.Completed)
	assert.Equal(t, 1, report.Summary.Deferred, "interrupted fetch is not completed work")
	assert.Equal(t, 2, report.Summary.Cancelled)
	assert.Equal(t, tasks.StatusSuccess, f.record(t, "[100001]a.zip").Status)
	assert.Equal(t, tasks.StatusSuccess, f.record(t, "[100002]b.zip").Status)
	assert.Equal(t, tasks.StatusPending, f.record(t, "[100003]c.zip").Status)

	// A later run picks up exactly the remaining files.
	provider.hook = nil
	report, err = New(f.cfg, f.store, provider, nil).Run(context.Background(), f.task.ID, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Files)
	assert.Equal(t, 5, report.Statistics.Success)
}

func TestRunNormalizesAndPromotes(t *testing.T) {
	f := newFixture(t, map[string][]string{
		fileA: {"book/", "book/001.jpg", "book/002.jpg", "book/003.jpg"},
	})
	f.cfg.Processing.ToCBZ = true

	report, err := New(f.cfg, f.store, newFakeProvider("a"), nil).Run(context.Background(), f.task.ID, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Statistics.Success)

	promoted := "[123456]Alpha.cbz"
	assert.NoFileExists(t, filepath.Join(f.folder, fileA))
	path := filepath.Join(f.folder, promoted)
	assert.ElementsMatch(t,
		[]string{"001.jpg", "002.jpg", "003.jpg", archive.MetadataEntry, archive.SummaryEntry},
		zipNames(t, path))

	task, err := f.store.Get(f.task.ID)
	require.NoError(t, err)
	assert.Contains(t, task.Files, promoted)
	assert.NotContains(t, task.Files, fileA)
	assert.Equal(t, tasks.StatusSuccess, task.Files[promoted].Status)
}

func TestRunCBZGetsSummaryWithoutPromotion(t *testing.T) {
	f := newFixture(t, map[string][]string{"[123456]Alpha.cbz": {"001.jpg"}})
	_, err := New(f.cfg, f.store, newFakeProvider("a"), nil).Run(context.Background(), f.task.ID, RunOptions{})
	require.NoError(t, err)
	assert.Contains(t, zipNames(t, filepath.Join(f.folder, "[123456]Alpha.cbz")), archive.SummaryEntry)
}

func TestRunDryRunChangesNothing(t *testing.T) {
	f := newFixture(t, map[string][]string{fileA: {"book/", "book/001.jpg"}})
	f.cfg.Processing.DryRun = true
	f.cfg.Processing.ToCBZ = true
	path := filepath.Join(f.folder, fileA)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	provider := newFakeProvider("a")
	report, err := New(f.cfg, f.store, provider, nil).Run(context.Background(), f.task.ID, RunOptions{})
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, provider.calls["123456"])
	assert.Equal(t, 1, report.Statistics.Pending)
	assert.Equal(t, 1, report.Summary.Deferred)
	assert.Zero(t, report.Summary.Completed)
	assert.Zero(t, report.Summary.Errored)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRunRetryFailed(t *testing.T) {
	f := newFixture(t, map[string][]string{fileA: {"001.jpg"}, fileB: {"001.jpg"}})
	provider := newFakeProvider("a")
	provider.errs["654321"] = transient("654321")
	p := New(f.cfg, f.store, provider, nil)

	_, err := p.Run(context.Background(), f.task.ID, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusFailed, f.record(t, fileB).Status)

	delete(provider.errs, "654321")
	report, err := p.Run(context.Background(), f.task.ID, RunOptions{Mode: ModeRetry})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Files)
	assert.Equal(t, 2, report.Statistics.Success)
	assert.Equal(t, 1, provider.calls["123456"], "successful file not reprocessed")
}

func TestRunBatchMode(t *testing.T) {
	files := map[string][]string{}
	for _, name := range []string{"[200001]a.zip", "[200002]b.zip", "[200003]c.zip", "[200004]d.zip", "[200005]e.zip"} {
		files[name] = []string{"001.jpg"}
	}
	f := newFixture(t, files)
	f.cfg.Processing.BatchMode = true
	f.cfg.Processing.BatchSize = 2

	report, err := New(f.cfg, f.store, newFakeProvider("a"), nil).Run(context.Background(), f.task.ID, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, report.Summary.Dispatched)
	assert.Equal(t, 5, report.Statistics.Success)
}

func TestRunRefusesBusyTask(t *testing.T) {
	f := newFixture(t, map[string][]string{fileA: {"001.jpg"}})
	unlock, err := f.store.Lock(f.task.ID)
	require.NoError(t, err)
	defer unlock()

	_, err = New(f.cfg, f.store, newFakeProvider(), nil).Run(context.Background(), f.task.ID, RunOptions{})
	require.ErrorIs(t, err, tasks.ErrTaskBusy)
}

func TestRunPreflightFailure(t *testing.T) {
	f := newFixture(t, map[string][]string{fileA: {"001.jpg"}})
	require.NoError(t, os.RemoveAll(f.folder))

	_, err := New(f.cfg, f.store, newFakeProvider(), nil).Run(context.Background(), f.task.ID, RunOptions{})
	require.ErrorIs(t, err, services.ErrValidation)
}

func TestRunTranslateRequiresDictionary(t *testing.T) {
	f := newFixture(t, map[string][]string{fileA: {"001.jpg"}})
	_, err := New(f.cfg, f.store, newFakeProvider(), nil).Run(context.Background(), f.task.ID, RunOptions{Mode: ModeTranslate})
	require.ErrorIs(t, err, services.ErrConfiguration)
}

func TestProcessFileTranslates(t *testing.T) {
	f := newFixture(t, map[string][]string{"[123456]Alpha.cbz": {"001.jpg"}})
	dict := tagdict.New(map[string]string{"full color": "全彩", "sole female": "单女主"}, nil)
	p := New(f.cfg, f.store, newFakeProvider("full color", "sole female"), nil, WithTranslator(dict))

	out := p.ProcessFile(context.Background(), f.task, "[123456]Alpha.cbz")
	require.NoError(t, out.Err)
	assert.Equal(t, tasks.StatusSuccess, out.Status)
	assert.Equal(t, tasks.StatusSuccess, out.TranslationStatus)

	path := filepath.Join(f.folder, "[123456]Alpha.cbz")
	assert.Equal(t, []any{"全彩", "单女主"}, readMetadata(t, path)["tags"])
	summary, found, err := archive.ReadEntry(path, archive.SummaryEntry)
	require.NoError(t, err)
	require.True(t, found)
	tags, ok := comicinfo.Tags(summary)
	require.True(t, ok)
	assert.Equal(t, []string{"全彩", "单女主"}, tags)

	rec := f.record(t, "[123456]Alpha.cbz")
	assert.Equal(t, tasks.StatusSuccess, rec.TranslationStatus)
}

func TestTranslationFailureKeepsInjectionAndRetries(t *testing.T) {
	name := "[123456]Alpha.cbz"
	f := newFixture(t, map[string][]string{name: {"001.jpg"}})
	partial := tagdict.New(map[string]string{"full color": "全彩"}, nil)
	p := New(f.cfg, f.store, newFakeProvider("full color", "rare tag"), nil, WithTranslator(partial))

	_, err := p.Run(context.Background(), f.task.ID, RunOptions{})
	require.NoError(t, err)

	rec := f.record(t, name)
	assert.Equal(t, tasks.StatusFailed, rec.Status)
	assert.Equal(t, tasks.KindTranslation, rec.ErrorKind)
	assert.Equal(t, tasks.StatusFailed, rec.TranslationStatus)
	assert.Contains(t, rec.TranslationError, "rare tag")
	assert.Equal(t, []string{"rare tag"}, partial.Untranslated())

	path := filepath.Join(f.folder, name)
	assert.Equal(t, []any{"full color", "rare tag"}, readMetadata(t, path)["tags"], "nothing translated on partial coverage")

	full := tagdict.New(map[string]string{"full color": "全彩", "rare tag": "稀有"}, nil)
	p = New(f.cfg, f.store, newFakeProvider(), nil, WithTranslator(full))
	report, err := p.Run(context.Background(), f.task.ID, RunOptions{Mode: ModeRetryTranslation})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Files)

	rec = f.record(t, name)
	assert.Equal(t, tasks.StatusSuccess, rec.Status)
	assert.Empty(t, rec.ErrorKind)
	assert.Equal(t, tasks.StatusSuccess, rec.TranslationStatus)
	assert.Equal(t, []any{"全彩", "稀有"}, readMetadata(t, path)["tags"])
}

func TestTranslateModeSkipsUnprocessedFiles(t *testing.T) {
	f := newFixture(t, map[string][]string{fileA: {"001.jpg"}, fileB: {"001.jpg"}})
	p := New(f.cfg, f.store, newFakeProvider("a"), nil)
	require.NoError(t, f.store.SetFileResult(f.task.ID, fileB, tasks.StatusFailed, "not_found", "gone"))
	_, err := p.Run(context.Background(), f.task.ID, RunOptions{})
	require.NoError(t, err)

	dict := tagdict.New(map[string]string{"a": "甲"}, nil)
	p = New(f.cfg, f.store, newFakeProvider(), nil, WithTranslator(dict))
	report, err := p.Run(context.Background(), f.task.ID, RunOptions{Mode: ModeTranslate})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Files)
	assert.Equal(t, tasks.StatusSuccess, f.record(t, fileA).TranslationStatus)
	assert.Equal(t, tasks.StatusPending, f.record(t, fileB).TranslationStatus)
}

func TestTranslateMetadataJSONStringTags(t *testing.T) {
	p := &Pipeline{translator: tagdict.New(map[string]string{"a": "甲", "b": "乙"}, nil)}

	out, missing, changed, err := p.translateMetadataJSON([]byte(`{"id":"1","tags":"a, b","title":"<x>"}`))
	require.NoError(t, err)
	assert.Empty(t, missing)
	assert.True(t, changed)
	assert.JSONEq(t, `{"id":"1","tags":"甲, 乙","title":"<x>"}`, string(out))
	assert.Contains(t, string(out), "<x>")

	_, missing, changed, err = p.translateMetadataJSON([]byte(`{"tags":["a","zzz"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"zzz"}, missing)
	assert.False(t, changed)

	_, _, _, err = p.translateMetadataJSON([]byte(`{"tags":42}`))
	assert.Error(t, err)
}

func TestChunk(t *testing.T) {
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, chunk([]string{"a", "b", "c"}, 2))
	assert.Equal(t, [][]string{{"a", "b"}}, chunk([]string{"a", "b"}, 0))
	assert.Empty(t, chunk(nil, 3))
}
