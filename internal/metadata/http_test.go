package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangameta/internal/services"
)

const galleryJSON = `{
  "id": 123456,
  "title": {"english": "English Title", "japanese": "日本語", "pretty": "Pretty"},
  "tags": [
    {"type": "tag", "name": "full color"},
    {"type": "tag", "name": "sole female"},
    {"type": "artist", "name": "someone"},
    {"type": "group", "name": "circle"},
    {"type": "parody", "name": "original"},
    {"type": "character", "name": "hero"},
    {"type": "language", "name": "chinese"},
    {"type": "language", "name": "translated"},
    {"type": "category", "name": "doujinshi"}
  ],
  "num_pages": 24,
  "num_favorites": 99,
  "upload_date": 1700000000
}`

func newTestProvider(t *testing.T, handler http.HandlerFunc) *HTTPProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := NewHTTPProvider(HTTPConfig{
		BaseURL:     srv.URL,
		GalleryPath: "/api/gallery/{id}",
		Cookie:      "session=abc",
		UserAgent:   "mangameta-test",
	})
	require.NoError(t, err)
	return p
}

func TestHTTPProviderFetch(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/gallery/123456", r.URL.Path)
		assert.Equal(t, "session=abc", r.Header.Get("Cookie"))
		assert.Equal(t, "mangameta-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(galleryJSON))
	})

	meta, err := p.Fetch(context.Background(), "123456")
	require.NoError(t, err)
	assert.Equal(t, "123456", meta.ID)
	assert.Equal(t, "English Title", meta.Title)
	assert.Equal(t, "日本語", meta.TitleOriginal)
	assert.Equal(t, 24, meta.Pages)
	assert.Equal(t, 99, meta.Favorites)
	assert.Equal(t, "2023-11-14T22:13:20Z", meta.UploadDate)
	assert.Equal(t, []string{"full color", "sole female"}, meta.Tags)
	assert.Equal(t, []string{"someone"}, meta.Artists)
	assert.Equal(t, []string{"circle"}, meta.Groups)
	assert.Equal(t, []string{"original"}, meta.Parodies)
	assert.Equal(t, []string{"hero"}, meta.Characters)
	assert.Equal(t, []string{"chinese", "translated"}, meta.Languages)
	assert.Equal(t, []string{"doujinshi"}, meta.Categories)
	assert.Contains(t, meta.URL, "/g/123456/")
}

func TestHTTPProviderErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		marker error
	}{
		{name: "not found", status: http.StatusNotFound, marker: services.ErrNotFound},
		{name: "server error", status: http.StatusBadGateway, body: "upstream down", marker: services.ErrTransient},
		{name: "forbidden", status: http.StatusForbidden, marker: services.ErrTransient},
		{name: "bad json", status: http.StatusOK, body: "{", marker: services.ErrTransient},
		{name: "error payload", status: http.StatusOK, body: `{"error":"does not exist"}`, marker: services.ErrTransient},
		{name: "not found payload", status: http.StatusOK, body: `{"error":"Gallery not found"}`, marker: services.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := p.Fetch(context.Background(), "123456")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.marker)
		})
	}
}

func TestHTTPProviderCancelled(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(galleryJSON))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Fetch(ctx, "123456")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewHTTPProviderValidation(t *testing.T) {
	_, err := NewHTTPProvider(HTTPConfig{GalleryPath: "/g/{id}"})
	assert.ErrorIs(t, err, services.ErrConfiguration)

	_, err = NewHTTPProvider(HTTPConfig{BaseURL: "http://example.test", GalleryPath: "/g/"})
	assert.ErrorIs(t, err, services.ErrConfiguration)

	_, err = NewHTTPProvider(HTTPConfig{BaseURL: "http://example.test", GalleryPath: "/g/{id}", Proxy: "://bad"})
	assert.ErrorIs(t, err, services.ErrConfiguration)
}
