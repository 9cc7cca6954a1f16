package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"mangameta/internal/services"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxErrorBody       = 512
)

// HTTPConfig captures the settings for a gallery JSON API.
type HTTPConfig struct {
	BaseURL string
	// GalleryPath is appended to BaseURL with {id} substituted.
	GalleryPath       string
	Cookie            string
	UserAgent         string
	Proxy             string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// HTTPProvider fetches gallery records over HTTP.
type HTTPProvider struct {
	cfg        HTTPConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option customizes the provider.
type Option func(*HTTPProvider)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *HTTPProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithLimiter overrides the request pacing limiter.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(p *HTTPProvider) {
		p.limiter = limiter
	}
}

// NewHTTPProvider builds a provider. An invalid proxy URL is a configuration error.
func NewHTTPProvider(cfg HTTPConfig, opts ...Option) (*HTTPProvider, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.GalleryPath = strings.TrimSpace(cfg.GalleryPath)
	if cfg.BaseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "provider", "init", "base url is empty", nil)
	}
	if !strings.Contains(cfg.GalleryPath, "{id}") {
		return nil, services.Wrap(services.ErrConfiguration, "provider", "init", "gallery path must contain {id}", nil)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy := strings.TrimSpace(cfg.Proxy); proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "provider", "init", "invalid proxy url", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	p := &HTTPProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		limiter:    rate.NewLimiter(rate.Inf, 1),
	}
	if cfg.RequestsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Fetch implements Provider.
func (p *HTTPProvider) Fetch(ctx context.Context, id string) (*Metadata, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, services.Wrap(services.ErrTransient, "fetch", "rate limit", id, err)
	}

	endpoint := p.cfg.BaseURL + strings.ReplaceAll(p.cfg.GalleryPath, "{id}", url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "fetch", "build request", id, err)
	}
	req.Header.Set("Accept", "application/json")
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}
	if p.cfg.Cookie != "" {
		req.Header.Set("Cookie", p.cfg.Cookie)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "fetch", "request", id, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, services.Wrap(services.ErrNotFound, "fetch", "lookup", id, nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, services.Wrap(services.ErrTransient, "fetch", "lookup", id,
			fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var payload galleryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrTransient, "fetch", "decode response", id, err)
	}
	if payload.Error != "" {
		if strings.Contains(strings.ToLower(payload.Error), "not found") {
			return nil, services.Wrap(services.ErrNotFound, "fetch", "lookup", id, errors.New(payload.Error))
		}
		return nil, services.Wrap(services.ErrTransient, "fetch", "lookup", id, errors.New(payload.Error))
	}
	meta := payload.toMetadata(id)
	if meta.URL == "" {
		meta.URL = p.cfg.BaseURL + "/g/" + id + "/"
	}
	return meta, nil
}

type galleryResponse struct {
	Error string          `json:"error"`
	ID    json.RawMessage `json:"id"`
	Title struct {
		English  string `json:"english"`
		Japanese string `json:"japanese"`
		Pretty   string `json:"pretty"`
	} `json:"title"`
	Tags []struct {
		Type string `json:"type"`
		Name string `json:"name"`
	} `json:"tags"`
	NumPages     int   `json:"num_pages"`
	NumFavorites int   `json:"num_favorites"`
	UploadDate   int64 `json:"upload_date"`
}

func (g galleryResponse) toMetadata(id string) *Metadata {
	meta := &Metadata{
		ID:            id,
		Title:         g.Title.English,
		TitleOriginal: g.Title.Japanese,
		Subtitle:      g.Title.Japanese,
		Pages:         g.NumPages,
		Favorites:     g.NumFavorites,
	}
	if meta.Title == "" {
		meta.Title = g.Title.Pretty
	}
	if g.UploadDate > 0 {
		meta.UploadDate = time.Unix(g.UploadDate, 0).UTC().Format(time.RFC3339)
	}
	for _, tag := range g.Tags {
		name := strings.TrimSpace(tag.Name)
		if name == "" {
			continue
		}
		switch tag.Type {
		case "tag":
			meta.Tags = append(meta.Tags, name)
		case "artist":
			meta.Artists = append(meta.Artists, name)
		case "group":
			meta.Groups = append(meta.Groups, name)
		case "parody":
			meta.Parodies = append(meta.Parodies, name)
		case "character":
			meta.Characters = append(meta.Characters, name)
		case "language":
			meta.Languages = append(meta.Languages, name)
		case "category":
			meta.Categories = append(meta.Categories, name)
		}
	}
	return meta
}
