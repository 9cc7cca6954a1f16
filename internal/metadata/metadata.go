package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"mangameta/internal/services"
)

// Metadata is the record serialized into metadata.json.
type Metadata struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	TitleOriginal string   `json:"title_original,omitempty"`
	Subtitle      string   `json:"subtitle,omitempty"`
	Pages         int      `json:"pages"`
	Favorites     int      `json:"favorites"`
	UploadDate    string   `json:"upload_date,omitempty"`
	Tags          []string `json:"tags"`
	Artists       []string `json:"artists"`
	Groups        []string `json:"groups"`
	Parodies      []string `json:"parodies"`
	Characters    []string `json:"characters"`
	Languages     []string `json:"languages"`
	Categories    []string `json:"categories"`
	URL           string   `json:"url,omitempty"`
}

// Provider fetches metadata for a gallery id. Implementations return errors
// wrapping services.ErrNotFound when the id does not exist and
// services.ErrTransient for everything retryable.
type Provider interface {
	Fetch(ctx context.Context, id string) (*Metadata, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, id string) (*Metadata, error)

// Fetch calls f.
func (f ProviderFunc) Fetch(ctx context.Context, id string) (*Metadata, error) {
	return f(ctx, id)
}

var filenamePattern = regexp.MustCompile(`(?i)^\[(\d{6})\](.+)\.(zip|cbz)$`)

// ExtractID returns the gallery id embedded in an archive filename.
func ExtractID(filename string) (string, error) {
	match := filenamePattern.FindStringSubmatch(filename)
	if match == nil {
		return "", services.Wrap(services.ErrNameFormat, "extract", "parse filename", filename, nil)
	}
	return match[1], nil
}

// Marshal encodes m as compact UTF-8 JSON without HTML escaping.
func Marshal(m *Metadata) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized(m)); err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// normalized replaces nil lists with empty ones so consumers always see arrays.
func normalized(m *Metadata) *Metadata {
	out := *m
	for _, list := range []*[]string{&out.Tags, &out.Artists, &out.Groups, &out.Parodies, &out.Characters, &out.Languages, &out.Categories} {
		if *list == nil {
			*list = []string{}
		}
	}
	return &out
}
