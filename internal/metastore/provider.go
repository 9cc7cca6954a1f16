package metastore

import (
	"context"
	"log/slog"
	"time"

	"mangameta/internal/logging"
	"mangameta/internal/metadata"
)

// CachingProvider serves metadata from the store and falls back to the
// wrapped provider on a miss or an expired entry. Lookup failures are never
// cached.
type CachingProvider struct {
	store  *Store
	next   metadata.Provider
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewCachingProvider wraps next. A zero ttl keeps entries forever.
func NewCachingProvider(store *Store, next metadata.Provider, ttl time.Duration, logger *slog.Logger) *CachingProvider {
	return &CachingProvider{
		store:  store,
		next:   next,
		ttl:    ttl,
		logger: logging.NewComponentLogger(logger, "metastore"),
		now:    time.Now,
	}
}

// Fetch implements metadata.Provider.
func (p *CachingProvider) Fetch(ctx context.Context, id string) (*metadata.Metadata, error) {
	logger := logging.WithContext(ctx, p.logger)

	entry, found, err := p.store.Get(ctx, id)
	switch {
	case err != nil:
		logging.WarnWithContext(logger, "metadata cache lookup failed", "metadata_cache_read_failed",
			logging.String("gallery_id", id),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the metadata database if this repeats"),
			logging.String(logging.FieldImpact, "metadata fetched from provider instead"))
	case found && p.fresh(entry):
		logger.Debug("metadata cache hit",
			logging.String(logging.FieldEventType, "metadata_cache_hit"),
			logging.String("gallery_id", id))
		return entry.Metadata, nil
	}

	meta, err := p.next.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.store.Put(ctx, meta, p.now()); err != nil {
		logging.WarnWithContext(logger, "metadata cache write failed", "metadata_cache_write_failed",
			logging.String("gallery_id", id),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space in data_dir"),
			logging.String(logging.FieldImpact, "metadata will be fetched again next run"))
	}
	return meta, nil
}

func (p *CachingProvider) fresh(entry Entry) bool {
	return p.ttl <= 0 || p.now().Sub(entry.FetchedAt) < p.ttl
}
