package preview

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/docsmith/docsmith/internal/doc"
	"github.com/docsmith/docsmith/pkg/metrics"
)

// DefaultTTL is how long a preview entry stays resolvable.
const DefaultTTL = 300 * time.Second

// QueryParam carries the preview key on the redirect URL. A render path that
// sees it substitutes the cached document for a fresh fetch by id.
const QueryParam = "previewKey"

// Service materializes "what would this document look like with these
// patches" without ever saving: the patched copy lives only in the cache,
// and the persisted document is untouched.
type Service struct {
	registry *doc.Registry
	store    doc.Store
	cache    Cache
	ttl      time.Duration
}

func New(registry *doc.Registry, store doc.Store, cache Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{registry: registry, store: store, cache: cache, ttl: ttl}
}

// PreviewPatched fetches the live document, applies patches in memory via the
// manager, flattens relationships back to storage-safe references so the
// cached shape matches what the render path expects, caches the result under
// a fresh random key, and returns targetURL with that key appended. Nothing
// is persisted.
func (s *Service) PreviewPatched(ctx context.Context, targetURL, docID, docType string, patches []map[string]any) (string, error) {
	m, err := s.registry.Resolve(docType)
	if err != nil {
		return "", err
	}
	live, err := s.store.FindOne(ctx, map[string]any{doc.FieldID: docID})
	if errors.Is(err, doc.ErrNoDocument) {
		return "", doc.Errorf(doc.KindNotFound, "document %s not found", docID)
	}
	if err != nil {
		return "", err
	}

	patched := live.Clone()
	for _, p := range patches {
		if err := m.ApplyPatch(ctx, patched, p); err != nil {
			return "", err
		}
	}
	if err := m.PrepareRelationshipsForStorage(ctx, patched); err != nil {
		return "", err
	}

	key := doc.NewID()
	if err := s.cache.Set(ctx, key, patched, s.ttl); err != nil {
		return "", err
	}
	metrics.PreviewsStored.Inc()

	u, err := url.Parse(targetURL)
	if err != nil {
		return "", doc.Errorf(doc.KindInvalid, "malformed target url %q", targetURL)
	}
	q := u.Query()
	q.Set(QueryParam, key)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Resolve returns the cached preview document for key, or nil when the key
// is unknown or its entry has expired.
func (s *Service) Resolve(ctx context.Context, key string) (doc.Document, error) {
	d, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if d != nil {
		metrics.PreviewHits.Inc()
	}
	return d, nil
}
