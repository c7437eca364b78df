// Package retrieve serves artifacts through the cache-aside read path.
package retrieve

import (
	"context"
	"fmt"

	"github.com/paperstack/previewd/internal/domain"
)

// Service reads artifacts: local cache first, remote store on a miss,
// filling the cache on the way out. Concurrent misses for the same key
// may each fetch and fill redundantly; that is deliberate — identical
// bytes make the redundant write idempotent, and deduplication would buy
// little for the extra machinery.
type Service struct {
	cache Cache
	store Store
}

// New creates a retrieval service.
func New(cache Cache, store Store) *Service {
	return &Service{cache: cache, store: store}
}

// Fetch returns the artifact for (id, kind). On a cache hit the remote
// store is not contacted at all. ErrObjectNotFound and
// ErrStorageUnavailable propagate unchanged.
func (s *Service) Fetch(ctx context.Context, id domain.ProcessingID, kind domain.ArtifactKind) (domain.Artifact, error) {
	if !kind.Valid() {
		return domain.Artifact{}, fmt.Errorf("unknown artifact kind %q: %w", kind, domain.ErrInvalidInput)
	}

	if a, ok := s.cache.Read(id, kind); ok {
		return a, nil
	}

	a, err := s.store.Get(ctx, id, kind)
	if err != nil {
		return domain.Artifact{}, err
	}

	s.cache.Write(a)
	return a, nil
}
