// Package artifact persists stored objects in the remote kv backend.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paperstack/previewd/internal/domain"
	"github.com/paperstack/previewd/internal/kv"
)

const (
	metaFieldContentType = "content_type"
	metaFieldFilename    = "filename"
)

// store is the consumer interface for artifacts (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// signer mints pre-authorized, time-bounded retrieval links.
type signer interface {
	Sign(id domain.ProcessingID, kind domain.ArtifactKind, ttl time.Duration) (string, error)
}

// Repo is the system of record for artifacts. Objects are write-once:
// a key is never rewritten with different bytes after a successful put.
type Repo struct {
	store  store
	signer signer
	prefix string
}

// New creates an artifact repository. Keys are namespaced with prefix.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

// WithSigner enables URLFor. Without a signer, URLFor fails as
// storage-unavailable.
func (r *Repo) WithSigner(sg signer) *Repo {
	r.signer = sg
	return r
}

// Put durably stores an artifact. The metadata sidecar is written before
// the data key, so a partially failed put leaves nothing retrievable.
func (r *Repo) Put(ctx context.Context, a domain.Artifact) error {
	key := r.dataKey(a.ID, a.Kind)

	meta := map[string]string{metaFieldContentType: a.ContentType}
	if a.Filename != "" {
		meta[metaFieldFilename] = a.Filename
	}
	if err := r.store.HSet(ctx, r.metaKey(a.ID, a.Kind), meta); err != nil {
		return translateWriteErr("store metadata "+key, err)
	}

	if err := r.store.Set(ctx, key, a.Data); err != nil {
		return translateWriteErr("store "+key, err)
	}
	return nil
}

// Get retrieves an artifact. Missing metadata degrades to the default
// content type for the kind.
func (r *Repo) Get(ctx context.Context, id domain.ProcessingID, kind domain.ArtifactKind) (domain.Artifact, error) {
	key := r.dataKey(id, kind)

	data, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return domain.Artifact{}, fmt.Errorf("get %s: %w", key, domain.ErrObjectNotFound)
		}
		return domain.Artifact{}, fmt.Errorf("get %s: %v: %w", key, err, domain.ErrStorageUnavailable)
	}

	a := domain.Artifact{
		ID:          id,
		Kind:        kind,
		Data:        data,
		ContentType: defaultContentType(kind),
	}

	meta, err := r.store.HGetAll(ctx, r.metaKey(id, kind))
	if err == nil {
		if ct := meta[metaFieldContentType]; ct != "" {
			a.ContentType = ct
		}
		a.Filename = meta[metaFieldFilename]
	}
	return a, nil
}

// Exists reports whether the artifact's data key is present.
func (r *Repo) Exists(ctx context.Context, id domain.ProcessingID, kind domain.ArtifactKind) (bool, error) {
	ok, err := r.store.Exists(ctx, r.dataKey(id, kind))
	if err != nil {
		return false, fmt.Errorf("exists %s: %v: %w", r.dataKey(id, kind), err, domain.ErrStorageUnavailable)
	}
	return ok, nil
}

// URLFor produces a time-bounded retrieval link for third parties.
func (r *Repo) URLFor(_ context.Context, id domain.ProcessingID, kind domain.ArtifactKind, ttl time.Duration) (string, error) {
	if r.signer == nil {
		return "", fmt.Errorf("url signing not configured: %w", domain.ErrStorageUnavailable)
	}
	u, err := r.signer.Sign(id, kind, ttl)
	if err != nil {
		return "", fmt.Errorf("sign url for %s: %v: %w", domain.ObjectPath(id, kind), err, domain.ErrStorageUnavailable)
	}
	return u, nil
}

func (r *Repo) dataKey(id domain.ProcessingID, kind domain.ArtifactKind) string {
	return r.prefix + domain.ObjectPath(id, kind)
}

func (r *Repo) metaKey(id domain.ProcessingID, kind domain.ArtifactKind) string {
	return r.dataKey(id, kind) + ":meta"
}

func translateWriteErr(op string, err error) error {
	if errors.Is(err, kv.ErrNoSpace) {
		return fmt.Errorf("%s: %w", op, domain.ErrStorageQuotaExceeded)
	}
	return fmt.Errorf("%s: %v: %w", op, err, domain.ErrStorageUnavailable)
}

func defaultContentType(kind domain.ArtifactKind) string {
	if kind == domain.KindPreview {
		return domain.ContentTypePNG
	}
	return domain.ContentTypePDF
}
