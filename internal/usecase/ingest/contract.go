package ingest

import (
	"context"

	"github.com/paperstack/previewd/internal/domain"
)

// Store is the durable artifact store (system of record).
type Store interface {
	Put(ctx context.Context, a domain.Artifact) error
}

// Cache is the best-effort local mirror warmed after a successful put.
type Cache interface {
	Write(a domain.Artifact)
}

// Renderer derives the preview image from the original document.
type Renderer interface {
	RenderFirstPage(data []byte) ([]byte, error)
}
