package retrieve

import (
	"context"

	"github.com/paperstack/previewd/internal/domain"
)

// Store is the durable artifact store consulted on a cache miss.
type Store interface {
	Get(ctx context.Context, id domain.ProcessingID, kind domain.ArtifactKind) (domain.Artifact, error)
}

// Cache is the local mirror checked first. Read never performs network
// I/O; Write is best effort.
type Cache interface {
	Read(id domain.ProcessingID, kind domain.ArtifactKind) (domain.Artifact, bool)
	Write(a domain.Artifact)
}
