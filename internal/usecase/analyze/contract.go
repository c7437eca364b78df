package analyze

import (
	"context"
	"time"

	"github.com/paperstack/previewd/internal/domain"
)

// Store checks preview availability and signs retrieval links for the
// analysis service.
type Store interface {
	Exists(ctx context.Context, id domain.ProcessingID, kind domain.ArtifactKind) (bool, error)
	URLFor(ctx context.Context, id domain.ProcessingID, kind domain.ArtifactKind, ttl time.Duration) (string, error)
}

// Analyzer is the external analysis service.
type Analyzer interface {
	SendPreview(ctx context.Context, previewURL, query string) (domain.AnalysisResponse, error)
}

// Variables resolves named variables out of an analysis response.
type Variables interface {
	ExtractAll(ctx context.Context, resp domain.AnalysisResponse, names []string) map[string]domain.Variable
}
