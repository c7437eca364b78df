// Package ingest orchestrates the document ingestion pipeline: validate,
// mint an identifier, store the original, render and store the preview,
// warm the local cache.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/paperstack/previewd/internal/domain"
	"github.com/paperstack/previewd/internal/metrics"
)

var pdfMagic = []byte("%PDF")

// Service runs the ingestion pipeline. There is no retry inside the
// pipeline; a caller-level retry simply mints a new identifier.
type Service struct {
	store    Store
	cache    Cache
	renderer Renderer
	logger   *zap.Logger
}

// New creates an ingestion service.
func New(store Store, cache Cache, renderer Renderer, logger *zap.Logger) *Service {
	return &Service{store: store, cache: cache, renderer: renderer, logger: logger}
}

// Ingest validates and stores an uploaded document plus its derived
// preview. Each step is a checkpoint:
//
//   - validation failure: domain.ErrInvalidInput, no state created;
//   - original put failure: IngestionError{Stage: storeOriginal}, total
//     abort, nothing retrievable;
//   - render failure: degraded success — the returned Receipt carries a
//     valid id with an empty PreviewPath, and the error wraps
//     domain.ErrExtractionFailed. The original is NOT rolled back;
//   - preview put failure: IngestionError{Stage: storePreview}, receipt
//     for the original is still returned alongside the error;
//   - cache warming never fails the ingestion.
func (s *Service) Ingest(ctx context.Context, data []byte, declaredType, filename string) (domain.Receipt, error) {
	if err := validate(data, declaredType); err != nil {
		metrics.IngestionsTotal.WithLabelValues("invalid").Inc()
		return domain.Receipt{}, err
	}

	id := domain.NewProcessingID()
	original := domain.Artifact{
		ID:          id,
		Kind:        domain.KindOriginal,
		Data:        data,
		ContentType: domain.ContentTypePDF,
		Filename:    filename,
	}

	if err := s.store.Put(ctx, original); err != nil {
		metrics.IngestionsTotal.WithLabelValues("failed").Inc()
		return domain.Receipt{}, &domain.IngestionError{
			Stage:        domain.StageStoreOriginal,
			ProcessingID: id,
			Err:          err,
		}
	}

	receipt := domain.Receipt{
		ProcessingID: id,
		OriginalPath: original.Path(),
		Filename:     filename,
	}

	previewData, err := s.renderer.RenderFirstPage(data)
	if err != nil {
		// The original is already durable; the id stays valid without a
		// preview. Surfaced distinctly from total failure.
		s.logger.Warn("Preview extraction failed",
			zap.String("processing_id", id.String()), zap.Error(err))
		metrics.IngestionsTotal.WithLabelValues("degraded").Inc()
		s.cache.Write(original)
		if !errors.Is(err, domain.ErrExtractionFailed) {
			err = fmt.Errorf("%v: %w", err, domain.ErrExtractionFailed)
		}
		return receipt, err
	}

	preview := domain.Artifact{
		ID:          id,
		Kind:        domain.KindPreview,
		Data:        previewData,
		ContentType: domain.ContentTypePNG,
	}

	if err := s.store.Put(ctx, preview); err != nil {
		metrics.IngestionsTotal.WithLabelValues("failed").Inc()
		s.cache.Write(original)
		return receipt, &domain.IngestionError{
			Stage:        domain.StageStorePreview,
			ProcessingID: id,
			Err:          err,
		}
	}
	receipt.PreviewPath = preview.Path()

	s.cache.Write(original)
	s.cache.Write(preview)

	metrics.IngestionsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("Document ingested",
		zap.String("processing_id", id.String()),
		zap.String("filename", filename),
		zap.Int("original_bytes", len(data)),
		zap.Int("preview_bytes", len(previewData)),
	)
	return receipt, nil
}

// validate checks that the upload is a well-formed PDF without rendering
// it; renderability is the extraction step's concern.
func validate(data []byte, declaredType string) error {
	if len(data) == 0 {
		return fmt.Errorf("empty upload: %w", domain.ErrInvalidInput)
	}
	if declaredType != "" && !strings.Contains(strings.ToLower(declaredType), "pdf") {
		return fmt.Errorf("unsupported content type %q: %w", declaredType, domain.ErrInvalidInput)
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return fmt.Errorf("missing PDF header: %w", domain.ErrInvalidInput)
	}
	if !mimetype.Detect(data).Is(domain.ContentTypePDF) {
		return fmt.Errorf("content is not a PDF: %w", domain.ErrInvalidInput)
	}
	return nil
}
