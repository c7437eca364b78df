// Package analyze sends an ingested preview to the analysis service and
// post-processes the response.
package analyze

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/paperstack/previewd/internal/domain"
)

const (
	defaultQuery  = "Please analyze this document image"
	defaultURLTTL = 10 * time.Minute

	// VariableConfirmationRecord is extracted on every analysis run.
	VariableConfirmationRecord = "confirmation_record"
)

// Service orchestrates one analysis run: sign a time-bounded preview
// URL, invoke the analysis service with it, extract variables from the
// response.
type Service struct {
	store    Store
	analyzer Analyzer
	vars     Variables
	logger   *zap.Logger
	query    string
	urlTTL   time.Duration
}

// New creates an analysis service.
func New(store Store, analyzer Analyzer, vars Variables, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		analyzer: analyzer,
		vars:     vars,
		logger:   logger,
		query:    defaultQuery,
		urlTTL:   defaultURLTTL,
	}
}

// WithQuery overrides the default analysis prompt.
func (s *Service) WithQuery(q string) *Service {
	if q != "" {
		s.query = q
	}
	return s
}

// WithURLTTL overrides how long signed preview links stay valid. The TTL
// bounds exposure while leaving the analysis service time to fetch.
func (s *Service) WithURLTTL(ttl time.Duration) *Service {
	if ttl > 0 {
		s.urlTTL = ttl
	}
	return s
}

// Analyze runs the analysis over the preview of a previously ingested
// document. extraVars are extracted in addition to the confirmation
// record; absent variables appear in the result with Found=false.
func (s *Service) Analyze(ctx context.Context, id domain.ProcessingID, extraVars []string) (domain.AnalysisResult, error) {
	ok, err := s.store.Exists(ctx, id, domain.KindPreview)
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("check preview: %w", err)
	}
	if !ok {
		return domain.AnalysisResult{}, fmt.Errorf("no preview for %s: %w", id, domain.ErrObjectNotFound)
	}

	previewURL, err := s.store.URLFor(ctx, id, domain.KindPreview, s.urlTTL)
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("sign preview url: %w", err)
	}

	s.logger.Info("Sending preview for analysis", zap.String("processing_id", id.String()))
	resp, err := s.analyzer.SendPreview(ctx, previewURL, s.query)
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("analyze %s: %w", id, err)
	}

	names := append([]string{VariableConfirmationRecord}, extraVars...)
	vars := s.vars.ExtractAll(ctx, resp, names)

	found := 0
	for _, v := range vars {
		if v.Found {
			found++
		}
	}
	s.logger.Info("Analysis completed",
		zap.String("processing_id", id.String()),
		zap.String("conversation_id", resp.ConversationID),
		zap.Int("variables_found", found),
		zap.Int("variables_requested", len(names)),
	)

	return domain.AnalysisResult{
		ProcessingID:   id,
		ConversationID: resp.ConversationID,
		MessageID:      resp.MessageID,
		Answer:         resp.Answer,
		CreatedAt:      resp.CreatedAt,
		Variables:      vars,
	}, nil
}
