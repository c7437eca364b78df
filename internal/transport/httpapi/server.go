// Package httpapi is the chi HTTP surface of previewd.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/paperstack/previewd/internal/domain"
	analyzeuc "github.com/paperstack/previewd/internal/usecase/analyze"
	healthuc "github.com/paperstack/previewd/internal/usecase/health"
	ingestuc "github.com/paperstack/previewd/internal/usecase/ingest"
	retrieveuc "github.com/paperstack/previewd/internal/usecase/retrieve"
)

// errorCode is the machine-readable error tag in JSON error responses.
type errorCode string

const (
	codeBadRequest         errorCode = "bad_request"
	codeInvalidInput       errorCode = "invalid_input"
	codeNotFound           errorCode = "not_found"
	codeExtractionFailed   errorCode = "extraction_failed"
	codeIngestionFailed    errorCode = "ingestion_failed"
	codeStorageUnavailable errorCode = "storage_unavailable"
	codeStorageQuota       errorCode = "storage_quota_exceeded"
	codeAnalysisError      errorCode = "analysis_error"
	codeLinkRejected       errorCode = "link_rejected"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Verifier checks signed artifact links.
type Verifier interface {
	Verify(id domain.ProcessingID, kind domain.ArtifactKind, exp, sig string) error
}

// Server exposes the ingestion, retrieval and analysis use cases.
type Server struct {
	ingest        *ingestuc.Service
	retrieve      *retrieveuc.Service
	analyze       *analyzeuc.Service
	health        *healthuc.Service
	verifier      Verifier
	logger        *zap.Logger
	maxUploadMB   int
	errorHandlers []errorHandler
}

// NewServer creates the HTTP API server. analyze and verifier may be nil
// when the analysis service or link signing is not configured.
func NewServer(
	ingest *ingestuc.Service,
	retrieve *retrieveuc.Service,
	analyze *analyzeuc.Service,
	health *healthuc.Service,
	verifier Verifier,
	maxUploadMB int,
	logger *zap.Logger,
) *Server {
	s := &Server{
		ingest:      ingest,
		retrieve:    retrieve,
		analyze:     analyze,
		health:      health,
		verifier:    verifier,
		logger:      logger,
		maxUploadMB: maxUploadMB,
	}
	s.errorHandlers = []errorHandler{
		ingestionStageHandler,
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, codeInvalidInput),
		sentinelHandler(domain.ErrObjectNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrExtractionFailed, http.StatusUnprocessableEntity, codeExtractionFailed),
		sentinelHandler(domain.ErrStorageQuotaExceeded, http.StatusInsufficientStorage, codeStorageQuota),
		sentinelHandler(domain.ErrStorageUnavailable, http.StatusServiceUnavailable, codeStorageUnavailable),
		sentinelHandler(domain.ErrAnalysisService, http.StatusBadGateway, codeAnalysisError),
	}
	return s
}

// Routes mounts all handlers on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/documents", s.UploadDocument)
	r.Get("/documents/{id}/{kind}", s.FetchDocument)
	r.Post("/documents/{id}/analyze", s.AnalyzeDocument)
	r.Post("/process", s.ProcessDocument)
	r.Get("/artifacts/{id}/{kind}", s.FetchArtifact)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type receiptResponse struct {
	ProcessingID string `json:"processing_id"`
	OriginalPath string `json:"original_path"`
	PreviewPath  string `json:"preview_path,omitempty"`
	Filename     string `json:"filename,omitempty"`
	Message      string `json:"message"`
	Warning      string `json:"warning,omitempty"`
}

// UploadDocument handles POST /documents: multipart upload, ingestion.
// Degraded success (original stored, preview missing) still answers 201,
// with a warning and no preview path.
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	data, header, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	receipt, err := s.ingest.Ingest(r.Context(), data, header.contentType, header.filename)
	if err != nil && !errors.Is(err, domain.ErrExtractionFailed) {
		s.handleDomainError(w, err)
		return
	}

	resp := receiptResponse{
		ProcessingID: receipt.ProcessingID.String(),
		OriginalPath: receipt.OriginalPath,
		PreviewPath:  receipt.PreviewPath,
		Filename:     receipt.Filename,
		Message:      "document processed successfully",
	}
	if err != nil {
		resp.Message = "document stored without preview"
		resp.Warning = "preview extraction failed"
	}
	writeJSON(w, http.StatusCreated, resp)
}

// FetchDocument handles GET /documents/{id}/{kind}.
func (s *Server) FetchDocument(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r)
}

// FetchArtifact handles GET /artifacts/{id}/{kind}: the signed-link
// variant used by third parties that hold no API key.
func (s *Server) FetchArtifact(w http.ResponseWriter, r *http.Request) {
	id := domain.ProcessingID(chi.URLParam(r, "id"))
	kind := domain.ArtifactKind(chi.URLParam(r, "kind"))

	if s.verifier == nil {
		writeError(w, http.StatusNotFound, codeLinkRejected, "signed links are not enabled")
		return
	}
	q := r.URL.Query()
	if err := s.verifier.Verify(id, kind, q.Get("exp"), q.Get("sig")); err != nil {
		writeError(w, http.StatusForbidden, codeLinkRejected, "link expired or invalid")
		return
	}
	s.serveArtifact(w, r)
}

func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request) {
	id := domain.ProcessingID(chi.URLParam(r, "id"))
	kind := domain.ArtifactKind(chi.URLParam(r, "kind"))

	a, err := s.retrieve.Fetch(r.Context(), id, kind)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", a.ContentType)
	if a.Filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", a.Filename))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Data)
}

type analyzeRequest struct {
	Variables []string `json:"variables"`
}

type variableResponse struct {
	Value  any    `json:"value"`
	Found  bool   `json:"found"`
	Source string `json:"source,omitempty"`
}

type analysisResponse struct {
	ProcessingID   string                      `json:"processing_id"`
	Answer         string                      `json:"answer"`
	ConversationID string                      `json:"conversation_id,omitempty"`
	MessageID      string                      `json:"message_id,omitempty"`
	CreatedAt      int64                       `json:"created_at,omitempty"`
	Variables      map[string]variableResponse `json:"variables"`
}

// AnalyzeDocument handles POST /documents/{id}/analyze.
func (s *Server) AnalyzeDocument(w http.ResponseWriter, r *http.Request) {
	if s.analyze == nil {
		writeError(w, http.StatusNotImplemented, codeAnalysisError, "analysis service is not configured")
		return
	}

	var req analyzeRequest
	if r.Body != nil {
		// An empty body means "default variables only".
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	id := domain.ProcessingID(chi.URLParam(r, "id"))
	result, err := s.analyze.Analyze(r.Context(), id, req.Variables)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnalysisResponse(result))
}

// ProcessDocument handles POST /process: one-shot upload, ingest and
// analyze. The analysis consumes the preview, so a degraded ingestion
// (no preview) fails this route even though the original is stored.
func (s *Server) ProcessDocument(w http.ResponseWriter, r *http.Request) {
	if s.analyze == nil {
		writeError(w, http.StatusNotImplemented, codeAnalysisError, "analysis service is not configured")
		return
	}

	data, header, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	receipt, err := s.ingest.Ingest(r.Context(), data, header.contentType, header.filename)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	result, err := s.analyze.Analyze(r.Context(), receipt.ProcessingID, nil)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnalysisResponse(result))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

type uploadHeader struct {
	filename    string
	contentType string
}

// readUpload decodes the multipart "file" part. Returns ok=false after
// writing the error response.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, uploadHeader, bool) {
	maxBytes := int64(s.maxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "missing multipart file field: "+err.Error())
		return nil, uploadHeader{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "failed to read upload: "+err.Error())
		return nil, uploadHeader{}, false
	}

	return data, uploadHeader{
		filename:    header.Filename,
		contentType: header.Header.Get("Content-Type"),
	}, true
}

func toAnalysisResponse(result domain.AnalysisResult) analysisResponse {
	vars := make(map[string]variableResponse, len(result.Variables))
	for name, v := range result.Variables {
		vars[name] = variableResponse{Value: v.Value, Found: v.Found, Source: v.Source}
	}
	return analysisResponse{
		ProcessingID:   result.ProcessingID.String(),
		Answer:         result.Answer,
		ConversationID: result.ConversationID,
		MessageID:      result.MessageID,
		CreatedAt:      result.CreatedAt,
		Variables:      vars,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code         errorCode `json:"code"`
	Message      string    `json:"message"`
	Stage        string    `json:"stage,omitempty"`
	ProcessingID string    `json:"processing_id,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client
// without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidInput,
		domain.ErrObjectNotFound,
		domain.ErrExtractionFailed,
		domain.ErrIngestionFailed,
		domain.ErrStorageQuotaExceeded,
		domain.ErrStorageUnavailable,
		domain.ErrAnalysisService,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			if errors.Is(err, domain.ErrAnalysisService) {
				// The upstream message is part of the contract: preserve it.
				return err.Error()
			}
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches one sentinel.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, safeDomainMessage(err))
		return true
	}
}

// ingestionStageHandler reports the failed stage and processing id so a
// later inquiry can be correlated.
func ingestionStageHandler(w http.ResponseWriter, err error) bool {
	var ie *domain.IngestionError
	if !errors.As(err, &ie) {
		return false
	}
	status := http.StatusBadGateway
	if errors.Is(ie.Err, domain.ErrStorageQuotaExceeded) {
		status = http.StatusInsufficientStorage
	}
	writeJSON(w, status, errorResponse{
		Code:         codeIngestionFailed,
		Message:      domain.ErrIngestionFailed.Error(),
		Stage:        ie.Stage,
		ProcessingID: ie.ProcessingID.String(),
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("unhandled error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeBadRequest, "internal error")
}
