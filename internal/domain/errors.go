package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput signals a malformed or unsupported upload. No state
	// is created when this is returned.
	ErrInvalidInput = errors.New("invalid input")
	// ErrExtractionFailed signals that the preview could not be rendered.
	// The original is already durable when this surfaces from ingestion:
	// degraded success, not total failure.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrIngestionFailed signals an aborted ingestion. See IngestionError
	// for the failed stage.
	ErrIngestionFailed = errors.New("ingestion failed")
	// ErrObjectNotFound signals an artifact that was never written or
	// whose write never completed.
	ErrObjectNotFound = errors.New("object not found")
	// ErrStorageUnavailable signals a transient backend fault. Retrying
	// the whole operation is safe: writes are idempotent by identifier.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrStorageQuotaExceeded signals that the backend rejected a write
	// for capacity reasons.
	ErrStorageQuotaExceeded = errors.New("storage quota exceeded")
	// ErrAnalysisService signals an upstream analysis fault. The upstream
	// message is preserved in the wrapping error.
	ErrAnalysisService = errors.New("analysis service error")
)

// Ingestion stages, used to report where an ingestion aborted.
const (
	StageStoreOriginal = "storeOriginal"
	StageStorePreview  = "storePreview"
)

// IngestionError wraps ErrIngestionFailed with the stage that failed and
// the processing id minted for the attempt (empty if none was minted),
// so a later support inquiry can be correlated without log archaeology.
type IngestionError struct {
	Stage        string
	ProcessingID ProcessingID
	Err          error
}

func (e *IngestionError) Error() string {
	if e.ProcessingID == "" {
		return fmt.Sprintf("%s at %s: %v", ErrIngestionFailed.Error(), e.Stage, e.Err)
	}
	return fmt.Sprintf("%s at %s (id %s): %v", ErrIngestionFailed.Error(), e.Stage, e.ProcessingID, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// Is matches both ErrIngestionFailed and the wrapped cause.
func (e *IngestionError) Is(target error) bool { return target == ErrIngestionFailed }
