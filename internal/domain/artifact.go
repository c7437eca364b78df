// Package domain holds the core types and errors of the preview service.
package domain

import "github.com/google/uuid"

// ProcessingID correlates one ingested document with its derived artifacts.
// It is minted once per ingestion and never reused.
type ProcessingID string

// NewProcessingID mints a collision-resistant identifier. Safe for
// concurrent use; there is no shared state behind it.
func NewProcessingID() ProcessingID {
	return ProcessingID(uuid.NewString())
}

func (id ProcessingID) String() string { return string(id) }

// ArtifactKind names one of the two objects stored per processing id.
type ArtifactKind string

const (
	// KindOriginal is the uploaded source document.
	KindOriginal ArtifactKind = "original"
	// KindPreview is the rendered first-page raster image.
	KindPreview ArtifactKind = "preview"
)

// Valid reports whether k is a known artifact kind.
func (k ArtifactKind) Valid() bool {
	return k == KindOriginal || k == KindPreview
}

func (k ArtifactKind) String() string { return string(k) }

// Content types stored alongside artifacts.
const (
	ContentTypePDF = "application/pdf"
	ContentTypePNG = "image/png"
)

// ObjectPath is the stable storage key path for an artifact,
// e.g. "3f1a.../original". Consumed externally for display and
// debugging; never renamed after the first write.
func ObjectPath(id ProcessingID, kind ArtifactKind) string {
	return string(id) + "/" + string(kind)
}

// Artifact is a stored object: the original document or its preview.
// Artifacts are write-once; bytes never change after a successful put.
type Artifact struct {
	ID          ProcessingID
	Kind        ArtifactKind
	Data        []byte
	ContentType string
	// Filename is the caller-supplied name of the uploaded file.
	// Only meaningful for KindOriginal; kept as a display hint.
	Filename string
}

// Path returns the artifact's storage key path.
func (a Artifact) Path() string { return ObjectPath(a.ID, a.Kind) }

// Receipt is the caller-facing result of a successful (or degraded)
// ingestion. PreviewPath is empty when the preview could not be produced.
type Receipt struct {
	ProcessingID ProcessingID
	OriginalPath string
	PreviewPath  string
	Filename     string
}
