package previewd

import "github.com/paperstack/previewd/internal/domain"

// Kind names one of the two artifacts stored per processing id.
type Kind string

// Artifact kinds.
const (
	KindOriginal Kind = Kind(domain.KindOriginal)
	KindPreview  Kind = Kind(domain.KindPreview)
)

// Receipt is the result of an ingestion. PreviewPath is empty when the
// preview could not be derived (degraded success).
type Receipt struct {
	ProcessingID string
	OriginalPath string
	PreviewPath  string
	Filename     string
}

// Artifact is a stored object returned by Fetch.
type Artifact struct {
	ProcessingID string
	Kind         Kind
	Data         []byte
	ContentType  string
	Filename     string
}

func receiptFromDomain(r domain.Receipt) Receipt {
	return Receipt{
		ProcessingID: r.ProcessingID.String(),
		OriginalPath: r.OriginalPath,
		PreviewPath:  r.PreviewPath,
		Filename:     r.Filename,
	}
}

func artifactFromDomain(a domain.Artifact) Artifact {
	return Artifact{
		ProcessingID: a.ID.String(),
		Kind:         Kind(a.Kind),
		Data:         a.Data,
		ContentType:  a.ContentType,
		Filename:     a.Filename,
	}
}
