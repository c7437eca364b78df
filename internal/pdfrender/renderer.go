// Package pdfrender derives preview images from PDF documents via MuPDF.
package pdfrender

import (
	"fmt"

	"github.com/gen2brain/go-fitz"

	"github.com/paperstack/previewd/internal/domain"
)

const defaultDPI = 150

// Renderer rasterizes the first page of a PDF as a PNG. Rendering is
// synchronous and CPU-bound, with no side effects.
type Renderer struct {
	dpi float64
}

// New creates a Renderer. dpi <= 0 selects the default resolution.
func New(dpi float64) *Renderer {
	if dpi <= 0 {
		dpi = defaultDPI
	}
	return &Renderer{dpi: dpi}
}

// RenderFirstPage renders page one of the document as PNG bytes.
// Corrupt, encrypted or zero-page documents fail with
// domain.ErrExtractionFailed.
func (r *Renderer) RenderFirstPage(data []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open document: %v: %w", err, domain.ErrExtractionFailed)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("document has no pages: %w", domain.ErrExtractionFailed)
	}

	png, err := doc.ImagePNG(0, r.dpi)
	if err != nil {
		return nil, fmt.Errorf("render first page: %v: %w", err, domain.ErrExtractionFailed)
	}
	return png, nil
}
