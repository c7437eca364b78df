package filecache

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/paperstack/previewd/internal/domain"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(afero.NewMemMapFs(), "/cache", zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func makeArtifact(id string, kind domain.ArtifactKind, data string) domain.Artifact {
	ct := domain.ContentTypePDF
	if kind == domain.KindPreview {
		ct = domain.ContentTypePNG
	}
	return domain.Artifact{
		ID:          domain.ProcessingID(id),
		Kind:        kind,
		Data:        []byte(data),
		ContentType: ct,
		Filename:    "doc.pdf",
	}
}

func TestReadMissOnEmptyCache(t *testing.T) {
	c := newTestCache(t)

	if _, ok := c.Read("nope", domain.KindOriginal); ok {
		t.Error("expected miss on empty cache")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	c := newTestCache(t)
	a := makeArtifact("id-1", domain.KindOriginal, "original-bytes")

	c.Write(a)

	got, ok := c.Read(a.ID, a.Kind)
	if !ok {
		t.Fatal("expected hit after write")
	}
	if !bytes.Equal(got.Data, a.Data) {
		t.Error("cached bytes differ")
	}
	if got.ContentType != a.ContentType || got.Filename != a.Filename {
		t.Errorf("meta = %q/%q", got.ContentType, got.Filename)
	}
}

func TestWriteIsIdempotent(t *testing.T) {
	c := newTestCache(t)
	a := makeArtifact("id-2", domain.KindPreview, "png-bytes")

	// Redundant writes with identical bytes must leave the entry intact
	// regardless of call count.
	for i := 0; i < 5; i++ {
		c.Write(a)
	}

	got, ok := c.Read(a.ID, a.Kind)
	if !ok || !bytes.Equal(got.Data, a.Data) {
		t.Error("entry corrupted by redundant writes")
	}
}

func TestEntriesAreKeyedByKind(t *testing.T) {
	c := newTestCache(t)
	c.Write(makeArtifact("id-3", domain.KindOriginal, "pdf"))
	c.Write(makeArtifact("id-3", domain.KindPreview, "png"))

	orig, ok := c.Read("id-3", domain.KindOriginal)
	if !ok || string(orig.Data) != "pdf" {
		t.Error("original entry wrong")
	}
	prev, ok := c.Read("id-3", domain.KindPreview)
	if !ok || string(prev.Data) != "png" {
		t.Error("preview entry wrong")
	}
}

func TestReadMissOnMissingSidecar(t *testing.T) {
	c := newTestCache(t)
	a := makeArtifact("id-4", domain.KindOriginal, "data")
	c.Write(a)

	// Remove the sidecar: the entry must degrade to a miss, never to an
	// artifact without a content type.
	if err := c.fs.Remove(c.metaPath(a.ID, a.Kind)); err != nil {
		t.Fatalf("remove sidecar: %v", err)
	}
	if _, ok := c.Read(a.ID, a.Kind); ok {
		t.Error("expected miss without sidecar")
	}
}

func TestWriteFailureIsSwallowed(t *testing.T) {
	base := afero.NewMemMapFs()
	c, err := New(base, "/cache", zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.fs = afero.NewReadOnlyFs(base)

	// Must not panic or surface the error; the cache is best effort.
	c.Write(makeArtifact("id-5", domain.KindOriginal, "data"))

	if _, ok := c.Read("id-5", domain.KindOriginal); ok {
		t.Error("write on read-only fs should not produce an entry")
	}
}

func TestProbe(t *testing.T) {
	c := newTestCache(t)
	if err := c.Probe(); err != nil {
		t.Errorf("Probe: %v", err)
	}
}
