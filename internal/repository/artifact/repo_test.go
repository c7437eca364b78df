package artifact

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paperstack/previewd/internal/domain"
	"github.com/paperstack/previewd/internal/kv"
)

func TestPut_WritesMetaThenData(t *testing.T) {
	var order []string
	m := &mockStore{
		hsetFn: func(_ context.Context, key string, fields map[string]string) error {
			order = append(order, "meta:"+key)
			if fields["content_type"] != domain.ContentTypePDF {
				t.Errorf("content_type = %q", fields["content_type"])
			}
			if fields["filename"] != "report.pdf" {
				t.Errorf("filename = %q", fields["filename"])
			}
			return nil
		},
		setFn: func(_ context.Context, key string, value []byte) error {
			order = append(order, "data:"+key)
			if !bytes.Equal(value, []byte("%PDF-...")) {
				t.Error("stored bytes differ from input")
			}
			return nil
		},
	}
	repo := New(m, "pv:")

	err := repo.Put(context.Background(), domain.Artifact{
		ID:          "id-1",
		Kind:        domain.KindOriginal,
		Data:        []byte("%PDF-..."),
		ContentType: domain.ContentTypePDF,
		Filename:    "report.pdf",
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	want := []string{"meta:pv:id-1/original:meta", "data:pv:id-1/original"}
	if len(order) != 2 || order[0] != want[0] || order[1] != want[1] {
		t.Errorf("write order = %v, want %v", order, want)
	}
}

func TestPut_QuotaExceeded(t *testing.T) {
	m := &mockStore{
		setFn: func(context.Context, string, []byte) error { return kv.ErrNoSpace },
	}
	repo := New(m, "")

	err := repo.Put(context.Background(), domain.Artifact{ID: "x", Kind: domain.KindOriginal})
	if !errors.Is(err, domain.ErrStorageQuotaExceeded) {
		t.Errorf("err = %v, want ErrStorageQuotaExceeded", err)
	}
}

func TestPut_TransportError(t *testing.T) {
	m := &mockStore{
		setFn: func(context.Context, string, []byte) error {
			return &kv.Error{Op: kv.OpSet, Err: errors.New("connection refused")}
		},
	}
	repo := New(m, "")

	err := repo.Put(context.Background(), domain.Artifact{ID: "x", Kind: domain.KindOriginal})
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("err = %v, want ErrStorageUnavailable", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	m := &mockStore{
		getFn: func(context.Context, string) ([]byte, error) { return nil, kv.ErrKeyNotFound },
	}
	repo := New(m, "")

	_, err := repo.Get(context.Background(), "nope", domain.KindPreview)
	if !errors.Is(err, domain.ErrObjectNotFound) {
		t.Errorf("err = %v, want ErrObjectNotFound", err)
	}
}

func TestGet_ReturnsMetaAndBytes(t *testing.T) {
	m := &mockStore{
		getFn: func(_ context.Context, key string) ([]byte, error) {
			if key != "pv:id-2/original" {
				t.Errorf("key = %q", key)
			}
			return []byte("doc-bytes"), nil
		},
		hgetAllFn: func(context.Context, string) (map[string]string, error) {
			return map[string]string{"content_type": "application/pdf", "filename": "a.pdf"}, nil
		},
	}
	repo := New(m, "pv:")

	a, err := repo.Get(context.Background(), "id-2", domain.KindOriginal)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(a.Data) != "doc-bytes" || a.ContentType != "application/pdf" || a.Filename != "a.pdf" {
		t.Errorf("artifact = %+v", a)
	}
}

func TestGet_MissingMetaDefaultsContentType(t *testing.T) {
	m := &mockStore{
		getFn: func(context.Context, string) ([]byte, error) { return []byte("png"), nil },
		hgetAllFn: func(context.Context, string) (map[string]string, error) {
			return map[string]string{}, nil
		},
	}
	repo := New(m, "")

	a, err := repo.Get(context.Background(), "id", domain.KindPreview)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a.ContentType != domain.ContentTypePNG {
		t.Errorf("content type = %q, want %q", a.ContentType, domain.ContentTypePNG)
	}
}

func TestURLFor_NoSigner(t *testing.T) {
	repo := New(&mockStore{}, "")

	_, err := repo.URLFor(context.Background(), "id", domain.KindPreview, time.Minute)
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("err = %v, want ErrStorageUnavailable", err)
	}
}

func TestURLFor_SignerErrors(t *testing.T) {
	repo := New(&mockStore{}, "").WithSigner(&mockSigner{err: errors.New("no secret")})

	_, err := repo.URLFor(context.Background(), "id", domain.KindPreview, time.Minute)
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("err = %v, want ErrStorageUnavailable", err)
	}
}

func TestURLFor_Signs(t *testing.T) {
	repo := New(&mockStore{}, "").WithSigner(&mockSigner{url: "https://x/artifacts/id/preview?exp=1&sig=s"})

	u, err := repo.URLFor(context.Background(), "id", domain.KindPreview, time.Minute)
	if err != nil {
		t.Fatalf("URLFor: %v", err)
	}
	if u == "" {
		t.Error("empty url")
	}
}
