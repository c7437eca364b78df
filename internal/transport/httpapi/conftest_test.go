package httpapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/paperstack/previewd/internal/domain"
	healthuc "github.com/paperstack/previewd/internal/usecase/health"
	ingestuc "github.com/paperstack/previewd/internal/usecase/ingest"
	retrieveuc "github.com/paperstack/previewd/internal/usecase/retrieve"
)

var testPDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< >>\n%%EOF\n")

// memStore backs both the ingestion and retrieval paths in tests.
type memStore struct {
	mu      sync.Mutex
	objects map[string]domain.Artifact
	putErr  error
	getErr  error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string]domain.Artifact{}}
}

func (m *memStore) Put(_ context.Context, a domain.Artifact) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[a.Path()] = a
	return nil
}

func (m *memStore) Get(_ context.Context, id domain.ProcessingID, kind domain.ArtifactKind) (domain.Artifact, error) {
	if m.getErr != nil {
		return domain.Artifact{}, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.objects[domain.ObjectPath(id, kind)]
	if !ok {
		return domain.Artifact{}, domain.ErrObjectNotFound
	}
	return a, nil
}

func (m *memStore) Ping(context.Context) error { return nil }

// nilCache never hits so every read goes to the store.
type nilCache struct{}

func (nilCache) Read(domain.ProcessingID, domain.ArtifactKind) (domain.Artifact, bool) {
	return domain.Artifact{}, false
}

func (nilCache) Write(domain.Artifact) {}

type stubRenderer struct {
	png []byte
	err error
}

func (r stubRenderer) RenderFirstPage([]byte) ([]byte, error) { return r.png, r.err }

type stubVerifier struct{ err error }

func (v stubVerifier) Verify(domain.ProcessingID, domain.ArtifactKind, string, string) error {
	return v.err
}

type serverFixture struct {
	store  *memStore
	router chi.Router
}

// newFixture wires a Server over in-memory collaborators.
func newFixture(t *testing.T, renderer ingestuc.Renderer, verifier Verifier) *serverFixture {
	t.Helper()
	store := newMemStore()
	nop := zap.NewNop()

	srv := NewServer(
		ingestuc.New(store, nilCache{}, renderer, nop),
		retrieveuc.New(nilCache{}, store),
		nil,
		healthuc.New(store, nil),
		verifier,
		4,
		nop,
	)

	r := chi.NewRouter()
	srv.Routes(r)
	return &serverFixture{store: store, router: r}
}

// multipartBody builds a multipart form with one "file" part.
func multipartBody(t *testing.T, filename, contentType string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	h["Content-Type"] = []string{contentType}
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func (f *serverFixture) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *serverFixture) upload(t *testing.T, filename, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, filename, contentType, data)
	return f.do(t, http.MethodPost, "/documents", body, ct)
}

var errRenderBoom = errors.New("render boom")
