// Package previewd is the embedded client for the preview pipeline: it
// wires the ingestion and retrieval use cases directly against a
// Valkey/Redis backend, without running the HTTP service.
package previewd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/paperstack/previewd/internal/domain"
	"github.com/paperstack/previewd/internal/kv"
	kvRedis "github.com/paperstack/previewd/internal/kv/redis"
	"github.com/paperstack/previewd/internal/pdfrender"
	artifactrepo "github.com/paperstack/previewd/internal/repository/artifact"
	"github.com/paperstack/previewd/internal/repository/filecache"
	ingestuc "github.com/paperstack/previewd/internal/usecase/ingest"
	retrieveuc "github.com/paperstack/previewd/internal/usecase/retrieve"
)

const defaultReadinessTimeout = 10 * time.Second

// ErrExtractionFailed reports a degraded ingestion: the original is
// stored and the returned receipt is valid, but no preview exists.
var ErrExtractionFailed = domain.ErrExtractionFailed

// ErrNotFound reports a fetch of an artifact that was never stored.
var ErrNotFound = domain.ErrObjectNotFound

// Client is the embedded SDK entry point.
type Client struct {
	store    kv.Store
	ingest   *ingestuc.Service
	retrieve *retrieveuc.Service
}

// New creates a Client and connects to the backend.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		keyPrefix: "previewd:",
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("previewd: backend address required (use WithValkey or WithRedis)")
	}

	store, err := kvRedis.NewStore(kvRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("previewd: create store: %w", err)
	}

	if err := store.WaitForReady(context.Background(), defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("previewd: backend not ready: %w", err)
	}

	return wireClient(store, cfg)
}

func wireClient(store kv.Store, cfg *clientConfig) (*Client, error) {
	artifacts := artifactrepo.New(store, cfg.keyPrefix)

	var cache interface {
		Read(id domain.ProcessingID, kind domain.ArtifactKind) (domain.Artifact, bool)
		Write(a domain.Artifact)
	} = noCache{}

	if cfg.cacheDir != "" {
		fc, err := filecache.New(afero.NewOsFs(), cfg.cacheDir, cfg.logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("previewd: init cache: %w", err)
		}
		cache = fc
	}

	renderer := pdfrender.New(cfg.renderDPI)

	return &Client{
		store:    store,
		ingest:   ingestuc.New(artifacts, cache, renderer, cfg.logger),
		retrieve: retrieveuc.New(cache, artifacts),
	}, nil
}

// Ingest stores a PDF document and its derived first-page preview.
// A degraded ingestion returns a valid Receipt together with an error
// matching ErrExtractionFailed.
func (c *Client) Ingest(ctx context.Context, data []byte, filename string) (Receipt, error) {
	receipt, err := c.ingest.Ingest(ctx, data, domain.ContentTypePDF, filename)
	return receiptFromDomain(receipt), err
}

// Fetch retrieves a stored artifact through the cache-aside read path.
func (c *Client) Fetch(ctx context.Context, processingID string, kind Kind) (Artifact, error) {
	a, err := c.retrieve.Fetch(ctx, domain.ProcessingID(processingID), domain.ArtifactKind(kind))
	if err != nil {
		return Artifact{}, err
	}
	return artifactFromDomain(a), nil
}

// Close releases the backend connection.
func (c *Client) Close() {
	c.store.Close()
}

type noCache struct{}

func (noCache) Read(domain.ProcessingID, domain.ArtifactKind) (domain.Artifact, bool) {
	return domain.Artifact{}, false
}

func (noCache) Write(domain.Artifact) {}
