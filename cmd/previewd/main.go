// Command previewd runs the document preview service: an HTTP API that
// ingests PDF documents, derives first-page previews, serves both
// through a tiered store/cache, and hands previews to an external
// analysis service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/paperstack/previewd/internal/config"
	"github.com/paperstack/previewd/internal/domain"
	"github.com/paperstack/previewd/internal/kv"
	kvRedis "github.com/paperstack/previewd/internal/kv/redis"
	logpkg "github.com/paperstack/previewd/internal/logger"
	"github.com/paperstack/previewd/internal/metrics"
	"github.com/paperstack/previewd/internal/pdfrender"
	artifactrepo "github.com/paperstack/previewd/internal/repository/artifact"
	"github.com/paperstack/previewd/internal/repository/filecache"
	"github.com/paperstack/previewd/internal/transport/dify"
	"github.com/paperstack/previewd/internal/transport/httpapi"
	"github.com/paperstack/previewd/internal/urlsign"
	analyzeuc "github.com/paperstack/previewd/internal/usecase/analyze"
	healthuc "github.com/paperstack/previewd/internal/usecase/health"
	ingestuc "github.com/paperstack/previewd/internal/usecase/ingest"
	retrieveuc "github.com/paperstack/previewd/internal/usecase/retrieve"
	variablesuc "github.com/paperstack/previewd/internal/usecase/variables"
	"github.com/paperstack/previewd/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting previewd",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("blob_driver", cfg.Blob.Driver),
		zap.Strings("blob_addrs", cfg.Blob.Addrs),
	)

	// The blob backend; both drivers speak the same protocol via rueidis.
	var store kv.Store
	switch cfg.Blob.Driver {
	case "valkey", "redis":
		store, err = kvRedis.NewStore(kvRedis.Config{
			Addrs:    cfg.Blob.Addrs,
			Password: cfg.Blob.Password,
		})
	default:
		logger.Fatal("Unknown blob driver", zap.String("driver", cfg.Blob.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create blob store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Blob.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Blob store not ready", zap.Error(err))
	}
	logger.Info("Connected to blob store")

	metrics.Register()

	// Signed retrieval links, if configured.
	var signer *urlsign.Signer
	if cfg.Signing.Secret != "" {
		signer = urlsign.New(cfg.Signing.Secret, cfg.Signing.BaseURL)
	}

	artifacts := artifactrepo.New(store, cfg.Blob.KeyPrefix)
	if signer != nil {
		artifacts = artifacts.WithSigner(signer)
	}

	// Local cache; disabling it leaves the read path store-only.
	var cache *filecache.Cache
	if !cfg.Cache.Disabled {
		cache, err = filecache.New(afero.NewOsFs(), cfg.Cache.Dir, logger)
		if err != nil {
			logger.Fatal("Failed to initialize local cache", zap.Error(err))
		}
		cache = cache.WithMetrics(metrics.ArtifactCacheTotal)
		logger.Info("Local cache initialized", zap.String("dir", cfg.Cache.Dir))
	}

	renderer := pdfrender.New(cfg.Render.DPI)

	var artifactCache artifactCacher = noopCache{}
	if cache != nil {
		artifactCache = cache
	}

	ingestSvc := ingestuc.New(artifacts, artifactCache, renderer, logger)
	retrieveSvc := retrieveuc.New(artifactCache, artifacts)

	// Analysis wiring is optional: without a base URL the analyze routes
	// answer 501.
	var analyzeSvc *analyzeuc.Service
	if cfg.Analysis.BaseURL != "" {
		client := dify.NewClient(&dify.Config{
			BaseURL: cfg.Analysis.BaseURL,
			APIKey:  cfg.Analysis.APIKey,
			User:    cfg.Analysis.User,
			Timeout: time.Duration(cfg.Analysis.TimeoutSec) * time.Second,
			Logger:  logger,
		})
		extractor := variablesuc.New(client, logger)
		analyzeSvc = analyzeuc.New(artifacts, client, extractor, logger).
			WithQuery(cfg.Analysis.Query).
			WithURLTTL(time.Duration(cfg.Signing.URLTTLSec) * time.Second)
		logger.Info("Analysis service configured", zap.String("base_url", cfg.Analysis.BaseURL))
	} else {
		logger.Warn("Analysis service not configured; analyze endpoints disabled")
	}

	var cacheProber healthuc.CacheProber
	if cache != nil {
		cacheProber = cache
	}
	healthSvc := healthuc.New(store, cacheProber)

	var verifier httpapi.Verifier
	if signer != nil {
		verifier = signer
	}
	server := httpapi.NewServer(
		ingestSvc, retrieveSvc, analyzeSvc, healthSvc, verifier, cfg.HTTP.MaxUploadMB, logger,
	)

	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(metrics.Middleware())
	r.Use(httpapi.BearerAuthMiddleware(cfg.Auth.APIKeys))
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	logger.Info("Server stopped gracefully")
}

// artifactCacher is the union of the ingest and retrieve cache contracts.
type artifactCacher interface {
	Read(id domain.ProcessingID, kind domain.ArtifactKind) (domain.Artifact, bool)
	Write(a domain.Artifact)
}

// noopCache stands in when the local cache is disabled: every read is a
// miss and writes vanish, which cache-aside semantics tolerate.
type noopCache struct{}

func (noopCache) Read(domain.ProcessingID, domain.ArtifactKind) (domain.Artifact, bool) {
	return domain.Artifact{}, false
}

func (noopCache) Write(domain.Artifact) {}
