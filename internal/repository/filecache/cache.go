// Package filecache mirrors stored artifacts on local disk. The cache is
// strictly an optimization: entries may be absent at any time, and a
// present entry is always byte-identical to the stored object because
// artifacts are write-once.
package filecache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/paperstack/previewd/internal/domain"
)

// entryMeta is the sidecar record kept next to the cached bytes.
type entryMeta struct {
	ContentType string `json:"content_type"`
	Filename    string `json:"filename,omitempty"`
}

// Cache is a no-eviction disk mirror of the artifact store.
type Cache struct {
	fs         afero.Fs
	dir        string
	logger     *zap.Logger
	cacheTotal *prometheus.CounterVec
}

// New creates the cache directory if needed.
func New(fs afero.Fs, dir string, logger *zap.Logger) (*Cache, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return &Cache{fs: fs, dir: dir, logger: logger}, nil
}

// WithMetrics attaches a hit/miss counter vec with label "result".
func (c *Cache) WithMetrics(cv *prometheus.CounterVec) *Cache {
	c.cacheTotal = cv
	return c
}

// Read is a pure local lookup. It never contacts the remote store.
// The second return is false on a miss or on any local read fault.
func (c *Cache) Read(id domain.ProcessingID, kind domain.ArtifactKind) (domain.Artifact, bool) {
	data, err := afero.ReadFile(c.fs, c.dataPath(id, kind))
	if err != nil {
		c.count("miss")
		return domain.Artifact{}, false
	}

	a := domain.Artifact{ID: id, Kind: kind, Data: data}
	if raw, err := afero.ReadFile(c.fs, c.metaPath(id, kind)); err == nil {
		var m entryMeta
		if err := json.Unmarshal(raw, &m); err == nil {
			a.ContentType = m.ContentType
			a.Filename = m.Filename
		}
	}
	if a.ContentType == "" {
		// Incomplete sidecar: treat as a miss rather than serve an
		// artifact without a content type.
		c.count("miss")
		return domain.Artifact{}, false
	}

	c.count("hit")
	return a, true
}

// Write stores an artifact in the cache, best effort. Failures are
// logged at warn and swallowed: the cache is never a consistency
// requirement. Redundant writes with identical bytes are safe.
func (c *Cache) Write(a domain.Artifact) {
	if err := c.write(a); err != nil {
		c.logger.Warn("Failed to cache artifact",
			zap.String("path", a.Path()), zap.Error(err))
	}
}

func (c *Cache) write(a domain.Artifact) error {
	meta, err := json.Marshal(entryMeta{ContentType: a.ContentType, Filename: a.Filename})
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	// Data first, sidecar second: a reader that races the sidecar write
	// sees a miss, never a partial entry.
	if err := c.writeAtomic(c.dataPath(a.ID, a.Kind), a.Data); err != nil {
		return err
	}
	return c.writeAtomic(c.metaPath(a.ID, a.Kind), meta)
}

// writeAtomic writes to a temp file and renames it into place so a
// concurrent identical write cannot expose torn bytes.
func (c *Cache) writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := afero.WriteFile(c.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := c.fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// Probe verifies the cache medium accepts writes. Used by health checks.
func (c *Cache) Probe() error {
	probe := filepath.Join(c.dir, ".probe")
	if err := afero.WriteFile(c.fs, probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("cache probe write: %w", err)
	}
	if err := c.fs.Remove(probe); err != nil {
		return fmt.Errorf("cache probe cleanup: %w", err)
	}
	return nil
}

func (c *Cache) dataPath(id domain.ProcessingID, kind domain.ArtifactKind) string {
	h := sha256.Sum256([]byte(domain.ObjectPath(id, kind)))
	return filepath.Join(c.dir, hex.EncodeToString(h[:]))
}

func (c *Cache) metaPath(id domain.ProcessingID, kind domain.ArtifactKind) string {
	return c.dataPath(id, kind) + ".meta"
}

func (c *Cache) count(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
