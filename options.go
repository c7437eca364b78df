package previewd

import "go.uber.org/zap"

type clientConfig struct {
	driver    string
	addrs     []string
	password  string
	keyPrefix string
	cacheDir  string
	renderDPI float64
	logger    *zap.Logger
}

// Option configures the embedded Client.
type Option func(*clientConfig)

// WithValkey connects to a Valkey backend.
func WithValkey(addrs ...string) Option {
	return func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = addrs
	}
}

// WithRedis connects to a Redis backend.
func WithRedis(addrs ...string) Option {
	return func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = addrs
	}
}

// WithPassword sets the backend password.
func WithPassword(password string) Option {
	return func(c *clientConfig) { c.password = password }
}

// WithKeyPrefix namespaces all stored keys. Default "previewd:".
func WithKeyPrefix(prefix string) Option {
	return func(c *clientConfig) { c.keyPrefix = prefix }
}

// WithCacheDir enables the local disk cache at dir. Without it, every
// fetch reads the remote store.
func WithCacheDir(dir string) Option {
	return func(c *clientConfig) { c.cacheDir = dir }
}

// WithRenderDPI sets the preview rendering resolution. Default 150.
func WithRenderDPI(dpi float64) Option {
	return func(c *clientConfig) { c.renderDPI = dpi }
}

// WithLogger sets the client logger. Default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}
