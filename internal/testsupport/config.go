// Package testsupport holds shared helpers for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"jobscout/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ExportDir = filepath.Join(base, "export")
	cfgVal.Paths.SkipDir = filepath.Join(base, "skip")
	cfgVal.Paths.CurrentDir = filepath.Join(base, "current")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Search.Queries = []string{"golang developer"}
	cfgVal.Search.Sites = []string{"testboard"}
	cfgVal.Pipeline.SessionRetentionSeconds = 300
	cfgVal.Pipeline.ProgressSampleInterval = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithEnrichmentKey sets the enrichment credential on the test config.
func WithEnrichmentKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Enrichment.APIKey = key
	}
}

// WithEnrichmentURL points the enrichment client at a test server.
func WithEnrichmentURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Enrichment.BaseURL = url
	}
}

// WithFiltering replaces the filtering settings on the test config.
func WithFiltering(settings config.Filtering) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Filtering = settings
	}
}

// WithRetention overrides the session retention window in seconds.
func WithRetention(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.SessionRetentionSeconds = seconds
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
