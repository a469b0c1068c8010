// Package testsupport provides per-test fixtures: isolated configs, open
// stores, and scripted collaborator fakes.
package testsupport

import (
	"path/filepath"
	"testing"

	"tgmirror/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.ExportDir = filepath.Join(base, "export")
	cfg.Telegram.Token = "test-token"
	cfg.Telegram.ChatID = 1
	cfg.OpenAI.APIKey = "test-key"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithDownloadConcurrency overrides the transfer pool size.
func WithDownloadConcurrency(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Download.Concurrency = n
	}
}

// WithTagBatchSize overrides the tagging batch size.
func WithTagBatchSize(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Tagging.BatchSize = n
	}
}
