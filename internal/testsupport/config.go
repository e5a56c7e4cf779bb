package testsupport

import (
	"path/filepath"
	"testing"

	"r2rpack/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Email is disabled and the default large-dataset allow-list applies.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.SourceRoot = filepath.Join(base, "CruiseData")
	cfg.Paths.OutputRoot = filepath.Join(base, "r2r_packages")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Email.Enabled = false

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithLargeDatasets overrides the allow-list on the test config.
func WithLargeDatasets(names ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Packaging.LargeDatasets = names
	}
}
