package testsupport

import (
	"path/filepath"
	"testing"

	"purpleify/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The correlation store defaults to SQLite inside the temp data directory.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.OutputDir = filepath.Join(base, "out")
	cfgVal.Correlation.Path = filepath.Join(base, "data", "correlation.db")
	cfgVal.Transform.Endpoint = "http://127.0.0.1:0/transform"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithEndpoint points the transform client at endpoint, usually an httptest server.
func WithEndpoint(endpoint string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transform.Endpoint = endpoint
	}
}

// WithBackend selects the correlation store backend. The path is placed in
// the temp data directory for persistent backends.
func WithBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Correlation.Backend = backend
		switch backend {
		case config.BackendSQLite:
			b.cfg.Correlation.Path = filepath.Join(b.baseDir, "data", "correlation.db")
		case config.BackendFile:
			b.cfg.Correlation.Path = filepath.Join(b.baseDir, "data", "correlation.json")
		default:
			b.cfg.Correlation.Path = ""
		}
	}
}

// WithCapacity overrides the correlation ring capacity.
func WithCapacity(capacity int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Correlation.Capacity = capacity
	}
}

// WithTruncation sets the decoder truncation policy.
func WithTruncation(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Decoder.Truncation = policy
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
