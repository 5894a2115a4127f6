package testsupport

import (
	"context"
	"testing"

	"purpleify/internal/config"
	"purpleify/internal/kvstore"
)

// MustOpenStore opens the configured correlation store for tests and
// registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) kvstore.Store {
	t.Helper()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	store, err := kvstore.Open(context.Background(), cfg.Correlation.Backend, cfg.Correlation.Path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
