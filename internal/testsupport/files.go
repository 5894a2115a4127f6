package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"purpleify/internal/wire"
)

// Page is one image body used to build a test stream.
type Page []byte

// EncodeStream renders pages followed by a metadata frame for meta (skipped
// when meta is nil).
func EncodeStream(t testing.TB, meta any, pages ...Page) []byte {
	t.Helper()

	var buf bytes.Buffer
	enc := wire.NewEncoder(&buf)
	for i, page := range pages {
		if err := enc.WriteImage(page); err != nil {
			t.Fatalf("encode page %d: %v", i, err)
		}
	}
	if meta != nil {
		if err := enc.WriteMetadata(meta); err != nil {
			t.Fatalf("encode metadata: %v", err)
		}
	}
	return buf.Bytes()
}

// WriteStream writes an encoded stream to path and returns the bytes written.
func WriteStream(t testing.TB, path string, meta any, pages ...Page) []byte {
	t.Helper()

	data := EncodeStream(t, meta, pages...)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return data
}
