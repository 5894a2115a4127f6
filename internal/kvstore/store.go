package kvstore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kvstore: store closed")

// Record is one stored entry.
type Record struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
	// Seq increases with every Put; re-putting a key moves it to the end.
	Seq int64 `json:"seq"`
}

// Store is implemented by every backend.
type Store interface {
	Load(ctx context.Context, prefix string) ([]Record, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open opens the store for backend. Path is ignored by the memory backend.
func Open(ctx context.Context, backend, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendSQLite:
		s, err := OpenSQLite(ctx, path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendFile:
		s, err := OpenFile(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("kvstore: unknown backend %q", backend)
	}
}

func filterPrefix(records []Record, prefix string) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if strings.HasPrefix(rec.Key, prefix) {
			rec.Value = slices.Clone(rec.Value)
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b Record) int { return cmp.Compare(a.Seq, b.Seq) })
	return out
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
