package correlation

import (
	"context"
	"encoding/json"
	"fmt"

	"purpleify/internal/kvstore"
)

// Store is the durable key/value collaborator used for persistence.
// Load must return the records under prefix ordered by Record.Seq.
type Store interface {
	Load(ctx context.Context, prefix string) ([]kvstore.Record, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// storedEntry is the persisted form of one cache entry.
type storedEntry[K comparable, V any] struct {
	Key   K `json:"key"`
	Value V `json:"value"`
}

// StorageKey returns the key an entry is persisted under.
func StorageKey[K comparable](namespace string, key K) string {
	return StoragePrefix(namespace) + fmt.Sprint(key)
}

// StoragePrefix returns the prefix shared by every persisted entry of namespace.
func StoragePrefix(namespace string) string {
	return namespace + "-"
}

// DecodeEntry parses a persisted record value.
func DecodeEntry[K comparable, V any](data []byte) (K, V, error) {
	var entry storedEntry[K, V]
	if err := json.Unmarshal(data, &entry); err != nil {
		var (
			zk K
			zv V
		)
		return zk, zv, fmt.Errorf("decode entry: %w", err)
	}
	return entry.Key, entry.Value, nil
}

func encodeEntry[K comparable, V any](key K, value V) ([]byte, error) {
	return json.Marshal(storedEntry[K, V]{Key: key, Value: value})
}
