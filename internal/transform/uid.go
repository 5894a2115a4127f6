package transform

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"purpleify/internal/correlation"
)

const clientUIDKey = "client_uid"

// ClientUID returns the identifier this installation sends with every
// transform, creating and persisting one on first use.
func ClientUID(ctx context.Context, store correlation.Store) (string, error) {
	records, err := store.Load(ctx, clientUIDKey)
	if err != nil {
		return "", fmt.Errorf("load client uid: %w", err)
	}
	for _, rec := range records {
		if rec.Key == clientUIDKey && len(rec.Value) > 0 {
			return string(rec.Value), nil
		}
	}

	uid := uuid.NewString()
	if err := store.Put(ctx, clientUIDKey, []byte(uid)); err != nil {
		return "", fmt.Errorf("persist client uid: %w", err)
	}
	return uid, nil
}
