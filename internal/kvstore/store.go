// Package kvstore is the durable get/set-by-key collaborator shared by the
// translation job and edit lock records.
package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store is a durable key/value store. Set is last-write-wins per key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// CompareAndSwap replaces the value of key with next only if the current
	// value equals old. A nil old means the key must be absent, a nil next
	// deletes the key.
	CompareAndSwap(ctx context.Context, key string, old, next []byte) (bool, error)
}

// GetJSON decodes the value stored under key into v.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v encoded as JSON under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}
