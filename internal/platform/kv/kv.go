// Package kv provides the string key-value primitive backing local draft
// persistence. Values round-trip unchanged; absence is reported explicitly
// rather than as an error.
package kv

import "context"

// Store is a minimal string key-value store.
type Store interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
