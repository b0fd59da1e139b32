package metadata

import "context"

// Repository is a small string key/value store for client-side flags and
// counters (migration markers, usage counters, device fingerprint).
type Repository interface {
	// Get returns the stored value, or ("", false, nil) when the key is
	// absent.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}
