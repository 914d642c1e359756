// Package cache holds the product stream resolution cache and its stores.
package cache

import (
	"context"
	"time"
)

// Store is the key/value backend of the resolution cache.
type Store interface {
	// Test reports when key was last saved, or false when it is absent or expired.
	Test(ctx context.Context, key string) (time.Time, bool, error)

	// Touch extends the store expiry of key by extra. It does not change
	// the save time reported by Test.
	Touch(ctx context.Context, key string, extra time.Duration) error

	// Save stores value under key for lifetime and records it under tags.
	Save(ctx context.Context, key string, value []byte, tags []string, lifetime time.Duration) error

	// Load returns the value of key, or false when it is absent or expired.
	Load(ctx context.Context, key string) ([]byte, bool, error)
}

// TagCleaner is implemented by stores that can drop every key saved under a tag.
type TagCleaner interface {
	CleanTag(ctx context.Context, tag string) error
}

// Locker is implemented by stores shared between processes. Lock tries to
// take a lease on key; release must be called when ok is true.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}
