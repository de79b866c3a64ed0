package cache

import "time"

// Cache is the interface for caching resolved window metadata. Resolution of
// a window's market is one Gamma API round trip; every tick handler after the
// first should hit this cache instead.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns (value, true) if found, (nil, false) if not found.
	Get(key string) (interface{}, bool)

	// Set stores a value in the cache with a TTL.
	Set(key string, value interface{}, ttl time.Duration) bool

	// Delete removes a value from the cache.
	Delete(key string)

	// Close closes the cache and releases resources.
	Close()
}
