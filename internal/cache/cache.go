// Package cache provides the short-lived memoization layer for catalog and
// ledger reads. Entries expire after a TTL; every write path additionally
// invalidates the affected keys so readers never see a stale row past the
// declared window.
package cache

// Cache is a generic read-through cache.
type Cache[T any] interface {
	// Get retrieves a value from the cache.
	Get(key string) (T, bool)

	// Set stores a value in the cache.
	Set(key string, data T)

	// Delete removes a single key.
	Delete(key string)

	// Purge drops every entry. Used as the invalidation hook when a write
	// can affect an unknown set of cached queries.
	Purge()

	// Size returns the current number of items in the cache.
	Size() int
}

// Cleaner is implemented by caches that support expiry sweeps.
type Cleaner interface {
	CleanExpired() int
}
