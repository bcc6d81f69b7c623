// Package diskcache provides a content-addressed, disk-backed cache for HTTP
// response bodies, partitioned into independent expiry/size policy buckets.
//
// Each entry is a file at root/<bucketFolder>/<fingerprint>.dkc, where the
// fingerprint is a 128-bit hex digest of the request's URL, body, and locale.
// Buckets enforce a time-to-live on read and a byte budget via background
// oldest-first eviction:
//
//   - Expiration is lazy: an entry's age is checked only when it is loaded;
//     expired entries are deleted on access, never swept proactively.
//   - Eviction is opportunistic: a store that pushes a bucket over its budget
//     kicks off one asynchronous trim pass, which deletes the oldest files
//     until the bucket is back at 75% of budget.
//   - Recency is write time. Loading an entry does not refresh its timestamp,
//     so a frequently read entry is not protected from eviction. This is a
//     known policy choice, not an access-time-aware LRU.
//
// The cache is best-effort and fail-safe-open: if a bucket folder cannot be
// created the whole engine disables itself, every Store becomes a no-op, and
// every Load misses, so callers always fall back to the network. No method
// surfaces I/O errors.
//
// # Basic Usage
//
//	cache := diskcache.New(diskcache.Options{Root: "/var/cache/hellfire"})
//	defer cache.Close()
//
//	id := diskcache.RequestIdentity{
//		URL:    "https://api.example.com/items",
//		Locale: "en-US",
//	}
//
//	if data := cache.Load(policy.Day, id); data != nil {
//		// Cache hit - skip the network entirely
//	}
//
//	cache.Store(responseBody, policy.Day, id)
//
// # Testing
//
// All storage goes through the FileSystem capability. Tests inject an
// in-memory filesystem:
//
//	cache := diskcache.New(diskcache.Options{
//		Root: "/cache",
//		FS:   diskcache.NewFileSystem(afero.NewMemMapFs()),
//	})
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - hellfire_cache_hits_total{bucket} - Cache hits
//   - hellfire_cache_misses_total{bucket} - Cache misses
//   - hellfire_cache_expired_total{bucket} - Entries expired on access
//   - hellfire_cache_evicted_files_total{bucket} - Files removed by trims
//   - hellfire_cache_evicted_bytes_total{bucket} - Bytes reclaimed by trims
//   - hellfire_cache_bytes_used{bucket} - Current on-disk footprint
//   - hellfire_cache_errors_total{operation} - Cache operation errors
//
// # Concurrency
//
// Store, Load, Clear, and ClearAll may be called from any number of
// goroutines. Per-bucket byte counters and trim flags are the only shared
// mutable state; both live behind a single mutex that is never held across
// file I/O. Two concurrent stores of the same fingerprint may race
// last-write-wins, which is acceptable for a layer re-derivable from the
// network. At most one trim pass runs per bucket; trims for different
// buckets run in parallel.
package diskcache
