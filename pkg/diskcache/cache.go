package diskcache

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ehellyer/Hellfire/pkg/fingerprint"
	"github.com/ehellyer/Hellfire/pkg/policy"
)

// FileExtension is the extension carried by every cache file, without the
// leading dot. Only files with this extension count toward a bucket's byte
// budget.
const FileExtension = "dkc"

// RequestIdentity is the key material a cache entry is derived from.
type RequestIdentity struct {
	// URL is the absolute request URL.
	URL string

	// Body is the serialized request body, nil when absent.
	Body []byte

	// Locale is the caller's locale identifier. Requests differing only
	// in locale never share an entry.
	Locale string
}

// Fingerprint returns the entry's file base name, a 32-character hex digest
// of the request identity.
func (id RequestIdentity) Fingerprint() string {
	return fingerprint.ForRequest(id.URL, id.Body, id.Locale)
}

// bucketState is the runtime record for one policy bucket. The byte counter
// and trim flag are guarded by the engine's accounting mutex; the rest is
// immutable after construction.
type bucketState struct {
	bucket   policy.Bucket
	dir      string
	maxBytes uint64

	bytesUsed uint64
	trimming  bool
}

// Options configures a Cache.
type Options struct {
	// Root is the directory the bucket folders live under.
	Root string

	// FS is the storage capability. Defaults to the real disk.
	FS FileSystem

	// MaxBytes overrides the default byte budget for individual buckets.
	MaxBytes map[policy.Bucket]uint64
}

// Cache is the disk-backed store/load/clear engine. It owns one bucketState
// per cacheable policy bucket and a single mutex guarding their byte
// accounting and trim flags. All methods are safe for concurrent use.
type Cache struct {
	fs     FileSystem
	root   string
	logger zerolog.Logger

	mu     sync.Mutex
	states map[policy.Bucket]*bucketState

	disabled bool
	now      func() time.Time
	trimWG   sync.WaitGroup
}

// New constructs the engine, creating any missing bucket folders and seeding
// each bucket's byte counter from the files already on disk.
//
// New never fails: if any bucket folder cannot be created the whole engine
// flips to a disabled state in which Store is a no-op and Load always
// misses. A partially usable cache would report byte accounting that cannot
// be trusted, so the failure mode is all-or-nothing; callers fall back to
// the network either way.
func New(opts Options) *Cache {
	fs := opts.FS
	if fs == nil {
		fs = NewOSFileSystem()
	}

	c := &Cache{
		fs:     fs,
		root:   opts.Root,
		logger: log.With().Str("component", "diskcache").Logger(),
		states: make(map[policy.Bucket]*bucketState),
		now:    time.Now,
	}

	for _, b := range policy.Buckets() {
		dir := filepath.Join(opts.Root, b.Folder())
		if err := fs.CreateDir(dir); err != nil {
			c.logger.Error().
				Err(err).
				Str("bucket", b.String()).
				Str("dir", dir).
				Msg("Bucket folder creation failed, disabling cache")
			c.disabled = true
			return c
		}

		maxBytes := b.DefaultMaxBytes()
		if override, ok := opts.MaxBytes[b]; ok {
			maxBytes = override
		}

		c.states[b] = &bucketState{bucket: b, dir: dir, maxBytes: maxBytes}
	}

	c.rescan()
	return c
}

// rescan recomputes every bucket's byte counter from the files on disk.
// Folders are scanned concurrently; a folder that cannot be listed counts
// as empty.
func (c *Cache) rescan() {
	var g errgroup.Group
	for _, st := range c.states {
		st := st
		g.Go(func() error {
			files, err := c.fs.ListFiles(st.dir, FileExtension)
			if err != nil {
				CacheErrors.WithLabelValues("scan").Inc()
				c.logger.Warn().
					Err(err).
					Str("bucket", st.bucket.String()).
					Msg("Bucket scan failed, assuming empty")
				return nil
			}

			var total uint64
			for _, f := range files {
				total += uint64(f.Size)
			}

			c.mu.Lock()
			st.bytesUsed = total
			c.mu.Unlock()
			CacheBytesUsed.WithLabelValues(st.bucket.String()).Set(float64(total))

			c.logger.Debug().
				Str("bucket", st.bucket.String()).
				Int("files", len(files)).
				Uint64("bytes_used", total).
				Msg("Bucket scanned")
			return nil
		})
	}
	_ = g.Wait()
}

// Store persists data under the fingerprint of id in bucket b.
//
// Store is a silent no-op when the engine is disabled, data is empty, or b
// is DoNotCache. An existing entry with the same fingerprint is replaced.
// After a successful write, a background trim pass is kicked off if the
// bucket is over budget and not already being trimmed; Store never waits
// for eviction.
func (c *Cache) Store(data []byte, b policy.Bucket, id RequestIdentity) {
	if c.disabled || len(data) == 0 || !b.Cacheable() {
		return
	}
	st := c.states[b]

	fp := id.Fingerprint()
	path := filepath.Join(st.dir, fp+"."+FileExtension)

	// Overwrite semantics: drop the old entry and its accounted bytes
	// before writing the new one.
	if info, err := c.fs.Stat(path); err == nil {
		if err := c.fs.Remove(path); err != nil {
			CacheErrors.WithLabelValues("store").Inc()
			c.logger.Warn().
				Err(err).
				Str("bucket", b.String()).
				Str("fingerprint", fp).
				Msg("Stale entry removal failed, skipping store")
			return
		}
		c.subtractBytes(st, uint64(info.Size))
	}

	if err := c.fs.WriteFile(path, data); err != nil {
		CacheErrors.WithLabelValues("store").Inc()
		c.logger.Warn().
			Err(err).
			Str("bucket", b.String()).
			Str("fingerprint", fp).
			Msg("Cache write failed")
		return
	}

	c.mu.Lock()
	st.bytesUsed += uint64(len(data))
	bytesUsed := st.bytesUsed
	trim := !st.trimming && st.bytesUsed > st.maxBytes
	if trim {
		st.trimming = true
	}
	c.mu.Unlock()
	CacheBytesUsed.WithLabelValues(b.String()).Set(float64(bytesUsed))

	c.logger.Debug().
		Str("bucket", b.String()).
		Str("fingerprint", fp).
		Int("bytes", len(data)).
		Uint64("bytes_used", bytesUsed).
		Msg("Stored cache entry")

	if trim {
		c.trimWG.Add(1)
		go c.trim(st)
	}
}

// Load returns the bytes stored under the fingerprint of id in bucket b, or
// nil on any kind of miss.
//
// Expiration is lazy: an entry older than the bucket's TTL is deleted here,
// on access, and reported as a miss. Read failures are also misses; no error
// ever reaches the caller.
func (c *Cache) Load(b policy.Bucket, id RequestIdentity) []byte {
	if c.disabled || !b.Cacheable() {
		return nil
	}
	st := c.states[b]

	fp := id.Fingerprint()
	path := filepath.Join(st.dir, fp+"."+FileExtension)

	info, err := c.fs.Stat(path)
	if err != nil {
		CacheMisses.WithLabelValues(b.String()).Inc()
		return nil
	}

	if c.now().Sub(info.CreatedAt) > b.TTL() {
		if err := c.fs.Remove(path); err != nil {
			CacheErrors.WithLabelValues("load").Inc()
			c.logger.Warn().
				Err(err).
				Str("bucket", b.String()).
				Str("fingerprint", fp).
				Msg("Expired entry removal failed")
		} else {
			c.subtractBytes(st, uint64(info.Size))
		}
		CacheExpired.WithLabelValues(b.String()).Inc()
		CacheMisses.WithLabelValues(b.String()).Inc()
		c.logger.Debug().
			Str("bucket", b.String()).
			Str("fingerprint", fp).
			Msg("Cache entry expired")
		return nil
	}

	data, err := c.fs.ReadFile(path)
	if err != nil {
		CacheErrors.WithLabelValues("load").Inc()
		CacheMisses.WithLabelValues(b.String()).Inc()
		return nil
	}

	CacheHits.WithLabelValues(b.String()).Inc()
	c.logger.Debug().
		Str("bucket", b.String()).
		Str("fingerprint", fp).
		Int("bytes", len(data)).
		Msg("Cache hit")
	return data
}

// Clear deletes bucket b's folder, recreates it empty, and resets its byte
// counter. The returned error is informational; the engine remains usable.
func (c *Cache) Clear(b policy.Bucket) error {
	if c.disabled || !b.Cacheable() {
		return nil
	}
	st := c.states[b]

	if err := c.fs.RemoveAll(st.dir); err != nil {
		CacheErrors.WithLabelValues("clear").Inc()
		return err
	}
	if err := c.fs.CreateDir(st.dir); err != nil {
		CacheErrors.WithLabelValues("clear").Inc()
		return err
	}

	c.mu.Lock()
	st.bytesUsed = 0
	c.mu.Unlock()
	CacheBytesUsed.WithLabelValues(b.String()).Set(0)

	c.logger.Info().Str("bucket", b.String()).Msg("Bucket cleared")
	return nil
}

// ClearAll clears every bucket. Buckets are cleared concurrently; the first
// failure is returned after all have been attempted.
func (c *Cache) ClearAll() error {
	var g errgroup.Group
	for _, b := range policy.Buckets() {
		b := b
		g.Go(func() error {
			return c.Clear(b)
		})
	}
	return g.Wait()
}

// BytesUsed returns bucket b's accounted on-disk footprint. The value lags
// the disk by a bounded amount while a trim pass is in flight.
func (c *Cache) BytesUsed(b policy.Bucket) uint64 {
	st := c.states[b]
	if st == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return st.bytesUsed
}

// Disabled reports whether the engine gave up at construction time.
func (c *Cache) Disabled() bool {
	return c.disabled
}

// Close waits for in-flight trim passes to finish. The engine holds no other
// resources.
func (c *Cache) Close() error {
	c.trimWG.Wait()
	return nil
}

// subtractBytes decrements a bucket's byte counter, flooring at zero to
// guard against drift.
func (c *Cache) subtractBytes(st *bucketState, n uint64) {
	c.mu.Lock()
	if st.bytesUsed < n {
		st.bytesUsed = 0
	} else {
		st.bytesUsed -= n
	}
	bytesUsed := st.bytesUsed
	c.mu.Unlock()
	CacheBytesUsed.WithLabelValues(st.bucket.String()).Set(float64(bytesUsed))
}
