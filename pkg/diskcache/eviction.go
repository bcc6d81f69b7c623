package diskcache

import "sort"

// trim is the background eviction pass for one bucket. At most one runs per
// bucket at a time: the caller sets the bucket's trimming flag under the
// accounting mutex before spawning, and a store that finds the flag set
// simply drops the redundant trigger.
//
// Oldest entries go first, judged by write time; a read never refreshes an
// entry, so a read-hot entry enjoys no protection. The pass deletes files
// until the bucket's footprint falls to 75% of its budget, leaving a
// hysteresis band that prevents trim-thrash when stores and evictions run
// at a similar rate.
func (c *Cache) trim(st *bucketState) {
	defer c.trimWG.Done()
	defer func() {
		c.mu.Lock()
		st.trimming = false
		c.mu.Unlock()
	}()

	target := st.maxBytes * 3 / 4

	c.mu.Lock()
	bytesUsed := st.bytesUsed
	c.mu.Unlock()
	if bytesUsed <= target {
		return
	}

	files, err := c.fs.ListFiles(st.dir, FileExtension)
	if err != nil {
		CacheErrors.WithLabelValues("trim").Inc()
		c.logger.Warn().
			Err(err).
			Str("bucket", st.bucket.String()).
			Msg("Trim listing failed")
		return
	}

	// Ascending by write time; zero timestamps sort first and are treated
	// as oldest, so a file with missing attributes never blocks progress.
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].CreatedAt.Before(files[j].CreatedAt)
	})

	var removedFiles int
	var removedBytes uint64
	for _, f := range files {
		c.mu.Lock()
		done := st.bytesUsed <= target
		c.mu.Unlock()
		if done {
			break
		}

		if err := c.fs.Remove(f.Path); err != nil {
			// Already gone or busy; skip it rather than stall the pass.
			CacheErrors.WithLabelValues("trim").Inc()
			continue
		}
		c.subtractBytes(st, uint64(f.Size))
		removedFiles++
		removedBytes += uint64(f.Size)
	}

	CacheEvictedFiles.WithLabelValues(st.bucket.String()).Add(float64(removedFiles))
	CacheEvictedBytes.WithLabelValues(st.bucket.String()).Add(float64(removedBytes))

	c.mu.Lock()
	bytesUsed = st.bytesUsed
	c.mu.Unlock()
	c.logger.Info().
		Str("bucket", st.bucket.String()).
		Int("evicted_files", removedFiles).
		Uint64("evicted_bytes", removedBytes).
		Uint64("bytes_used", bytesUsed).
		Uint64("target_bytes", target).
		Msg("Trim pass finished")
}
