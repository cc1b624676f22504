// Package shardcache presents a directory of record shards as one
// contiguous, randomly indexable sequence while keeping only a bounded
// number of shards decoded in memory.
//
// A shard is one file in the directory; files are ordered by name. How many
// records a shard holds is only known after decoding it, so shard
// boundaries are discovered lazily: asking for record i decodes every
// not-yet-indexed shard before the one that holds it. Once a shard's range
// is known it is never recomputed, even after its content is evicted.
//
// # Basic Usage
//
//	c, err := shardcache.Open(dir, decodeHeader, shardcache.Options{
//	    ResidencyLimit: 100,
//	    Name:           "header",
//	})
//	if err != nil {
//	    return err
//	}
//
//	for i := range c.Len() {
//	    h, err := c.At(i)
//	    ...
//	}
//
// # Shard files
//
//   - names ending in ".gz" are read through a gzip stream
//   - names ending in ".tmp" are provisional and contribute no records
//   - a shard that cannot be opened contributes no records (logged)
//   - a truncated or corrupt trailing record is dropped (logged)
//
// # Eviction
//
// With a residency limit of n > 0, loading a shard first evicts the
// least-recently-loaded shards until fewer than n remain. Under the default
// [LoadOrder] policy reading a resident shard does not refresh it; use
// [AccessOrder] for a true LRU.
//
// # Concurrency
//
// A [Cache] is not safe for concurrent use. Every call may perform blocking
// file I/O on the calling goroutine.
package shardcache
