package shardcache

import "errors"

// Sentinel errors returned by shardcache operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, shardcache.ErrEmptyDirectory) {
//	    // nothing recorded for this category yet
//	}
var (
	// ErrDirectory indicates the shard directory could not be listed.
	// The underlying OS error is wrapped.
	//
	// Fatal for [Open].
	ErrDirectory = errors.New("shardcache: cannot read directory")

	// ErrEmptyDirectory indicates the directory holds no usable shard:
	// it is empty or every entry is a provisional ".tmp" file.
	//
	// Fatal for [Open].
	ErrEmptyDirectory = errors.New("shardcache: no shards in directory")

	// ErrShardOpen indicates a shard could not be opened, or its gzip
	// header is invalid. The shard contributes zero records.
	//
	// Never returned from [Cache.At] or [Cache.Len]; only logged and
	// counted in [Stats.OpenFailures].
	ErrShardOpen = errors.New("shardcache: cannot open shard")

	// ErrMalformed is returned by a [DecodeFunc] for a partial or invalid
	// record. Decoding of the shard stops there and the record is dropped.
	// Any error other than [io.EOF] is treated the same way.
	ErrMalformed = errors.New("shardcache: malformed record")

	// ErrIndexOutOfRange indicates a negative index or one at or past the
	// total record count.
	ErrIndexOutOfRange = errors.New("shardcache: index out of range")

	// ErrInvalidLimit indicates a negative residency limit.
	//
	// This is a programming error.
	ErrInvalidLimit = errors.New("shardcache: invalid residency limit")

	// ErrShardChanged indicates a shard decoded to fewer records on reload
	// than when it was first indexed. The file was modified after the
	// cache was opened.
	//
	// Recovery: reopen the cache.
	ErrShardChanged = errors.New("shardcache: shard changed on disk")
)
