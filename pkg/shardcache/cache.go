package shardcache

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/calvinalkan/beacon-reader/pkg/fs"
)

// DecodeFunc reads the next record from r.
//
// It returns [io.EOF] when r is exhausted exactly at a record boundary, and
// [ErrMalformed] (or any other error) for a partial or invalid record.
type DecodeFunc[T any] func(r io.Reader) (T, error)

// Options configures [Open]. The zero value is usable.
type Options struct {
	// FS is the filesystem shards are read from. Defaults to [fs.NewReal].
	FS fs.FS

	// ResidencyLimit is the maximum number of shards with decoded content in
	// memory. Zero means unlimited. Must not be negative.
	ResidencyLimit int

	// Policy selects the eviction order. Defaults to [LoadOrder].
	Policy EvictionPolicy

	// Name labels log entries and metrics. Defaults to the base name of the
	// directory.
	Name string

	// Logger receives skipped-shard and eviction diagnostics. Defaults to a
	// logger that discards everything.
	Logger logrus.FieldLogger

	// Metrics, if non-nil, receives counters for this cache.
	Metrics *Metrics
}

// Stats counts what a [Cache] has done since it was opened.
type Stats struct {
	Loads          int // shards decoded from disk, reloads included
	Hits           int // lookups served from resident content
	Evictions      int
	OpenFailures   int
	MalformedTails int
	Records        int // records decoded, reloads included
}

// ShardInfo describes one entry of the shard table.
type ShardInfo struct {
	Name string
	Path string

	// First and Last bound the half-open range [First, Last) of global
	// indices the shard holds. Only meaningful when Resolved is true.
	First int
	Last  int

	Resolved bool
	Resident bool

	// Skipped is true for provisional ".tmp" shards and shards that could
	// not be opened.
	Skipped bool
}

// shardMeta is permanent once resolved: eviction drops content only.
type shardMeta struct {
	path        string
	provisional bool

	first    int
	last     int
	resolved bool
	skipped  bool
}

func (m *shardMeta) contains(i int) bool {
	return m.resolved && i >= m.first && i < m.last
}

// Cache is a windowed view over the shards of one directory.
//
// A Cache is not safe for concurrent use.
type Cache[T any] struct {
	dir     string
	name    string
	fsys    fs.FS
	decode  DecodeFunc[T]
	log     logrus.FieldLogger
	metrics *Metrics

	limit    int
	shards   []shardMeta
	contents map[int][]T
	order    *residency

	// lastHit is the shard that served the previous lookup, or -1.
	lastHit int

	stats Stats
}

// Open builds the shard table for dir without decoding anything.
//
// Returns an error wrapping [ErrDirectory] if dir cannot be listed,
// [ErrEmptyDirectory] if it holds no shard other than ".tmp" files, or
// [ErrInvalidLimit] for a negative limit.
func Open[T any](dir string, decode DecodeFunc[T], opts Options) (*Cache[T], error) {
	if decode == nil {
		panic("shardcache: nil decode func")
	}

	if opts.ResidencyLimit < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, opts.ResidencyLimit)
	}

	fsys := opts.FS
	if fsys == nil {
		fsys = fs.NewReal()
	}

	paths, err := ListShards(fsys, dir)
	if err != nil {
		return nil, err
	}

	shards := make([]shardMeta, len(paths))
	usable := 0

	for i, path := range paths {
		shards[i] = shardMeta{path: path, provisional: isProvisional(path)}
		if !shards[i].provisional {
			usable++
		}
	}

	if usable == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDirectory, dir)
	}

	name := opts.Name
	if name == "" {
		name = filepath.Base(dir)
	}

	log := opts.Logger
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	c := &Cache[T]{
		dir:      dir,
		name:     name,
		fsys:     fsys,
		decode:   decode,
		log:      log.WithField("cache", name),
		metrics:  opts.Metrics,
		limit:    opts.ResidencyLimit,
		shards:   shards,
		contents: make(map[int][]T),
		lastHit:  -1,
	}

	c.order = newResidency(opts.Policy, c.drop)

	return c, nil
}

// Dir returns the directory the cache reads from.
func (c *Cache[T]) Dir() string { return c.dir }

// Name returns the label used in logs and metrics.
func (c *Cache[T]) Name() string { return c.name }

// ResidencyLimit returns the current limit. Zero means unlimited.
func (c *Cache[T]) ResidencyLimit() int { return c.limit }

// SetResidencyLimit changes the limit. Lowering it does not evict
// immediately; surplus shards are dropped by the next load.
func (c *Cache[T]) SetResidencyLimit(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}

	c.limit = n

	return nil
}

// At returns a copy of the record at global index i, loading and indexing
// shards as needed.
//
// Returns [ErrIndexOutOfRange] if i < 0 or i >= [Cache.Len].
func (c *Cache[T]) At(i int) (T, error) {
	var zero T

	if i < 0 {
		return zero, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}

	k, fresh, ok := c.locate(i)
	if !ok {
		return zero, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}

	if !fresh {
		c.ensure(k)
	}

	meta := &c.shards[k]
	records := c.contents[k]
	offset := i - meta.first

	if offset >= len(records) {
		return zero, fmt.Errorf("%w: %s has %d records, expected %d",
			ErrShardChanged, filepath.Base(meta.path), len(records), meta.last-meta.first)
	}

	return records[offset], nil
}

// Len returns the total number of records. The first call decodes every
// shard not yet indexed.
func (c *Cache[T]) Len() int {
	for k := range c.shards {
		c.resolve(k)
	}

	return c.shards[len(c.shards)-1].last
}

// Range calls fn for each index in [start, end) in order, stopping early if
// fn returns false. It returns [ErrIndexOutOfRange] when the range reaches
// past the last record.
func (c *Cache[T]) Range(start, end int, fn func(i int, rec T) bool) error {
	if start < 0 || end < start {
		return fmt.Errorf("%w: [%d, %d)", ErrIndexOutOfRange, start, end)
	}

	for i := start; i < end; i++ {
		rec, err := c.At(i)
		if err != nil {
			return err
		}

		if !fn(i, rec) {
			return nil
		}
	}

	return nil
}

// Shards returns a snapshot of the shard table in index order.
func (c *Cache[T]) Shards() []ShardInfo {
	infos := make([]ShardInfo, len(c.shards))

	for k, meta := range c.shards {
		infos[k] = ShardInfo{
			Name:     filepath.Base(meta.path),
			Path:     meta.path,
			First:    meta.first,
			Last:     meta.last,
			Resolved: meta.resolved,
			Resident: c.order.contains(k),
			Skipped:  meta.skipped,
		}
	}

	return infos
}

// Resident returns the positions of shards with content in memory, most
// recently loaded (or, under [AccessOrder], used) first.
func (c *Cache[T]) Resident() []int {
	return c.order.newestFirst()
}

// Stats returns the counters accumulated since [Open].
func (c *Cache[T]) Stats() Stats {
	return c.stats
}

// locate finds the shard whose range holds i, indexing shards in ascending
// order until one does. fresh reports that the shard was loaded while
// indexing it, so it is already resident.
func (c *Cache[T]) locate(i int) (shard int, fresh, ok bool) {
	if c.lastHit >= 0 && c.shards[c.lastHit].contains(i) {
		return c.lastHit, false, true
	}

	for k := range c.shards {
		loaded := c.resolve(k)

		if c.shards[k].contains(i) {
			c.lastHit = k

			return k, loaded, true
		}
	}

	return -1, false, false
}

// resolve makes sure shard k has a known range and reports whether it had
// to load the shard to find out. Callers resolve shards in ascending order,
// so the predecessor is always resolved already.
func (c *Cache[T]) resolve(k int) bool {
	meta := &c.shards[k]
	if meta.resolved {
		return false
	}

	if meta.provisional {
		c.setRange(k, 0)
		meta.skipped = true

		return false
	}

	c.load(k)

	return true
}

// ensure makes shard k resident, counting a hit if it already is.
func (c *Cache[T]) ensure(k int) {
	if c.order.hit(k) {
		c.stats.Hits++
		c.metrics.hit(c.name)

		return
	}

	c.load(k)
}

// setRange records the range of shard k the first time its record count
// is known. Later reloads never change it.
func (c *Cache[T]) setRange(k, count int) {
	meta := &c.shards[k]
	if meta.resolved {
		return
	}

	if k > 0 {
		meta.first = c.shards[k-1].last
	}

	meta.last = meta.first + count
	meta.resolved = true
}

// load decodes shard k from disk and makes it resident. k must not be
// resident. Older shards are evicted only once the shard has opened, so
// an unreadable shard never costs a resident one.
func (c *Cache[T]) load(k int) {
	meta := &c.shards[k]
	log := c.log.WithField("shard", filepath.Base(meta.path))

	r, err := openShard(c.fsys, meta.path)
	if err != nil && !errors.Is(err, errEmptyGzip) {
		// Not made resident, so a later lookup never retries it.
		c.stats.OpenFailures++
		c.metrics.openFailed(c.name)
		log.WithError(err).Warn("skipping unreadable shard")

		if !meta.resolved {
			meta.skipped = true
		}

		c.setRange(k, 0)

		return
	}

	for c.limit > 0 && c.order.len() >= c.limit {
		if !c.order.evictOldest() {
			break
		}
	}

	var records []T

	if r != nil {
		records = c.decodeShard(r, log)
		_ = r.Close()
	}

	c.stats.Loads++
	c.stats.Records += len(records)
	c.metrics.loaded(c.name, len(records))

	if meta.resolved && meta.last-meta.first != len(records) {
		log.WithFields(logrus.Fields{
			"records":  len(records),
			"expected": meta.last - meta.first,
		}).Warn("shard record count changed since it was indexed")
	}

	c.setRange(k, len(records))
	c.contents[k] = records
	c.order.push(k)
	c.metrics.setResident(c.name, c.order.len())

	log.WithField("records", len(records)).Debug("loaded shard")
}

// decodeShard decodes every record from r. A truncated or corrupt record
// ends the shard; the records before it are kept.
func (c *Cache[T]) decodeShard(r io.Reader, log logrus.FieldLogger) []T {
	var records []T

	for {
		rec, err := c.decode(r)
		if err == nil {
			records = append(records, rec)

			continue
		}

		if !errors.Is(err, io.EOF) {
			c.stats.MalformedTails++
			c.metrics.malformedTail(c.name)
			log.WithError(err).WithField("records", len(records)).Warn("dropping malformed trailing record")
		}

		return records
	}
}

// drop is the residency eviction callback.
func (c *Cache[T]) drop(k int) {
	delete(c.contents, k)

	c.stats.Evictions++
	c.metrics.evicted(c.name)
	c.metrics.setResident(c.name, c.order.len())

	c.log.WithField("shard", filepath.Base(c.shards[k].path)).Debug("evicted shard")
}
