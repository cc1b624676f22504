package beacon

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/calvinalkan/beacon-reader/pkg/fs"
	"github.com/calvinalkan/beacon-reader/pkg/shardcache"
)

// Category names one of the three record streams of a run. The value is
// also the name of the category's directory.
type Category string

const (
	CategoryHeader Category = "header"
	CategoryStatus Category = "status"
	CategoryEvent  Category = "event"
)

// Categories lists every category in directory order.
var Categories = []Category{CategoryHeader, CategoryStatus, CategoryEvent}

// ParseCategory accepts the singular and plural forms ("header",
// "headers", ...).
func ParseCategory(s string) (Category, error) {
	switch s {
	case "header", "headers":
		return CategoryHeader, nil
	case "status", "statuses":
		return CategoryStatus, nil
	case "event", "events":
		return CategoryEvent, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
}

// Limits are residency limits per category. Zero means unlimited.
type Limits struct {
	Header int
	Status int
	Event  int
}

// DefaultLimits keeps roughly 10 MB of each category in memory.
func DefaultLimits() Limits {
	return Limits{Header: 1000, Status: 300, Event: 3}
}

// RunOptions configures [OpenRun]. The zero value is usable.
type RunOptions struct {
	// Limits defaults to [DefaultLimits] when nil.
	Limits *Limits

	FS      fs.FS
	Policy  shardcache.EvictionPolicy
	Logger  logrus.FieldLogger
	Metrics *shardcache.Metrics
}

// Run gives indexed access to the three record streams of one run
// directory. The caches are independent of each other.
//
// A Run is not safe for concurrent use.
type Run struct {
	ID  int
	Dir string

	Headers  *shardcache.Cache[Header]
	Statuses *shardcache.Cache[Status]
	Events   *shardcache.Cache[Event]

	fsys fs.FS
}

// RunDir returns the directory of run id under base.
func RunDir(base string, id int) string {
	return filepath.Join(base, "run"+strconv.Itoa(id))
}

// OpenRun opens the header, status and event caches of run id under
// baseDir. Nothing is decoded until records are requested.
//
// Fails if any category directory cannot be listed or holds no shards;
// the error wraps [shardcache.ErrDirectory] or
// [shardcache.ErrEmptyDirectory] and names the category.
func OpenRun(id int, baseDir string, opts RunOptions) (*Run, error) {
	limits := DefaultLimits()
	if opts.Limits != nil {
		limits = *opts.Limits
	}

	fsys := opts.FS
	if fsys == nil {
		fsys = fs.NewReal()
	}

	log := opts.Logger
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	log = log.WithField("run", id)

	run := &Run{ID: id, Dir: RunDir(baseDir, id), fsys: fsys}

	cacheOpts := func(c Category, limit int) shardcache.Options {
		return shardcache.Options{
			FS:             fsys,
			ResidencyLimit: limit,
			Policy:         opts.Policy,
			Name:           string(c),
			Logger:         log,
			Metrics:        opts.Metrics,
		}
	}

	var err error

	run.Headers, err = shardcache.Open(run.categoryDir(CategoryHeader), DecodeHeader, cacheOpts(CategoryHeader, limits.Header))
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", CategoryHeader, err)
	}

	run.Statuses, err = shardcache.Open(run.categoryDir(CategoryStatus), DecodeStatus, cacheOpts(CategoryStatus, limits.Status))
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", CategoryStatus, err)
	}

	run.Events, err = shardcache.Open(run.categoryDir(CategoryEvent), DecodeEvent, cacheOpts(CategoryEvent, limits.Event))
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", CategoryEvent, err)
	}

	return run, nil
}

func (r *Run) String() string {
	return "<Run " + strconv.Itoa(r.ID) + ">"
}

func (r *Run) categoryDir(c Category) string {
	return filepath.Join(r.Dir, string(c))
}

// Len returns the number of records in category c.
func (r *Run) Len(c Category) (int, error) {
	switch c {
	case CategoryHeader:
		return r.Headers.Len(), nil
	case CategoryStatus:
		return r.Statuses.Len(), nil
	case CategoryEvent:
		return r.Events.Len(), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
}

// Record returns record i of category c as a pointer to a [Header],
// [Status] or [Event] copy.
func (r *Run) Record(c Category, i int) (any, error) {
	switch c {
	case CategoryHeader:
		h, err := r.Headers.At(i)
		if err != nil {
			return nil, err
		}

		return &h, nil
	case CategoryStatus:
		s, err := r.Statuses.At(i)
		if err != nil {
			return nil, err
		}

		return &s, nil
	case CategoryEvent:
		e, err := r.Events.At(i)
		if err != nil {
			return nil, err
		}

		return &e, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
}

// Shards returns the shard table of category c.
func (r *Run) Shards(c Category) ([]shardcache.ShardInfo, error) {
	switch c {
	case CategoryHeader:
		return r.Headers.Shards(), nil
	case CategoryStatus:
		return r.Statuses.Shards(), nil
	case CategoryEvent:
		return r.Events.Shards(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
}

// Stats returns the cache counters of category c.
func (r *Run) Stats(c Category) (shardcache.Stats, error) {
	switch c {
	case CategoryHeader:
		return r.Headers.Stats(), nil
	case CategoryStatus:
		return r.Statuses.Stats(), nil
	case CategoryEvent:
		return r.Events.Stats(), nil
	default:
		return shardcache.Stats{}, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
}

// Entry is the header and event recorded for one trigger.
type Entry struct {
	Index  int
	Header Header
	Event  Event
}

// Entry returns the header and event at index i.
//
// Returns [ErrEntryMismatch] if their event numbers differ.
func (r *Run) Entry(i int) (Entry, error) {
	h, err := r.Headers.At(i)
	if err != nil {
		return Entry{}, fmt.Errorf("header %d: %w", i, err)
	}

	e, err := r.Events.At(i)
	if err != nil {
		return Entry{}, fmt.Errorf("event %d: %w", i, err)
	}

	if h.EventNumber != e.EventNumber {
		return Entry{}, fmt.Errorf("%w: entry %d: header %d, event %d",
			ErrEntryMismatch, i, h.EventNumber, e.EventNumber)
	}

	return Entry{Index: i, Header: h, Event: e}, nil
}

// FindEvent returns the entry whose header carries eventNumber. It scans
// the headers from the start.
func (r *Run) FindEvent(eventNumber uint64) (Entry, error) {
	found := -1

	err := r.Headers.Range(0, r.Headers.Len(), func(i int, h Header) bool {
		if h.EventNumber == eventNumber {
			found = i

			return false
		}

		return true
	})
	if err != nil {
		return Entry{}, err
	}

	if found < 0 {
		return Entry{}, fmt.Errorf("%w: %d in run %d", ErrEventNotFound, eventNumber, r.ID)
	}

	return r.Entry(found)
}

// BeamTriggered reports whether beam took part in the trigger. Out of
// range beams report false.
func (e *Entry) BeamTriggered(beam int) bool {
	if beam < 0 || beam >= NumBeams {
		return false
	}

	return e.Header.TriggeredBeams&(1<<beam) != 0
}

// Channel returns the waveform of one channel, trimmed to the buffer length.
// Out of range boards or channels return nil.
func (e *Entry) Channel(board, channel int) []uint8 {
	return e.Event.Channel(board, channel)
}

// Times returns the sample times in nanoseconds for the event's buffer.
func (e *Entry) Times() []float64 {
	n := min(int(e.Event.BufferLength), MaxWaveformLength)
	times := make([]float64, n)

	for i := range times {
		times[i] = SamplePeriodNs * float64(i)
	}

	return times
}
