package beacon

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"path/filepath"

	"github.com/calvinalkan/beacon-reader/pkg/fs"
)

// Synth generates deterministic, plausible-looking records for seeding
// test runs. The same seed always yields the same sequence.
type Synth struct {
	rng *rand.Rand

	nextEvent  uint64
	readout    uint32
	readoutNs  uint32
	bufferLen  uint16
	pretrigger uint16
}

// NewSynth returns a generator seeded with seed.
func NewSynth(seed uint64) *Synth {
	return &Synth{
		rng:        rand.New(rand.NewPCG(seed, seed^0x5be1c0de)),
		nextEvent:  1,
		readout:    1_546_300_800,
		bufferLen:  512,
		pretrigger: 64,
	}
}

// Entry returns the next header and its matching event.
func (s *Synth) Entry() (Header, Event) {
	s.tick()

	h := Header{
		EventNumber:         s.nextEvent,
		TrigNumber:          s.nextEvent,
		BufferLength:        s.bufferLen,
		PretriggerSamples:   s.pretrigger,
		ReadoutTime:         s.readout,
		ReadoutTimeNs:       s.readoutNs,
		ApproxTriggerTime:   s.readout,
		ApproxTriggerTimeNs: s.readoutNs,
		TriggeredBeams:      1 << s.rng.IntN(NumBeams),
		BeamMask:            1<<NumBeams - 1,
		BeamPower:           s.rng.Uint32N(1 << 16),
		Deadtime:            s.rng.Uint32N(1000),
		BufferNumber:        uint8(s.nextEvent % NumBuffer),
		ChannelMask:         0xff,
		ChannelReadMask:     0xff,
		BufferMask:          uint8(1 << (s.nextEvent % NumBuffer)),
		TrigType:            TrigType(s.rng.IntN(int(TrigExt) + 1)),
		TrigPol:             Pol(s.rng.IntN(2)),
	}

	if h.TrigType == TrigExt {
		h.Calpulser = 1
	}

	e := Event{
		EventNumber:  h.EventNumber,
		BufferLength: h.BufferLength,
	}

	phase := s.rng.Float64() * 2 * math.Pi
	amp := 8 + s.rng.Float64()*24

	for c := range NumChan {
		for i := range int(h.BufferLength) {
			v := 128 + amp*math.Sin(phase+float64(i+c)*0.2) + s.rng.NormFloat64()*3
			e.Data[0][c][i] = uint8(max(0, min(255, v)))
		}
	}

	s.nextEvent++

	return h, e
}

// Status returns the next status snapshot.
func (s *Synth) Status() Status {
	s.tick()

	st := Status{
		Deadtime:        s.rng.Uint32N(1000),
		ReadoutTime:     s.readout,
		ReadoutTimeNs:   s.readoutNs,
		LatchedPPSTime:  uint64(s.readout) * 1e9,
		DynamicBeamMask: 1<<NumBeams - 1,
	}

	for i := range NumScalers {
		st.GlobalScalers[i] = uint16(s.rng.IntN(1000))

		for b := range NumBeams {
			st.BeamScalers[i][b] = uint16(s.rng.IntN(100))
		}
	}

	for b := range NumBeams {
		st.TriggerThresholds[b] = 5000 + s.rng.Uint32N(2000)
	}

	return st
}

func (s *Synth) tick() {
	s.readoutNs += 1 + s.rng.Uint32N(50_000_000)
	if s.readoutNs >= 1e9 {
		s.readoutNs -= 1e9
		s.readout++
	}
}

// SeedOptions configures [SeedRun].
type SeedOptions struct {
	Entries        int // headers and events
	EntriesPerFile int
	Statuses       int
	StatusPerFile  int
	Gzip           bool
	Seed           uint64
}

// DefaultSeedOptions returns a small run layout: 100 entries in files of
// 20, 30 statuses in files of 10.
func DefaultSeedOptions() SeedOptions {
	return SeedOptions{Entries: 100, EntriesPerFile: 20, Statuses: 30, StatusPerFile: 10, Gzip: true, Seed: 1}
}

var errSeedOptions = errors.New("entries per file and statuses per file must be positive")

// SeedRun writes a synthetic run id under base, in the directory layout
// [OpenRun] reads. Existing shards with the same names are replaced.
func SeedRun(fsys fs.FS, base string, id int, opts SeedOptions) error {
	if opts.EntriesPerFile <= 0 || opts.StatusPerFile <= 0 {
		return errSeedOptions
	}

	dir := RunDir(base, id)
	for _, c := range Categories {
		err := fsys.MkdirAll(filepath.Join(dir, string(c)), 0o755)
		if err != nil {
			return fmt.Errorf("seed run %d: %w", id, err)
		}
	}

	synth := NewSynth(opts.Seed)
	suffix := ""

	if opts.Gzip {
		suffix = ".gz"
	}

	for file, start := 0, 0; start < opts.Entries; file, start = file+1, start+opts.EntriesPerFile {
		n := min(opts.EntriesPerFile, opts.Entries-start)
		headers := make([]Header, n)
		events := make([]Event, n)

		for i := range n {
			headers[i], events[i] = synth.Entry()
		}

		name := fmt.Sprintf("%06d%s", file, suffix)

		err := WriteShard(fsys, filepath.Join(dir, string(CategoryHeader), name), headers, EncodeHeader)
		if err != nil {
			return fmt.Errorf("seed run %d: %w", id, err)
		}

		err = WriteShard(fsys, filepath.Join(dir, string(CategoryEvent), name), events, EncodeEvent)
		if err != nil {
			return fmt.Errorf("seed run %d: %w", id, err)
		}
	}

	for file, start := 0, 0; start < opts.Statuses; file, start = file+1, start+opts.StatusPerFile {
		n := min(opts.StatusPerFile, opts.Statuses-start)
		statuses := make([]Status, n)

		for i := range n {
			statuses[i] = synth.Status()
		}

		name := fmt.Sprintf("%06d%s", file, suffix)

		err := WriteShard(fsys, filepath.Join(dir, string(CategoryStatus), name), statuses, EncodeStatus)
		if err != nil {
			return fmt.Errorf("seed run %d: %w", id, err)
		}
	}

	return nil
}
