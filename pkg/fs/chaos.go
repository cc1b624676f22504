package fs

import (
	"errors"
	"io"
	"io/fs"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
//
// The zero value disables all fault injection. Partially initialized configs
// only inject faults for the specified rates; unset fields default to 0.0.
type ChaosConfig struct {
	// OpenFailRate controls how often FS.Open fails. Returns EACCES, EIO,
	// EMFILE, ENFILE or ENOTDIR.
	OpenFailRate float64

	// ReadFailRate controls how often File.Read fails entirely, returning
	// zero bytes and EIO.
	ReadFailRate float64

	// PartialReadRate controls how often File.Read returns a short read
	// (n < len(p), err == nil) by limiting the underlying read size. This is
	// valid io.Reader behavior, not an error, and tests that callers loop
	// until EOF.
	PartialReadRate float64

	// StatFailRate controls how often FS.Stat and FS.Exists fail on a path.
	// Returns EACCES or EIO.
	StatFailRate float64

	// ReadDirFailRate controls how often FS.ReadDir fails entirely, returning
	// no entries. Returns EACCES, EIO, ENOTDIR, EMFILE, or ENFILE.
	ReadDirFailRate float64

	// MkdirAllFailRate controls how often FS.MkdirAll fails.
	// Returns EACCES, EIO, ENOSPC, EDQUOT, or EROFS.
	MkdirAllFailRate float64

	// WriteFailRate controls how often FS.WriteFileAtomic fails before
	// anything is written. Returns EIO, ENOSPC, EDQUOT, or EROFS.
	WriteFailRate float64

	// FailOpenSuffixes lists path suffixes for which FS.Open always fails
	// with EACCES, independent of OpenFailRate and the RNG. Useful for
	// pinning a failure to one particular shard.
	FailOpenSuffixes []string
}

// ChaosMode controls how [Chaos] behaves.
type ChaosMode uint8

const (
	// ChaosModeActive enables fault injection.
	// This is the default mode for a new [Chaos].
	ChaosModeActive ChaosMode = iota

	// ChaosModeNoOp passes every operation directly to the underlying FS.
	ChaosModeNoOp
)

// ChaosStats contains counts of injected faults.
type ChaosStats struct {
	OpenFails     int64
	ReadFails     int64
	PartialReads  int64
	StatFails     int64
	ReadDirFails  int64
	MkdirAllFails int64
	WriteFails    int64
}

// chaosError marks an error as intentionally injected by [Chaos].
//
// It wraps an [*fs.PathError] carrying a real [syscall.Errno], so
// errors.Is and os.IsPermission keep working while [IsChaosErr] can still
// tell injected errors from real ones.
type chaosError struct {
	Err error
}

func (e *chaosError) Error() string {
	return "chaos: " + e.Err.Error()
}

func (e *chaosError) Unwrap() error {
	return e.Err
}

// IsChaosErr reports whether err (or any wrapped error) was injected by [Chaos].
// Returns false if err is nil.
func IsChaosErr(err error) bool {
	var injected *chaosError

	return errors.As(err, &injected)
}

// Chaos wraps an [FS] and injects random failures for testing.
//
// It is a "real filesystem + fault injection" wrapper, not a simulator.
// Each call independently decides whether to inject, based on a seeded
// RNG so a failing test can be replayed with the same seed.
//
// Chaos never injects ENOENT; any os.IsNotExist result originates from the
// wrapped [FS].
//
// Chaos is safe for concurrent use.
type Chaos struct {
	fs     FS
	config ChaosConfig

	mu  sync.Mutex
	rng *rand.Rand

	mode atomic.Uint32

	openFails     atomic.Int64
	readFails     atomic.Int64
	partialReads  atomic.Int64
	statFails     atomic.Int64
	readDirFails  atomic.Int64
	mkdirAllFails atomic.Int64
	writeFails    atomic.Int64
}

// NewChaos creates a new [Chaos] wrapping the given filesystem.
// The seed makes fault injection reproducible.
func NewChaos(underlying FS, seed int64, config *ChaosConfig) *Chaos {
	if underlying == nil {
		panic("underlying fs is nil")
	}

	c := &Chaos{
		fs:  underlying,
		rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed))),
	}

	if config != nil {
		c.config = *config
	}

	return c
}

// SetMode switches between active fault injection and passthrough.
func (c *Chaos) SetMode(mode ChaosMode) {
	c.mode.Store(uint32(mode))
}

// Mode returns the current mode.
func (c *Chaos) Mode() ChaosMode {
	return ChaosMode(c.mode.Load())
}

// Stats returns the number of faults injected so far.
func (c *Chaos) Stats() ChaosStats {
	return ChaosStats{
		OpenFails:     c.openFails.Load(),
		ReadFails:     c.readFails.Load(),
		PartialReads:  c.partialReads.Load(),
		StatFails:     c.statFails.Load(),
		ReadDirFails:  c.readDirFails.Load(),
		MkdirAllFails: c.mkdirAllFails.Load(),
		WriteFails:    c.writeFails.Load(),
	}
}

// Open opens path through the wrapped FS. The returned [File] injects read
// faults according to the config.
func (c *Chaos) Open(path string) (File, error) {
	if c.active() {
		for _, suffix := range c.config.FailOpenSuffixes {
			if strings.HasSuffix(path, suffix) {
				c.openFails.Add(1)

				return nil, pathErr("open", path, syscall.EACCES)
			}
		}

		if c.should(c.config.OpenFailRate) {
			c.openFails.Add(1)

			return nil, pathErr("open", path, c.pick(openErrnos))
		}
	}

	f, err := c.fs.Open(path)
	if err != nil {
		return nil, err
	}

	return &chaosFile{File: f, chaos: c, path: path}, nil
}

func (c *Chaos) ReadDir(path string) ([]os.DirEntry, error) {
	if c.active() && c.should(c.config.ReadDirFailRate) {
		c.readDirFails.Add(1)

		return nil, pathErr("readdirent", path, c.pick(readDirErrnos))
	}

	return c.fs.ReadDir(path)
}

func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	if c.active() && c.should(c.config.StatFailRate) {
		c.statFails.Add(1)

		return nil, pathErr("stat", path, c.pick(statErrnos))
	}

	return c.fs.Stat(path)
}

func (c *Chaos) Exists(path string) (bool, error) {
	if c.active() && c.should(c.config.StatFailRate) {
		c.statFails.Add(1)

		return false, pathErr("stat", path, c.pick(statErrnos))
	}

	return c.fs.Exists(path)
}

func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	if c.active() && c.should(c.config.MkdirAllFailRate) {
		c.mkdirAllFails.Add(1)

		return pathErr("mkdir", path, c.pick(writeErrnos))
	}

	return c.fs.MkdirAll(path, perm)
}

func (c *Chaos) WriteFileAtomic(path string, r io.Reader) error {
	if c.active() && c.should(c.config.WriteFailRate) {
		c.writeFails.Add(1)

		return pathErr("write", path, c.pick(writeErrnos))
	}

	return c.fs.WriteFileAtomic(path, r)
}

func (c *Chaos) active() bool {
	return c.Mode() == ChaosModeActive
}

// should rolls the dice for a fault with the given rate.
func (c *Chaos) should(rate float64) bool {
	if rate <= 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.rng.Float64() < rate
}

func (c *Chaos) pick(errnos []syscall.Errno) syscall.Errno {
	c.mu.Lock()
	defer c.mu.Unlock()

	return errnos[c.rng.IntN(len(errnos))]
}

// shortLen picks a read size in [1, n).
func (c *Chaos) shortLen(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return 1 + c.rng.IntN(n-1)
}

func pathErr(op, path string, errno syscall.Errno) error {
	return &chaosError{Err: &fs.PathError{Op: op, Path: path, Err: errno}}
}

var (
	openErrnos    = []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.EMFILE, syscall.ENFILE, syscall.ENOTDIR}
	statErrnos    = []syscall.Errno{syscall.EACCES, syscall.EIO}
	readDirErrnos = []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.ENOTDIR, syscall.EMFILE, syscall.ENFILE}
	writeErrnos   = []syscall.Errno{syscall.EIO, syscall.ENOSPC, syscall.EDQUOT, syscall.EROFS}
)

// chaosFile wraps a [File] and injects read faults.
type chaosFile struct {
	File

	chaos *Chaos
	path  string
}

func (f *chaosFile) Read(p []byte) (int, error) {
	c := f.chaos
	if !c.active() || len(p) == 0 {
		return f.File.Read(p)
	}

	if c.should(c.config.ReadFailRate) {
		c.readFails.Add(1)

		return 0, pathErr("read", f.path, syscall.EIO)
	}

	if len(p) > 1 && c.should(c.config.PartialReadRate) {
		c.partialReads.Add(1)

		return f.File.Read(p[:c.shortLen(len(p))])
	}

	return f.File.Read(p)
}

// Compile-time interface checks.
var (
	_ FS   = (*Chaos)(nil)
	_ File = (*chaosFile)(nil)
)
