// Package fs provides the filesystem abstraction used to read run directories.
//
// The main types are:
//   - [FS]: interface for the filesystem operations the readers need
//   - [File]: interface for open files (satisfied by [os.File])
//   - [Real]: production implementation using [os] package
//   - [Chaos]: testing implementation that injects random failures
//
// Example usage:
//
//	fsys := fs.NewReal()
//	f, err := fsys.Open("run12/header/000000.gz")
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//
//	// Works with all stdlib io functions:
//	data, _ := io.ReadAll(f)
package fs

import (
	"io"
	"os"
)

// File represents an OS-backed open file opened for reading.
//
// This interface is satisfied by [os.File] and can be used with all
// standard library functions that accept [io.Reader] or [io.Closer].
//
// Implementations must behave like [os.File], including that [File.Fd]
// returns a valid OS file descriptor until the file is closed.
type File interface {
	io.ReadCloser

	// Fd returns the file descriptor. See [os.File.Fd].
	// Used for read-ahead hints, see [AdviseSequential].
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	Stat() (os.FileInfo, error)
}

// FS defines the filesystem operations used to list, read and (for seeding
// synthetic runs) write shard files.
//
// Implementations in this package include:
//   - [Real]: production use, wraps [os] package
//   - [Chaos]: testing use, injects random failures
//
// Paths use OS semantics (like the os package and path/filepath), not the
// slash-separated paths used by the standard library io/fs package.
type FS interface {
	// Open opens a file for reading. See [os.Open].
	Open(path string) (File, error)

	// ReadDir reads a directory and returns its entries. See [os.ReadDir].
	// Entries are sorted by name.
	ReadDir(path string) ([]os.DirEntry, error)

	// Stat returns file info. See [os.Stat].
	// Returns [os.ErrNotExist] if file doesn't exist.
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether a file or directory exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)

	// MkdirAll creates a directory and all parents. See [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error

	// WriteFileAtomic replaces path with the contents of r. Readers see
	// either the old file or the complete new one, never a partial write.
	WriteFileAtomic(path string, r io.Reader) error
}

// Compile-time interface checks.
var _ File = (*os.File)(nil)
