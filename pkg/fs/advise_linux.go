//go:build linux

package fs

import "golang.org/x/sys/unix"

// AdviseSequential tells the kernel that f will be read front to back, which
// doubles the read-ahead window on most filesystems. Shards are always
// decoded sequentially, so this is worth a syscall per open.
//
// The hint is best-effort; the returned error can be ignored.
func AdviseSequential(f File) error {
	return unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}
