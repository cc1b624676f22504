//go:build !linux

package fs

// AdviseSequential is a no-op on platforms without posix_fadvise.
func AdviseSequential(File) error {
	return nil
}
