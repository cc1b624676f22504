package shardcache

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/calvinalkan/beacon-reader/pkg/fs"
)

const (
	gzipSuffix = ".gz"
	tmpSuffix  = ".tmp"
)

// ListShards returns the full paths of the files in dir, sorted by name.
// Subdirectories are excluded. An empty directory yields an empty slice.
//
// Returns an error wrapping [ErrDirectory] if dir cannot be read.
func ListShards(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDirectory, err)
	}

	paths := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		paths = append(paths, filepath.Join(dir, entry.Name()))
	}

	slices.Sort(paths)

	return paths, nil
}

func isProvisional(path string) bool {
	return strings.HasSuffix(path, tmpSuffix)
}

func isCompressed(path string) bool {
	return strings.HasSuffix(path, gzipSuffix)
}
