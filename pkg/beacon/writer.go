package beacon

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/calvinalkan/beacon-reader/pkg/fs"
)

// WriteShard encodes records into a new shard at path, replacing any file
// already there. A path ending in ".gz" is gzip-compressed. The file
// appears atomically, so a concurrently opened cache never sees a partial
// shard.
func WriteShard[T any](fsys fs.FS, path string, records []T, encode func(io.Writer, *T) error) error {
	var buf bytes.Buffer

	var (
		w  io.Writer = &buf
		zw *gzip.Writer
	)

	if strings.HasSuffix(path, ".gz") {
		zw = gzip.NewWriter(&buf)
		w = zw
	}

	for i := range records {
		err := encode(w, &records[i])
		if err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
	}

	if zw != nil {
		err := zw.Close()
		if err != nil {
			return fmt.Errorf("gzip: %w", err)
		}
	}

	err := fsys.WriteFileAtomic(path, &buf)
	if err != nil {
		return fmt.Errorf("write shard: %w", err)
	}

	return nil
}
