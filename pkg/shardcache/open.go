package shardcache

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/calvinalkan/beacon-reader/pkg/fs"
)

const readBufferSize = 64 << 10

// shardReader is an open shard positioned at its first record.
type shardReader struct {
	io.Reader

	file fs.File
	gz   *gzip.Reader
}

func (s *shardReader) Close() error {
	var gzErr error
	if s.gz != nil {
		gzErr = s.gz.Close()
	}

	return errors.Join(gzErr, s.file.Close())
}

// errEmptyGzip is returned by openShard for a zero-length ".gz" file, which
// holds no records but is not a failure.
var errEmptyGzip = errors.New("empty gzip stream")

// openShard opens path for sequential decoding. Compressed shards are
// wrapped in a gzip stream; plain shards get a read-ahead hint and a buffer.
func openShard(fsys fs.FS, path string) (*shardReader, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShardOpen, err)
	}

	_ = fs.AdviseSequential(f)

	if !isCompressed(path) {
		return &shardReader{Reader: bufio.NewReaderSize(f, readBufferSize), file: f}, nil
	}

	gz, err := gzip.NewReader(bufio.NewReaderSize(f, readBufferSize))
	if err != nil {
		_ = f.Close()

		if errors.Is(err, io.EOF) {
			return nil, errEmptyGzip
		}

		return nil, fmt.Errorf("%w: %s: %w", ErrShardOpen, path, err)
	}

	return &shardReader{Reader: gz, file: f, gz: gz}, nil
}
