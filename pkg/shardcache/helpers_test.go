package shardcache_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/beacon-reader/pkg/fs"
	"github.com/calvinalkan/beacon-reader/pkg/shardcache"
)

// Test records are 4-byte little-endian values. Values encode
// shard*1000 + position so a record identifies where it came from.
func decodeU32(r io.Reader) (uint32, error) {
	var buf [4]byte

	n, err := io.ReadFull(r, buf[:])
	if n == 0 && errors.Is(err, io.EOF) {
		return 0, io.EOF
	}

	if err != nil {
		return 0, shardcache.ErrMalformed
	}

	return binary.LittleEndian.Uint32(buf[:]), nil
}

func shardBytes(values []uint32) []byte {
	var b bytes.Buffer

	for _, v := range values {
		_ = binary.Write(&b, binary.LittleEndian, v)
	}

	return b.Bytes()
}

func seq(shard, n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = uint32(shard*1000 + i)
	}

	return out
}

func writeRaw(t *testing.T, dir, name string, data []byte) {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func writePlain(t *testing.T, dir, name string, values []uint32) {
	t.Helper()

	writeRaw(t, dir, name, shardBytes(values))
}

func writeGzip(t *testing.T, dir, name string, values []uint32) {
	t.Helper()

	var b bytes.Buffer

	zw := gzip.NewWriter(&b)
	_, err := zw.Write(shardBytes(values))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	writeRaw(t, dir, name, b.Bytes())
}

// layout writes one plain shard per size, named 000000, 000001, ...
// and returns every value in global index order.
func layout(t *testing.T, dir string, sizes ...int) []uint32 {
	t.Helper()

	var all []uint32

	for k, n := range sizes {
		values := seq(k, n)
		writePlain(t, dir, shardName(k), values)
		all = append(all, values...)
	}

	return all
}

func shardName(k int) string {
	return fmt.Sprintf("%06d", k)
}

func openCache(t *testing.T, dir string, opts shardcache.Options) *shardcache.Cache[uint32] {
	t.Helper()

	c, err := shardcache.Open(dir, decodeU32, opts)
	require.NoError(t, err)

	return c
}

func newBufferLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer

	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})

	return logger, &buf
}

// countingFS records every Open so tests can assert which shards hit disk.
type countingFS struct {
	fs.FS

	opens []string
}

func (c *countingFS) Open(path string) (fs.File, error) {
	c.opens = append(c.opens, filepath.Base(path))

	return c.FS.Open(path)
}
