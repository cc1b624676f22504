package shardcache

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeByte treats every byte as one record.
func decodeByte(r io.Reader) (byte, error) {
	var b [1]byte

	_, err := io.ReadFull(r, b[:])

	return b[0], err
}

func Test_Metrics_Track_Cache_Activity_When_Attached(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000000"), []byte("ab"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000001"), []byte("cde"), 0o644))

	m := NewMetrics()

	c, err := Open(dir, decodeByte, Options{ResidencyLimit: 1, Name: "header", Metrics: m})
	require.NoError(t, err)

	for i := range 5 {
		_, err := c.At(i)
		require.NoError(t, err)
	}

	assert.InDelta(t, 2, testutil.ToFloat64(m.loads.WithLabelValues("header")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.hits.WithLabelValues("header")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.evictions.WithLabelValues("header")), 0)
	assert.InDelta(t, 5, testutil.ToFloat64(m.records.WithLabelValues("header")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.resident.WithLabelValues("header")), 0)

	path := filepath.Join(t.TempDir(), "beacon.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.Contains(text, `beacon_shardcache_loads_total{cache="header"} 2`), text)
	assert.True(t, strings.Contains(text, `beacon_shardcache_resident_shards{cache="header"} 1`), text)
}

func Test_Metrics_Record_Nothing_When_Nil(t *testing.T) {
	t.Parallel()

	var m *Metrics

	m.loaded("x", 3)
	m.hit("x")
	m.evicted("x")
	m.openFailed("x")
	m.malformedTail("x")
	m.setResident("x", 2)
}

func Test_Residency_Orders_Newest_First_When_Shards_Are_Pushed(t *testing.T) {
	t.Parallel()

	var evicted []int

	r := newResidency(LoadOrder, func(shard int) { evicted = append(evicted, shard) })
	r.push(3)
	r.push(1)
	r.push(2)

	assert.True(t, r.hit(3))
	assert.Equal(t, []int{2, 1, 3}, r.newestFirst(), "a hit must not reorder under load order")

	require.True(t, r.evictOldest())
	assert.Equal(t, []int{3}, evicted)
	assert.Equal(t, 2, r.len())

	assert.Equal(t, "load-order", LoadOrder.String())
	assert.Equal(t, "access-order", AccessOrder.String())
}
