package shardcache_test

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/beacon-reader/pkg/fs"
	"github.com/calvinalkan/beacon-reader/pkg/shardcache"
)

func Test_Open_Decodes_Nothing_When_Cache_Is_Constructed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	layout(t, dir, 3, 3, 3)

	fsys := &countingFS{FS: fs.NewReal()}
	c := openCache(t, dir, shardcache.Options{FS: fsys})

	assert.Empty(t, fsys.opens)

	for _, info := range c.Shards() {
		assert.False(t, info.Resolved, info.Name)
	}

	_, err := c.At(1)
	require.NoError(t, err)

	assert.Equal(t, []string{"000000"}, fsys.opens, "only the first shard should be read")
}

func Test_Open_Returns_Error_When_Directory_Is_Unusable(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		setup func(t *testing.T, dir string) string
		want  error
	}{
		{
			name:  "Missing",
			setup: func(_ *testing.T, dir string) string { return filepath.Join(dir, "nope") },
			want:  shardcache.ErrDirectory,
		},
		{
			name:  "Empty",
			setup: func(_ *testing.T, dir string) string { return dir },
			want:  shardcache.ErrEmptyDirectory,
		},
		{
			name: "OnlyProvisional",
			setup: func(t *testing.T, dir string) string {
				writePlain(t, dir, "000000.tmp", seq(0, 4))

				return dir
			},
			want: shardcache.ErrEmptyDirectory,
		},
		{
			name: "OnlySubdirectories",
			setup: func(t *testing.T, dir string) string {
				require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

				return dir
			},
			want: shardcache.ErrEmptyDirectory,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			dir := testCase.setup(t, t.TempDir())

			_, err := shardcache.Open(dir, decodeU32, shardcache.Options{})
			require.ErrorIs(t, err, testCase.want)
		})
	}
}

func Test_Open_Wraps_OS_Error_When_Directory_Is_Missing(t *testing.T) {
	t.Parallel()

	_, err := shardcache.Open(filepath.Join(t.TempDir(), "missing"), decodeU32, shardcache.Options{})

	require.ErrorIs(t, err, shardcache.ErrDirectory)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func Test_Open_Returns_ErrInvalidLimit_When_Limit_Is_Negative(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	layout(t, dir, 1)

	_, err := shardcache.Open(dir, decodeU32, shardcache.Options{ResidencyLimit: -1})
	require.ErrorIs(t, err, shardcache.ErrInvalidLimit)
}

func Test_ListShards_Returns_Sorted_Regular_Files_When_Directory_Has_Mixed_Entries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePlain(t, dir, "b", nil)
	writePlain(t, dir, "a.gz", nil)
	writePlain(t, dir, "c.tmp", nil)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "aa"), 0o755))

	got, err := shardcache.ListShards(fs.NewReal(), dir)
	require.NoError(t, err)

	want := []string{
		filepath.Join(dir, "a.gz"),
		filepath.Join(dir, "b"),
		filepath.Join(dir, "c.tmp"),
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ListShards mismatch (-want +got):\n%s", diff)
	}
}

func Test_Cache_Keeps_Ranges_Contiguous_When_Shards_Have_Varying_Sizes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	layout(t, dir, 3, 0, 4, 1, 0)

	c := openCache(t, dir, shardcache.Options{ResidencyLimit: 2})

	require.Equal(t, 8, c.Len())

	shards := c.Shards()
	require.Len(t, shards, 5)
	assert.Equal(t, 0, shards[0].First)

	for k := 1; k < len(shards); k++ {
		assert.Equal(t, shards[k-1].Last, shards[k].First, "shard %d", k)
	}

	assert.Equal(t, c.Len(), shards[len(shards)-1].Last)
}

func Test_Cache_Returns_Every_Record_When_Read_In_Any_Order(t *testing.T) {
	t.Parallel()

	sizes := []int{5, 1, 0, 7, 3, 0, 2}

	orders := map[string]func(n int) []int{
		"Ascending": func(n int) []int {
			out := make([]int, n)
			for i := range out {
				out[i] = i
			}

			return out
		},
		"Descending": func(n int) []int {
			out := make([]int, n)
			for i := range out {
				out[i] = n - 1 - i
			}

			return out
		},
		"Random": func(n int) []int {
			return rand.New(rand.NewPCG(42, 7)).Perm(n)
		},
	}

	for _, limit := range []int{0, 1, 2, 3} {
		for orderName, order := range orders {
			t.Run(fmt.Sprintf("%s/limit=%d", orderName, limit), func(t *testing.T) {
				t.Parallel()

				dir := t.TempDir()
				want := layout(t, dir, sizes...)

				c := openCache(t, dir, shardcache.Options{ResidencyLimit: limit})

				for _, i := range order(len(want)) {
					got, err := c.At(i)
					require.NoError(t, err, "At(%d)", i)
					require.Equal(t, want[i], got, "At(%d)", i)
				}

				require.Equal(t, len(want), c.Len())
			})
		}
	}
}

func Test_Cache_Bounds_Residency_When_Limit_Is_Set(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	want := layout(t, dir, 2, 3, 1, 4, 2, 2, 5)

	for _, limit := range []int{1, 2, 4} {
		c := openCache(t, dir, shardcache.Options{ResidencyLimit: limit})
		rng := rand.New(rand.NewPCG(uint64(limit), 99))

		for range 200 {
			i := rng.IntN(len(want))

			_, err := c.At(i)
			require.NoError(t, err)
			require.LessOrEqual(t, len(c.Resident()), limit)
		}
	}
}

func Test_Cache_Evicts_Oldest_Loaded_Shard_When_Policy_Is_LoadOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	layout(t, dir, 2, 2, 2)

	c := openCache(t, dir, shardcache.Options{ResidencyLimit: 2})

	mustAt(t, c, 0) // load shard 0
	mustAt(t, c, 2) // load shard 1

	// Reading shard 0 again does not protect it.
	for range 5 {
		mustAt(t, c, 1)
	}

	mustAt(t, c, 4) // load shard 2, evicts shard 0

	assert.Equal(t, []int{2, 1}, c.Resident())
	assert.Equal(t, 1, c.Stats().Evictions)
}

func Test_Cache_Evicts_Least_Recently_Used_Shard_When_Policy_Is_AccessOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	layout(t, dir, 2, 2, 2)

	c := openCache(t, dir, shardcache.Options{ResidencyLimit: 2, Policy: shardcache.AccessOrder})

	mustAt(t, c, 0)
	mustAt(t, c, 2)
	mustAt(t, c, 1) // touch shard 0
	mustAt(t, c, 4) // evicts shard 1

	assert.Equal(t, []int{2, 0}, c.Resident())
}

func Test_Cache_Matches_Reference_Scenario_When_Middle_Shard_Is_Empty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePlain(t, dir, "000000", seq(0, 10))
	writePlain(t, dir, "000001", nil)
	writePlain(t, dir, "000002", seq(2, 5))

	c := openCache(t, dir, shardcache.Options{ResidencyLimit: 1})
	assertReferenceScenario(t, c)
}

func Test_Cache_Matches_Reference_Scenario_When_Middle_Shard_Cannot_Be_Opened(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePlain(t, dir, "000000", seq(0, 10))
	writePlain(t, dir, "000001", seq(1, 8))
	writePlain(t, dir, "000002", seq(2, 5))

	chaos := fs.NewChaos(fs.NewReal(), 1, &fs.ChaosConfig{FailOpenSuffixes: []string{"000001"}})

	c := openCache(t, dir, shardcache.Options{ResidencyLimit: 1, FS: chaos})
	assertReferenceScenario(t, c)

	assert.Equal(t, 1, c.Stats().OpenFailures)
	assert.True(t, c.Shards()[1].Skipped)
}

func Test_Cache_Keeps_Resident_Shard_When_Next_Shard_Cannot_Be_Opened(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePlain(t, dir, "000000", seq(0, 4))
	writePlain(t, dir, "000001", seq(1, 6))

	chaos := fs.NewChaos(fs.NewReal(), 3, &fs.ChaosConfig{FailOpenSuffixes: []string{"000001"}})

	c := openCache(t, dir, shardcache.Options{ResidencyLimit: 1, FS: chaos})
	assert.Equal(t, uint32(2), mustAt(t, c, 2))

	require.Equal(t, 4, c.Len())
	assert.Equal(t, []int{0}, c.Resident())

	stats := c.Stats()
	assert.Equal(t, 1, stats.OpenFailures)
	assert.Equal(t, 0, stats.Evictions)
	assert.Equal(t, 1, stats.Loads)

	assert.Equal(t, uint32(3), mustAt(t, c, 3))
	assert.Equal(t, 1, c.Stats().Hits)
}

func assertReferenceScenario(t *testing.T, c *shardcache.Cache[uint32]) {
	t.Helper()

	require.Equal(t, 15, c.Len())

	got, err := c.At(9)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), got, "last record of first shard")

	got, err = c.At(10)
	require.NoError(t, err)
	assert.Equal(t, uint32(2000), got, "first record of third shard")

	assert.Equal(t, []int{2}, c.Resident())

	first := c.Shards()[0]
	assert.False(t, first.Resident)
	assert.True(t, first.Resolved)
	assert.Equal(t, [2]int{0, 10}, [2]int{first.First, first.Last})

	_, err = c.At(15)
	require.ErrorIs(t, err, shardcache.ErrIndexOutOfRange)
}

func Test_Cache_Rejects_Index_When_Out_Of_Bounds(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	want := layout(t, dir, 4, 2)

	c := openCache(t, dir, shardcache.Options{ResidencyLimit: 1})

	_, err := c.At(-1)
	require.ErrorIs(t, err, shardcache.ErrIndexOutOfRange)

	_, err = c.At(c.Len())
	require.ErrorIs(t, err, shardcache.ErrIndexOutOfRange)

	got, err := c.At(c.Len() - 1)
	require.NoError(t, err)
	assert.Equal(t, want[len(want)-1], got)
}

func Test_Cache_Skips_Provisional_Shard_When_Name_Ends_In_Tmp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePlain(t, dir, "000000", seq(0, 2))
	writePlain(t, dir, "000001.tmp", seq(1, 50))
	writePlain(t, dir, "000002", seq(2, 2))

	fsys := &countingFS{FS: fs.NewReal()}
	c := openCache(t, dir, shardcache.Options{FS: fsys})

	require.Equal(t, 4, c.Len())

	got, err := c.At(2)
	require.NoError(t, err)
	assert.Equal(t, uint32(2000), got)

	tmp := c.Shards()[1]
	assert.True(t, tmp.Skipped)
	assert.Equal(t, tmp.First, tmp.Last)
	assert.NotContains(t, fsys.opens, "000001.tmp")
}

func Test_Cache_Reads_Gzip_Shards_When_Mixed_With_Plain(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeGzip(t, dir, "000000.gz", seq(0, 3))
	writePlain(t, dir, "000001", seq(1, 2))
	writeGzip(t, dir, "000002.gz", seq(2, 4))
	writeRaw(t, dir, "000003.gz", nil)

	c := openCache(t, dir, shardcache.Options{})

	var got []uint32

	require.NoError(t, c.Range(0, c.Len(), func(_ int, rec uint32) bool {
		got = append(got, rec)

		return true
	}))

	want := append(append(seq(0, 3), seq(1, 2)...), seq(2, 4)...)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 0, c.Stats().OpenFailures, "empty .gz is an empty shard, not a failure")
}

func Test_Cache_Drops_Trailing_Record_When_Shard_Is_Truncated(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := append(shardBytes(seq(0, 3)), 0xAA, 0xBB)
	writeRaw(t, dir, "000000", data)
	writePlain(t, dir, "000001", seq(1, 1))

	c := openCache(t, dir, shardcache.Options{})

	require.Equal(t, 4, c.Len())

	got, err := c.At(3)
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), got)
	assert.Equal(t, 1, c.Stats().MalformedTails)
}

func Test_Cache_Skips_Shard_When_Gzip_Header_Is_Invalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRaw(t, dir, "000000.gz", []byte("definitely not gzip"))
	writePlain(t, dir, "000001", seq(1, 2))

	c := openCache(t, dir, shardcache.Options{})

	require.Equal(t, 2, c.Len())
	assert.Equal(t, 1, c.Stats().OpenFailures)
}

func Test_Cache_Has_No_Records_When_Every_Open_Fails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	layout(t, dir, 3, 3)

	chaos := fs.NewChaos(fs.NewReal(), 5, &fs.ChaosConfig{OpenFailRate: 1.0})
	c := openCache(t, dir, shardcache.Options{FS: chaos})

	require.Equal(t, 0, c.Len())

	_, err := c.At(0)
	require.ErrorIs(t, err, shardcache.ErrIndexOutOfRange)
	assert.Equal(t, 2, c.Stats().OpenFailures)
}

func Test_Cache_Returns_Same_Records_When_Reads_Are_Short(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeGzip(t, dir, "000000.gz", seq(0, 300))
	writePlain(t, dir, "000001", seq(1, 300))

	chaos := fs.NewChaos(fs.NewReal(), 17, &fs.ChaosConfig{PartialReadRate: 1.0})

	plain := openCache(t, dir, shardcache.Options{})
	flaky := openCache(t, dir, shardcache.Options{FS: chaos})

	require.Equal(t, plain.Len(), flaky.Len())

	for i := range plain.Len() {
		want, err := plain.At(i)
		require.NoError(t, err)

		got, err := flaky.At(i)
		require.NoError(t, err)
		require.Equal(t, want, got, "At(%d)", i)
	}

	assert.Positive(t, chaos.Stats().PartialReads)
	assert.Equal(t, 0, flaky.Stats().MalformedTails)
}

func Test_Cache_Keeps_Metadata_When_Shard_Is_Evicted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	layout(t, dir, 2, 2, 2)

	fsys := &countingFS{FS: fs.NewReal()}
	c := openCache(t, dir, shardcache.Options{FS: fsys, ResidencyLimit: 1})

	mustAt(t, c, 5)
	assert.Equal(t, []string{"000000", "000001", "000002"}, fsys.opens)

	fsys.opens = nil

	mustAt(t, c, 0)
	assert.Equal(t, []string{"000000"}, fsys.opens, "earlier shards must not be re-indexed")

	fsys.opens = nil

	require.Equal(t, 6, c.Len())
	assert.Empty(t, fsys.opens, "Len must not decode once every range is known")
}

func Test_Cache_Applies_Lower_Limit_On_Next_Load_When_Limit_Is_Reduced(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	layout(t, dir, 1, 1, 1, 1)

	c := openCache(t, dir, shardcache.Options{})

	mustAt(t, c, 0)
	mustAt(t, c, 1)
	mustAt(t, c, 2)

	require.NoError(t, c.SetResidencyLimit(1))
	assert.Equal(t, 1, c.ResidencyLimit())
	assert.Len(t, c.Resident(), 3, "lowering the limit must not evict by itself")

	mustAt(t, c, 1)
	assert.Len(t, c.Resident(), 3, "hits do not evict")

	mustAt(t, c, 3)
	assert.Equal(t, []int{3}, c.Resident())

	require.ErrorIs(t, c.SetResidencyLimit(-2), shardcache.ErrInvalidLimit)
	assert.Equal(t, 1, c.ResidencyLimit())
}

func Test_Cache_Returns_ErrShardChanged_When_Shard_Shrinks_After_Indexing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	layout(t, dir, 3, 3)

	c := openCache(t, dir, shardcache.Options{ResidencyLimit: 1})
	require.Equal(t, 6, c.Len())
	require.Equal(t, []int{1}, c.Resident())

	writePlain(t, dir, "000000", []uint32{77})

	_, err := c.At(2)
	require.ErrorIs(t, err, shardcache.ErrShardChanged)

	got, err := c.At(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(77), got)

	assert.Equal(t, [2]int{0, 3}, [2]int{c.Shards()[0].First, c.Shards()[0].Last})
}

func Test_Cache_Counts_Hits_Loads_And_Evictions_When_Reading_Sequentially(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	layout(t, dir, 2, 2)

	c := openCache(t, dir, shardcache.Options{ResidencyLimit: 1})

	for i := range 4 {
		mustAt(t, c, i)
	}

	want := shardcache.Stats{
		Loads:     2,
		Hits:      2,
		Evictions: 1,
		Records:   4,
	}

	if diff := cmp.Diff(want, c.Stats()); diff != "" {
		t.Fatalf("Stats mismatch (-want +got):\n%s", diff)
	}
}

func Test_Cache_Range_Stops_When_Callback_Returns_False(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	layout(t, dir, 5)

	c := openCache(t, dir, shardcache.Options{})

	var seen []int

	require.NoError(t, c.Range(1, 5, func(i int, _ uint32) bool {
		seen = append(seen, i)

		return i < 2
	}))

	assert.Equal(t, []int{1, 2}, seen)

	err := c.Range(3, 9, func(int, uint32) bool { return true })
	require.ErrorIs(t, err, shardcache.ErrIndexOutOfRange)

	err = c.Range(-1, 2, func(int, uint32) bool { return true })
	require.ErrorIs(t, err, shardcache.ErrIndexOutOfRange)
}

func Test_Cache_Logs_Skipped_Shard_When_Logger_Is_Set(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRaw(t, dir, "000000.gz", []byte("junk"))
	writePlain(t, dir, "000001", seq(1, 1))

	logger, buf := newBufferLogger()
	c := openCache(t, dir, shardcache.Options{Logger: logger, Name: "status"})

	require.Equal(t, 1, c.Len())

	out := buf.String()
	assert.True(t, strings.Contains(out, "skipping unreadable shard"), out)
	assert.True(t, strings.Contains(out, "cache=status"), out)
	assert.True(t, strings.Contains(out, "shard=000000.gz"), out)
}

func Test_Cache_Uses_Directory_Name_When_Name_Is_Empty(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "event")
	layout(t, dir, 1)

	c := openCache(t, dir, shardcache.Options{})

	assert.Equal(t, "event", c.Name())
	assert.Equal(t, dir, c.Dir())
}

func mustAt(t *testing.T, c *shardcache.Cache[uint32], i int) uint32 {
	t.Helper()

	rec, err := c.At(i)
	require.NoError(t, err, "At(%d)", i)

	return rec
}
