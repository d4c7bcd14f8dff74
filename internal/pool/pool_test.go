package pool

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/pmemctl/internal/ctl"
)

func testPool(t *testing.T, opts Options) *Pool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.pool")
	p, err := Create(path, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestCreateOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rt.pool")

	p, err := Create(path, Options{ChunkSize: 1024, ChunksPerArena: 8, NArenas: 2})
	require.NoError(t, err)
	require.NoError(t, p.Close())

	p, err = Open(path, Options{})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	info := p.Info()
	assert.Equal(t, uint64(1024), info.ChunkSize)
	assert.Equal(t, uint64(2), info.NArenas)
	assert.Equal(t, uint32(Version), info.Version)
}

func TestCreate_RefusesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup.pool")
	p, err := Create(path, Options{})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	_, err = Create(path, Options{})
	assert.Error(t, err)
}

func TestOpen_RejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.pool")
	require.NoError(t, os.WriteFile(path, make([]byte, HeaderSize), 0o644))

	_, err := Open(path, Options{})
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestOpen_RejectsTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.pool")
	require.NoError(t, os.WriteFile(path, []byte("pmem"), 0o644))

	_, err := Open(path, Options{})
	assert.ErrorIs(t, err, ErrBadLayout)
}

func TestOpen_RejectsZeroGeometry(t *testing.T) {
	// Valid magic and version but all geometry fields zeroed: the file size
	// happens to equal HeaderSize, so only the explicit geometry check can
	// catch it before the allocator divides by zero.
	path := filepath.Join(t.TempDir(), "zeroed.pool")
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	binary.LittleEndian.PutUint32(buf[4:8], Version)
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	_, err := Open(path, Options{})
	assert.ErrorIs(t, err, ErrBadLayout)
}

func TestControl_HeapReads(t *testing.T) {
	p := testPool(t, Options{NArenas: 3, ChunksPerArena: 16, ChunkSize: 512})

	var narenas uint64
	require.NoError(t, p.Control("heap.narenas", &narenas, nil))
	assert.Equal(t, uint64(3), narenas)

	var size uint64
	require.NoError(t, p.Control("heap.2.size", &size, nil))
	assert.Equal(t, uint64(16), size)

	// *string destinations always work, for CLI use.
	var text string
	require.NoError(t, p.Control("heap.chunk_size", &text, nil))
	assert.Equal(t, "512", text)
}

func TestControl_ArenaIndexOutOfRange(t *testing.T) {
	p := testPool(t, Options{NArenas: 2})

	var size uint64
	err := p.Control("heap.7.size", &size, nil)
	assert.ErrorIs(t, err, ctl.ErrInvalidArguments)

	err = p.Control("heap.-1.size", &size, nil)
	assert.ErrorIs(t, err, ctl.ErrInvalidArguments)
}

func TestControl_ArenaAutomaticWrite(t *testing.T) {
	p := testPool(t, Options{NArenas: 2})

	require.NoError(t, p.Control("heap.1.automatic", nil, "0"))

	var auto bool
	require.NoError(t, p.Control("heap.1.automatic", &auto, nil))
	assert.False(t, auto)

	// read-then-write in one query
	var before bool
	require.NoError(t, p.Control("heap.0.automatic", &before, true))
	assert.True(t, before)
}

func TestControl_ChunkSizeWriteIsConfigOnly(t *testing.T) {
	p := testPool(t, Options{ChunkSize: 1024, ChunksPerArena: 8})

	err := p.Control("heap.chunk_size", nil, uint64(512))
	assert.ErrorIs(t, err, ctl.ErrInvalidArguments)

	require.NoError(t, p.LoadString("heap.chunk_size=512"))
	var size uint64
	require.NoError(t, p.Control("heap.chunk_size", &size, nil))
	assert.Equal(t, uint64(512), size)

	// arena byte size is fixed; chunk count doubles
	require.NoError(t, p.Control("heap.0.size", &size, nil))
	assert.Equal(t, uint64(16), size)
}

func TestControl_ChunkSizeFrozenAfterAlloc(t *testing.T) {
	p := testPool(t, Options{ChunkSize: 1024, ChunksPerArena: 8})

	_, err := p.Alloc(100)
	require.NoError(t, err)

	err = p.LoadString("heap.chunk_size=512")
	assert.ErrorIs(t, err, ctl.ErrInvalidArguments)
}

func TestControl_StatsResetRejectsConfigInput(t *testing.T) {
	p := testPool(t, Options{})

	err := p.LoadString("stats.reset=1")
	assert.ErrorIs(t, err, ctl.ErrInvalidArguments)

	require.NoError(t, p.Control("stats.reset", nil, 1))
}

func TestAlloc_UpdatesStats(t *testing.T) {
	p := testPool(t, Options{ChunkSize: 1024, ChunksPerArena: 8, NArenas: 2})
	require.NoError(t, p.Control("stats.enabled", nil, true))

	off, err := p.Alloc(1500) // rounds to 2 chunks
	require.NoError(t, err)
	assert.Equal(t, uint64(HeaderSize), off)

	var allocated, active uint64
	require.NoError(t, p.Control("stats.allocated", &allocated, nil))
	require.NoError(t, p.Control("stats.active", &active, nil))
	assert.Equal(t, uint64(2048), allocated)
	assert.Equal(t, uint64(2048), active)

	require.NoError(t, p.Free(off, 1500))

	var freed uint64
	require.NoError(t, p.Control("stats.freed", &freed, nil))
	require.NoError(t, p.Control("stats.active", &active, nil))
	assert.Equal(t, uint64(2048), freed)
	assert.Zero(t, active)

	require.NoError(t, p.Control("stats.reset", nil, 1))
	require.NoError(t, p.Control("stats.allocated", &allocated, nil))
	assert.Zero(t, allocated)
}

func TestAlloc_DisabledStatsLeaveCountersAlone(t *testing.T) {
	p := testPool(t, Options{ChunkSize: 1024, ChunksPerArena: 8})

	_, err := p.Alloc(100)
	require.NoError(t, err)

	var allocated uint64
	require.NoError(t, p.Control("stats.allocated", &allocated, nil))
	assert.Zero(t, allocated)
}

func TestAlloc_SkipsNonAutomaticArenas(t *testing.T) {
	p := testPool(t, Options{ChunkSize: 1024, ChunksPerArena: 4, NArenas: 2})
	require.NoError(t, p.Control("heap.0.automatic", nil, false))

	off, err := p.Alloc(1024)
	require.NoError(t, err)
	// first automatic arena is now arena 1
	assert.Equal(t, uint64(HeaderSize+4*1024), off)

	var used uint64
	require.NoError(t, p.Control("heap.1.used", &used, nil))
	assert.Equal(t, uint64(1), used)
}

func TestAlloc_OutOfSpace(t *testing.T) {
	p := testPool(t, Options{ChunkSize: 1024, ChunksPerArena: 2, NArenas: 1})

	_, err := p.Alloc(2048)
	require.NoError(t, err)
	_, err = p.Alloc(1)
	assert.ErrorIs(t, err, ErrNoSpace)
}

func TestAllocFromArena_IgnoresAutomaticFlag(t *testing.T) {
	p := testPool(t, Options{ChunkSize: 1024, ChunksPerArena: 4, NArenas: 2})
	require.NoError(t, p.Control("heap.0.automatic", nil, false))

	off, err := p.AllocFromArena(0, 1024)
	require.NoError(t, err)
	assert.Equal(t, uint64(HeaderSize), off)
}

func TestFree_Validation(t *testing.T) {
	p := testPool(t, Options{ChunkSize: 1024, ChunksPerArena: 4, NArenas: 1})

	assert.ErrorIs(t, p.Free(0, 1024), ErrBadAddress)
	assert.ErrorIs(t, p.Free(HeaderSize+100, 1024), ErrBadAddress)
	assert.ErrorIs(t, p.Free(HeaderSize, 1024), ErrNotAlloced)
}

func TestOpen_AppliesConfigString(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.pool")
	p, err := Create(path, Options{ConfigString: "stats.enabled=1;heap.0.automatic=0"})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	var enabled, auto bool
	require.NoError(t, p.Control("stats.enabled", &enabled, nil))
	require.NoError(t, p.Control("heap.0.automatic", &auto, nil))
	assert.True(t, enabled)
	assert.False(t, auto)
}

func TestOpen_AppliesConfigFile(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "pool.hcl")
	require.NoError(t, os.WriteFile(conf, []byte(`
heap {
  chunk_size = 512
}
stats {
  enabled = true
}
`), 0o644))

	p, err := Create(filepath.Join(dir, "hcl.pool"),
		Options{ChunkSize: 1024, ChunksPerArena: 8, ConfigFile: conf})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	var size uint64
	require.NoError(t, p.Control("heap.chunk_size", &size, nil))
	assert.Equal(t, uint64(512), size)
}

func TestOpen_AppliesEnvConfig(t *testing.T) {
	t.Setenv(ConfigEnv, "stats.enabled=1")

	p := testPool(t, Options{})
	var enabled bool
	require.NoError(t, p.Control("stats.enabled", &enabled, nil))
	assert.True(t, enabled)
}

func TestOpen_BadConfigFailsOpen(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "bad.pool"),
		Options{ConfigString: "no.such.node=1"})
	assert.ErrorIs(t, err, ctl.ErrInvalidPath)
}

func TestSnapshot(t *testing.T) {
	p := testPool(t, Options{ChunkSize: 1024, ChunksPerArena: 4, NArenas: 2})
	require.NoError(t, p.Control("stats.enabled", nil, true))
	_, err := p.Alloc(1024)
	require.NoError(t, err)

	snap, err := p.Snapshot()
	require.NoError(t, err)
	assert.True(t, snap.Enabled)
	assert.Equal(t, uint64(1024), snap.Allocated)
	require.Len(t, snap.Arenas, 2)
	assert.Equal(t, uint64(1), snap.Arenas[0].Used)
	assert.Equal(t, uint64(4), snap.Arenas[0].Size)
	assert.True(t, snap.Arenas[1].Automatic)
}

func TestGenerationBumpsOnWrites(t *testing.T) {
	p := testPool(t, Options{})

	var before, after uint64
	require.NoError(t, p.Control("debug.generation", &before, nil))
	require.NoError(t, p.Control("stats.enabled", nil, true))
	require.NoError(t, p.Control("debug.generation", &after, nil))
	assert.Equal(t, before+1, after)
}
