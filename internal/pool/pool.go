// Package pool implements the persistent-memory pool: a file with a 4KB
// memory-mapped header block followed by a chunked data region carved into
// arenas. The header must match its on-disk layout exactly; all runtime
// introspection and tuning goes through the control tree built at open.
package pool

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/agentic-research/pmemctl/api"
	"github.com/agentic-research/pmemctl/internal/ctl"
)

const (
	// HeaderSize is the mmap'd header block, 1 page.
	HeaderSize = 4096
	// Magic identifies a pool file. 'PMCT'
	Magic = 0x504D4354
	// Version is the current header layout version.
	Version = 1

	DefaultChunkSize      = 4096
	DefaultChunksPerArena = 64
	DefaultArenas         = 4
)

// ConfigEnv is the environment variable scanned at open for control
// queries, e.g. PMEMCTL_CONF="stats.enabled=1;heap.0.automatic=0".
const ConfigEnv = "PMEMCTL_CONF"

var (
	ErrBadMagic   = errors.New("pool: invalid magic")
	ErrBadVersion = errors.New("pool: unsupported version")
	ErrBadLayout  = errors.New("pool: file size does not match header geometry")
)

// header is the on-disk control block. Field order is the wire layout;
// Generation and the stats counters are updated atomically in place.
type header struct {
	Magic          uint32
	Version        uint32
	Generation     uint64
	ChunkSize      uint64
	ChunksPerArena uint64
	NArenas        uint64
	StatsEnabled   uint64
	Allocated      uint64
	Freed          uint64
	Active         uint64
	Padding        [HeaderSize - 72]byte
}

// Options configures pool creation and open-time control input.
type Options struct {
	// Geometry, used by Create only. Zero values take the defaults.
	ChunkSize      uint64
	ChunksPerArena uint64
	NArenas        uint64

	// ConfigString is a ";"-separated control query batch applied at open.
	ConfigString string
	// ConfigFile is an HCL file of control queries applied at open, after
	// ConfigString. The ConfigEnv environment variable is applied last.
	ConfigFile string
}

func (o Options) withDefaults() Options {
	if o.ChunkSize == 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ChunksPerArena == 0 {
		o.ChunksPerArena = DefaultChunksPerArena
	}
	if o.NArenas == 0 {
		o.NArenas = DefaultArenas
	}
	return o
}

// Pool is an open pool handle. It owns the mapped header, the arena
// allocator state and the control tree. The tree's shape is fixed once Open
// returns; concurrent queries are safe as long as the leaf state they touch
// is (counters are atomic, arena bitmaps are mutex-guarded).
type Pool struct {
	path string
	file *os.File
	data []byte
	hdr  *header

	tree *ctl.Tree

	mu        sync.Mutex
	arenas    []*arena
	allocated bool // a chunk has been handed out; geometry is frozen
}

// Create initializes a new pool file at path and returns the open pool.
// The file must not already exist.
func Create(path string, opts Options) (*Pool, error) {
	opts = opts.withDefaults()

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create pool file: %w", err)
	}

	size := int64(HeaderSize + opts.NArenas*opts.ChunksPerArena*opts.ChunkSize)
	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("truncate: %w", err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, HeaderSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("mmap header: %w", err)
	}

	hdr := (*header)(unsafe.Pointer(&data[0]))
	hdr.Magic = Magic
	hdr.Version = Version
	hdr.ChunkSize = opts.ChunkSize
	hdr.ChunksPerArena = opts.ChunksPerArena
	hdr.NArenas = opts.NArenas

	p := &Pool{path: path, file: f, data: data, hdr: hdr}
	if err := p.finishOpen(opts); err != nil {
		_ = unix.Munmap(data)
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}
	return p, nil
}

// Open maps an existing pool file and rebuilds its runtime state.
func Open(path string, opts Options) (*Pool, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open pool file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}
	if info.Size() < HeaderSize {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %d bytes", ErrBadLayout, info.Size())
	}

	data, err := unix.Mmap(int(f.Fd()), 0, HeaderSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmap header: %w", err)
	}

	hdr := (*header)(unsafe.Pointer(&data[0]))
	if hdr.Magic != Magic {
		magic := hdr.Magic // copy out: hdr is invalid once data is unmapped
		_ = unix.Munmap(data)
		_ = f.Close()
		return nil, fmt.Errorf("%w: %x", ErrBadMagic, magic)
	}
	if hdr.Version != Version {
		version := hdr.Version
		_ = unix.Munmap(data)
		_ = f.Close()
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, version)
	}
	// A zeroed geometry would make the size check vacuously pass and the
	// allocator divide by zero later.
	if hdr.ChunkSize == 0 || hdr.ChunksPerArena == 0 || hdr.NArenas == 0 {
		chunkSize, chunksPerArena, narenas := hdr.ChunkSize, hdr.ChunksPerArena, hdr.NArenas
		_ = unix.Munmap(data)
		_ = f.Close()
		return nil, fmt.Errorf("%w: zero geometry (chunk_size=%d chunks_per_arena=%d narenas=%d)",
			ErrBadLayout, chunkSize, chunksPerArena, narenas)
	}
	want := int64(HeaderSize + hdr.NArenas*hdr.ChunksPerArena*hdr.ChunkSize)
	if info.Size() != want {
		_ = unix.Munmap(data)
		_ = f.Close()
		return nil, fmt.Errorf("%w: have %d, want %d", ErrBadLayout, info.Size(), want)
	}

	p := &Pool{path: path, file: f, data: data, hdr: hdr}
	if err := p.finishOpen(opts); err != nil {
		_ = unix.Munmap(data)
		_ = f.Close()
		return nil, err
	}
	return p, nil
}

// finishOpen builds the arena allocator, registers the control modules and
// applies open-time configuration, in order: ConfigString, ConfigFile,
// then the ConfigEnv environment variable.
func (p *Pool) finishOpen(opts Options) error {
	p.rebuildArenas()

	p.tree = ctl.NewTree()
	if err := p.registerCtl(); err != nil {
		return err
	}

	if opts.ConfigString != "" {
		if err := p.LoadString(opts.ConfigString); err != nil {
			return fmt.Errorf("config string: %w", err)
		}
	}
	if opts.ConfigFile != "" {
		if err := p.LoadFile(opts.ConfigFile); err != nil {
			return fmt.Errorf("config file %s: %w", opts.ConfigFile, err)
		}
	}
	if env := os.Getenv(ConfigEnv); env != "" {
		if err := p.LoadString(env); err != nil {
			return fmt.Errorf("%s: %w", ConfigEnv, err)
		}
	}
	return nil
}

// rebuildArenas resets the allocator to match the header geometry. Chunk
// occupancy is runtime state only; every open starts empty.
func (p *Pool) rebuildArenas() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.arenas = make([]*arena, p.hdr.NArenas)
	for i := range p.arenas {
		p.arenas[i] = newArena(p.hdr.ChunksPerArena)
	}
	p.allocated = false
}

// Control programmatically executes one control query against this pool.
func (p *Pool) Control(path string, readArg, writeArg any) error {
	return p.tree.Query(p, ctl.SourceProgrammatic, path, readArg, writeArg)
}

// LoadString applies a ";"-separated query batch as config input.
func (p *Pool) LoadString(conf string) error {
	return ctl.LoadConfig(p, p.tree, ctl.NewStringProvider(conf))
}

// LoadFile applies an HCL config file as config input.
func (p *Pool) LoadFile(path string) error {
	provider, err := ctl.NewHCLProvider(path)
	if err != nil {
		return err
	}
	return ctl.LoadConfig(p, p.tree, provider)
}

// Tree exposes the control tree for read-only traversal (dump).
func (p *Pool) Tree() *ctl.Tree {
	return p.tree
}

// Path returns the pool file path.
func (p *Pool) Path() string {
	return p.path
}

// Info describes the pool header.
func (p *Pool) Info() api.PoolInfo {
	return api.PoolInfo{
		Path:           p.path,
		Version:        p.hdr.Version,
		Generation:     atomic.LoadUint64(&p.hdr.Generation),
		ChunkSize:      p.hdr.ChunkSize,
		ChunksPerArena: p.hdr.ChunksPerArena,
		NArenas:        p.hdr.NArenas,
	}
}

// Snapshot reads the current statistics through the control tree, the same
// path an external caller would use.
func (p *Pool) Snapshot() (api.StatsSnapshot, error) {
	var snap api.StatsSnapshot

	var enabled bool
	if err := p.Control("stats.enabled", &enabled, nil); err != nil {
		return snap, err
	}
	snap.Enabled = enabled
	for path, dst := range map[string]*uint64{
		"stats.allocated": &snap.Allocated,
		"stats.freed":     &snap.Freed,
		"stats.active":    &snap.Active,
	} {
		if err := p.Control(path, dst, nil); err != nil {
			return snap, err
		}
	}

	var narenas uint64
	if err := p.Control("heap.narenas", &narenas, nil); err != nil {
		return snap, err
	}
	for i := uint64(0); i < narenas; i++ {
		var as api.ArenaStats
		prefix := fmt.Sprintf("heap.%d.", i)
		if err := p.Control(prefix+"size", &as.Size, nil); err != nil {
			return snap, err
		}
		if err := p.Control(prefix+"used", &as.Used, nil); err != nil {
			return snap, err
		}
		if err := p.Control(prefix+"automatic", &as.Automatic, nil); err != nil {
			return snap, err
		}
		snap.Arenas = append(snap.Arenas, as)
	}
	return snap, nil
}

// Close unmaps the header and closes the pool file.
func (p *Pool) Close() error {
	if err := unix.Munmap(p.data); err != nil {
		return err
	}
	return p.file.Close()
}

func (p *Pool) bumpGeneration() {
	atomic.AddUint64(&p.hdr.Generation, 1)
}

func (p *Pool) statsEnabled() bool {
	return atomic.LoadUint64(&p.hdr.StatsEnabled) != 0
}
