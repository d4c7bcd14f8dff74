package pool

import (
	"fmt"
	"sync/atomic"

	"github.com/agentic-research/pmemctl/internal/ctl"
)

// registerCtl wires the pool's control namespace. Called once from
// finishOpen, before any config input is applied.
//
//	heap.narenas               (r)
//	heap.chunk_size            (r, w: config-input only, pre-allocation)
//	heap.<i>.size              (r)
//	heap.<i>.used              (r)
//	heap.<i>.automatic         (r/w)
//	stats.enabled              (r/w)
//	stats.allocated            (r)
//	stats.freed                (r)
//	stats.active               (r)
//	stats.reset                (w: programmatic only)
//	debug.version              (r)
//	debug.generation           (r)
func (p *Pool) registerCtl() error {
	if err := p.tree.RegisterModule("heap", []*ctl.Node{
		ctl.Leaf("narenas", readNArenas, nil),
		ctl.Leaf("chunk_size", readChunkSize, writeChunkSize),
		ctl.Indexed("arena",
			ctl.Leaf("size", readArenaSize, nil),
			ctl.Leaf("used", readArenaUsed, nil),
			ctl.Leaf("automatic", readArenaAutomatic, writeArenaAutomatic),
		),
	}); err != nil {
		return err
	}

	if err := p.tree.RegisterModule("stats", []*ctl.Node{
		ctl.Leaf("enabled", readStatsEnabled, writeStatsEnabled),
		ctl.Leaf("allocated", readCounter(func(h *header) *uint64 { return &h.Allocated }), nil),
		ctl.Leaf("freed", readCounter(func(h *header) *uint64 { return &h.Freed }), nil),
		ctl.Leaf("active", readCounter(func(h *header) *uint64 { return &h.Active }), nil),
		ctl.Leaf("reset", nil, writeStatsReset),
	}); err != nil {
		return err
	}

	return p.tree.RegisterModule("debug", []*ctl.Node{
		ctl.Leaf("version", readVersion, nil),
		ctl.Leaf("generation", readGeneration, nil),
	})
}

// arenaByIndex resolves the innermost index entry against the arena table.
// Bound checking happens here, not in the resolver.
func arenaByIndex(p *Pool, indexes []ctl.Index) (*arena, error) {
	if len(indexes) == 0 {
		return nil, fmt.Errorf("%w: missing arena index", ctl.ErrInvalidArguments)
	}
	i := indexes[0].Value
	if i < 0 || i >= int64(len(p.arenas)) {
		return nil, fmt.Errorf("%w: arena %d out of range [0, %d)",
			ctl.ErrInvalidArguments, i, len(p.arenas))
	}
	return p.arenas[i], nil
}

func readNArenas(target any, _ ctl.Source, arg any, _ []ctl.Index) error {
	p := target.(*Pool)
	p.mu.Lock()
	n := uint64(len(p.arenas))
	p.mu.Unlock()
	return storeUint(arg, n)
}

func readChunkSize(target any, _ ctl.Source, arg any, _ []ctl.Index) error {
	return storeUint(arg, target.(*Pool).hdr.ChunkSize)
}

// writeChunkSize retunes the chunk geometry. Only valid as config input and
// only before the first allocation; the arena byte size is fixed, so the
// new chunk size must divide it.
func writeChunkSize(target any, src ctl.Source, arg any, _ []ctl.Index) error {
	p := target.(*Pool)
	if src != ctl.SourceConfigInput {
		return fmt.Errorf("%w: chunk_size is settable via config input only", ctl.ErrInvalidArguments)
	}
	size, err := argUint(arg)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.allocated {
		return fmt.Errorf("%w: chunk_size cannot change after an allocation", ctl.ErrInvalidArguments)
	}
	bytes := p.hdr.ChunksPerArena * p.hdr.ChunkSize
	if size == 0 || bytes%size != 0 {
		return fmt.Errorf("%w: chunk_size %d does not divide arena size %d",
			ctl.ErrInvalidArguments, size, bytes)
	}

	p.hdr.ChunkSize = size
	p.hdr.ChunksPerArena = bytes / size
	for i := range p.arenas {
		p.arenas[i] = newArena(p.hdr.ChunksPerArena)
	}
	p.bumpGeneration()
	return nil
}

func readArenaSize(target any, _ ctl.Source, arg any, indexes []ctl.Index) error {
	p := target.(*Pool)
	p.mu.Lock()
	defer p.mu.Unlock()
	a, err := arenaByIndex(p, indexes)
	if err != nil {
		return err
	}
	return storeUint(arg, a.nchunks)
}

func readArenaUsed(target any, _ ctl.Source, arg any, indexes []ctl.Index) error {
	p := target.(*Pool)
	p.mu.Lock()
	defer p.mu.Unlock()
	a, err := arenaByIndex(p, indexes)
	if err != nil {
		return err
	}
	return storeUint(arg, a.used.GetCardinality())
}

func readArenaAutomatic(target any, _ ctl.Source, arg any, indexes []ctl.Index) error {
	p := target.(*Pool)
	p.mu.Lock()
	defer p.mu.Unlock()
	a, err := arenaByIndex(p, indexes)
	if err != nil {
		return err
	}
	return storeBool(arg, a.automatic)
}

func writeArenaAutomatic(target any, _ ctl.Source, arg any, indexes []ctl.Index) error {
	p := target.(*Pool)
	v, err := argBool(arg)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	a, aerr := arenaByIndex(p, indexes)
	if aerr != nil {
		return aerr
	}
	a.automatic = v
	p.bumpGeneration()
	return nil
}

func readStatsEnabled(target any, _ ctl.Source, arg any, _ []ctl.Index) error {
	return storeBool(arg, target.(*Pool).statsEnabled())
}

func writeStatsEnabled(target any, _ ctl.Source, arg any, _ []ctl.Index) error {
	p := target.(*Pool)
	v, err := argBool(arg)
	if err != nil {
		return err
	}
	var raw uint64
	if v {
		raw = 1
	}
	atomic.StoreUint64(&p.hdr.StatsEnabled, raw)
	p.bumpGeneration()
	return nil
}

// readCounter builds a read callback over one atomic header counter.
func readCounter(field func(*header) *uint64) ctl.CallbackFunc {
	return func(target any, _ ctl.Source, arg any, _ []ctl.Index) error {
		return storeUint(arg, atomic.LoadUint64(field(target.(*Pool).hdr)))
	}
}

// writeStatsReset zeroes the counters. Resetting from a config file makes
// no sense, so config input is rejected; the write value is ignored.
func writeStatsReset(target any, src ctl.Source, _ any, _ []ctl.Index) error {
	p := target.(*Pool)
	if src == ctl.SourceConfigInput {
		return fmt.Errorf("%w: stats.reset is not valid config input", ctl.ErrInvalidArguments)
	}
	atomic.StoreUint64(&p.hdr.Allocated, 0)
	atomic.StoreUint64(&p.hdr.Freed, 0)
	atomic.StoreUint64(&p.hdr.Active, 0)
	p.bumpGeneration()
	return nil
}

func readVersion(target any, _ ctl.Source, arg any, _ []ctl.Index) error {
	return storeUint(arg, uint64(target.(*Pool).hdr.Version))
}

func readGeneration(target any, _ ctl.Source, arg any, _ []ctl.Index) error {
	return storeUint(arg, atomic.LoadUint64(&target.(*Pool).hdr.Generation))
}
