package pool

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring"
)

var (
	ErrNoSpace    = errors.New("pool: out of space")
	ErrBadAddress = errors.New("pool: address outside any arena")
	ErrNotAlloced = errors.New("pool: free of unallocated region")
)

// arena tracks chunk occupancy for one slice of the data region. The used
// bitmap holds chunk indexes, not byte offsets.
type arena struct {
	nchunks   uint64
	automatic bool
	used      *roaring.Bitmap
}

func newArena(nchunks uint64) *arena {
	return &arena{nchunks: nchunks, automatic: true, used: roaring.New()}
}

// findRun returns the first index of a run of n free chunks, or false.
func (a *arena) findRun(n uint64) (uint64, bool) {
	if n > a.nchunks {
		return 0, false
	}
	var start uint64
	for start+n <= a.nchunks {
		run := uint64(0)
		for run < n && !a.used.Contains(uint32(start+run)) {
			run++
		}
		if run == n {
			return start, true
		}
		// restart past the used chunk that broke the run
		start += run + 1
	}
	return 0, false
}

// chunksFor rounds size up to whole chunks.
func (p *Pool) chunksFor(size uint64) uint64 {
	return (size + p.hdr.ChunkSize - 1) / p.hdr.ChunkSize
}

func (p *Pool) arenaBytes() uint64 {
	return p.hdr.ChunksPerArena * p.hdr.ChunkSize
}

// Alloc reserves contiguous chunks for size bytes from the first automatic
// arena with room and returns the pool-relative byte offset.
func (p *Pool) Alloc(size uint64) (uint64, error) {
	if size == 0 {
		return 0, fmt.Errorf("%w: zero-sized allocation", ErrBadAddress)
	}
	n := p.chunksFor(size)

	p.mu.Lock()
	defer p.mu.Unlock()
	for i, a := range p.arenas {
		if !a.automatic {
			continue
		}
		if start, ok := a.findRun(n); ok {
			return p.reserve(i, a, start, n), nil
		}
	}
	return 0, fmt.Errorf("%w: %d chunks", ErrNoSpace, n)
}

// AllocFromArena is Alloc pinned to one arena, ignoring its automatic flag.
func (p *Pool) AllocFromArena(arenaID int, size uint64) (uint64, error) {
	if size == 0 {
		return 0, fmt.Errorf("%w: zero-sized allocation", ErrBadAddress)
	}
	n := p.chunksFor(size)

	p.mu.Lock()
	defer p.mu.Unlock()
	if arenaID < 0 || arenaID >= len(p.arenas) {
		return 0, fmt.Errorf("%w: arena %d", ErrBadAddress, arenaID)
	}
	a := p.arenas[arenaID]
	start, ok := a.findRun(n)
	if !ok {
		return 0, fmt.Errorf("%w: %d chunks in arena %d", ErrNoSpace, n, arenaID)
	}
	return p.reserve(arenaID, a, start, n), nil
}

// reserve marks the run used and updates the stats counters. Caller holds
// p.mu.
func (p *Pool) reserve(arenaID int, a *arena, start, n uint64) uint64 {
	a.used.AddRange(start, start+n)
	p.allocated = true

	bytes := n * p.hdr.ChunkSize
	if p.statsEnabled() {
		atomic.AddUint64(&p.hdr.Allocated, bytes)
		atomic.AddUint64(&p.hdr.Active, bytes)
	}
	return HeaderSize + uint64(arenaID)*p.arenaBytes() + start*p.hdr.ChunkSize
}

// Free releases the chunks backing a previous allocation of size bytes at
// offset. Offset must be chunk-aligned within a single arena.
func (p *Pool) Free(offset, size uint64) error {
	n := p.chunksFor(size)

	p.mu.Lock()
	defer p.mu.Unlock()

	if offset < HeaderSize {
		return fmt.Errorf("%w: offset %d", ErrBadAddress, offset)
	}
	rel := offset - HeaderSize
	arenaID := rel / p.arenaBytes()
	if arenaID >= uint64(len(p.arenas)) {
		return fmt.Errorf("%w: offset %d", ErrBadAddress, offset)
	}
	inArena := rel % p.arenaBytes()
	if inArena%p.hdr.ChunkSize != 0 {
		return fmt.Errorf("%w: offset %d not chunk-aligned", ErrBadAddress, offset)
	}
	start := inArena / p.hdr.ChunkSize
	if start+n > p.hdr.ChunksPerArena {
		return fmt.Errorf("%w: run crosses arena boundary", ErrBadAddress)
	}

	a := p.arenas[arenaID]
	for c := start; c < start+n; c++ {
		if !a.used.Contains(uint32(c)) {
			return fmt.Errorf("%w: chunk %d of arena %d", ErrNotAlloced, c, arenaID)
		}
	}
	a.used.RemoveRange(start, start+n)

	bytes := n * p.hdr.ChunkSize
	if p.statsEnabled() {
		atomic.AddUint64(&p.hdr.Freed, bytes)
		atomic.AddUint64(&p.hdr.Active, ^(bytes - 1))
	}
	return nil
}
