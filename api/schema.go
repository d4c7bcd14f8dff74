package api

import "time"

// PoolInfo describes an open pool's header.
type PoolInfo struct {
	// Path of the pool file.
	Path string `json:"path"`
	// Version of the pool header layout.
	Version uint32 `json:"version"`
	// Generation counts control-tree writes since creation.
	Generation uint64 `json:"generation"`
	// ChunkSize is the allocation granularity in bytes.
	ChunkSize uint64 `json:"chunk_size"`
	// ChunksPerArena is each arena's chunk capacity.
	ChunksPerArena uint64 `json:"chunks_per_arena"`
	// NArenas is the number of allocator arenas.
	NArenas uint64 `json:"narenas"`
}

// StatsSnapshot is one point-in-time view of the pool's allocator
// statistics, as read through the control tree.
type StatsSnapshot struct {
	// TakenAt is set by the recorder, not the pool.
	TakenAt time.Time `json:"taken_at,omitempty"`
	// Enabled reports whether counter updates are on.
	Enabled bool `json:"enabled"`
	// Allocated is total bytes ever allocated.
	Allocated uint64 `json:"allocated"`
	// Freed is total bytes ever freed.
	Freed uint64 `json:"freed"`
	// Active is Allocated minus Freed.
	Active uint64 `json:"active"`
	// Arenas holds per-arena occupancy.
	Arenas []ArenaStats `json:"arenas,omitempty"`
}

// ArenaStats is per-arena occupancy, in chunks.
type ArenaStats struct {
	Size      uint64 `json:"size"`
	Used      uint64 `json:"used"`
	Automatic bool   `json:"automatic"`
}
