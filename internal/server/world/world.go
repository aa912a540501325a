package world

import (
	"cmp"
	"slices"
	"sync"

	"github.com/OCharnyshevich/voxel-stream/internal/server/world/gen"
)

// BlockPos represents a block position in the world.
type BlockPos struct {
	X, Y, Z int
}

// ChunkPos returns the position of the chunk containing the block.
func (p BlockPos) ChunkPos() gen.ChunkPos {
	return gen.ChunkPos{X: p.X >> 4, Z: p.Z >> 4}
}

// World holds resident chunks and the number of observers viewing each
// chunk position. Viewer counts are kept for positions that are not
// resident yet, so a chunk is wanted before it arrives.
type World struct {
	mu      sync.RWMutex
	chunks  map[gen.ChunkPos]*gen.ChunkData
	viewers map[gen.ChunkPos]int
}

// NewWorld creates an empty World.
func NewWorld() *World {
	return &World{
		chunks:  make(map[gen.ChunkPos]*gen.ChunkData),
		viewers: make(map[gen.ChunkPos]int),
	}
}

// Has reports whether the chunk at pos is resident.
func (w *World) Has(pos gen.ChunkPos) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.chunks[pos]
	return ok
}

// Chunk returns the resident chunk at pos, or nil.
func (w *World) Chunk(pos gen.ChunkPos) *gen.ChunkData {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.chunks[pos]
}

// Insert makes c resident at pos, replacing any previous chunk.
func (w *World) Insert(pos gen.ChunkPos, c *gen.ChunkData) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chunks[pos] = c
}

// Remove drops the chunk at pos and returns it, or nil if it was not resident.
func (w *World) Remove(pos gen.ChunkPos) *gen.ChunkData {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.chunks[pos]
	if !ok {
		return nil
	}
	delete(w.chunks, pos)
	return c
}

// ViewerCount returns how many observers currently view pos.
func (w *World) ViewerCount(pos gen.ChunkPos) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.viewers[pos]
}

// Watch increments the viewer count of every position.
func (w *World) Watch(positions []gen.ChunkPos) {
	if len(positions) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, pos := range positions {
		w.viewers[pos]++
	}
}

// Unwatch decrements the viewer count of every position. Counts never
// go below zero; positions reaching zero are forgotten.
func (w *World) Unwatch(positions []gen.ChunkPos) {
	if len(positions) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, pos := range positions {
		n := w.viewers[pos] - 1
		if n <= 0 {
			delete(w.viewers, pos)
			continue
		}
		w.viewers[pos] = n
	}
}

// Unviewed returns resident positions whose viewer count is zero, sorted.
func (w *World) Unviewed() []gen.ChunkPos {
	w.mu.RLock()
	var out []gen.ChunkPos
	for pos := range w.chunks {
		if w.viewers[pos] == 0 {
			out = append(out, pos)
		}
	}
	w.mu.RUnlock()

	slices.SortFunc(out, comparePos)
	return out
}

// Resident returns all resident positions, sorted.
func (w *World) Resident() []gen.ChunkPos {
	w.mu.RLock()
	out := make([]gen.ChunkPos, 0, len(w.chunks))
	for pos := range w.chunks {
		out = append(out, pos)
	}
	w.mu.RUnlock()

	slices.SortFunc(out, comparePos)
	return out
}

// Len returns the number of resident chunks.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.chunks)
}

// GetBlock returns the block state at the given world position.
// Positions in non-resident chunks read as air.
func (w *World) GetBlock(x, y, z int) uint16 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	c, ok := w.chunks[BlockPos{x, y, z}.ChunkPos()]
	if !ok {
		return gen.BlockAir
	}
	return c.GetBlock(x&0xF, y, z&0xF)
}

// SetBlock edits a block in a resident chunk and marks its section dirty.
// It reports false when the chunk is not resident or y is out of range.
func (w *World) SetBlock(x, y, z int, state uint16) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	c, ok := w.chunks[BlockPos{x, y, z}.ChunkPos()]
	if !ok {
		return false
	}
	return c.Edit(x&0xF, y, z&0xF, state)
}

func comparePos(a, b gen.ChunkPos) int {
	if c := cmp.Compare(a.X, b.X); c != 0 {
		return c
	}
	return cmp.Compare(a.Z, b.Z)
}
