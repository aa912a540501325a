package gen

import "github.com/willf/bitset"

// SectionHeight is the vertical size of one chunk section.
const SectionHeight = 16

// ChunkPos identifies a chunk by its X and Z coordinates.
type ChunkPos struct{ X, Z int }

// DistanceSquared returns the squared distance between two chunk positions.
func (p ChunkPos) DistanceSquared(o ChunkPos) uint64 {
	dx := int64(p.X - o.X)
	dz := int64(p.Z - o.Z)
	return uint64(dx*dx + dz*dz)
}

// Section holds block data for a 16×16×16 vertical slice of a chunk.
// Index = y*256 + z*16 + x, value = blockID<<4 | metadata.
type Section struct {
	Blocks [4096]uint16
}

// ChunkData holds the terrain for one chunk column.
type ChunkData struct {
	Sections []*Section // nil = all-air

	dirty *bitset.BitSet
}

// Generator produces chunk data deterministically from a seed.
type Generator interface {
	Generate(pos ChunkPos) *ChunkData
}

// NewChunkData creates an all-air chunk of the given height in blocks.
// Height is rounded down to a whole number of sections.
func NewChunkData(height int) *ChunkData {
	n := height / SectionHeight
	if n < 1 {
		n = 1
	}
	return &ChunkData{
		Sections: make([]*Section, n),
		dirty:    bitset.New(uint(n)),
	}
}

// Height returns the chunk height in blocks.
func (c *ChunkData) Height() int {
	return len(c.Sections) * SectionHeight
}

func (c *ChunkData) inRange(x, y, z int) bool {
	return x >= 0 && x < 16 && z >= 0 && z < 16 && y >= 0 && y < c.Height()
}

// SetBlock sets a block state at the given local coordinates within the chunk.
// Writes outside the chunk are ignored.
func (c *ChunkData) SetBlock(x, y, z int, state uint16) {
	if !c.inRange(x, y, z) {
		return
	}
	sec := y >> 4
	if c.Sections[sec] == nil {
		if state == 0 {
			return
		}
		c.Sections[sec] = &Section{}
	}
	c.Sections[sec].Blocks[(y&0xF)*256+z*16+x] = state
}

// GetBlock returns the block state at the given local coordinates.
// Reads outside the chunk return air.
func (c *ChunkData) GetBlock(x, y, z int) uint16 {
	if !c.inRange(x, y, z) {
		return BlockAir
	}
	sec := c.Sections[y>>4]
	if sec == nil {
		return BlockAir
	}
	return sec.Blocks[(y&0xF)*256+z*16+x]
}

// FillSection sets every block of section i to state.
func (c *ChunkData) FillSection(i int, state uint16) {
	if i < 0 || i >= len(c.Sections) {
		return
	}
	if state == BlockAir {
		c.Sections[i] = nil
		return
	}
	sec := &Section{}
	for idx := range sec.Blocks {
		sec.Blocks[idx] = state
	}
	c.Sections[i] = sec
}

// Edit sets a block like SetBlock and marks its section as modified.
func (c *ChunkData) Edit(x, y, z int, state uint16) bool {
	if !c.inRange(x, y, z) {
		return false
	}
	c.SetBlock(x, y, z, state)
	c.dirtySet().Set(uint(y >> 4))
	return true
}

// Dirty reports whether any section was edited since the last MarkClean.
func (c *ChunkData) Dirty() bool {
	return c.dirty != nil && c.dirty.Any()
}

// DirtySections returns the indexes of edited sections in ascending order.
func (c *ChunkData) DirtySections() []int {
	if c.dirty == nil {
		return nil
	}
	var out []int
	for i, ok := c.dirty.NextSet(0); ok; i, ok = c.dirty.NextSet(i + 1) {
		out = append(out, int(i))
	}
	return out
}

// MarkClean forgets all edits.
func (c *ChunkData) MarkClean() {
	if c.dirty != nil {
		c.dirty.ClearAll()
	}
}

func (c *ChunkData) dirtySet() *bitset.BitSet {
	if c.dirty == nil {
		c.dirty = bitset.New(uint(len(c.Sections)))
	}
	return c.dirty
}

// Clone returns a deep copy of the chunk, including its edit state.
func (c *ChunkData) Clone() *ChunkData {
	out := &ChunkData{Sections: make([]*Section, len(c.Sections))}
	for i, sec := range c.Sections {
		if sec == nil {
			continue
		}
		cp := *sec
		out.Sections[i] = &cp
	}
	if c.dirty != nil {
		out.dirty = c.dirty.Clone()
	}
	return out
}

// Equal reports whether both chunks hold identical block data.
func (c *ChunkData) Equal(o *ChunkData) bool {
	if len(c.Sections) != len(o.Sections) {
		return false
	}
	for i := range c.Sections {
		a, b := c.Sections[i], o.Sections[i]
		switch {
		case a == nil && b == nil:
			continue
		case a == nil:
			if !b.empty() {
				return false
			}
		case b == nil:
			if !a.empty() {
				return false
			}
		case a.Blocks != b.Blocks:
			return false
		}
	}
	return true
}

func (s *Section) empty() bool {
	for _, b := range s.Blocks {
		if b != BlockAir {
			return false
		}
	}
	return true
}
