package gen

// Block states, encoded as blockID<<4 | metadata.
const (
	BlockAir       uint16 = 0
	BlockStone     uint16 = 1 << 4
	BlockGrass     uint16 = 2 << 4
	BlockDirt      uint16 = 3 << 4
	BlockBedrock   uint16 = 7 << 4
	BlockWater     uint16 = 9 << 4 // stationary water
	BlockGravel    uint16 = 13 << 4
	BlockSandstone uint16 = 24 << 4

	BlockShortGrass     uint16 = 31<<4 | 1  // tallgrass, grass variant
	BlockTallGrassLower uint16 = 175<<4 | 2 // double_plant, double tallgrass
	BlockTallGrassUpper uint16 = 175<<4 | 8 // double_plant, upper half flag
)

const (
	emptyFallbackSections  = 9
	failedFallbackSections = 8
)

// FlatGenerator generates a classic superflat world:
// bedrock at y=0, stone y=1..2, dirt y=3, grass y=4.
type FlatGenerator struct {
	height int
}

// NewFlatGenerator creates a FlatGenerator producing chunks of the given height.
func NewFlatGenerator(height int) *FlatGenerator {
	return &FlatGenerator{height: height}
}

func (g *FlatGenerator) Generate(_ ChunkPos) *ChunkData {
	c := NewChunkData(g.height)

	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			c.SetBlock(x, 0, z, BlockBedrock)
			c.SetBlock(x, 1, z, BlockStone)
			c.SetBlock(x, 2, z, BlockStone)
			c.SetBlock(x, 3, z, BlockDirt)
			c.SetBlock(x, 4, z, BlockGrass)
		}
	}
	return c
}

// Platform returns a chunk whose lowest sections sections are filled with state.
func Platform(height int, state uint16, sections int) *ChunkData {
	c := NewChunkData(height)
	for i := 0; i < sections && i < len(c.Sections); i++ {
		c.FillSection(i, state)
	}
	return c
}

// EmptyFallback is inserted for positions the store has no chunk for.
func EmptyFallback(height int) *ChunkData {
	return Platform(height, BlockSandstone, emptyFallbackSections)
}

// FailedFallback is inserted for positions whose load failed.
func FailedFallback(height int) *ChunkData {
	return Platform(height, BlockWater, failedFallbackSections)
}
