package gen

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// WaterHeight is the liquid level: non-solid cells below it are water.
const WaterHeight = 55

// TerrainGenerator produces hilly terrain with water, gravel beaches,
// dirt and stone layers, and grass decorations.
type TerrainGenerator struct {
	field  *Field
	height int
}

// NewTerrainGenerator creates a TerrainGenerator for the given seed, noise
// backend and chunk height in blocks.
func NewTerrainGenerator(seed uint64, backend string, height int) *TerrainGenerator {
	return &TerrainGenerator{
		field:  NewField(seed, backend),
		height: height,
	}
}

// Generate synthesizes one chunk column. Output depends only on the seed and pos.
func (g *TerrainGenerator) Generate(pos ChunkPos) *ChunkData {
	c := NewChunkData(g.height)

	for z := 0; z < 16; z++ {
		for x := 0; x < 16; x++ {
			wx := float64(pos.X*16 + x)
			wz := float64(pos.Z*16 + z)

			g.fillColumn(c, x, z, wx, wz)
			g.decorateColumn(c, x, z, wx, wz)
		}
	}
	return c
}

func (g *TerrainGenerator) fillColumn(c *ChunkData, x, z int, wx, wz float64) {
	inTerrain := false
	depth := 0

	for y := c.Height() - 1; y >= 0; y-- {
		p := mgl64.Vec3{wx, float64(y), wz}

		if !g.solidAt(p) {
			inTerrain = false
			depth = 0
			if y < WaterHeight {
				c.SetBlock(x, y, z, BlockWater)
			}
			continue
		}

		gravelHeight := WaterHeight - 1 - int(math.Floor(FBM(g.field.Gravel, p.Mul(1.0/10), 3, 2, 0.5)*6))

		var state uint16
		switch {
		case !inTerrain:
			inTerrain = true
			depth = int(math.Round(Noise01(g.field.Stone, p.Mul(1.0/15)) * 5))

			switch {
			case y < gravelHeight:
				state = BlockGravel
			case y < WaterHeight-1:
				state = BlockDirt
			default:
				state = BlockGrass
			}
		case depth > 0:
			depth--
			if y < gravelHeight {
				state = BlockGravel
			} else {
				state = BlockDirt
			}
		default:
			state = BlockStone
		}
		c.SetBlock(x, y, z, state)
	}
}

// solidAt decides whether the cell at p is inside the terrain.
func (g *TerrainGenerator) solidAt(p mgl64.Vec3) bool {
	h := lerp(0.1, 1, Noise01(g.field.Hilly, p.Mul(1.0/400)))
	h *= h

	lower := 15 + 100*h
	upper := lower + 100*h

	if p[1] <= lower {
		return true
	}
	if p[1] >= upper {
		return false
	}

	threshold := 1 - lerpstep(lower, upper, p[1])
	return FBM(g.field.Density, p.Mul(1.0/100), 4, 2, 0.5) < threshold
}

// decorateColumn places grass on air cells resting on a grass block.
func (g *TerrainGenerator) decorateColumn(c *ChunkData, x, z int, wx, wz float64) {
	for y := c.Height() - 1; y >= 1; y-- {
		if c.GetBlock(x, y, z) != BlockAir || c.GetBlock(x, y-1, z) != BlockGrass {
			continue
		}

		d := FBM(g.field.Grass, mgl64.Vec3{wx, float64(y), wz}.Mul(1.0/5), 4, 2, 0.7)
		if d <= 0.55 {
			continue
		}

		if d > 0.7 && y+1 < c.Height() && c.GetBlock(x, y+1, z) == BlockAir {
			c.SetBlock(x, y+1, z, BlockTallGrassUpper)
			c.SetBlock(x, y, z, BlockTallGrassLower)
		} else {
			c.SetBlock(x, y, z, BlockShortGrass)
		}
	}
}
