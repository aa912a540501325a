package gen

import "testing"

const testHeight = 384

func TestTerrainGeneratorDeterministic(t *testing.T) {
	g1 := NewTerrainGenerator(42, NoiseSimplex, testHeight)
	g2 := NewTerrainGenerator(42, NoiseSimplex, testHeight)

	for _, pos := range []ChunkPos{{0, 0}, {-3, 7}, {12, -5}} {
		if !g1.Generate(pos).Equal(g2.Generate(pos)) {
			t.Errorf("Generate(%v) differs between generators with equal seeds", pos)
		}
	}

	// Same generator, repeated call.
	if !g1.Generate(ChunkPos{1, 1}).Equal(g1.Generate(ChunkPos{1, 1})) {
		t.Error("repeated Generate for the same position differs")
	}
}

func TestTerrainGeneratorHeight(t *testing.T) {
	c := NewTerrainGenerator(1, NoiseSimplex, 256).Generate(ChunkPos{0, 0})
	if c.Height() != 256 {
		t.Errorf("Height() = %d, want 256", c.Height())
	}
}

func TestTerrainGeneratorBottomIsSolid(t *testing.T) {
	c := NewTerrainGenerator(12345, NoiseSimplex, testHeight).Generate(ChunkPos{2, -4})

	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			switch b := c.GetBlock(x, 0, z); b {
			case BlockAir, BlockWater:
				t.Errorf("block at (%d,0,%d) = %d, want solid", x, z, b)
			}
		}
	}
}

func TestTerrainGeneratorSkyIsAir(t *testing.T) {
	c := NewTerrainGenerator(7, NoiseSimplex, testHeight).Generate(ChunkPos{0, 0})

	for y := 220; y < testHeight; y++ {
		for x := 0; x < 16; x++ {
			for z := 0; z < 16; z++ {
				if b := c.GetBlock(x, y, z); b != BlockAir {
					t.Fatalf("block at (%d,%d,%d) = %d, want air", x, y, z, b)
				}
			}
		}
	}
}

func TestTerrainGeneratorLayering(t *testing.T) {
	g := NewTerrainGenerator(42, NoiseSimplex, testHeight)

	for _, pos := range []ChunkPos{{0, 0}, {5, 5}, {-8, 3}} {
		c := g.Generate(pos)
		for x := 0; x < 16; x++ {
			for z := 0; z < 16; z++ {
				for y := 0; y < testHeight; y++ {
					b := c.GetBlock(x, y, z)
					below := c.GetBlock(x, y-1, z)

					switch b {
					case BlockGrass:
						if y < WaterHeight-1 {
							t.Errorf("%v: grass block at y=%d below %d", pos, y, WaterHeight-1)
						}
					case BlockWater:
						if y >= WaterHeight {
							t.Errorf("%v: water at y=%d, want below %d", pos, y, WaterHeight)
						}
					case BlockShortGrass, BlockTallGrassLower:
						if below != BlockGrass {
							t.Errorf("%v: decoration at (%d,%d,%d) rests on %d, want grass block", pos, x, y, z, below)
						}
					case BlockTallGrassUpper:
						if below != BlockTallGrassLower {
							t.Errorf("%v: tall grass upper at (%d,%d,%d) rests on %d", pos, x, y, z, below)
						}
					}
				}
			}
		}
	}
}

func TestTerrainGeneratorSeedsDiffer(t *testing.T) {
	c1 := NewTerrainGenerator(1, NoiseSimplex, testHeight).Generate(ChunkPos{0, 0})
	c2 := NewTerrainGenerator(2, NoiseSimplex, testHeight).Generate(ChunkPos{0, 0})

	if c1.Equal(c2) {
		t.Error("different seeds should produce different terrain")
	}
}

func TestTerrainGeneratorSpawnColumnNonEmpty(t *testing.T) {
	c := NewTerrainGenerator(42, NoiseSimplex, testHeight).Generate(ChunkPos{0, 0})

	for y := 0; y < testHeight; y++ {
		if c.GetBlock(8, y, 8) != BlockAir {
			return
		}
	}
	t.Error("column (8,*,8) of chunk (0,0) is empty")
}

func TestTerrainGeneratorPerlinBackend(t *testing.T) {
	g := NewTerrainGenerator(42, NoisePerlin, testHeight)
	c := g.Generate(ChunkPos{3, 3})

	if !c.Equal(g.Generate(ChunkPos{3, 3})) {
		t.Error("perlin terrain is not deterministic")
	}
	if b := c.GetBlock(0, 0, 0); b == BlockAir || b == BlockWater {
		t.Errorf("perlin terrain bottom block = %d, want solid", b)
	}
}

func BenchmarkTerrainGenerator(b *testing.B) {
	g := NewTerrainGenerator(42, NoiseSimplex, testHeight)
	for i := 0; i < b.N; i++ {
		g.Generate(ChunkPos{X: i, Z: -i})
	}
}
