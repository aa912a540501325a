package gen

import "github.com/aquilax/go-perlin"

// Source is a coherent noise function with output in [-1, 1].
type Source interface {
	Noise3D(x, y, z float64) float64
}

// Noise backend names accepted by NewSource.
const (
	NoiseSimplex = "simplex"
	NoisePerlin  = "perlin"
)

// NewSource returns a seeded noise source for the named backend.
// Unknown names fall back to simplex.
func NewSource(backend string, seed int64) Source {
	if backend == NoisePerlin {
		return newPerlinSource(seed)
	}
	return NewSimplex(seed)
}

// grad3 are gradient vectors for 3D simplex noise.
var grad3 = [12][3]float64{
	{1, 1, 0}, {-1, 1, 0}, {1, -1, 0}, {-1, -1, 0},
	{1, 0, 1}, {-1, 0, 1}, {1, 0, -1}, {-1, 0, -1},
	{0, 1, 1}, {0, -1, 1}, {0, 1, -1}, {0, -1, -1},
}

// simplexOffsets maps the rank order of the cell-local coordinates to the
// second and third simplex corners.
var simplexOffsets = [6][2][3]int{
	{{1, 0, 0}, {1, 1, 0}}, // x >= y >= z
	{{1, 0, 0}, {1, 0, 1}}, // x >= z > y
	{{0, 0, 1}, {1, 0, 1}}, // z > x >= y
	{{0, 0, 1}, {0, 1, 1}}, // z > y > x
	{{0, 1, 0}, {0, 1, 1}}, // y > z >= x
	{{0, 1, 0}, {1, 1, 0}}, // y > x >= z
}

// Simplex produces deterministic 3D simplex noise from a seed.
type Simplex struct {
	perm [512]int
}

// NewSimplex creates a simplex source with a seeded permutation table.
func NewSimplex(seed int64) *Simplex {
	s := &Simplex{}

	var p [256]int
	for i := range p {
		p[i] = i
	}

	// Fisher-Yates shuffle driven by an LCG.
	state := seed
	for i := 255; i > 0; i-- {
		state = state*6364136223846793005 + 1442695040888963407
		j := int((state>>33)&0x7FFFFFFF) % (i + 1)
		p[i], p[j] = p[j], p[i]
	}

	for i := range s.perm {
		s.perm[i] = p[i&255]
	}
	return s
}

// Noise3D returns 3D simplex noise in the range [-1, 1].
func (s *Simplex) Noise3D(x, y, z float64) float64 {
	const (
		f3 = 1.0 / 3.0
		g3 = 1.0 / 6.0
	)

	skew := (x + y + z) * f3
	i := fastFloor(x + skew)
	j := fastFloor(y + skew)
	k := fastFloor(z + skew)

	t := float64(i+j+k) * g3
	x0 := x - (float64(i) - t)
	y0 := y - (float64(j) - t)
	z0 := z - (float64(k) - t)

	off := simplexOffsets[simplexRank(x0, y0, z0)]
	a, b := off[0], off[1]

	corners := [4][3]float64{
		{x0, y0, z0},
		{x0 - float64(a[0]) + g3, y0 - float64(a[1]) + g3, z0 - float64(a[2]) + g3},
		{x0 - float64(b[0]) + 2*g3, y0 - float64(b[1]) + 2*g3, z0 - float64(b[2]) + 2*g3},
		{x0 - 1 + 3*g3, y0 - 1 + 3*g3, z0 - 1 + 3*g3},
	}
	steps := [4][3]int{{0, 0, 0}, a, b, {1, 1, 1}}

	ii, jj, kk := i&255, j&255, k&255
	var sum float64
	for c, pt := range corners {
		d := 0.6 - pt[0]*pt[0] - pt[1]*pt[1] - pt[2]*pt[2]
		if d < 0 {
			continue
		}
		st := steps[c]
		gi := s.perm[ii+st[0]+s.perm[jj+st[1]+s.perm[kk+st[2]]]] % 12
		d *= d
		sum += d * d * dot3(grad3[gi], pt[0], pt[1], pt[2])
	}

	return 32.0 * sum
}

func simplexRank(x0, y0, z0 float64) int {
	if x0 >= y0 {
		switch {
		case y0 >= z0:
			return 0
		case x0 >= z0:
			return 1
		default:
			return 2
		}
	}
	switch {
	case y0 < z0:
		return 3
	case x0 < z0:
		return 4
	default:
		return 5
	}
}

func fastFloor(x float64) int {
	xi := int(x)
	if x < float64(xi) {
		return xi - 1
	}
	return xi
}

func dot3(g [3]float64, x, y, z float64) float64 {
	return g[0]*x + g[1]*y + g[2]*z
}

// perlinSource adapts go-perlin to Source. A single octave is used since
// fractal sums are computed by the field itself.
type perlinSource struct {
	p *perlin.Perlin
}

func newPerlinSource(seed int64) *perlinSource {
	return &perlinSource{p: perlin.NewPerlin(2, 2, 1, seed)}
}

func (s *perlinSource) Noise3D(x, y, z float64) float64 {
	return clampUnit(s.p.Noise3D(x, y, z))
}

func clampUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
