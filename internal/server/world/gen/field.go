package gen

import "github.com/go-gl/mathgl/mgl64"

// Field holds the five noise sources terrain generation samples from.
// Sources are seeded seed, seed+1 .. seed+4 and never mutated after
// construction, so a Field may be shared by any number of goroutines.
type Field struct {
	Density Source
	Hilly   Source
	Stone   Source
	Gravel  Source
	Grass   Source
}

// NewField derives the five noise sources from a world seed.
func NewField(seed uint64, backend string) *Field {
	s := int64(seed)
	return &Field{
		Density: NewSource(backend, s),
		Hilly:   NewSource(backend, s+1),
		Stone:   NewSource(backend, s+2),
		Gravel:  NewSource(backend, s+3),
		Grass:   NewSource(backend, s+4),
	}
}

// Noise01 samples src at p and maps the result from [-1, 1] to [0, 1].
func Noise01(src Source, p mgl64.Vec3) float64 {
	return (clampUnit(src.Noise3D(p[0], p[1], p[2])) + 1) / 2
}

// FBM sums octaves of src at increasing frequency and decreasing amplitude.
// The sum is divided by the total amplitude, so the result stays in [0, 1].
func FBM(src Source, p mgl64.Vec3, octaves int, lacunarity, persistence float64) float64 {
	freq, amp := 1.0, 1.0
	var sum, ampSum float64

	for range octaves {
		sum += Noise01(src, p.Mul(freq)) * amp
		ampSum += amp

		freq *= lacunarity
		amp *= persistence
	}
	if ampSum == 0 {
		return 0
	}
	return sum / ampSum
}

func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

// lerpstep is a linear step from 0 at edge0 to 1 at edge1.
func lerpstep(edge0, edge1, x float64) float64 {
	switch {
	case x <= edge0:
		return 0
	case x >= edge1:
		return 1
	default:
		return (x - edge0) / (edge1 - edge0)
	}
}
