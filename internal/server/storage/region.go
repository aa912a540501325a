package storage

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/Tnze/go-mc/save/region"

	"github.com/OCharnyshevich/voxel-stream/internal/server/world/anvil"
	"github.com/OCharnyshevich/voxel-stream/internal/server/world/gen"
)

const regionSize = 32

type regionPos struct{ X, Z int }

// RegionStore keeps chunks in r.<x>.<z>.mca region files, 32×32 chunks per
// file. Open regions are cached until Close.
type RegionStore struct {
	dir         string
	height      int
	compression byte

	mu      sync.Mutex
	regions map[regionPos]*region.Region
}

// OpenRegionStore opens a region directory, creating it if needed.
func OpenRegionStore(dir string, height int) (*RegionStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create region directory: %w", err)
	}
	return &RegionStore{
		dir:         dir,
		height:      height,
		compression: anvil.CompressionZlib,
		regions:     make(map[regionPos]*region.Region),
	}, nil
}

func regionOf(pos gen.ChunkPos) (regionPos, int, int) {
	return regionPos{X: pos.X >> 5, Z: pos.Z >> 5}, pos.X & (regionSize - 1), pos.Z & (regionSize - 1)
}

func (s *RegionStore) path(rp regionPos) string {
	return filepath.Join(s.dir, fmt.Sprintf("r.%d.%d.mca", rp.X, rp.Z))
}

// region returns the cached region file, opening or creating it. With
// create unset a missing file yields nil, nil. Callers hold s.mu.
func (s *RegionStore) region(rp regionPos, create bool) (*region.Region, error) {
	if r, ok := s.regions[rp]; ok {
		return r, nil
	}

	path := s.path(rp)
	var (
		r   *region.Region
		err error
	)
	switch _, statErr := os.Stat(path); {
	case statErr == nil:
		r, err = region.Open(path)
	case os.IsNotExist(statErr) && create:
		r, err = region.Create(path)
	case os.IsNotExist(statErr):
		return nil, nil
	default:
		return nil, fmt.Errorf("stat region %s: %w", path, statErr)
	}
	if err != nil {
		return nil, fmt.Errorf("open region %s: %w", path, err)
	}

	s.regions[rp] = r
	return r, nil
}

// Load reads the chunk at pos. It returns ErrChunkNotFound when the region
// file or its sector is absent.
func (s *RegionStore) Load(pos gen.ChunkPos) (*gen.ChunkData, error) {
	rp, lx, lz := regionOf(pos)

	s.mu.Lock()
	r, err := s.region(rp, false)
	if err != nil || r == nil || !r.ExistSector(lx, lz) {
		s.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return nil, ErrChunkNotFound
	}
	payload, err := r.ReadSector(lx, lz)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("read chunk (%d, %d): %w", pos.X, pos.Z, err)
	}

	raw, err := anvil.Decompress(payload)
	if err != nil {
		return nil, fmt.Errorf("chunk (%d, %d): %w", pos.X, pos.Z, err)
	}
	stored, c, err := anvil.DecodeChunk(raw, s.height)
	if err != nil {
		return nil, err
	}
	if stored != pos {
		return nil, fmt.Errorf("chunk (%d, %d): sector holds chunk (%d, %d)", pos.X, pos.Z, stored.X, stored.Z)
	}
	return c, nil
}

// Save writes the chunk at pos, creating its region file if needed.
func (s *RegionStore) Save(pos gen.ChunkPos, c *gen.ChunkData) error {
	raw, err := anvil.EncodeChunk(pos, c)
	if err != nil {
		return err
	}
	payload, err := anvil.Compress(s.compression, raw)
	if err != nil {
		return fmt.Errorf("chunk (%d, %d): %w", pos.X, pos.Z, err)
	}

	rp, lx, lz := regionOf(pos)

	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.region(rp, true)
	if err != nil {
		return err
	}
	if err := r.WriteSector(lx, lz, payload); err != nil {
		return fmt.Errorf("write chunk (%d, %d): %w", pos.X, pos.Z, err)
	}
	return nil
}

// Positions lists every stored chunk, sorted by x then z.
func (s *RegionStore) Positions() ([]gen.ChunkPos, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "r.*.*.mca"))
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []gen.ChunkPos
	for _, m := range matches {
		var rp regionPos
		if _, err := fmt.Sscanf(filepath.Base(m), "r.%d.%d.mca", &rp.X, &rp.Z); err != nil {
			continue
		}
		r, err := s.region(rp, false)
		if err != nil {
			return nil, err
		}
		if r == nil {
			continue
		}
		for lz := 0; lz < regionSize; lz++ {
			for lx := 0; lx < regionSize; lx++ {
				if r.ExistSector(lx, lz) {
					out = append(out, gen.ChunkPos{X: rp.X*regionSize + lx, Z: rp.Z*regionSize + lz})
				}
			}
		}
	}

	slices.SortFunc(out, func(a, b gen.ChunkPos) int {
		if c := cmp.Compare(a.X, b.X); c != 0 {
			return c
		}
		return cmp.Compare(a.Z, b.Z)
	})
	return out, nil
}

// Close closes every open region file.
func (s *RegionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for rp, r := range s.regions {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close region %d.%d: %w", rp.X, rp.Z, err)
		}
		delete(s.regions, rp)
	}
	return firstErr
}
