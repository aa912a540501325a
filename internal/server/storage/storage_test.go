package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/OCharnyshevich/voxel-stream/internal/server/stream"
	"github.com/OCharnyshevich/voxel-stream/internal/server/world/gen"
)

const testHeight = 64

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testChunk(pos gen.ChunkPos) *gen.ChunkData {
	c := gen.NewFlatGenerator(testHeight).Generate(pos)
	c.SetBlock(pos.X&0xF, 20, pos.Z&0xF, gen.BlockGravel)
	return c
}

func TestStoresRoundTrip(t *testing.T) {
	for _, kind := range []string{KindRegion, KindSQLite} {
		t.Run(kind, func(t *testing.T) {
			s, err := Open(kind, t.TempDir(), testHeight)
			if err != nil {
				t.Fatalf("Open(%q) failed: %v", kind, err)
			}
			defer s.Close()

			positions := []gen.ChunkPos{{X: 0, Z: 0}, {X: -1, Z: 5}, {X: 33, Z: -40}, {X: 31, Z: 31}}
			for _, pos := range positions {
				if err := s.Save(pos, testChunk(pos)); err != nil {
					t.Fatalf("Save(%v) failed: %v", pos, err)
				}
			}

			for _, pos := range positions {
				c, err := s.Load(pos)
				if err != nil {
					t.Fatalf("Load(%v) failed: %v", pos, err)
				}
				if !c.Equal(testChunk(pos)) {
					t.Errorf("Load(%v) returned different blocks", pos)
				}
				if c.Dirty() {
					t.Errorf("Load(%v) returned a dirty chunk", pos)
				}
			}

			if _, err := s.Load(gen.ChunkPos{X: 2, Z: 2}); !errors.Is(err, ErrChunkNotFound) {
				t.Errorf("Load of missing chunk error = %v, want ErrChunkNotFound", err)
			}
			if _, err := s.Load(gen.ChunkPos{X: 500, Z: 500}); !errors.Is(err, ErrChunkNotFound) {
				t.Errorf("Load in missing region error = %v, want ErrChunkNotFound", err)
			}

			got, err := s.Positions()
			if err != nil {
				t.Fatalf("Positions() failed: %v", err)
			}
			want := []gen.ChunkPos{{X: -1, Z: 5}, {X: 0, Z: 0}, {X: 31, Z: 31}, {X: 33, Z: -40}}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Positions() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRegionStoreOverwrite(t *testing.T) {
	s, err := OpenRegionStore(t.TempDir(), testHeight)
	if err != nil {
		t.Fatalf("OpenRegionStore failed: %v", err)
	}
	defer s.Close()

	pos := gen.ChunkPos{X: 4, Z: 4}
	if err := s.Save(pos, testChunk(pos)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	replaced := gen.FailedFallback(testHeight)
	if err := s.Save(pos, replaced); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	c, err := s.Load(pos)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !c.Equal(replaced) {
		t.Error("Load should return the last saved chunk")
	}
}

func TestRegionStoreReopen(t *testing.T) {
	dir := t.TempDir()
	pos := gen.ChunkPos{X: -7, Z: 3}

	s, err := OpenRegionStore(dir, testHeight)
	if err != nil {
		t.Fatalf("OpenRegionStore failed: %v", err)
	}
	if err := s.Save(pos, testChunk(pos)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "r.-1.0.mca")); err != nil {
		t.Fatalf("expected region file r.-1.0.mca: %v", err)
	}

	s, err = OpenRegionStore(dir, testHeight)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	c, err := s.Load(pos)
	if err != nil {
		t.Fatalf("Load after reopen failed: %v", err)
	}
	if !c.Equal(testChunk(pos)) {
		t.Error("chunk changed across reopen")
	}
}

func TestSQLiteStoreRejectsMisplacedChunk(t *testing.T) {
	s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "chunks.db"), testHeight)
	if err != nil {
		t.Fatalf("OpenSQLiteStore failed: %v", err)
	}
	defer s.Close()

	pos := gen.ChunkPos{X: 1, Z: 1}
	if err := s.Save(pos, testChunk(pos)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	// Move the row so its key no longer matches the encoded position.
	if _, err := s.db.Exec("UPDATE chunks SET x = 6, z = -6 WHERE x = 1 AND z = 1"); err != nil {
		t.Fatalf("move row: %v", err)
	}

	_, err = s.Load(gen.ChunkPos{X: 6, Z: -6})
	if err == nil {
		t.Fatal("expected error loading a chunk stored under another position")
	}
	if errors.Is(err, ErrChunkNotFound) {
		t.Errorf("Load error = %v, want a mismatch error, not ErrChunkNotFound", err)
	}
}

func TestOpenUnknownKind(t *testing.T) {
	if _, err := Open("tape", t.TempDir(), testHeight); err == nil {
		t.Error("expected error for unknown store kind")
	}
}

func TestLevelRoundTrip(t *testing.T) {
	dir := t.TempDir()

	lvl, err := LoadLevel(dir)
	if err != nil || lvl != nil {
		t.Fatalf("LoadLevel of empty dir = %v, %v, want nil, nil", lvl, err)
	}

	want := &Level{Seed: 42, Height: 384, Generator: "terrain", Noise: "simplex", Store: KindRegion}
	if err := SaveLevel(dir, want); err != nil {
		t.Fatalf("SaveLevel failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "level.json.tmp")); !os.IsNotExist(err) {
		t.Error("temp file should be renamed away")
	}

	got, err := LoadLevel(dir)
	if err != nil {
		t.Fatalf("LoadLevel failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("level mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchLocalWorld(t *testing.T) {
	src := t.TempDir()
	if err := SaveLevel(src, &Level{Seed: 7, Height: 64}); err != nil {
		t.Fatalf("SaveLevel failed: %v", err)
	}

	dst := filepath.Join(t.TempDir(), "world")
	if err := Fetch(context.Background(), src, dst); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !Exists(dst) {
		t.Fatal("fetched world directory missing")
	}

	lvl, err := LoadLevel(dst)
	if err != nil || lvl == nil || lvl.Seed != 7 {
		t.Errorf("LoadLevel after fetch = %+v, %v, want seed 7", lvl, err)
	}
}

// memStore is an in-memory Store with an optional load error.
type memStore struct {
	mu      sync.Mutex
	chunks  map[gen.ChunkPos]*gen.ChunkData
	saves   int
	loadErr error
	closed  bool
}

func newMemStore() *memStore {
	return &memStore{chunks: make(map[gen.ChunkPos]*gen.ChunkData)}
}

func (m *memStore) Load(pos gen.ChunkPos) (*gen.ChunkData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	c, ok := m.chunks[pos]
	if !ok {
		return nil, ErrChunkNotFound
	}
	return c.Clone(), nil
}

func (m *memStore) Save(pos gen.ChunkPos, c *gen.ChunkData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[pos] = c.Clone()
	m.saves++
	return nil
}

func (m *memStore) Positions() ([]gen.ChunkPos, error) { return nil, nil }

func (m *memStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// collect polls the loader until n results arrived or the deadline passed.
func collect(t *testing.T, l *Loader, n int) map[gen.ChunkPos]stream.Result {
	t.Helper()
	out := make(map[gen.ChunkPos]stream.Result)
	deadline := time.Now().Add(5 * time.Second)
	for len(out) < n && time.Now().Before(deadline) {
		for _, r := range l.Drain() {
			out[r.Pos] = r
		}
		time.Sleep(time.Millisecond)
	}
	if len(out) < n {
		t.Fatalf("got %d results, want %d", len(out), n)
	}
	return out
}

func runLoader(t *testing.T, l *Loader) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()
	return func() {
		cancel()
		if err := <-errc; err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	}
}

func TestLoaderResults(t *testing.T) {
	store := newMemStore()
	present := gen.ChunkPos{X: 1, Z: 1}
	store.chunks[present] = testChunk(present)

	l := NewLoader(store, 2, 0, 0, testLogger())
	stop := runLoader(t, l)
	defer stop()

	missing := gen.ChunkPos{X: 9, Z: 9}
	l.Request(present)
	l.Request(missing)

	results := collect(t, l, 2)
	if r := results[present]; r.Status != stream.StatusSuccess || !r.Chunk.Equal(testChunk(present)) {
		t.Errorf("present chunk result = %v", r.Status)
	}
	if r := results[missing]; r.Status != stream.StatusEmpty || r.Chunk != nil {
		t.Errorf("missing chunk result = %v, want empty", r.Status)
	}
}

func TestLoaderFailedLoad(t *testing.T) {
	store := newMemStore()
	store.loadErr = errors.New("disk on fire")

	l := NewLoader(store, 1, 0, 0, testLogger())
	stop := runLoader(t, l)
	defer stop()

	pos := gen.ChunkPos{X: 0, Z: 0}
	l.Request(pos)

	r := collect(t, l, 1)[pos]
	if r.Status != stream.StatusFailed || r.Err == nil || r.Err.Error() != "disk on fire" {
		t.Errorf("result = %v, %v, want failed with store error", r.Status, r.Err)
	}
}

func TestLoaderWritesBackDirtyChunks(t *testing.T) {
	store := newMemStore()
	l := NewLoader(store, 1, 0, 0, testLogger())
	stop := runLoader(t, l)
	defer stop()

	clean := gen.ChunkPos{X: 0, Z: 0}
	l.Release(clean, testChunk(clean))

	dirty := gen.ChunkPos{X: 1, Z: 0}
	c := testChunk(dirty)
	c.Edit(2, 30, 2, gen.BlockStone)
	l.Release(dirty, c)

	deadline := time.Now().Add(5 * time.Second)
	for l.PendingSaves() > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if l.PendingSaves() != 0 {
		t.Fatal("dirty chunk was not written back")
	}
	if got := store.saveCount(); got != 1 {
		t.Errorf("saves = %d, want 1 (clean chunks are not written)", got)
	}

	loaded, err := store.Load(dirty)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if b := loaded.GetBlock(2, 30, 2); b != gen.BlockStone {
		t.Errorf("saved block = %d, want stone", b)
	}
}

func TestLoaderServesInflightSave(t *testing.T) {
	store := newMemStore()
	l := NewLoader(store, 1, 0, 0, testLogger())

	// Not running: the save stays in flight.
	pos := gen.ChunkPos{X: 3, Z: 3}
	c := testChunk(pos)
	c.Edit(0, 40, 0, gen.BlockDirt)
	l.Release(pos, c)

	r, err := l.load(pos)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if r.Status != stream.StatusSuccess || r.Chunk.GetBlock(0, 40, 0) != gen.BlockDirt {
		t.Errorf("in-flight chunk not served: status %v", r.Status)
	}
	if r.Chunk == c {
		t.Error("served chunk must be a copy of the in-flight one")
	}

	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if store.saveCount() != 1 || !store.closed {
		t.Errorf("Close should flush saves and close the store: saves=%d closed=%v", store.saveCount(), store.closed)
	}
}

func TestLoaderRateLimit(t *testing.T) {
	store := newMemStore()
	l := NewLoader(store, 2, 0, 20, testLogger())
	if l.limiter == nil {
		t.Fatal("limiter should be set for a positive rate")
	}
	if NewLoader(store, 1, 0, 0, testLogger()).limiter != nil {
		t.Error("limiter should be nil for a zero rate")
	}

	stop := runLoader(t, l)
	defer stop()

	for i := 0; i < 5; i++ {
		l.Request(gen.ChunkPos{X: i})
	}
	collect(t, l, 5)
}

func TestLoaderBoundedRequests(t *testing.T) {
	l := NewLoader(newMemStore(), 1, 1, 0, testLogger())
	if !l.Request(gen.ChunkPos{}) {
		t.Fatal("first Request failed")
	}
	if l.Request(gen.ChunkPos{X: 1}) {
		t.Error("Request over capacity succeeded")
	}
}
