package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/OCharnyshevich/voxel-stream/internal/server/stream"
	"github.com/OCharnyshevich/voxel-stream/internal/server/world/gen"
)

// Loader serves chunks from a Store as a stream.Source. Evicted chunks
// with unsaved edits are written back in the background; until a write
// finishes, loads of that position are served from the pending copy.
type Loader struct {
	store   Store
	workers int
	limiter *rate.Limiter
	log     *slog.Logger

	requests *stream.Queue[gen.ChunkPos]
	results  *stream.Queue[stream.Result]
	saves    *stream.Queue[gen.ChunkPos]

	mu       sync.Mutex
	inflight map[gen.ChunkPos]*gen.ChunkData
}

// NewLoader creates a Loader. workers <= 0 selects stream.DefaultWorkers;
// loadsPerSecond <= 0 disables rate limiting.
func NewLoader(store Store, workers, requestCapacity int, loadsPerSecond float64, log *slog.Logger) *Loader {
	if workers <= 0 {
		workers = stream.DefaultWorkers()
	}
	var limiter *rate.Limiter
	if loadsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(loadsPerSecond), max(1, int(loadsPerSecond)))
	}
	return &Loader{
		store:    store,
		workers:  workers,
		limiter:  limiter,
		log:      log,
		requests: stream.NewQueue[gen.ChunkPos](requestCapacity),
		results:  stream.NewQueue[stream.Result](0),
		saves:    stream.NewQueue[gen.ChunkPos](0),
		inflight: make(map[gen.ChunkPos]*gen.ChunkData),
	}
}

// Request queues pos for loading.
func (l *Loader) Request(pos gen.ChunkPos) bool {
	return l.requests.TryPush(pos)
}

// Drain returns every load finished since the last call.
func (l *Loader) Drain() []stream.Result {
	return l.results.Drain()
}

// Release schedules a write-back of c if it has unsaved edits.
func (l *Loader) Release(pos gen.ChunkPos, c *gen.ChunkData) {
	if c == nil || !c.Dirty() {
		return
	}
	l.mu.Lock()
	l.inflight[pos] = c
	l.mu.Unlock()

	l.saves.Push(pos)
}

// Run starts the load workers and the write-back goroutine and blocks
// until ctx is done or a worker fails.
func (l *Loader) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < l.workers; i++ {
		g.Go(func() error {
			return l.loadLoop(ctx, i)
		})
	}
	g.Go(func() error {
		l.saveLoop(ctx)
		return nil
	})
	return g.Wait()
}

func (l *Loader) loadLoop(ctx context.Context, id int) error {
	for {
		pos, err := l.requests.Pop(ctx)
		if err != nil {
			return nil
		}
		if l.limiter != nil {
			if err := l.limiter.Wait(ctx); err != nil {
				return nil
			}
		}

		start := time.Now()
		r, err := l.load(pos)
		if err != nil {
			l.log.Error("chunk loader failed", "worker", id, "pos", pos, "error", err)
			return err
		}
		l.log.Debug("chunk loaded", "pos", pos, "status", r.Status, "took", time.Since(start))

		l.results.Push(r)
	}
}

// load turns a store lookup into a result. Store errors become failed
// results; only a panic is returned as an error.
func (l *Loader) load(pos gen.ChunkPos) (r stream.Result, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("load chunk (%d, %d): panic: %v\n%s", pos.X, pos.Z, v, debug.Stack())
		}
	}()

	l.mu.Lock()
	pending, ok := l.inflight[pos]
	if ok {
		pending = pending.Clone()
	}
	l.mu.Unlock()
	if ok {
		return stream.Result{Pos: pos, Status: stream.StatusSuccess, Chunk: pending}, nil
	}

	c, loadErr := l.store.Load(pos)
	switch {
	case errors.Is(loadErr, ErrChunkNotFound):
		return stream.Result{Pos: pos, Status: stream.StatusEmpty}, nil
	case loadErr != nil:
		return stream.Result{Pos: pos, Status: stream.StatusFailed, Err: loadErr}, nil
	default:
		return stream.Result{Pos: pos, Status: stream.StatusSuccess, Chunk: c}, nil
	}
}

func (l *Loader) saveLoop(ctx context.Context) {
	for {
		pos, err := l.saves.Pop(ctx)
		if err != nil {
			return
		}
		if err := l.writeBack(pos); err != nil {
			l.log.Error("failed to save chunk", "pos", pos, "error", err)
		}
	}
}

func (l *Loader) writeBack(pos gen.ChunkPos) error {
	l.mu.Lock()
	c, ok := l.inflight[pos]
	l.mu.Unlock()
	if !ok {
		return nil
	}

	if err := l.store.Save(pos, c); err != nil {
		return err
	}

	l.mu.Lock()
	if l.inflight[pos] == c {
		delete(l.inflight, pos)
	}
	l.mu.Unlock()
	return nil
}

// PendingSaves returns the number of chunks waiting to be written back.
func (l *Loader) PendingSaves() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inflight)
}

// Close writes back every pending chunk and closes the store. Call it
// after Run has returned.
func (l *Loader) Close() error {
	l.mu.Lock()
	positions := make([]gen.ChunkPos, 0, len(l.inflight))
	for pos := range l.inflight {
		positions = append(positions, pos)
	}
	l.mu.Unlock()

	var errs []error
	for _, pos := range positions {
		if err := l.writeBack(pos); err != nil {
			errs = append(errs, fmt.Errorf("save chunk (%d, %d): %w", pos.X, pos.Z, err))
		}
	}
	l.saves.Drain()

	if err := l.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
