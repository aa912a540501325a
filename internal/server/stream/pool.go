package stream

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/OCharnyshevich/voxel-stream/internal/server/world/gen"
)

// DefaultWorkers returns half the CPU count, at least one.
func DefaultWorkers() int {
	return max(1, runtime.NumCPU()/2)
}

// Pool generates chunks on a fixed set of worker goroutines.
type Pool struct {
	generator gen.Generator
	workers   int
	log       *slog.Logger

	requests *Queue[gen.ChunkPos]
	results  *Queue[Result]
}

// NewPool creates a Pool. workers <= 0 selects DefaultWorkers; a
// requestCapacity of zero leaves the request queue unbounded.
func NewPool(g gen.Generator, workers, requestCapacity int, log *slog.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	return &Pool{
		generator: g,
		workers:   workers,
		log:       log,
		requests:  NewQueue[gen.ChunkPos](requestCapacity),
		results:   NewQueue[Result](0),
	}
}

// Workers returns the number of worker goroutines Run starts.
func (p *Pool) Workers() int {
	return p.workers
}

// Request queues pos for generation.
func (p *Pool) Request(pos gen.ChunkPos) bool {
	return p.requests.TryPush(pos)
}

// Drain returns every generated chunk finished since the last call.
func (p *Pool) Drain() []Result {
	return p.results.Drain()
}

// Release is a no-op: generated chunks can always be produced again.
func (p *Pool) Release(gen.ChunkPos, *gen.ChunkData) {}

// Run starts the workers and blocks until ctx is done or a worker fails.
// A panic during generation is returned as an error.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			return p.work(ctx, i)
		})
	}
	return g.Wait()
}

func (p *Pool) work(ctx context.Context, id int) error {
	for {
		pos, err := p.requests.Pop(ctx)
		if err != nil {
			return nil
		}

		start := time.Now()
		c, err := p.generate(pos)
		if err != nil {
			p.log.Error("chunk worker failed", "worker", id, "pos", pos, "error", err)
			return err
		}
		p.log.Debug("chunk generated", "pos", pos, "took", time.Since(start))

		p.results.Push(Result{Pos: pos, Status: StatusSuccess, Chunk: c})
	}
}

func (p *Pool) generate(pos gen.ChunkPos) (c *gen.ChunkData, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generate chunk (%d, %d): panic: %v\n%s", pos.X, pos.Z, r, debug.Stack())
		}
	}()
	return p.generator.Generate(pos), nil
}
