package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/OCharnyshevich/voxel-stream/internal/server/storage"
	"github.com/OCharnyshevich/voxel-stream/internal/server/stream"
	"github.com/OCharnyshevich/voxel-stream/internal/server/world/gen"
)

const drainInterval = 10 * time.Millisecond

// pregenerate generates every chunk within radius of the origin on a worker
// pool and saves it to store. It returns the number of chunks saved.
func pregenerate(ctx context.Context, store storage.Store, g gen.Generator, radius, workers int, log *slog.Logger) (int, error) {
	if radius < 0 {
		return 0, fmt.Errorf("negative radius %d", radius)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := stream.NewPool(g, workers, 0, log)
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	want := 0
	for x := -radius; x <= radius; x++ {
		for z := -radius; z <= radius; z++ {
			pool.Request(gen.ChunkPos{X: x, Z: z})
			want++
		}
	}

	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	saved := 0
	for saved < want {
		select {
		case err := <-done:
			if err == nil {
				err = errors.New("generator stopped")
			}
			return saved, err
		case <-ticker.C:
		}

		for _, r := range pool.Drain() {
			if err := store.Save(r.Pos, r.Chunk); err != nil {
				return saved, fmt.Errorf("save chunk (%d, %d): %w", r.Pos.X, r.Pos.Z, err)
			}
			saved++
		}
	}
	return saved, nil
}
