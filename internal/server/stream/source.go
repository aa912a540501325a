// Package stream decides which chunks to produce, hands them to a chunk
// source running off the tick goroutine, and merges finished chunks back
// into the world.
package stream

import (
	"context"

	"github.com/OCharnyshevich/voxel-stream/internal/server/world/gen"
)

// Status is the outcome of producing one chunk.
type Status uint8

const (
	// StatusSuccess carries a chunk.
	StatusSuccess Status = iota
	// StatusEmpty means the source has no chunk for the position.
	StatusEmpty
	// StatusFailed means producing the chunk failed; Err says why.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is one finished chunk request.
type Result struct {
	Pos    gen.ChunkPos
	Status Status
	Chunk  *gen.ChunkData
	Err    error
}

// Source produces chunks asynchronously. Request and Drain are called from
// the tick goroutine only; Run drives the workers.
type Source interface {
	// Request queues pos for production. It reports false when the request
	// queue is full and nothing was queued.
	Request(pos gen.ChunkPos) bool
	// Drain returns every result finished since the last call without blocking.
	Drain() []Result
	// Release hands back a chunk that was evicted from the world.
	Release(pos gen.ChunkPos, c *gen.ChunkData)
	// Run blocks until ctx is done or a worker fails.
	Run(ctx context.Context) error
}

// Notifier delivers user-visible warnings to observers.
type Notifier interface {
	Broadcast(msg string)
}
