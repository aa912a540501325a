// Package observer tracks the moving viewpoints chunks are streamed to.
package observer

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/OCharnyshevich/voxel-stream/internal/server/world/gen"
)

// Observer is a viewpoint in the world with a view radius in chunks.
type Observer struct {
	ID   uuid.UUID
	Name string

	mu         sync.RWMutex
	pos        mgl64.Vec3
	viewRadius int

	send func(msg string)
}

// New creates an observer at pos. send receives user-visible messages and may be nil.
func New(name string, pos mgl64.Vec3, viewRadius int, send func(msg string)) *Observer {
	return &Observer{
		ID:         uuid.New(),
		Name:       name,
		pos:        pos,
		viewRadius: viewRadius,
		send:       send,
	}
}

// Position returns the observer's current position.
func (o *Observer) Position() mgl64.Vec3 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.pos
}

// SetPosition moves the observer.
func (o *Observer) SetPosition(pos mgl64.Vec3) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pos = pos
}

// ViewRadius returns the view radius in chunks.
func (o *Observer) ViewRadius() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.viewRadius
}

// SetViewRadius changes the view radius in chunks.
func (o *Observer) SetViewRadius(r int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.viewRadius = r
}

// ChunkPos returns the chunk containing the observer.
func (o *Observer) ChunkPos() gen.ChunkPos {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return gen.ChunkPos{
		X: int(math.Floor(o.pos.X())) >> 4,
		Z: int(math.Floor(o.pos.Z())) >> 4,
	}
}

// Send delivers a user-visible message.
func (o *Observer) Send(msg string) {
	if o.send != nil {
		o.send(msg)
	}
}
