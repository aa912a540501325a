// Package interest tracks which chunk positions each observer can see and
// reports the positions that entered or left an observer's view.
package interest

import (
	"github.com/google/uuid"

	"github.com/OCharnyshevich/voxel-stream/internal/server/world/gen"
)

// View is the square of chunk positions within Radius of Center.
type View struct {
	Center gen.ChunkPos
	Radius int
}

// Contains reports whether pos lies inside the view.
func (v View) Contains(pos gen.ChunkPos) bool {
	dx := pos.X - v.Center.X
	if dx < 0 {
		dx = -dx
	}
	dz := pos.Z - v.Center.Z
	if dz < 0 {
		dz = -dz
	}
	return dx <= v.Radius && dz <= v.Radius
}

// Positions enumerates every position in the view, row by row.
func (v View) Positions() []gen.ChunkPos {
	if v.Radius < 0 {
		return nil
	}
	side := 2*v.Radius + 1
	out := make([]gen.ChunkPos, 0, side*side)
	for z := v.Center.Z - v.Radius; z <= v.Center.Z+v.Radius; z++ {
		for x := v.Center.X - v.Radius; x <= v.Center.X+v.Radius; x++ {
			out = append(out, gen.ChunkPos{X: x, Z: z})
		}
	}
	return out
}

// Diff returns the positions of v that are not in prev.
func (v View) Diff(prev View) []gen.ChunkPos {
	var out []gen.ChunkPos
	for _, pos := range v.Positions() {
		if !prev.Contains(pos) {
			out = append(out, pos)
		}
	}
	return out
}

// Delta is the change in an observer's view between two updates.
type Delta struct {
	Entered []gen.ChunkPos
	Left    []gen.ChunkPos
}

// Empty reports whether the delta has no changes.
func (d Delta) Empty() bool {
	return len(d.Entered) == 0 && len(d.Left) == 0
}

// Tracker remembers the last view of each observer. It is not safe for
// concurrent use; the tick loop owns it.
type Tracker struct {
	views map[uuid.UUID]View
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{views: make(map[uuid.UUID]View)}
}

// Update records the current view of observer id and returns what changed
// since the previous update. The first update reports the whole view as entered.
func (t *Tracker) Update(id uuid.UUID, view View) Delta {
	prev, ok := t.views[id]
	t.views[id] = view

	if !ok {
		return Delta{Entered: view.Positions()}
	}
	if prev == view {
		return Delta{}
	}
	return Delta{
		Entered: view.Diff(prev),
		Left:    prev.Diff(view),
	}
}

// Forget drops observer id and returns its last view as left.
func (t *Tracker) Forget(id uuid.UUID) Delta {
	prev, ok := t.views[id]
	if !ok {
		return Delta{}
	}
	delete(t.views, id)
	return Delta{Left: prev.Positions()}
}

// Sweep forgets every observer for which alive returns false and returns
// the combined delta.
func (t *Tracker) Sweep(alive func(uuid.UUID) bool) Delta {
	var out Delta
	for id := range t.views {
		if alive(id) {
			continue
		}
		d := t.Forget(id)
		out.Left = append(out.Left, d.Left...)
	}
	return out
}

// Len returns the number of tracked observers.
func (t *Tracker) Len() int {
	return len(t.views)
}
