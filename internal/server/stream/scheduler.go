package stream

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/OCharnyshevich/voxel-stream/internal/server/world/gen"
)

// World is the resident chunk storage the scheduler feeds.
type World interface {
	Has(pos gen.ChunkPos) bool
	Insert(pos gen.ChunkPos, c *gen.ChunkData)
	Remove(pos gen.ChunkPos) *gen.ChunkData
	ViewerCount(pos gen.ChunkPos) int
	Unviewed() []gen.ChunkPos
}

type entry struct {
	priority  uint64
	scheduled bool
}

// Scheduler owns the table of chunks that are wanted but not resident.
// A position is at any time either absent, pending or resident. All
// methods must be called from the tick goroutine.
type Scheduler struct {
	world  World
	source Source
	height int
	notify Notifier
	log    *slog.Logger

	pending map[gen.ChunkPos]entry
}

// NewScheduler creates a Scheduler. height is the chunk height used for
// fallback chunks; notify may be nil.
func NewScheduler(w World, src Source, height int, notify Notifier, log *slog.Logger) *Scheduler {
	return &Scheduler{
		world:   w,
		source:  src,
		height:  height,
		notify:  notify,
		log:     log,
		pending: make(map[gen.ChunkPos]entry),
	}
}

// Merge inserts every finished chunk into the world and returns how many
// were inserted. Empty results become the empty fallback; failed results
// become the failure fallback and are reported to observers.
func (s *Scheduler) Merge() int {
	merged := 0
	for _, r := range s.source.Drain() {
		e, ok := s.pending[r.Pos]
		if !ok || !e.scheduled {
			s.log.Error("invariant violation: chunk result without scheduled entry",
				"pos", r.Pos, "status", r.Status)
			continue
		}
		delete(s.pending, r.Pos)

		c := r.Chunk
		switch r.Status {
		case StatusEmpty:
			c = gen.EmptyFallback(s.height)
		case StatusFailed:
			s.log.Error("failed to load chunk", "pos", r.Pos, "error", r.Err)
			if s.notify != nil {
				s.notify.Broadcast(fmt.Sprintf("failed to load chunk at (%d, %d): %v", r.Pos.X, r.Pos.Z, r.Err))
			}
			c = gen.FailedFallback(s.height)
		}
		if c == nil {
			c = gen.EmptyFallback(s.height)
		}

		s.world.Insert(r.Pos, c)
		merged++
	}
	return merged
}

// Evict removes every resident chunk nobody views and hands it back to the
// source. It returns the number of evicted chunks.
func (s *Scheduler) Evict() int {
	evicted := 0
	for _, pos := range s.world.Unviewed() {
		if c := s.world.Remove(pos); c != nil {
			s.source.Release(pos, c)
			evicted++
		}
	}
	return evicted
}

// Intake records positions that entered the view of an observer centered
// at center. Closer chunks get lower (more urgent) priorities; a pending
// entry keeps the lowest priority it was ever given.
func (s *Scheduler) Intake(center gen.ChunkPos, entered []gen.ChunkPos) {
	for _, pos := range entered {
		if s.world.Has(pos) {
			continue
		}
		priority := center.DistanceSquared(pos)

		e, ok := s.pending[pos]
		switch {
		case !ok:
			s.pending[pos] = entry{priority: priority}
		case !e.scheduled:
			e.priority = min(e.priority, priority)
			s.pending[pos] = e
		}
	}
}

// Dispatch requests every unscheduled entry from the source, most urgent
// first, and returns how many were requested. Entries nobody views any
// more are dropped. If the source is full, the entry stays unscheduled and
// dispatch resumes next tick.
func (s *Scheduler) Dispatch() int {
	type candidate struct {
		pos      gen.ChunkPos
		priority uint64
	}

	var todo []candidate
	for pos, e := range s.pending {
		if !e.scheduled {
			todo = append(todo, candidate{pos: pos, priority: e.priority})
		}
	}
	slices.SortFunc(todo, func(a, b candidate) int {
		if c := cmp.Compare(a.priority, b.priority); c != 0 {
			return c
		}
		if c := cmp.Compare(a.pos.X, b.pos.X); c != 0 {
			return c
		}
		return cmp.Compare(a.pos.Z, b.pos.Z)
	})

	sent := 0
	for _, c := range todo {
		if s.world.ViewerCount(c.pos) == 0 {
			delete(s.pending, c.pos)
			continue
		}

		s.pending[c.pos] = entry{priority: c.priority, scheduled: true}
		if !s.source.Request(c.pos) {
			s.pending[c.pos] = entry{priority: c.priority}
			s.log.Debug("chunk request queue full", "pos", c.pos)
			break
		}
		sent++
	}
	return sent
}

// Pending returns the entry for pos, if any.
func (s *Scheduler) Pending(pos gen.ChunkPos) (priority uint64, scheduled, ok bool) {
	e, ok := s.pending[pos]
	return e.priority, e.scheduled, ok
}

// PendingLen returns the number of pending entries.
func (s *Scheduler) PendingLen() int {
	return len(s.pending)
}
