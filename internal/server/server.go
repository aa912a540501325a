package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/OCharnyshevich/voxel-stream/internal/server/config"
	"github.com/OCharnyshevich/voxel-stream/internal/server/interest"
	"github.com/OCharnyshevich/voxel-stream/internal/server/observer"
	"github.com/OCharnyshevich/voxel-stream/internal/server/storage"
	"github.com/OCharnyshevich/voxel-stream/internal/server/stream"
	"github.com/OCharnyshevich/voxel-stream/internal/server/world"
	"github.com/OCharnyshevich/voxel-stream/internal/server/world/gen"
)

const statsInterval = 30 * time.Second

// Server streams chunks around its observers, either generating them or
// loading them from a stored world.
type Server struct {
	cfg       *config.Config
	log       *slog.Logger
	world     *world.World
	observers *observer.Registry
	tracker   *interest.Tracker
	source    stream.Source
	scheduler *stream.Scheduler
	height    int
}

// New creates a Server from cfg. In persisted mode the world is fetched
// from cfg.WorldURL when cfg.WorldPath does not exist yet.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		log:       log,
		world:     world.NewWorld(),
		observers: observer.NewRegistry(),
		tracker:   interest.NewTracker(),
		height:    cfg.WorldHeight,
	}

	if cfg.Persisted() {
		src, err := s.openWorld(ctx)
		if err != nil {
			return nil, err
		}
		s.source = src
	} else {
		s.source = stream.NewPool(s.generator(), cfg.WorkerCount, cfg.RequestQueueCapacity, log)
	}

	s.scheduler = stream.NewScheduler(s.world, s.source, s.height, s.observers, log)

	if cfg.PreloadRadius >= 0 {
		s.observers.Add(observer.New("spawn", cfg.SpawnPoint(), cfg.PreloadRadius, nil))
	}
	return s, nil
}

func (s *Server) generator() gen.Generator {
	switch s.cfg.GeneratorType {
	case "flat":
		return gen.NewFlatGenerator(s.height)
	default:
		return gen.NewTerrainGenerator(s.cfg.Seed, s.cfg.Noise, s.height)
	}
}

// openWorld prepares the stored world and returns a loader over it. The
// stored level metadata wins over the config for height and store kind.
func (s *Server) openWorld(ctx context.Context) (*storage.Loader, error) {
	dir := s.cfg.WorldPath
	if !storage.Exists(dir) && s.cfg.WorldURL != "" {
		s.log.Info("fetching world", "url", s.cfg.WorldURL, "path", dir)
		if err := storage.Fetch(ctx, s.cfg.WorldURL, dir); err != nil {
			return nil, err
		}
	}

	lvl, err := storage.LoadLevel(dir)
	if err != nil {
		return nil, err
	}
	if lvl == nil {
		lvl = &storage.Level{
			Seed:      s.cfg.Seed,
			Height:    s.cfg.WorldHeight,
			Generator: s.cfg.GeneratorType,
			Noise:     s.cfg.Noise,
			Store:     s.cfg.Store,
		}
		if err := storage.SaveLevel(dir, lvl); err != nil {
			return nil, err
		}
	} else if lvl.Height != s.cfg.WorldHeight || lvl.Store != s.cfg.Store {
		s.log.Warn("world metadata overrides config",
			"height", lvl.Height,
			"store", lvl.Store,
		)
	}
	if lvl.Height > 0 {
		s.height = lvl.Height
	}

	store, err := storage.Open(lvl.Store, dir, s.height)
	if err != nil {
		return nil, fmt.Errorf("open world %s: %w", dir, err)
	}
	return storage.NewLoader(store, s.cfg.WorkerCount, s.cfg.RequestQueueCapacity, s.cfg.LoadRateLimit, s.log), nil
}

// World returns the resident chunk storage.
func (s *Server) World() *world.World { return s.world }

// Observers returns the observer registry.
func (s *Server) Observers() *observer.Registry { return s.observers }

// Scheduler returns the streaming scheduler. It must only be used from
// the tick goroutine.
func (s *Server) Scheduler() *stream.Scheduler { return s.scheduler }

// Source returns the chunk source feeding the scheduler.
func (s *Server) Source() stream.Source { return s.source }

// Height returns the chunk height in blocks.
func (s *Server) Height() int { return s.height }

// Start runs the chunk source and the tick loop, and blocks until ctx is
// cancelled or the source fails. On return every resident chunk has been
// released back to the source.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("server started",
		"tickRate", s.cfg.TickRateHz,
		"viewDistance", s.cfg.ViewDistance,
		"generator", s.cfg.GeneratorType,
		"noise", s.cfg.Noise,
		"seed", s.cfg.Seed,
		"world", s.cfg.WorldPath,
		"height", s.height,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.source.Run(gctx); err != nil {
			return fmt.Errorf("chunk source: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.loop(gctx)
		return nil
	})
	err := g.Wait()

	s.log.Info("server shutting down")
	if cerr := s.shutdown(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (s *Server) loop(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.TickRateHz))
	defer ticker.Stop()
	stats := time.NewTicker(statsInterval)
	defer stats.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		case <-stats.C:
			s.log.Info("stream stats",
				"resident", s.world.Len(),
				"pending", s.scheduler.PendingLen(),
				"observers", s.observers.Len(),
			)
		}
	}
}

// Tick runs one scheduling step. Call it once per tick after observer
// positions are final.
func (s *Server) Tick() {
	s.scheduler.Merge()
	s.scheduler.Evict()

	s.observers.ForEach(func(o *observer.Observer) {
		center := o.ChunkPos()
		d := s.tracker.Update(o.ID, interest.View{Center: center, Radius: o.ViewRadius()})
		if d.Empty() {
			return
		}
		s.world.Watch(d.Entered)
		s.world.Unwatch(d.Left)
		s.scheduler.Intake(center, d.Entered)
	})
	if gone := s.tracker.Sweep(s.observers.Has); !gone.Empty() {
		s.world.Unwatch(gone.Left)
	}

	s.scheduler.Dispatch()
}

// AddObserver registers a new observer at pos with the configured view distance.
func (s *Server) AddObserver(name string, pos mgl64.Vec3, send func(string)) *observer.Observer {
	o := observer.New(name, pos, s.cfg.ViewDistance, send)
	s.observers.Add(o)
	return o
}

// RemoveObserver unregisters an observer. Its chunks are released on the next tick.
func (s *Server) RemoveObserver(id uuid.UUID) {
	s.observers.Remove(id)
}

func (s *Server) shutdown() error {
	for _, pos := range s.world.Resident() {
		if c := s.world.Remove(pos); c != nil {
			s.source.Release(pos, c)
		}
	}
	if c, ok := s.source.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close chunk source: %w", err)
		}
	}
	return nil
}
