package observer

import (
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/OCharnyshevich/voxel-stream/internal/server/world/gen"
)

// messageCollector records messages sent to an observer.
type messageCollector struct {
	mu   sync.Mutex
	msgs []string
}

func (mc *messageCollector) send(msg string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.msgs = append(mc.msgs, msg)
}

func (mc *messageCollector) get() []string {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return append([]string(nil), mc.msgs...)
}

func TestObserverChunkPos(t *testing.T) {
	tests := []struct {
		pos  mgl64.Vec3
		want gen.ChunkPos
	}{
		{mgl64.Vec3{0, 70, 0}, gen.ChunkPos{X: 0, Z: 0}},
		{mgl64.Vec3{15.9, 70, 16}, gen.ChunkPos{X: 0, Z: 1}},
		{mgl64.Vec3{-0.5, 70, -16}, gen.ChunkPos{X: -1, Z: -1}},
		{mgl64.Vec3{-16.1, 0, 100}, gen.ChunkPos{X: -2, Z: 6}},
	}
	for _, tt := range tests {
		o := New("test", tt.pos, 8, nil)
		if got := o.ChunkPos(); got != tt.want {
			t.Errorf("ChunkPos() at %v = %v, want %v", tt.pos, got, tt.want)
		}
	}
}

func TestObserverMove(t *testing.T) {
	o := New("test", mgl64.Vec3{}, 4, nil)
	o.SetPosition(mgl64.Vec3{40, 64, -40})
	if got := o.Position(); got != (mgl64.Vec3{40, 64, -40}) {
		t.Errorf("Position() = %v", got)
	}
	if got := o.ChunkPos(); got != (gen.ChunkPos{X: 2, Z: -3}) {
		t.Errorf("ChunkPos() = %v, want (2, -3)", got)
	}

	o.SetViewRadius(2)
	if o.ViewRadius() != 2 {
		t.Errorf("ViewRadius() = %d, want 2", o.ViewRadius())
	}

	// Sending without a sink is a no-op.
	o.Send("ignored")
}

func TestRegistryAddRemove(t *testing.T) {
	r := NewRegistry()
	a := New("Alice", mgl64.Vec3{}, 8, nil)
	b := New("bob", mgl64.Vec3{}, 8, nil)

	r.Add(a)
	r.Add(b)
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
	if r.Get(a.ID) != a || !r.Has(b.ID) {
		t.Error("added observers should be retrievable")
	}
	if r.GetByName("alice") != a {
		t.Error("GetByName should be case-insensitive")
	}

	r.Remove(a.ID)
	if r.Get(a.ID) != nil || r.Has(a.ID) || r.Len() != 1 {
		t.Error("removed observer still registered")
	}
	if r.GetByName("nobody") != nil {
		t.Error("GetByName of unknown name should be nil")
	}

	n := 0
	r.ForEach(func(*Observer) { n++ })
	if n != 1 {
		t.Errorf("ForEach visited %d observers, want 1", n)
	}
}

func TestRegistryBroadcast(t *testing.T) {
	r := NewRegistry()
	mc1, mc2 := &messageCollector{}, &messageCollector{}
	r.Add(New("a", mgl64.Vec3{}, 8, mc1.send))
	r.Add(New("b", mgl64.Vec3{}, 8, mc2.send))
	r.Add(New("anchor", mgl64.Vec3{}, 8, nil))

	r.Broadcast("failed to load chunk at (1, 2): boom")

	for i, mc := range []*messageCollector{mc1, mc2} {
		got := mc.get()
		if len(got) != 1 || got[0] != "failed to load chunk at (1, 2): boom" {
			t.Errorf("observer %d got %v", i, got)
		}
	}
}
