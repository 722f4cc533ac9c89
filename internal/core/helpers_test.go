package core_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/domain"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

type recSink struct {
	mu     sync.Mutex
	frames []core.Frame
	fail   bool
}

func (s *recSink) TrySend(f core.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("broken pipe")
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *recSink) Close() {}

func (s *recSink) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.frames))
	for _, f := range s.frames {
		var env domain.Envelope
		if err := json.Unmarshal(f, &env); err == nil {
			out = append(out, env.Event)
		}
	}
	return out
}

func (s *recSink) count(event string) int {
	n := 0
	for _, e := range s.events() {
		if e == event {
			n++
		}
	}
	return n
}

type transition struct{ from, to domain.Status }

type recDirectory struct {
	mu           sync.Mutex
	transitions  []transition
	unregistered []domain.RoomID
	bound        map[domain.PlayerID]domain.RoomID
}

func newRecDirectory() *recDirectory {
	return &recDirectory{bound: make(map[domain.PlayerID]domain.RoomID)}
}

func (d *recDirectory) UpdateIndex(_ *core.Room, from, to domain.Status) {
	d.mu.Lock()
	d.transitions = append(d.transitions, transition{from, to})
	d.mu.Unlock()
}

func (d *recDirectory) BindPlayer(pid domain.PlayerID, rid domain.RoomID) {
	d.mu.Lock()
	d.bound[pid] = rid
	d.mu.Unlock()
}

func (d *recDirectory) UnbindPlayer(pid domain.PlayerID, rid domain.RoomID) {
	d.mu.Lock()
	if d.bound[pid] == rid {
		delete(d.bound, pid)
	}
	d.mu.Unlock()
}

func (d *recDirectory) Release(r *core.Room) {
	rid := r.ID()
	d.mu.Lock()
	d.unregistered = append(d.unregistered, rid)
	for pid, bound := range d.bound {
		if bound == rid {
			delete(d.bound, pid)
		}
	}
	d.mu.Unlock()
}

func (d *recDirectory) snapshot() ([]transition, []domain.RoomID, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]transition(nil), d.transitions...), append([]domain.RoomID(nil), d.unregistered...), len(d.bound)
}

type idleBehavior struct{ core.BaseBehavior }

func testDeps(dir core.Directory) core.Deps {
	return core.Deps{
		Logger:     zerolog.Nop(),
		Directory:  dir,
		EmptyGrace: time.Minute,
		ErrorGrace: 20 * time.Millisecond,
	}
}

func newTestRoom(t *testing.T, cfg domain.RoomConfig, b core.RoomBehavior, deps core.Deps) *core.Room {
	t.Helper()
	r, err := core.NewRoom("test", "", cfg, b, deps)
	if err != nil {
		t.Fatalf("new room: %v", err)
	}
	t.Cleanup(r.Destroy)
	return r
}

func newTestPlayer(id string) (*core.Player, *recSink) {
	s := &recSink{}
	return core.NewPlayer(domain.PlayerID(id), id, s), s
}

func waitDone(t *testing.T, r *core.Room, within time.Duration) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(within):
		t.Fatalf("room %s not destroyed within %s", r.ID(), within)
	}
}
