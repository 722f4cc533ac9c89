package core

import (
	"sync"
	"sync/atomic"

	"github.com/dkeye/Arena/internal/domain"
)

// Player pairs an identity with its transport sink.
// The room reference is non-owning and cleared on leave.
type Player struct {
	id domain.PlayerID

	mu    sync.RWMutex
	name  string
	ready bool
	data  map[string]any
	sink  Sink
	room  *Room

	dead atomic.Bool
}

func NewPlayer(id domain.PlayerID, name string, sink Sink) *Player {
	if name == "" {
		name = domain.DefaultName
	}
	return &Player{
		id:   id,
		name: name,
		sink: sink,
		data: make(map[string]any),
	}
}

func (p *Player) ID() domain.PlayerID { return p.id }

func (p *Player) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

func (p *Player) SetName(name string) error {
	name, err := domain.NormalizeUsername(name)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.name = name
	p.mu.Unlock()
	return nil
}

func (p *Player) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ready
}

func (p *Player) SetReady(ready bool) {
	p.mu.Lock()
	p.ready = ready
	p.mu.Unlock()
}

func (p *Player) Get(key string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.data[key]
	return v, ok
}

func (p *Player) Set(key string, v any) {
	p.mu.Lock()
	p.data[key] = v
	p.mu.Unlock()
}

func (p *Player) Delete(key string) {
	p.mu.Lock()
	delete(p.data, key)
	p.mu.Unlock()
}

// Room returns the room the player is currently in, or nil.
func (p *Player) Room() *Room {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.room
}

// claim sets the room reference only if the player has none.
func (p *Player) claim(r *Room) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.room != nil {
		return false
	}
	p.room = r
	return true
}

// release clears the reference if it still points at r.
func (p *Player) release(r *Room) {
	p.mu.Lock()
	if p.room == r {
		p.room = nil
	}
	p.mu.Unlock()
}

// Send hands a frame to the sink. After the first failure the player is
// considered unreachable and every further send fails without touching the sink.
func (p *Player) Send(f Frame) bool {
	if p.dead.Load() {
		return false
	}
	p.mu.RLock()
	sink := p.sink
	p.mu.RUnlock()
	if sink == nil {
		p.dead.Store(true)
		return false
	}
	if err := sink.TrySend(f); err != nil {
		p.dead.Store(true)
		return false
	}
	return true
}

// Alive reports whether the sink has not failed yet.
func (p *Player) Alive() bool { return !p.dead.Load() }

// Sink returns the current transport.
func (p *Player) Sink() Sink {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sink
}

// Rebind swaps the transport after a reconnect and revives the player.
func (p *Player) Rebind(sink Sink) Sink {
	p.mu.Lock()
	old := p.sink
	p.sink = sink
	p.mu.Unlock()
	p.dead.Store(false)
	return old
}

// Public is the representation sent to other players.
func (p *Player) Public() domain.Member {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return domain.Member{ID: p.id, Name: p.name, Ready: p.ready}
}
