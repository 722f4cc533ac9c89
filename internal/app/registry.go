package app

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/domain"
	"github.com/rs/zerolog"
)

const DefaultMaxRooms = 1000

type indexKey struct {
	class  domain.RoomClass
	status domain.Status
}

type roomEntry struct {
	room   *core.Room
	seq    uint64
	status domain.Status
}

type sessionEntry struct {
	Player *core.Player
	Cancel context.CancelFunc
}

// Registry indexes live rooms by id and by (class, status), maps players to
// their room and tracks connected players.
// It never calls into a room while holding its own lock.
type Registry struct {
	mu         sync.RWMutex
	maxRooms   int
	seq        uint64
	rooms      map[domain.RoomID]*roomEntry
	index      map[indexKey]map[domain.RoomID]struct{}
	playerRoom map[domain.PlayerID]domain.RoomID
	sessions   map[domain.PlayerID]*sessionEntry
	log        zerolog.Logger
}

func NewRegistry(maxRooms int, logger zerolog.Logger) *Registry {
	if maxRooms <= 0 {
		maxRooms = DefaultMaxRooms
	}
	return &Registry{
		maxRooms:   maxRooms,
		rooms:      make(map[domain.RoomID]*roomEntry),
		index:      make(map[indexKey]map[domain.RoomID]struct{}),
		playerRoom: make(map[domain.PlayerID]domain.RoomID),
		sessions:   make(map[domain.PlayerID]*sessionEntry),
		log:        logger.With().Str("module", "app.registry").Logger(),
	}
}

// Register inserts a new room into the primary map and the (class, Waiting) bucket.
func (r *Registry) Register(room *core.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rooms) >= r.maxRooms {
		return domain.ErrMaxRooms.WithContext("max_rooms", r.maxRooms)
	}
	if _, ok := r.rooms[room.ID()]; ok {
		return domain.ErrAlreadyExists.WithContext("room_id", string(room.ID()))
	}
	r.seq++
	r.rooms[room.ID()] = &roomEntry{room: room, seq: r.seq, status: domain.StatusWaiting}
	r.addToBucketLocked(indexKey{room.Class(), domain.StatusWaiting}, room.ID())
	r.log.Info().Str("room_id", string(room.ID())).Str("class", string(room.Class())).Int("rooms", len(r.rooms)).Msg("room registered")
	return nil
}

// UpdateIndex moves room between buckets. Called by the room's status setter.
func (r *Registry) UpdateIndex(room *core.Room, from, to domain.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rooms[room.ID()]
	if !ok || e.room != room {
		return
	}
	if e.status != from {
		r.log.Warn().Str("room_id", string(room.ID())).Stringer("indexed", e.status).Stringer("from", from).Msg("index out of step")
	}
	r.removeFromBucketLocked(indexKey{room.Class(), e.status}, room.ID())
	e.status = to
	r.addToBucketLocked(indexKey{room.Class(), to}, room.ID())
}

// Unregister removes the room from the primary map, the index and every
// player mapping that points at it.
func (r *Registry) Unregister(id domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rooms[id]
	if !ok {
		return false
	}
	r.unregisterLocked(e)
	return true
}

// Release implements core.Directory.
func (r *Registry) Release(room *core.Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rooms[room.ID()]
	if !ok || e.room != room {
		return
	}
	r.unregisterLocked(e)
}

func (r *Registry) unregisterLocked(e *roomEntry) {
	id := e.room.ID()
	delete(r.rooms, id)
	r.removeFromBucketLocked(indexKey{e.room.Class(), e.status}, id)
	cleared := 0
	for pid, rid := range r.playerRoom {
		if rid == id {
			delete(r.playerRoom, pid)
			cleared++
		}
	}
	r.log.Info().Str("room_id", string(id)).Int("players_cleared", cleared).Int("rooms", len(r.rooms)).Msg("room unregistered")
}

func (r *Registry) addToBucketLocked(k indexKey, id domain.RoomID) {
	b, ok := r.index[k]
	if !ok {
		b = make(map[domain.RoomID]struct{})
		r.index[k] = b
	}
	b[id] = struct{}{}
}

func (r *Registry) removeFromBucketLocked(k indexKey, id domain.RoomID) {
	b, ok := r.index[k]
	if !ok {
		return
	}
	delete(b, id)
	if len(b) == 0 {
		delete(r.index, k)
	}
}

func (r *Registry) Get(id domain.RoomID) (*core.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rooms[id]
	if !ok {
		return nil, false
	}
	return e.room, true
}

// FindByClassAndStatus returns the bucket in registration order.
func (r *Registry) FindByClassAndStatus(class domain.RoomClass, status domain.Status) []*core.Room {
	r.mu.RLock()
	b := r.index[indexKey{class, status}]
	entries := make([]*roomEntry, 0, len(b))
	for id := range b {
		entries = append(entries, r.rooms[id])
	}
	r.mu.RUnlock()
	return sortedRooms(entries)
}

// All returns every registered room in registration order.
func (r *Registry) All() []*core.Room {
	r.mu.RLock()
	entries := make([]*roomEntry, 0, len(r.rooms))
	for _, e := range r.rooms {
		entries = append(entries, e)
	}
	r.mu.RUnlock()
	return sortedRooms(entries)
}

func sortedRooms(entries []*roomEntry) []*core.Room {
	slices.SortFunc(entries, func(a, b *roomEntry) int { return cmp.Compare(a.seq, b.seq) })
	out := make([]*core.Room, len(entries))
	for i, e := range entries {
		out[i] = e.room
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// IndexSnapshot copies the (class, status) partition as seen by the index.
func (r *Registry) IndexSnapshot() map[domain.RoomClass]map[domain.Status][]domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[domain.RoomClass]map[domain.Status][]domain.RoomID)
	for k, b := range r.index {
		if out[k.class] == nil {
			out[k.class] = make(map[domain.Status][]domain.RoomID)
		}
		for id := range b {
			out[k.class][k.status] = append(out[k.class][k.status], id)
		}
	}
	return out
}

func (r *Registry) BindPlayer(pid domain.PlayerID, rid domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playerRoom[pid] = rid
}

func (r *Registry) UnbindPlayer(pid domain.PlayerID, rid domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.playerRoom[pid] == rid {
		delete(r.playerRoom, pid)
	}
}

func (r *Registry) RoomOf(pid domain.PlayerID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rid, ok := r.playerRoom[pid]
	return rid, ok
}

func (r *Registry) PlayersInRooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.playerRoom)
}

// Connect records a live connection for p. A previous connection of the same
// player is canceled and its player returned so the caller can rebind it.
func (r *Registry) Connect(p *core.Player, cancel context.CancelFunc) (*core.Player, bool) {
	r.mu.Lock()
	prev, ok := r.sessions[p.ID()]
	r.sessions[p.ID()] = &sessionEntry{Player: p, Cancel: cancel}
	r.mu.Unlock()
	if ok && prev.Cancel != nil {
		prev.Cancel()
	}
	r.log.Info().Str("player_id", string(p.ID())).Bool("replaced", ok).Msg("player connected")
	if !ok {
		return nil, false
	}
	return prev.Player, true
}

func (r *Registry) Session(pid domain.PlayerID) (*core.Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[pid]
	if !ok {
		return nil, false
	}
	return e.Player, true
}

// Disconnect forgets pid only when sink is still its current transport,
// so a stale connection closing after a reconnect does not evict the new one.
func (r *Registry) Disconnect(pid domain.PlayerID, sink core.Sink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[pid]
	if !ok || e.Player.Sink() != sink {
		return false
	}
	delete(r.sessions, pid)
	r.log.Info().Str("player_id", string(pid)).Msg("player disconnected")
	return true
}

// Cancel stops the connection of pid.
func (r *Registry) Cancel(pid domain.PlayerID) bool {
	r.mu.RLock()
	e, ok := r.sessions[pid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	r.log.Info().Str("player_id", string(pid)).Msg("canceled session")
	return true
}

func (r *Registry) Connected() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
