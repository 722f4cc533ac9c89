package app

import (
	"context"
	"slices"
	"sync"

	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/domain"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

type classEntry struct {
	factory  core.Factory
	defaults domain.RoomConfig
}

// RoomManager creates rooms from registered classes and drives
// join, leave and teardown through the registry.
type RoomManager struct {
	registry *Registry
	deps     core.Deps
	defaults domain.RoomConfig
	log      zerolog.Logger

	mu      sync.RWMutex
	classes map[domain.RoomClass]classEntry
}

// NewRoomManager wires deps to the registry; deps.Directory is overwritten.
func NewRoomManager(registry *Registry, defaults domain.RoomConfig, deps core.Deps) *RoomManager {
	deps.Directory = registry
	return &RoomManager{
		registry: registry,
		deps:     deps,
		defaults: defaults,
		log:      deps.Logger.With().Str("module", "app.rooms").Logger(),
		classes:  make(map[domain.RoomClass]classEntry),
	}
}

func (m *RoomManager) Registry() *Registry { return m.registry }

// RegisterClass binds a factory to a class. overrides are merged over the
// manager defaults and validated now, not at room creation.
func (m *RoomManager) RegisterClass(class domain.RoomClass, f core.Factory, overrides *domain.RoomConfig) error {
	if class == "" || f == nil {
		return domain.New(domain.CodeInvalidConfig, "room class needs a name and a factory")
	}
	cfg := m.defaults.Merge(overrides)
	if err := cfg.Validate(); err != nil {
		return domain.AsError(err).WithContext("class", string(class))
	}
	m.mu.Lock()
	m.classes[class] = classEntry{factory: f, defaults: cfg}
	m.mu.Unlock()
	m.log.Info().Str("class", string(class)).Int("max_players", cfg.MaxPlayers).Int("min_players", cfg.MinPlayers).Msg("room class registered")
	return nil
}

func (m *RoomManager) Classes() []domain.RoomClass {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.RoomClass, 0, len(m.classes))
	for c := range m.classes {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

func (m *RoomManager) class(class domain.RoomClass) (classEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.classes[class]
	if !ok {
		return classEntry{}, domain.ErrUnknownClass.WithContext("class", string(class))
	}
	return e, nil
}

// CreateRoom builds and registers a room of class. The room is empty and
// expires after the empty grace unless someone joins.
func (m *RoomManager) CreateRoom(class domain.RoomClass, overrides *domain.RoomConfig) (*core.Room, error) {
	e, err := m.class(class)
	if err != nil {
		return nil, err
	}
	cfg := e.defaults.Merge(overrides)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	room, err := core.NewRoom(class, domain.NewRoomID(), cfg, e.factory(cfg), m.deps)
	if err != nil {
		return nil, err
	}
	if err := m.registry.Register(room); err != nil {
		room.Destroy()
		return nil, err
	}
	info := room.Info()
	if m.deps.Bus != nil {
		m.deps.Bus.Publish(domain.TopicRoomCreated, domain.RoomEvent{RoomID: info.ID, Class: info.Class, Status: info.Status})
	}
	m.log.Info().Str("room_id", string(info.ID)).Str("class", string(class)).Msg("room created")
	return room, nil
}

func (m *RoomManager) GetRoom(id domain.RoomID) (*core.Room, bool) {
	return m.registry.Get(id)
}

// JoinRoom adds p to the room with id.
func (m *RoomManager) JoinRoom(p *core.Player, id domain.RoomID) (*core.Room, error) {
	room, ok := m.registry.Get(id)
	if !ok {
		return nil, domain.ErrRoomNotFound.WithContext("room_id", string(id))
	}
	if err := room.AddPlayer(p); err != nil {
		return nil, err
	}
	return room, nil
}

// LeaveRoom removes p from its current room.
func (m *RoomManager) LeaveRoom(p *core.Player) (*core.Room, error) {
	room := p.Room()
	if room == nil {
		return nil, domain.ErrNotInRoom
	}
	if !room.RemovePlayer(p.ID()) {
		return nil, domain.ErrNotInRoom
	}
	return room, nil
}

func (m *RoomManager) DestroyRoom(id domain.RoomID) error {
	room, ok := m.registry.Get(id)
	if !ok {
		return domain.ErrRoomNotFound.WithContext("room_id", string(id))
	}
	room.Destroy()
	return nil
}

// List returns rooms filtered by class and status; zero values match all.
func (m *RoomManager) List(class domain.RoomClass, status *domain.Status) []domain.RoomInfo {
	var rooms []*core.Room
	if class != "" && status != nil {
		rooms = m.registry.FindByClassAndStatus(class, *status)
	} else {
		rooms = m.registry.All()
	}
	out := make([]domain.RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		info := r.Info()
		if class != "" && info.Class != class {
			continue
		}
		if status != nil && info.Status != *status {
			continue
		}
		out = append(out, info)
	}
	return out
}

type Stats struct {
	Rooms     int                      `json:"rooms"`
	ByStatus  map[string]int           `json:"by_status"`
	ByClass   map[domain.RoomClass]int `json:"by_class"`
	InRooms   int                      `json:"players_in_rooms"`
	Connected int                      `json:"connected"`
	Classes   []domain.RoomClass       `json:"classes"`
}

func (m *RoomManager) Stats() Stats {
	s := Stats{
		ByStatus:  make(map[string]int),
		ByClass:   make(map[domain.RoomClass]int),
		InRooms:   m.registry.PlayersInRooms(),
		Connected: m.registry.Connected(),
		Classes:   m.Classes(),
	}
	for class, byStatus := range m.registry.IndexSnapshot() {
		for status, ids := range byStatus {
			s.Rooms += len(ids)
			s.ByStatus[status.String()] += len(ids)
			s.ByClass[class] += len(ids)
		}
	}
	return s
}

// Shutdown destroys every room, a few at a time, until ctx expires.
func (m *RoomManager) Shutdown(ctx context.Context) error {
	rooms := m.registry.All()
	m.log.Info().Int("rooms", len(rooms)).Msg("shutting down rooms")

	done := make(chan struct{})
	go func() {
		p := pool.New().WithMaxGoroutines(8)
		for _, r := range rooms {
			p.Go(r.Destroy)
		}
		p.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
