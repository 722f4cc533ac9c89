package app

import (
	"errors"
	"sync"

	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/domain"
	"github.com/rs/zerolog"
)

const quickMatchAttempts = 3

// Matcher resolves quick-match requests with find-or-create per class.
// Calls for the same class are serialized; different classes do not contend.
type Matcher struct {
	rooms *RoomManager
	log   zerolog.Logger

	mu    sync.Mutex
	locks map[domain.RoomClass]*sync.Mutex
}

func NewMatcher(rooms *RoomManager, logger zerolog.Logger) *Matcher {
	return &Matcher{
		rooms: rooms,
		log:   logger.With().Str("module", "app.matcher").Logger(),
		locks: make(map[domain.RoomClass]*sync.Mutex),
	}
}

func (m *Matcher) classLock(class domain.RoomClass) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[class]
	if !ok {
		l = &sync.Mutex{}
		m.locks[class] = l
	}
	return l
}

// FindAvailableRoom returns the oldest waiting room of class with a free seat.
func (m *Matcher) FindAvailableRoom(class domain.RoomClass) *core.Room {
	for _, r := range m.rooms.Registry().FindByClassAndStatus(class, domain.StatusWaiting) {
		if r.PlayerCount() < r.Config().MaxPlayers {
			return r
		}
	}
	return nil
}

// QuickMatch joins p to a waiting room of class, creating one with cfg when
// none has a free seat. A join lost to a concurrent direct join is retried.
func (m *Matcher) QuickMatch(p *core.Player, class domain.RoomClass, cfg *domain.RoomConfig) (*core.Room, error) {
	if p.Room() != nil {
		return nil, domain.ErrAlreadyInRoom.WithContext("player_id", string(p.ID()))
	}
	l := m.classLock(class)
	l.Lock()
	defer l.Unlock()

	var lastErr error
	for attempt := 0; attempt < quickMatchAttempts; attempt++ {
		room := m.FindAvailableRoom(class)
		created := false
		if room == nil {
			var err error
			if room, err = m.rooms.CreateRoom(class, cfg); err != nil {
				return nil, err
			}
			created = true
		}
		err := room.AddPlayer(p)
		if err == nil {
			m.log.Info().
				Str("player_id", string(p.ID())).
				Str("room_id", string(room.ID())).
				Str("class", string(class)).
				Bool("created", created).
				Msg("quick match")
			return room, nil
		}
		if errors.Is(err, domain.ErrAlreadyInRoom) {
			return nil, err
		}
		lastErr = err
		m.log.Debug().Err(err).Str("room_id", string(room.ID())).Int("attempt", attempt+1).Msg("quick match join lost, retrying")
	}
	return nil, lastErr
}
