package app_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Arena/internal/app"
	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/domain"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type recSink struct {
	mu     sync.Mutex
	frames []core.Frame
	fail   bool
	closed bool
}

func (s *recSink) TrySend(f core.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("queue full")
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *recSink) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *recSink) envelopes() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.frames))
	for _, f := range s.frames {
		var env map[string]any
		if err := json.Unmarshal(f, &env); err == nil {
			out = append(out, env)
		}
	}
	return out
}

func (s *recSink) last(event string) (map[string]any, bool) {
	envs := s.envelopes()
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i]["event"] == event {
			data, _ := envs[i]["data"].(map[string]any)
			return data, true
		}
	}
	return nil, false
}

type idleBehavior struct{ core.BaseBehavior }

func idleFactory(domain.RoomConfig) core.RoomBehavior { return idleBehavior{} }

func newManager(t *testing.T, maxRooms int) *app.RoomManager {
	t.Helper()
	reg := app.NewRegistry(maxRooms, zerolog.Nop())
	m := app.NewRoomManager(reg, domain.RoomConfig{MaxPlayers: 4, MinPlayers: 1}, core.Deps{
		Logger:     zerolog.Nop(),
		EmptyGrace: time.Minute,
		ErrorGrace: 20 * time.Millisecond,
	})
	require.NoError(t, m.RegisterClass("duel", idleFactory, &domain.RoomConfig{MaxPlayers: 2, MinPlayers: 2}))
	require.NoError(t, m.RegisterClass("lobby", idleFactory, nil))
	t.Cleanup(func() {
		for _, r := range reg.All() {
			r.Destroy()
		}
	})
	return m
}

func newPlayer(id string) (*core.Player, *recSink) {
	s := &recSink{}
	return core.NewPlayer(domain.PlayerID(id), id, s), s
}

// checkIndex asserts that every registered room sits in exactly the bucket of its status.
func checkIndex(t *testing.T, reg *app.Registry) {
	t.Helper()
	seen := 0
	for class, byStatus := range reg.IndexSnapshot() {
		for status, ids := range byStatus {
			for _, id := range ids {
				r, ok := reg.Get(id)
				require.True(t, ok, "indexed room %s not registered", id)
				require.Equal(t, class, r.Class())
				require.Equal(t, status, r.Status(), "room %s indexed under stale status", id)
				seen++
			}
		}
	}
	require.Equal(t, reg.Count(), seen)
}
