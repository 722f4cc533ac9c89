package orch_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Arena/internal/app"
	"github.com/dkeye/Arena/internal/app/orch"
	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/domain"
	"github.com/dkeye/Arena/internal/ratelimit"
	gojson "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recSink struct {
	mu     sync.Mutex
	frames [][]byte
	fail   bool
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

func (s *recSink) Close() {}

type envelope struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

func (s *recSink) all() []envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]envelope, 0, len(s.frames))
	for _, f := range s.frames {
		var env envelope
		if err := gojson.Unmarshal(f, &env); err == nil {
			out = append(out, env)
		}
	}
	return out
}

func (s *recSink) last(event string) (map[string]any, bool) {
	envs := s.all()
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].Event == event {
			return envs[i].Data, true
		}
	}
	return nil, false
}

func (s *recSink) count(event string) int {
	n := 0
	for _, e := range s.all() {
		if e.Event == event {
			n++
		}
	}
	return n
}

func (s *recSink) lastErrorCode() string {
	data, ok := s.last(domain.EventError)
	if !ok {
		return ""
	}
	code, _ := data["code"].(string)
	return code
}

type echoBehavior struct{ core.BaseBehavior }

func (echoBehavior) OnPlayerMessage(_ context.Context, r *core.Room, _ *core.Player, event string, data json.RawMessage) error {
	if event != "say" {
		return domain.ErrUnknownEvent
	}
	r.Broadcast("said", data)
	return nil
}

type fixture struct {
	orch  *orch.Orchestrator
	rooms *app.RoomManager
}

func newFixture(t *testing.T, rules map[string]ratelimit.Rule) *fixture {
	t.Helper()
	reg := app.NewRegistry(0, zerolog.Nop())
	rooms := app.NewRoomManager(reg, domain.RoomConfig{MaxPlayers: 4, MinPlayers: 1}, core.Deps{
		Logger:     zerolog.Nop(),
		EmptyGrace: time.Minute,
		ErrorGrace: 20 * time.Millisecond,
	})
	echo := func(domain.RoomConfig) core.RoomBehavior { return echoBehavior{} }
	require.NoError(t, rooms.RegisterClass("lobby", echo, nil))
	require.NoError(t, rooms.RegisterClass("duel", echo, &domain.RoomConfig{MaxPlayers: 2, MinPlayers: 2}))
	t.Cleanup(func() {
		for _, r := range reg.All() {
			r.Destroy()
		}
	})

	limits, err := ratelimit.NewScoped(ratelimit.New(0), rules)
	require.NoError(t, err)
	return &fixture{
		orch:  orch.New(rooms, app.NewMatcher(rooms, zerolog.Nop()), limits, zerolog.Nop()),
		rooms: rooms,
	}
}

func (f *fixture) connect(id string) (*core.Player, *recSink, context.Context) {
	sink := &recSink{}
	ctx, cancel := context.WithCancel(context.Background())
	return f.orch.Attach(domain.PlayerID(id), sink, cancel), sink, ctx
}

func send(f *fixture, p *core.Player, frame string) {
	f.orch.OnFrame(p, []byte(frame))
}

func TestOrchestrator_CreateJoinLeave(t *testing.T) {
	f := newFixture(t, nil)
	a, aSink, _ := f.connect("a")
	b, bSink, _ := f.connect("b")

	send(f, a, `{"event":"create_room","data":{"class":"lobby"}}`)
	data, ok := aSink.last(domain.EventJoined)
	require.True(t, ok)
	room := data["room"].(map[string]any)
	roomID := room["id"].(string)
	assert.Equal(t, "lobby", room["class"])
	assert.Equal(t, "waiting", room["status"])
	require.NotNil(t, a.Room())

	send(f, b, `{"event":"join_room","data":{"room_id":"`+roomID+`"}}`)
	data, ok = bSink.last(domain.EventJoined)
	require.True(t, ok)
	assert.Len(t, data["members"], 2)
	assert.Equal(t, 2, aSink.count(domain.EventPlayerJoin), "creator sees its own join and the second one")

	send(f, b, `{"event":"leave_room"}`)
	data, ok = bSink.last(domain.EventLeft)
	require.True(t, ok)
	assert.Equal(t, roomID, data["room_id"])
	assert.Nil(t, b.Room())
	assert.Equal(t, 1, aSink.count(domain.EventPlayerLeave))

	send(f, b, `{"event":"leave_room"}`)
	assert.Equal(t, string(domain.CodeNotInRoom), bSink.lastErrorCode())
}

func TestOrchestrator_SystemEventErrors(t *testing.T) {
	f := newFixture(t, nil)
	a, sink, _ := f.connect("a")

	tests := []struct {
		name  string
		frame string
		code  domain.Code
	}{
		{"malformed json", `{"event":`, domain.CodeBadPayload},
		{"missing event", `{"data":{}}`, domain.CodeBadPayload},
		{"missing class", `{"event":"create_room","data":{}}`, domain.CodeBadPayload},
		{"wrong data type", `{"event":"join_room","data":{"room_id":7}}`, domain.CodeBadPayload},
		{"unknown class", `{"event":"quick_match","data":{"class":"chess"}}`, domain.CodeUnknownClass},
		{"unknown room", `{"event":"join_room","data":{"room_id":"nope"}}`, domain.CodeRoomNotFound},
		{"bad status filter", `{"event":"list_rooms","data":{"status":"paused"}}`, domain.CodeBadPayload},
		{"empty name", `{"event":"set_name","data":{"name":"   "}}`, domain.CodeInvalidName},
		{"long name", `{"event":"set_name","data":{"name":"` + strings.Repeat("x", domain.MaxUsernameLen+1) + `"}}`, domain.CodeInvalidName},
		{"gameplay outside room", `{"event":"say","data":"hi"}`, domain.CodeNotInRoom},
		{"invalid overrides", `{"event":"create_room","data":{"class":"duel","config":{"min_players":3}}}`, domain.CodeInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			send(f, a, tt.frame)
			assert.Equal(t, string(tt.code), sink.lastErrorCode())
		})
	}
	assert.Nil(t, a.Room())
	assert.Equal(t, 0, f.rooms.Registry().Count())
}

func TestOrchestrator_ErrorCarriesContext(t *testing.T) {
	f := newFixture(t, nil)
	a, sink, _ := f.connect("a")
	send(f, a, `{"event":"join_room","data":{"room_id":"nope"}}`)

	data, ok := sink.last(domain.EventError)
	require.True(t, ok)
	assert.NotEmpty(t, data["message"])
	ctx := data["context"].(map[string]any)
	assert.Equal(t, "nope", ctx["room_id"])
	assert.Equal(t, domain.EventJoinRoom, ctx["event"])
}

func TestOrchestrator_AlreadyInRoom(t *testing.T) {
	f := newFixture(t, nil)
	a, sink, _ := f.connect("a")
	send(f, a, `{"event":"create_room","data":{"class":"lobby"}}`)
	send(f, a, `{"event":"create_room","data":{"class":"lobby"}}`)
	assert.Equal(t, string(domain.CodeAlreadyInRoom), sink.lastErrorCode())
	send(f, a, `{"event":"quick_match","data":{"class":"lobby"}}`)
	assert.Equal(t, string(domain.CodeAlreadyInRoom), sink.lastErrorCode())
	assert.Equal(t, 1, f.rooms.Registry().Count())
}

func TestOrchestrator_QuickMatchPairs(t *testing.T) {
	f := newFixture(t, nil)
	a, aSink, _ := f.connect("a")
	b, bSink, _ := f.connect("b")

	send(f, a, `{"event":"quick_match","data":{"class":"duel"}}`)
	send(f, b, `{"event":"quick_match","data":{"class":"duel"}}`)

	ad, ok := aSink.last(domain.EventJoined)
	require.True(t, ok)
	bd, ok := bSink.last(domain.EventJoined)
	require.True(t, ok)
	assert.Equal(t, ad["room"].(map[string]any)["id"], bd["room"].(map[string]any)["id"])
	assert.Same(t, a.Room(), b.Room())
}

func TestOrchestrator_ListAndStats(t *testing.T) {
	f := newFixture(t, nil)
	a, sink, _ := f.connect("a")
	_, err := f.rooms.CreateRoom("lobby", nil)
	require.NoError(t, err)
	send(f, a, `{"event":"create_room","data":{"class":"duel"}}`)

	send(f, a, `{"event":"list_rooms","data":{"class":"duel","status":"waiting"}}`)
	data, ok := sink.last(domain.EventRooms)
	require.True(t, ok)
	assert.Len(t, data["rooms"], 1)

	send(f, a, `{"event":"list_rooms"}`)
	data, _ = sink.last(domain.EventRooms)
	assert.Len(t, data["rooms"], 2)

	send(f, a, `{"event":"get_stats"}`)
	data, ok = sink.last(domain.EventStats)
	require.True(t, ok)
	assert.EqualValues(t, 2, data["rooms"])
	assert.EqualValues(t, 1, data["players_in_rooms"])
	assert.EqualValues(t, 1, data["connected"])
}

func TestOrchestrator_PlayerEvents(t *testing.T) {
	f := newFixture(t, nil)
	a, aSink, _ := f.connect("a")
	b, bSink, _ := f.connect("b")

	send(f, a, `{"event":"ping"}`)
	assert.Equal(t, 1, aSink.count(domain.EventPong))

	send(f, a, `{"event":"set_name","data":{"name":"  alice "}}`)
	data, ok := aSink.last(domain.EventRenamed)
	require.True(t, ok)
	assert.Equal(t, "alice", data["name"])
	assert.Equal(t, "alice", a.Name())

	send(f, a, `{"event":"create_room","data":{"class":"lobby"}}`)
	room := a.Room()
	require.NotNil(t, room)
	send(f, b, `{"event":"join_room","data":{"room_id":"`+string(room.ID())+`"}}`)

	send(f, b, `{"event":"set_name","data":{"name":"bob"}}`)
	data, ok = aSink.last(domain.EventRenamed)
	require.True(t, ok)
	assert.Equal(t, "bob", data["name"])

	send(f, b, `{"event":"set_ready","data":{"ready":true}}`)
	assert.True(t, b.Ready())
	data, ok = aSink.last(domain.EventReady)
	require.True(t, ok)
	assert.Equal(t, true, data["ready"])
	assert.Equal(t, 1, bSink.count(domain.EventReady))

	send(f, b, `{"event":"whoami"}`)
	data, ok = bSink.last(domain.EventIdentity)
	require.True(t, ok)
	assert.Equal(t, "b", data["id"])
	assert.Equal(t, "bob", data["name"])
	assert.Equal(t, string(room.ID()), data["room_id"])
	assert.Equal(t, "lobby", data["class"])
}

func TestOrchestrator_ForwardsGameplay(t *testing.T) {
	f := newFixture(t, nil)
	a, aSink, _ := f.connect("a")
	b, bSink, _ := f.connect("b")
	send(f, a, `{"event":"create_room","data":{"class":"lobby"}}`)
	send(f, b, `{"event":"join_room","data":{"room_id":"`+string(a.Room().ID())+`"}}`)

	send(f, a, `{"event":"say","data":{"text":"hi"}}`)
	assert.Eventually(t, func() bool { return bSink.count("said") == 1 && aSink.count("said") == 1 }, time.Second, 5*time.Millisecond)

	send(f, b, `{"event":"dance"}`)
	assert.Eventually(t, func() bool { return bSink.lastErrorCode() == string(domain.CodeUnknownEvent) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "", aSink.lastErrorCode())
	assert.Equal(t, domain.StatusWaiting, a.Room().Status(), "client errors never fail the room")
}

func TestOrchestrator_RateLimit(t *testing.T) {
	f := newFixture(t, map[string]ratelimit.Rule{
		ratelimit.ScopeSystem:  {Capacity: 2, Rate: 0.001},
		ratelimit.ScopeMessage: {Capacity: 1, Rate: 0.001},
	})
	a, sink, _ := f.connect("a")

	for range 3 {
		send(f, a, `{"event":"ping"}`)
	}
	assert.Equal(t, 2, sink.count(domain.EventPong))
	data, ok := sink.last(domain.EventError)
	require.True(t, ok)
	assert.Equal(t, string(domain.CodeRateLimited), data["code"])
	assert.Equal(t, ratelimit.ScopeSystem, data["context"].(map[string]any)["scope"])

	// Message scope is independent of the exhausted system scope.
	send(f, a, `{"event":"say"}`)
	assert.Equal(t, string(domain.CodeNotInRoom), sink.lastErrorCode())
	send(f, a, `{"event":"say"}`)
	assert.Equal(t, string(domain.CodeRateLimited), sink.lastErrorCode())
}

func TestOrchestrator_DisconnectLeavesRoom(t *testing.T) {
	f := newFixture(t, nil)
	a, aSink, _ := f.connect("a")
	b, _, _ := f.connect("b")
	send(f, a, `{"event":"create_room","data":{"class":"lobby"}}`)
	room := a.Room()
	send(f, b, `{"event":"join_room","data":{"room_id":"`+string(room.ID())+`"}}`)

	f.orch.OnDisconnect(b, b.Sink())
	assert.Nil(t, b.Room())
	assert.Equal(t, 1, room.PlayerCount())
	assert.Equal(t, 1, aSink.count(domain.EventPlayerLeave))
	assert.Equal(t, 1, f.rooms.Registry().Connected())
}

func TestOrchestrator_ReconnectKeepsRoom(t *testing.T) {
	f := newFixture(t, nil)
	a, oldSink, oldCtx := f.connect("a")
	send(f, a, `{"event":"create_room","data":{"class":"lobby"}}`)
	room := a.Room()
	require.NotNil(t, room)

	again, newSink, _ := f.connect("a")
	assert.Same(t, a, again)
	assert.Error(t, oldCtx.Err(), "previous connection canceled")

	f.orch.OnDisconnect(a, oldSink)
	assert.Same(t, room, a.Room(), "stale disconnect is ignored")

	send(f, a, `{"event":"ping"}`)
	assert.Equal(t, 1, newSink.count(domain.EventPong))
	assert.Equal(t, 0, oldSink.count(domain.EventPong))
}

func TestOrchestrator_FailedReplyClosesConnection(t *testing.T) {
	f := newFixture(t, nil)
	a, sink, ctx := f.connect("a")
	sink.mu.Lock()
	sink.fail = true
	sink.mu.Unlock()

	send(f, a, `{"event":"ping"}`)
	assert.Error(t, ctx.Err())
	assert.False(t, a.Alive())
}

func TestOrchestrator_ClientConfigIsBounded(t *testing.T) {
	f := newFixture(t, nil)
	a, _, _ := f.connect("a")

	send(f, a, `{"event":"create_room","data":{"class":"lobby","config":{"auto_start":true,"max_players":3,"custom":{"rounds":2}}}}`)
	room := a.Room()
	require.NotNil(t, room)
	cfg := room.Config()
	assert.False(t, cfg.AutoStart, "clients cannot turn auto start on")
	assert.Equal(t, 3, cfg.MaxPlayers)
	assert.Equal(t, map[string]any{"rounds": float64(2)}, cfg.Custom)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, domain.StatusWaiting, room.Status())

	b, bSink, _ := f.connect("b")
	tooBig := fmt.Sprintf(`{"event":"create_room","data":{"class":"lobby","config":{"max_players":%d}}}`, orch.MaxClientPlayers+1)
	send(f, b, tooBig)
	assert.Nil(t, b.Room())
	data, ok := bSink.last(domain.EventError)
	require.True(t, ok)
	assert.Equal(t, string(domain.CodeBadPayload), data["code"])
	assert.Equal(t, "max_players", data["context"].(map[string]any)["field"])

	send(f, b, `{"event":"quick_match","data":{"class":"duel","config":{"min_players":0,"max_players":3}}}`)
	require.NotNil(t, b.Room())
	assert.Equal(t, 3, b.Room().Config().MaxPlayers)
	assert.Equal(t, 2, b.Room().Config().MinPlayers)
}
