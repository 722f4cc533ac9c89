package natsbus_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Arena/internal/adapters/natsbus"
	"github.com/dkeye/Arena/internal/app/events"
	"github.com/dkeye/Arena/internal/domain"
	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ natsbus.Publisher = (*nats.Conn)(nil)

type fakePublisher struct {
	mu   sync.Mutex
	msgs map[string][]byte
	err  error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs[subject] = data
	return nil
}

func TestBridge_ForwardsTopics(t *testing.T) {
	bus := events.New(16, 1, zerolog.Nop())
	pub := &fakePublisher{msgs: make(map[string][]byte)}
	b := natsbus.NewBridge(pub, "arena.", zerolog.Nop())
	b.Attach(bus)

	bus.Publish(domain.TopicRoomCreated, domain.RoomEvent{RoomID: "r1", Class: "duel", Status: domain.StatusWaiting})
	bus.Publish(domain.TopicPlayerJoined, domain.PlayerEvent{RoomID: "r1", PlayerID: "p1", Name: "alice"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Close(ctx))

	assert.Equal(t, int64(2), b.Sent())
	var ev domain.RoomEvent
	require.NoError(t, json.Unmarshal(pub.msgs["arena.room.created"], &ev))
	assert.Equal(t, domain.RoomID("r1"), ev.RoomID)
	assert.Equal(t, domain.StatusWaiting, ev.Status)
	assert.Contains(t, string(pub.msgs["arena.player.joined"]), `"name":"alice"`)
}

func TestBridge_PublishFailureCounted(t *testing.T) {
	bus := events.New(16, 1, zerolog.Nop())
	pub := &fakePublisher{msgs: make(map[string][]byte), err: errors.New("nats: connection closed")}
	b := natsbus.NewBridge(pub, "arena", zerolog.Nop())
	b.Attach(bus)
	bus.Publish(domain.TopicRoomError, domain.RoomEvent{RoomID: "r1", Error: "boom"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Close(ctx))
	assert.Equal(t, int64(1), b.Failed())
	assert.Equal(t, int64(0), b.Sent())
}

func TestBridge_Subject(t *testing.T) {
	assert.Equal(t, "room.started", natsbus.NewBridge(nil, "", zerolog.Nop()).Subject("room.started"))
	assert.Equal(t, "arena.room.started", natsbus.NewBridge(nil, "arena", zerolog.Nop()).Subject("room.started"))
}

func TestBridge_Detach(t *testing.T) {
	bus := events.New(16, 1, zerolog.Nop())
	pub := &fakePublisher{msgs: make(map[string][]byte)}
	b := natsbus.NewBridge(pub, "arena", zerolog.Nop())
	b.Attach(bus)
	b.Detach()
	bus.Publish(domain.TopicRoomCreated, domain.RoomEvent{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Close(ctx))
	assert.Empty(t, pub.msgs)
}
