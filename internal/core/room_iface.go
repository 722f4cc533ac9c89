package core

//go:generate mockgen -source=room_iface.go -destination=mocks/mock_behavior.go -package=mocks

import (
	"context"
	"encoding/json"

	"github.com/dkeye/Arena/internal/domain"
)

// PublishResult reports delivery stats of one broadcast.
// Dropped players have already been pruned from the roster.
type PublishResult struct {
	SentTo  int
	Dropped []domain.PlayerID
}

// RoomBehavior is the application logic of a room class.
// The runtime owns roster, status and timers; a behavior only reacts.
//
// Hook order on start is OnCreate, OnStart, Run; all three run on the room's
// own goroutine and share its context, which is canceled on destroy.
// A returned error or a panic from any hook tears the room down.
// OnPlayerMessage may return a *domain.Error to reject a single message
// without affecting the room.
type RoomBehavior interface {
	OnCreate(ctx context.Context, r *Room) error
	OnStart(ctx context.Context, r *Room) error
	Run(ctx context.Context, r *Room) error
	OnDestroy(r *Room) error
	OnPlayerJoin(r *Room, p *Player)
	OnPlayerLeave(r *Room, p *Player)
	OnPlayerMessage(ctx context.Context, r *Room, p *Player, event string, data json.RawMessage) error
}

// BaseBehavior provides no-op hooks to embed. Its Run blocks until the room
// is destroyed or its last player leaves, then lets the room finish.
type BaseBehavior struct{}

func (BaseBehavior) OnCreate(context.Context, *Room) error { return nil }
func (BaseBehavior) OnStart(context.Context, *Room) error { return nil }

func (BaseBehavior) Run(ctx context.Context, r *Room) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.Abandoned():
		return nil
	}
}

func (BaseBehavior) OnDestroy(*Room) error { return nil }

func (BaseBehavior) OnPlayerJoin(*Room, *Player) {}
func (BaseBehavior) OnPlayerLeave(*Room, *Player) {}

func (BaseBehavior) OnPlayerMessage(context.Context, *Room, *Player, string, json.RawMessage) error {
	return domain.ErrUnknownEvent
}

// Factory builds the behavior for a new room of one class.
type Factory func(cfg domain.RoomConfig) RoomBehavior
