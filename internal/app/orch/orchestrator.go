// Package orch routes inbound client frames to the room manager, the matcher
// or the player's current room.
package orch

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/dkeye/Arena/internal/app"
	"github.com/dkeye/Arena/internal/codec"
	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/domain"
	"github.com/dkeye/Arena/internal/ratelimit"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type handlerFunc func(p *core.Player, in domain.Inbound) error

type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.RoomManager
	Matcher  *app.Matcher
	Limits   *ratelimit.Scoped
	Policy   app.Policy
	Now      func() time.Time

	log      zerolog.Logger
	validate *validator.Validate
	system   map[string]handlerFunc
}

func New(rooms *app.RoomManager, matcher *app.Matcher, limits *ratelimit.Scoped, logger zerolog.Logger) *Orchestrator {
	o := &Orchestrator{
		Registry: rooms.Registry(),
		Rooms:    rooms,
		Matcher:  matcher,
		Limits:   limits,
		Policy:   app.SimplePolicy{},
		Now:      time.Now,
		log:      logger.With().Str("module", "app.orch").Logger(),
		validate: newValidator(),
	}
	o.system = map[string]handlerFunc{
		domain.EventSetName:    o.handleSetName,
		domain.EventCreateRoom: o.handleCreateRoom,
		domain.EventJoinRoom:   o.handleJoinRoom,
		domain.EventLeaveRoom:  o.handleLeaveRoom,
		domain.EventQuickMatch: o.handleQuickMatch,
		domain.EventListRooms:  o.handleListRooms,
		domain.EventGetStats:   o.handleGetStats,
		domain.EventSetReady:   o.handleSetReady,
		domain.EventPing:       o.handlePing,
		domain.EventWhoAmI:     o.handleWhoAmI,
	}
	return o
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// IsSystemEvent reports whether event is handled outside rooms.
func (o *Orchestrator) IsSystemEvent(event string) bool {
	_, ok := o.system[event]
	return ok
}

// Attach binds a new connection to id. A player that is still connected
// keeps its room and state and switches to sink; the old sink is closed.
func (o *Orchestrator) Attach(id domain.PlayerID, sink core.Sink, cancel context.CancelFunc) *core.Player {
	p, ok := o.Registry.Session(id)
	if ok {
		if old := p.Rebind(sink); old != nil && old != sink {
			old.Close()
		}
	} else {
		p = core.NewPlayer(id, domain.DefaultName, sink)
	}
	o.Registry.Connect(p, cancel)
	return p
}

// OnDisconnect releases the player once its current transport is gone.
// A stale connection closing after a reconnect is ignored.
func (o *Orchestrator) OnDisconnect(p *core.Player, sink core.Sink) {
	if !o.Registry.Disconnect(p.ID(), sink) {
		o.log.Debug().Str("player_id", string(p.ID())).Msg("stale connection closed")
		return
	}
	if room := p.Room(); room != nil {
		room.RemovePlayer(p.ID())
	}
	if o.Limits != nil {
		o.Limits.Forget(string(p.ID()))
	}
}

// OnFrame routes one inbound frame from p.
func (o *Orchestrator) OnFrame(p *core.Player, frame []byte) {
	in, err := codec.Decode(frame)
	if err != nil {
		if o.Limits != nil && !o.Limits.Allow(ratelimit.ScopeMessage, string(p.ID())) {
			return
		}
		o.log.Debug().Err(err).Str("player_id", string(p.ID())).Msg("bad frame")
		o.replyError(p, err)
		return
	}

	handler, system := o.system[in.Event]
	scope := ratelimit.ScopeMessage
	if system {
		scope = ratelimit.ScopeSystem
	}
	if o.Limits != nil && !o.Limits.Allow(scope, string(p.ID())) {
		o.log.Warn().Str("player_id", string(p.ID())).Str("event", in.Event).Str("scope", scope).Msg("rate limited")
		o.replyError(p, domain.ErrRateLimited.WithContext("scope", scope).WithContext("event", in.Event))
		return
	}

	if system {
		if err := handler(p, in); err != nil {
			o.log.Debug().Err(err).Str("player_id", string(p.ID())).Str("event", in.Event).Msg("system event rejected")
			o.replyError(p, domain.AsError(err).WithContext("event", in.Event))
		}
		return
	}

	room := p.Room()
	if room == nil {
		o.replyError(p, domain.ErrNotInRoom.WithContext("event", in.Event))
		return
	}
	room.HandleMessage(p, in.Event, in.Data)
}

// bind decodes the event data into v and validates it.
func (o *Orchestrator) bind(in domain.Inbound, v any) error {
	if err := codec.DecodeData(in, v); err != nil {
		return err
	}
	if err := o.validate.Struct(v); err != nil {
		e := domain.Wrap(domain.CodeBadPayload, "invalid data for "+in.Event, err)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return e.WithContext("field", verrs[0].Field()).WithContext("rule", verrs[0].Tag())
		}
		return e
	}
	return nil
}

func (o *Orchestrator) reply(p *core.Player, event string, data any) {
	frame, err := codec.Encode(event, data, o.Now())
	if err != nil {
		o.log.Error().Err(err).Str("event", event).Msg("reply encode")
		return
	}
	o.send(p, frame)
}

func (o *Orchestrator) replyError(p *core.Player, err error) {
	frame, encErr := codec.EncodeError(err, o.Now())
	if encErr != nil {
		o.log.Error().Err(encErr).Msg("error encode")
		return
	}
	o.send(p, frame)
}

func (o *Orchestrator) send(p *core.Player, frame []byte) {
	if p.Send(frame) {
		return
	}
	if o.Policy == nil {
		return
	}
	switch o.Policy.OnBackPressure(p) {
	case app.KickMember:
		o.log.Warn().Str("player_id", string(p.ID())).Msg("reply not delivered, closing connection")
		o.Registry.Cancel(p.ID())
	case app.NoAction:
	}
}
