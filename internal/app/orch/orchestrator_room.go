package orch

import (
	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/domain"
)

type joinedData struct {
	Room    domain.RoomInfo `json:"room"`
	Members []domain.Member `json:"members"`
}

func joined(room *core.Room) joinedData {
	return joinedData{Room: room.Info(), Members: room.Members()}
}

// MaxClientPlayers caps max_players in a client-supplied room config.
const MaxClientPlayers = 64

// roomOverrides is the part of a room config a client may choose.
// Auto-start stays with the class.
type roomOverrides struct {
	MaxPlayers int            `json:"max_players" validate:"omitempty,gte=1,lte=64"`
	MinPlayers int            `json:"min_players" validate:"omitempty,gte=1,lte=64"`
	Custom     map[string]any `json:"custom,omitempty"`
}

func (o *roomOverrides) config() *domain.RoomConfig {
	if o == nil {
		return nil
	}
	return &domain.RoomConfig{MaxPlayers: o.MaxPlayers, MinPlayers: o.MinPlayers, Custom: o.Custom}
}

type matchPayload struct {
	Class  domain.RoomClass `json:"class" validate:"required,max=64"`
	Config *roomOverrides   `json:"config,omitempty"`
}

func (o *Orchestrator) handleCreateRoom(p *core.Player, in domain.Inbound) error {
	var req matchPayload
	if err := o.bind(in, &req); err != nil {
		return err
	}
	if p.Room() != nil {
		return domain.ErrAlreadyInRoom.WithContext("player_id", string(p.ID()))
	}
	room, err := o.Rooms.CreateRoom(req.Class, req.Config.config())
	if err != nil {
		return err
	}
	if err := room.AddPlayer(p); err != nil {
		return err
	}
	o.log.Info().Str("player_id", string(p.ID())).Str("room_id", string(room.ID())).Str("class", string(req.Class)).Msg("room created by player")
	o.reply(p, domain.EventJoined, joined(room))
	return nil
}

func (o *Orchestrator) handleJoinRoom(p *core.Player, in domain.Inbound) error {
	var req struct {
		RoomID domain.RoomID `json:"room_id" validate:"required,max=64"`
	}
	if err := o.bind(in, &req); err != nil {
		return err
	}
	room, err := o.Rooms.JoinRoom(p, req.RoomID)
	if err != nil {
		return err
	}
	o.reply(p, domain.EventJoined, joined(room))
	return nil
}

func (o *Orchestrator) handleLeaveRoom(p *core.Player, _ domain.Inbound) error {
	room, err := o.Rooms.LeaveRoom(p)
	if err != nil {
		return err
	}
	o.reply(p, domain.EventLeft, map[string]domain.RoomID{"room_id": room.ID()})
	return nil
}

func (o *Orchestrator) handleQuickMatch(p *core.Player, in domain.Inbound) error {
	var req matchPayload
	if err := o.bind(in, &req); err != nil {
		return err
	}
	room, err := o.Matcher.QuickMatch(p, req.Class, req.Config.config())
	if err != nil {
		return err
	}
	o.reply(p, domain.EventJoined, joined(room))
	return nil
}

func (o *Orchestrator) handleListRooms(p *core.Player, in domain.Inbound) error {
	var req struct {
		Class  domain.RoomClass `json:"class" validate:"max=64"`
		Status string           `json:"status" validate:"omitempty,oneof=waiting running finished"`
	}
	if err := o.bind(in, &req); err != nil {
		return err
	}
	var status *domain.Status
	if req.Status != "" {
		s, _ := domain.ParseStatus(req.Status)
		status = &s
	}
	o.reply(p, domain.EventRooms, map[string][]domain.RoomInfo{"rooms": o.Rooms.List(req.Class, status)})
	return nil
}

func (o *Orchestrator) handleGetStats(p *core.Player, _ domain.Inbound) error {
	o.reply(p, domain.EventStats, o.Rooms.Stats())
	return nil
}
