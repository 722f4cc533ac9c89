package orch

import (
	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/domain"
)

func (o *Orchestrator) handleSetName(p *core.Player, in domain.Inbound) error {
	var req struct {
		Name string `json:"name" validate:"required"`
	}
	if err := o.bind(in, &req); err != nil {
		return err
	}
	if err := p.SetName(req.Name); err != nil {
		return err
	}
	o.log.Info().Str("player_id", string(p.ID())).Str("name", p.Name()).Msg("rename")
	member := p.Public()
	o.reply(p, domain.EventRenamed, member)
	if room := p.Room(); room != nil {
		room.BroadcastExcept(domain.EventRenamed, member, p.ID())
	}
	return nil
}

func (o *Orchestrator) handleSetReady(p *core.Player, in domain.Inbound) error {
	var req struct {
		Ready bool `json:"ready"`
	}
	if err := o.bind(in, &req); err != nil {
		return err
	}
	p.SetReady(req.Ready)
	if room := p.Room(); room != nil {
		room.Broadcast(domain.EventReady, p.Public())
		return nil
	}
	o.reply(p, domain.EventReady, p.Public())
	return nil
}

func (o *Orchestrator) handlePing(p *core.Player, _ domain.Inbound) error {
	o.reply(p, domain.EventPong, nil)
	return nil
}

type whoAmIData struct {
	domain.Member
	RoomID domain.RoomID    `json:"room_id,omitempty"`
	Class  domain.RoomClass `json:"class,omitempty"`
}

func (o *Orchestrator) handleWhoAmI(p *core.Player, _ domain.Inbound) error {
	resp := whoAmIData{Member: p.Public()}
	if room := p.Room(); room != nil {
		resp.RoomID = room.ID()
		resp.Class = room.Class()
	}
	o.reply(p, domain.EventIdentity, resp)
	return nil
}
