package core

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/Arena/internal/codec"
	"github.com/dkeye/Arena/internal/domain"
)

func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.players.Count()
}

func (r *Room) Player(id domain.PlayerID) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.players.Get(id)
}

// Players returns the roster in join order.
func (r *Room) Players() []*Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.players.Snapshot()
}

func (r *Room) Members() []domain.Member {
	ps := r.Players()
	out := make([]domain.Member, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Public())
	}
	return out
}

// AddPlayer joins p to the roster. Checks run in order: room gone,
// player already placed, roster full, room running.
func (r *Room) AddPlayer(p *Player) error {
	r.mu.Lock()
	status := r.lifecycle.Status()
	if r.destroyed || status == domain.StatusFinished {
		r.mu.Unlock()
		return domain.ErrRoomNotFound.WithContext("room_id", string(r.id))
	}
	if r.players.Has(p.ID()) || p.Room() != nil {
		r.mu.Unlock()
		return domain.ErrAlreadyInRoom.WithContext("player_id", string(p.ID()))
	}
	if r.players.Full() {
		r.mu.Unlock()
		return domain.ErrRoomFull.WithContext("max_players", r.cfg.MaxPlayers)
	}
	if status == domain.StatusRunning {
		r.mu.Unlock()
		return domain.ErrAlreadyStarted.WithContext("room_id", string(r.id))
	}
	if !p.claim(r) {
		r.mu.Unlock()
		return domain.ErrAlreadyInRoom.WithContext("player_id", string(p.ID()))
	}
	r.players.Add(p)
	if r.emptyTimer != 0 {
		r.timers.CancelTimer(r.emptyTimer)
		r.emptyTimer = 0
	}
	r.deps.Directory.BindPlayer(p.ID(), r.id)
	autoStart := r.cfg.AutoStart && r.canStartLocked()
	count := r.players.Count()
	r.mu.Unlock()

	r.log.Info().Str("player_id", string(p.ID())).Int("players", count).Msg("player joined")
	r.guard("on_player_join", func() { r.behavior.OnPlayerJoin(r, p) })
	r.Broadcast(domain.EventPlayerJoin, p.Public())
	r.deps.Bus.Publish(domain.TopicPlayerJoined, domain.PlayerEvent{RoomID: r.id, PlayerID: p.ID(), Name: p.Name()})

	if autoStart {
		go func() {
			if err := r.Start(); err != nil {
				r.log.Debug().Err(err).Msg("auto start skipped")
			}
		}()
	}
	return nil
}

// RemovePlayer drops id from the roster; false if it was not there.
func (r *Room) RemovePlayer(id domain.PlayerID) bool {
	r.mu.Lock()
	p, ok := r.players.Remove(id)
	if !ok {
		r.mu.Unlock()
		return false
	}
	p.release(r)
	r.deps.Directory.UnbindPlayer(id, r.id)
	count := r.players.Count()
	if count == 0 && !r.destroyed {
		if r.lifecycle.Status() == domain.StatusRunning {
			r.abandonLocked()
		} else {
			r.armEmptyGraceLocked()
		}
	}
	r.mu.Unlock()

	r.log.Info().Str("player_id", string(id)).Int("players", count).Msg("player left")
	r.guard("on_player_leave", func() { r.behavior.OnPlayerLeave(r, p) })
	r.Broadcast(domain.EventPlayerLeave, p.Public())
	r.deps.Bus.Publish(domain.TopicPlayerLeft, domain.PlayerEvent{RoomID: r.id, PlayerID: id, Name: p.Name()})
	return true
}

func (r *Room) abandonLocked() {
	if r.deserted {
		return
	}
	r.deserted = true
	close(r.abandoned)
	r.log.Info().Msg("running room abandoned")
}

// Broadcast sends one event to the whole roster.
func (r *Room) Broadcast(event string, data any) PublishResult {
	return r.BroadcastExcept(event, data, "")
}

// BroadcastExcept encodes the envelope once and fans the same frame out to
// every member but except. Members whose send fails are pruned after the pass.
func (r *Room) BroadcastExcept(event string, data any, except domain.PlayerID) PublishResult {
	frame, err := codec.Encode(event, data, r.deps.Now())
	if err != nil {
		r.log.Error().Err(err).Str("event", event).Msg("broadcast encode")
		return PublishResult{}
	}

	res := PublishResult{}
	for _, p := range r.Players() {
		if p.ID() == except {
			continue
		}
		if !p.Send(frame) {
			res.Dropped = append(res.Dropped, p.ID())
			continue
		}
		res.SentTo++
	}
	r.log.Debug().Str("event", event).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")

	for _, id := range res.Dropped {
		r.log.Warn().Str("player_id", string(id)).Msg("send failed, pruning player")
		r.RemovePlayer(id)
	}
	return res
}

// SendTo delivers one event to a single player; a failed send prunes the player
// if it is a member.
func (r *Room) SendTo(p *Player, event string, data any) bool {
	frame, err := codec.Encode(event, data, r.deps.Now())
	if err != nil {
		r.log.Error().Err(err).Str("event", event).Msg("send encode")
		return false
	}
	if p.Send(frame) {
		return true
	}
	r.RemovePlayer(p.ID())
	return false
}

// HandleMessage dispatches a gameplay event to the behavior on its own goroutine.
func (r *Room) HandleMessage(p *Player, event string, data json.RawMessage) {
	go r.dispatch(p, event, data)
}

func (r *Room) dispatch(p *Player, event string, data json.RawMessage) {
	r.mu.Lock()
	live := !r.destroyed && r.lifecycle.Status() != domain.StatusFinished && r.players.Has(p.ID())
	r.mu.Unlock()
	if !live {
		r.log.Debug().Str("player_id", string(p.ID())).Str("event", event).Msg("message for inactive room dropped")
		return
	}

	err := r.invoke("on_player_message", func() error {
		return r.behavior.OnPlayerMessage(r.ctx, r, p, event, data)
	})
	if err == nil {
		return
	}
	if IsClientError(err) {
		var e *domain.Error
		errors.As(err, &e)
		frame, encErr := codec.EncodeError(e.WithContext("event", event), r.deps.Now())
		if encErr == nil {
			p.Send(frame)
		}
		return
	}
	if r.ctx.Err() != nil {
		return
	}
	r.fail(err)
}
