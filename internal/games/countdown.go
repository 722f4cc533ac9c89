package games

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/domain"
)

const (
	EventRoundStart  = "round:start"
	EventRoundGo     = "round:go"
	EventRoundWinner = "round:winner"
	EventRoundEnd    = "round:end"
	EventEarly       = "press:early"
	EventGameOver    = "game:over"
	EventPress       = "press"

	bestScoreTTL = 30 * 24 * time.Hour
)

type roundInfo struct {
	Round  int `json:"round"`
	Rounds int `json:"rounds"`
}

type roundWinner struct {
	Round  int             `json:"round"`
	Player domain.PlayerID `json:"player"`
	Name   string          `json:"name"`
}

type roundEnd struct {
	Round  int                     `json:"round"`
	Scores map[domain.PlayerID]int `json:"scores"`
}

type gameOver struct {
	Scores map[domain.PlayerID]int `json:"scores"`
	Winner domain.PlayerID         `json:"winner,omitempty"`
	Best   int                     `json:"best"`
}

// Countdown is a reaction game: each round a go signal fires after a random
// delay and the first player to press after it scores. Pressing early costs
// a point. Best winning scores are kept in the room store per player name.
type Countdown struct {
	core.BaseBehavior

	rounds    int
	roundTime time.Duration
	minGo     time.Duration
	maxGo     time.Duration

	mu     sync.Mutex
	round  int
	armed  bool
	scores map[domain.PlayerID]int
}

func NewCountdown(cfg domain.RoomConfig) core.RoomBehavior {
	c := &Countdown{
		rounds:    max(1, customInt(cfg, "rounds", 3)),
		roundTime: time.Duration(customInt(cfg, "round_ms", 5000)) * time.Millisecond,
		minGo:     time.Duration(customInt(cfg, "min_go_ms", 1000)) * time.Millisecond,
		maxGo:     time.Duration(customInt(cfg, "max_go_ms", 3000)) * time.Millisecond,
		scores:    make(map[domain.PlayerID]int),
	}
	if c.maxGo < c.minGo {
		c.maxGo = c.minGo
	}
	if c.roundTime <= c.maxGo {
		c.roundTime = c.maxGo + time.Second
	}
	return c
}

func (c *Countdown) goDelay() time.Duration {
	if c.maxGo == c.minGo {
		return c.minGo
	}
	return c.minGo + rand.N(c.maxGo-c.minGo)
}

func (c *Countdown) OnStart(_ context.Context, r *core.Room) error {
	c.mu.Lock()
	for _, p := range r.Players() {
		c.scores[p.ID()] = 0
	}
	c.mu.Unlock()
	return nil
}

func (c *Countdown) Run(ctx context.Context, r *core.Room) error {
	for round := 1; round <= c.rounds; round++ {
		if r.PlayerCount() == 0 {
			r.Logger().Info().Int("round", round).Msg("everyone left, ending game")
			return nil
		}
		c.mu.Lock()
		c.round = round
		c.armed = false
		c.mu.Unlock()

		r.Broadcast(EventRoundStart, roundInfo{Round: round, Rounds: c.rounds})
		r.AddTimer(c.goDelay(), func() {
			c.mu.Lock()
			c.armed = c.round == round
			c.mu.Unlock()
			r.Broadcast(EventRoundGo, roundInfo{Round: round, Rounds: c.rounds})
		}, false)

		if err := r.Sleep(ctx, c.roundTime); err != nil {
			return err
		}

		c.mu.Lock()
		c.armed = false
		scores := c.snapshotLocked()
		c.mu.Unlock()
		r.Broadcast(EventRoundEnd, roundEnd{Round: round, Scores: scores})
	}

	c.mu.Lock()
	scores := c.snapshotLocked()
	c.mu.Unlock()
	over := gameOver{Scores: scores, Winner: leader(scores)}
	if over.Winner != "" {
		if p, ok := r.Player(over.Winner); ok {
			over.Best = c.recordBest(ctx, r, p.Name(), scores[over.Winner])
		}
	}
	r.Broadcast(EventGameOver, over)
	return nil
}

func (c *Countdown) snapshotLocked() map[domain.PlayerID]int {
	out := make(map[domain.PlayerID]int, len(c.scores))
	for k, v := range c.scores {
		out[k] = v
	}
	return out
}

// leader returns the single top scorer, or "" on a tie or no positive score.
func leader(scores map[domain.PlayerID]int) domain.PlayerID {
	var best domain.PlayerID
	top, tie := 0, false
	for id, s := range scores {
		switch {
		case s > top:
			best, top, tie = id, s, false
		case s == top && s > 0:
			tie = true
		}
	}
	if tie {
		return ""
	}
	return best
}

// recordBest keeps the highest winning score for name; store errors are logged only.
func (c *Countdown) recordBest(ctx context.Context, r *core.Room, name string, score int) int {
	st := r.Store()
	if st == nil {
		return score
	}
	key := "countdown:best:" + name
	best := score
	if v, ok, err := st.Get(ctx, key); err != nil {
		r.Logger().Warn().Err(err).Str("key", key).Msg("best score read")
		return score
	} else if ok {
		if prev, err := strconv.Atoi(v); err == nil && prev > best {
			best = prev
		}
	}
	if best == score {
		if err := st.Set(ctx, key, strconv.Itoa(score), bestScoreTTL); err != nil {
			r.Logger().Warn().Err(err).Str("key", key).Msg("best score write")
		}
	}
	return best
}

func (c *Countdown) OnPlayerJoin(r *core.Room, p *core.Player) {
	c.mu.Lock()
	if _, ok := c.scores[p.ID()]; !ok {
		c.scores[p.ID()] = 0
	}
	c.mu.Unlock()
}

func (c *Countdown) OnPlayerMessage(_ context.Context, r *core.Room, p *core.Player, event string, _ json.RawMessage) error {
	if event != EventPress {
		return domain.ErrUnknownEvent
	}
	if r.Status() != domain.StatusRunning {
		return domain.New(domain.CodeNotReady, "game has not started").WithContext("status", r.Status().String())
	}

	c.mu.Lock()
	round := c.round
	if !c.armed {
		c.scores[p.ID()]--
		c.mu.Unlock()
		r.SendTo(p, EventEarly, roundInfo{Round: round, Rounds: c.rounds})
		return nil
	}
	c.armed = false
	c.scores[p.ID()]++
	c.mu.Unlock()

	r.Broadcast(EventRoundWinner, roundWinner{Round: round, Player: p.ID(), Name: p.Name()})
	return nil
}
