package games

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/domain"
	gojson "github.com/goccy/go-json"
)

const (
	EventChatSay     = "chat:say"
	EventChatMessage = "chat:message"
	EventChatHistory = "chat:history"

	MaxChatText    = 500
	defaultHistory = 50
)

type ChatMessage struct {
	From domain.PlayerID `json:"from"`
	Name string          `json:"name"`
	Text string          `json:"text"`
}

// Chat relays messages to the whole room and replays recent history to joiners.
// A started chat ends when its last player leaves.
// It has no timed loop; the room lives until it empties.
type Chat struct {
	core.BaseBehavior

	mu      sync.Mutex
	history []ChatMessage
	limit   int
}

func NewChat(cfg domain.RoomConfig) core.RoomBehavior {
	return &Chat{limit: customInt(cfg, "history", defaultHistory)}
}

func (c *Chat) OnPlayerJoin(r *core.Room, p *core.Player) {
	c.mu.Lock()
	history := append([]ChatMessage(nil), c.history...)
	c.mu.Unlock()
	if len(history) > 0 {
		r.SendTo(p, EventChatHistory, history)
	}
}

func (c *Chat) OnPlayerMessage(_ context.Context, r *core.Room, p *core.Player, event string, data json.RawMessage) error {
	if event != EventChatSay {
		return domain.ErrUnknownEvent
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := gojson.Unmarshal(data, &req); err != nil {
		return domain.Wrap(domain.CodeBadPayload, "malformed chat message", err)
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return domain.New(domain.CodeBadPayload, "empty chat message")
	}
	if utf8.RuneCountInString(text) > MaxChatText {
		return domain.New(domain.CodeBadPayload, "chat message too long").WithContext("max", MaxChatText)
	}

	msg := ChatMessage{From: p.ID(), Name: p.Name(), Text: text}
	c.mu.Lock()
	c.history = append(c.history, msg)
	if over := len(c.history) - c.limit; over > 0 {
		c.history = c.history[over:]
	}
	c.mu.Unlock()

	r.Broadcast(EventChatMessage, msg)
	return nil
}
