package domain

import (
	"time"

	"github.com/google/uuid"
)

type (
	RoomID    string
	RoomClass string
)

// NewRoomID returns a fresh random room identity.
func NewRoomID() RoomID {
	return RoomID(uuid.NewString())
}

// Status is a room lifecycle state. Waiting is the initial state and Finished is terminal.
type Status int

const (
	StatusWaiting Status = iota
	StatusRunning
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	}
	return "unknown"
}

// ParseStatus maps a wire name back to a Status.
func ParseStatus(s string) (Status, bool) {
	switch s {
	case "waiting":
		return StatusWaiting, true
	case "running":
		return StatusRunning, true
	case "finished":
		return StatusFinished, true
	}
	return 0, false
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	st, ok := ParseStatus(string(b))
	if !ok {
		return New(CodeBadPayload, "unknown status").WithContext("status", string(b))
	}
	*s = st
	return nil
}

// CanTransition reports whether from -> to is a legal forward move.
// Waiting -> Finished is only taken by teardown of a room that never started.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusWaiting:
		return to == StatusRunning || to == StatusFinished
	case StatusRunning:
		return to == StatusFinished
	}
	return false
}

// RoomConfig is the per-room configuration surface.
type RoomConfig struct {
	MaxPlayers int            `json:"max_players" mapstructure:"max_players" validate:"gte=1"`
	MinPlayers int            `json:"min_players" mapstructure:"min_players" validate:"gte=1,ltefield=MaxPlayers"`
	AutoStart  bool           `json:"auto_start" mapstructure:"auto_start"`
	Custom     map[string]any `json:"custom,omitempty" mapstructure:"custom"`
}

// Validate checks the bounds without reflection so it can run on hot paths.
func (c RoomConfig) Validate() error {
	if c.MaxPlayers < 1 {
		return New(CodeInvalidConfig, "max_players must be at least 1").WithContext("max_players", c.MaxPlayers)
	}
	if c.MinPlayers < 1 || c.MinPlayers > c.MaxPlayers {
		return New(CodeInvalidConfig, "min_players must be within [1, max_players]").
			WithContext("min_players", c.MinPlayers).
			WithContext("max_players", c.MaxPlayers)
	}
	return nil
}

// Merge overlays the non-zero fields of o onto c. An override can switch
// AutoStart on but never off: a false field is indistinguishable from unset.
func (c RoomConfig) Merge(o *RoomConfig) RoomConfig {
	if o == nil {
		return c
	}
	out := c
	if o.MaxPlayers != 0 {
		out.MaxPlayers = o.MaxPlayers
	}
	if o.MinPlayers != 0 {
		out.MinPlayers = o.MinPlayers
	}
	out.AutoStart = out.AutoStart || o.AutoStart
	if len(o.Custom) > 0 {
		out.Custom = make(map[string]any, len(c.Custom)+len(o.Custom))
		for k, v := range c.Custom {
			out.Custom[k] = v
		}
		for k, v := range o.Custom {
			out.Custom[k] = v
		}
	}
	return out
}

// RoomInfo is a read-only view for listings.
type RoomInfo struct {
	ID         RoomID    `json:"id"`
	Class      RoomClass `json:"class"`
	Status     Status    `json:"status"`
	Players    int       `json:"players"`
	MaxPlayers int       `json:"max_players"`
	MinPlayers int       `json:"min_players"`
	CreatedAt  time.Time `json:"created_at"`
}
