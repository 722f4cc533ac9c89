// Package games holds the room behaviors shipped with the server.
package games

import (
	"github.com/dkeye/Arena/internal/app"
	"github.com/dkeye/Arena/internal/domain"
)

const (
	ClassChat      domain.RoomClass = "chat"
	ClassCountdown domain.RoomClass = "countdown"
)

// Register adds every shipped class to m.
func Register(m *app.RoomManager) error {
	if err := m.RegisterClass(ClassChat, NewChat, &domain.RoomConfig{MaxPlayers: 32, MinPlayers: 1}); err != nil {
		return err
	}
	return m.RegisterClass(ClassCountdown, NewCountdown, &domain.RoomConfig{MaxPlayers: 8, MinPlayers: 2, AutoStart: true})
}

// customInt reads an integer from the free-form config bag; yaml and json
// decoders disagree on the numeric type.
func customInt(cfg domain.RoomConfig, key string, def int) int {
	switch v := cfg.Custom[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}
