package domain

import "encoding/json"

// Outbound runtime events.
const (
	EventPlayerJoin    = "player:join"
	EventPlayerLeave   = "player:leave"
	EventStatusChanged = "room:status_changed"
	EventRoomError     = "room:error"
	EventRoomDestroyed = "room:destroyed"
	EventError         = "error"
)

// Inbound system events handled outside rooms.
const (
	EventSetName    = "set_name"
	EventCreateRoom = "create_room"
	EventJoinRoom   = "join_room"
	EventLeaveRoom  = "leave_room"
	EventQuickMatch = "quick_match"
	EventListRooms  = "list_rooms"
	EventGetStats   = "get_stats"
	EventSetReady   = "set_ready"
	EventPing       = "ping"
	EventWhoAmI     = "whoami"
)

// Replies to system events.
const (
	EventRenamed  = "player:renamed"
	EventReady    = "player:ready"
	EventJoined   = "room:joined"
	EventLeft     = "room:left"
	EventRooms    = "rooms"
	EventStats    = "stats"
	EventPong     = "pong"
	EventIdentity = "whoami"
)

// Envelope is the wire frame sent to clients. Timestamp is unix seconds with fraction.
type Envelope struct {
	Event     string  `json:"event"`
	Data      any     `json:"data"`
	Timestamp float64 `json:"timestamp"`
}

// Inbound is a raw client frame before routing.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}
