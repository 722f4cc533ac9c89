package domain

// Event bus topics.
const (
	TopicRoomCreated   = "room.created"
	TopicRoomStarted   = "room.started"
	TopicRoomFinished  = "room.finished"
	TopicRoomDestroyed = "room.destroyed"
	TopicRoomError     = "room.error"
	TopicPlayerJoined  = "player.joined"
	TopicPlayerLeft    = "player.left"
)

// RoomEvent is the payload of room.* topics.
type RoomEvent struct {
	RoomID  RoomID    `json:"room_id"`
	Class   RoomClass `json:"class"`
	Status  Status    `json:"status"`
	Players int       `json:"players"`
	Error   string    `json:"error,omitempty"`
}

// PlayerEvent is the payload of player.* topics.
type PlayerEvent struct {
	RoomID   RoomID   `json:"room_id"`
	PlayerID PlayerID `json:"player_id"`
	Name     string   `json:"name"`
}
