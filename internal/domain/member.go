package domain

// Member is the public representation of a player inside a room.
// No transport or lifecycle logic here.
type Member struct {
	ID    PlayerID `json:"id"`
	Name  string   `json:"name"`
	Ready bool     `json:"ready"`
}
