package domain

// Player represents a player in a room. The record is replicated; by
// convention only the owning client writes it, and only the host removes it.
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// NewPlayer creates a new player with the given ID and display name
func NewPlayer(id, displayName string) Player {
	return Player{
		ID:          id,
		DisplayName: displayName,
	}
}
