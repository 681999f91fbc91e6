package domain

type RoomID string

// Room carries the durable side of a room: who may join.
// The set of currently connected sessions is server-local and lives
// in the runtime registry, never here.
type Room struct {
	ID      RoomID
	Name    string
	IsGroup bool
	Members []string
}

// HasMember reports whether a user is allowed to join the room.
func (r Room) HasMember(userID string) bool {
	for _, m := range r.Members {
		if m == userID {
			return true
		}
	}
	return false
}
