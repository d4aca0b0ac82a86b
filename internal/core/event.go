package core

// EventKind is a notification the store emits to its watchers.
type EventKind int

const (
	// EventRoomUpdated reports a new member list for a room.
	EventRoomUpdated EventKind = iota
	// EventErrorQueued reports a membership error added to the queue.
	EventErrorQueued
	// EventNotice reports the "just joined" display value.
	EventNotice
	// EventCleared reports that the decay tick emptied the error queue and notice.
	EventCleared
	// EventLogin reports the identity adopted as current user.
	EventLogin
)

func (k EventKind) String() string {
	switch k {
	case EventRoomUpdated:
		return "room_updated"
	case EventErrorQueued:
		return "error_queued"
	case EventNotice:
		return "notice"
	case EventCleared:
		return "cleared"
	case EventLogin:
		return "login"
	default:
		return "unknown"
	}
}

// Origin tells whether a change came from a local action or a server snapshot.
type Origin int

const (
	OriginLocal Origin = iota
	OriginRemote
)

// Event describes a store change. Room and User are copies owned by the receiver.
type Event struct {
	Kind   EventKind
	Origin Origin
	Room   Room
	Error  *MembershipError
	Notice string
	User   User
}
