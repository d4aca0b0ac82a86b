package proto

import "encoding/json"

// Frame is the envelope for every websocket text message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

const (
	// Client to server.
	EventJoinRoom  = "join-room"
	EventLeaveRoom = "leave-room"

	// Server to client.
	EventRoomJoined = "joinRoom"
	EventRoomLeft   = "leaveRoom"
)

// User is the wire form of a member.
type User struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Room is the wire form of a room sent with outbound events.
type Room struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	UserID string `json:"userId,omitempty"`
	Users  []User `json:"users"`
}

// MembershipData is the payload of join-room and leave-room.
type MembershipData struct {
	Room Room `json:"room"`
	User User `json:"user"`
}

// RoomSnapshot carries the server's authoritative member list.
type RoomSnapshot struct {
	ID    string `json:"id"`
	Users []User `json:"users"`
}

// SnapshotData is the payload of joinRoom and leaveRoom.
type SnapshotData struct {
	Room RoomSnapshot `json:"room"`
	User User         `json:"user"`
}

// NewFrame marshals data into an envelope for event.
func NewFrame(event string, data any) (Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Data: raw}, nil
}
