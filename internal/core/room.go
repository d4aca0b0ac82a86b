package core

import "slices"

// Room is a named channel with a static owner and a dynamic member list.
type Room struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	OwnerUserID string `json:"userId"`
	Members     []User `json:"users"`
}

// DefaultRooms returns the catalog used when configuration lists no rooms.
func DefaultRooms() []Room {
	return []Room{
		{ID: "1a2", Name: "master", OwnerUserID: "userMaster", Members: []User{}},
		{ID: "2ds", Name: "room01", OwnerUserID: "user01", Members: []User{}},
	}
}

// Clone returns a copy that shares no member storage with the receiver.
func (r Room) Clone() Room {
	r.Members = cloneMembers(r.Members)
	return r
}

func cloneMembers(members []User) []User {
	if members == nil {
		return []User{}
	}
	return slices.Clone(members)
}
