package session

import (
	"github.com/samber/lo"

	"github.com/vovakirdan/sushistage/internal/core"
	"github.com/vovakirdan/sushistage/internal/proto"
)

func userToProto(u core.User) proto.User {
	return proto.User{ID: u.ID, Name: u.Name}
}

func userFromProto(u proto.User) core.User {
	return core.User{ID: u.ID, Name: u.Name}
}

func membershipData(room core.Room, user core.User) proto.MembershipData {
	return proto.MembershipData{
		Room: proto.Room{
			ID:     room.ID,
			Name:   room.Name,
			UserID: room.OwnerUserID,
			Users:  lo.Map(room.Members, func(u core.User, _ int) proto.User { return userToProto(u) }),
		},
		User: userToProto(user),
	}
}

func snapshotFromProto(data proto.SnapshotData, joined bool) core.Snapshot {
	return core.Snapshot{
		RoomID:  data.Room.ID,
		Members: lo.Map(data.Room.Users, func(u proto.User, _ int) core.User { return userFromProto(u) }),
		Actor:   data.User.Name,
		Joined:  joined,
	}
}
