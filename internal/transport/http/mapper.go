package http

import (
	"github.com/samber/lo"

	"github.com/vovakirdan/sushistage/internal/core"
)

func userResponse(u core.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name}
}

func roomResponse(r core.Room, joined bool) RoomResponse {
	return RoomResponse{
		ID:      r.ID,
		Name:    r.Name,
		OwnerID: r.OwnerUserID,
		Members: lo.Map(r.Members, func(u core.User, _ int) UserResponse { return userResponse(u) }),
		Joined:  joined,
	}
}

func errorsResponse(errs []core.MembershipError) []MembershipErrorResponse {
	return lo.Map(errs, func(e core.MembershipError, _ int) MembershipErrorResponse {
		return MembershipErrorResponse{ID: e.ID, Kind: e.Kind, Code: e.Code, Message: e.Message}
	})
}
