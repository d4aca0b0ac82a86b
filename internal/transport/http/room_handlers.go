package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/sushistage/internal/core"
)

// RoomHandlers provides HTTP handlers for room membership endpoints.
type RoomHandlers struct {
	store *core.Store
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st *core.Store, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store: st,
		log:   logger,
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// UserResponse represents a room member.
type UserResponse struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	OwnerID string         `json:"owner_id,omitempty"`
	Members []UserResponse `json:"members"`
	Joined  bool           `json:"joined"`
}

// MembershipErrorResponse represents a queued membership error.
type MembershipErrorResponse struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StateResponse is the full client-side state.
type StateResponse struct {
	User   *UserResponse             `json:"user"`
	Rooms  []RoomResponse            `json:"rooms"`
	Errors []MembershipErrorResponse `json:"errors"`
	Notice string                    `json:"notice,omitempty"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Name string `json:"name" binding:"required,min=1,max=36"`
}

// ListRooms returns the room catalog with members.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.rooms())
}

// GetRoom returns a single room.
// GET /api/rooms/:id
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	id := c.Param("id")
	room, ok := h.store.Room(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found", Code: core.ErrCodeRoomNotFound})
		return
	}
	c.JSON(http.StatusOK, roomResponse(room, h.store.IsMember(id)))
}

// JoinRoom adds the current user to a room.
// POST /api/rooms/:id/join
func (h *RoomHandlers) JoinRoom(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.JoinRoom(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	h.log.Debug().Str("room_id", id).Msg("join via http")
	c.Status(http.StatusNoContent)
}

// LeaveRoom removes the current user from a room.
// POST /api/rooms/:id/leave
func (h *RoomHandlers) LeaveRoom(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.LeaveRoom(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	h.log.Debug().Str("room_id", id).Msg("leave via http")
	c.Status(http.StatusNoContent)
}

// State returns the user, rooms, queued errors and the join notice.
// GET /api/state
func (h *RoomHandlers) State(c *gin.Context) {
	resp := StateResponse{
		Rooms:  h.rooms(),
		Errors: errorsResponse(h.store.Errors()),
		Notice: h.store.Notice(),
	}
	if u, ok := h.store.CurrentUser(); ok {
		ur := userResponse(u)
		resp.User = &ur
	}
	c.JSON(http.StatusOK, resp)
}

// Login establishes the client identity. A cached identity wins over the requested name.
// POST /api/login
func (h *RoomHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
		return
	}

	user, err := h.store.Login(c.Request.Context(), core.User{Name: req.Name})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userResponse(user))
}

func (h *RoomHandlers) rooms() []RoomResponse {
	return lo.Map(h.store.Rooms(), func(r core.Room, _ int) RoomResponse {
		return roomResponse(r, h.store.IsMember(r.ID))
	})
}

func (h *RoomHandlers) writeError(c *gin.Context, err error) {
	var cerr *core.CoreError
	if !errors.As(err, &cerr) {
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	status := http.StatusBadRequest
	switch {
	case errors.Is(err, core.ErrAlreadyJoined), errors.Is(err, core.ErrNotInRoom):
		status = http.StatusConflict
	case errors.Is(err, core.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrNoIdentity):
		status = http.StatusUnauthorized
	}
	c.JSON(status, ErrorResponse{Error: cerr.Message, Code: cerr.Code})
}
