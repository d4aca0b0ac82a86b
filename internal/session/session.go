// Package session connects the membership store to the real-time connection.
package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/sushistage/internal/core"
	"github.com/vovakirdan/sushistage/internal/proto"
	"github.com/vovakirdan/sushistage/internal/transport/ws"
)

// Conn is the part of the connection handle a session needs.
type Conn interface {
	On(event string, h ws.Handler) error
	Emit(event string, data any) error
}

// Session forwards local membership changes to the server and applies server snapshots.
// It subscribes once for the lifetime of the connection and always reaches the store
// through the same pointer.
type Session struct {
	store *core.Store
	conn  Conn
	log   *zerolog.Logger
}

// New registers inbound handlers on conn and installs the session as the store's notifier.
func New(st *core.Store, conn Conn, logger *zerolog.Logger) (*Session, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &Session{store: st, conn: conn, log: logger}

	if err := conn.On(proto.EventRoomJoined, s.handleRoomJoined); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", proto.EventRoomJoined, err)
	}
	if err := conn.On(proto.EventRoomLeft, s.handleRoomLeft); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", proto.EventRoomLeft, err)
	}

	st.SetNotifier(s)
	return s, nil
}

// NotifyJoin emits join-room.
func (s *Session) NotifyJoin(_ context.Context, room core.Room, user core.User) error {
	return s.conn.Emit(proto.EventJoinRoom, membershipData(room, user))
}

// NotifyLeave emits leave-room.
func (s *Session) NotifyLeave(_ context.Context, room core.Room, user core.User) error {
	return s.conn.Emit(proto.EventLeaveRoom, membershipData(room, user))
}

func (s *Session) handleRoomJoined(_ context.Context, data json.RawMessage) {
	s.apply(proto.EventRoomJoined, data, true)
}

func (s *Session) handleRoomLeft(_ context.Context, data json.RawMessage) {
	s.apply(proto.EventRoomLeft, data, false)
}

func (s *Session) apply(event string, data json.RawMessage, joined bool) {
	var payload proto.SnapshotData
	if err := json.Unmarshal(data, &payload); err != nil {
		s.log.Warn().Err(err).Str("event", event).Msg("bad snapshot payload")
		return
	}
	if payload.Room.ID == "" {
		s.log.Warn().Str("event", event).Msg("snapshot without room id")
		return
	}
	// Unknown rooms are logged by the store.
	_ = s.store.ApplySnapshot(snapshotFromProto(payload, joined))
}
