package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeRoomNotFound  = "room_not_found"
	ErrCodeAlreadyJoined = "already_joined"
	ErrCodeNotInRoom     = "not_in_room"
	ErrCodeNoIdentity    = "no_identity"
	ErrCodeBadRequest    = "bad_request"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrAlreadyJoined   = errors.New("already joined")
	ErrNotInRoom       = errors.New("not in room")
	ErrNoIdentity      = errors.New("no identity")
	ErrInvalidUsername = errors.New("invalid username")
)

// Notice texts queued for the user.
const (
	msgAlreadyInRoom = "already in room"
	msgNotInRoom     = "not in room"
	msgRoomNotFound  = "room not found"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
	err     error
}

func (e *CoreError) Error() string {
	return e.Message
}

// Unwrap exposes the sentinel so callers can use errors.Is.
func (e *CoreError) Unwrap() error {
	return e.err
}

func coreError(code, msg string, sentinel error) *CoreError {
	return &CoreError{Code: code, Message: msg, err: sentinel}
}

// ErrorCode extracts the domain code from err, or "" when err is not a CoreError.
func ErrorCode(err error) string {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// ErrorKindClient marks a client-local validation failure.
const ErrorKindClient = "client"

// MembershipError is a transient, non-fatal notice shown to the user until the next clear tick.
type MembershipError struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
