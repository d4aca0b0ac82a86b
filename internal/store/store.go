package store

import (
	"context"
	"errors"
	"time"
)

// DefaultSlot is the storage slot holding the local user identity.
const DefaultSlot = "user"

// ErrNotFound is returned when a slot holds no identity.
var ErrNotFound = errors.New("identity not found")

// Identity is the persisted form of the local user.
type Identity struct {
	Slot      string
	UserID    string
	Name      string
	CreatedAt time.Time
}

// IdentityStore handles identity persistence.
type IdentityStore interface {
	// GetIdentity retrieves the identity stored in slot.
	GetIdentity(ctx context.Context, slot string) (*Identity, error)

	// PutIdentity stores the identity in its slot, replacing any previous record.
	PutIdentity(ctx context.Context, id *Identity) error

	// DeleteIdentity clears a slot.
	DeleteIdentity(ctx context.Context, slot string) error

	// Close closes the underlying database connection.
	Close() error
}
