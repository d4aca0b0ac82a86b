package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/vovakirdan/sushistage/internal/core"
)

// Cache exposes one slot of an IdentityStore as the store's identity cache.
type Cache struct {
	st   IdentityStore
	slot string
}

// NewCache binds slot of st. An empty slot selects DefaultSlot.
func NewCache(st IdentityStore, slot string) *Cache {
	if slot == "" {
		slot = DefaultSlot
	}
	return &Cache{st: st, slot: slot}
}

// Load returns the cached user or core.ErrNoIdentity.
func (c *Cache) Load(ctx context.Context) (core.User, error) {
	id, err := c.st.GetIdentity(ctx, c.slot)
	if errors.Is(err, ErrNotFound) {
		return core.User{}, core.ErrNoIdentity
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get identity: %w", err)
	}
	return core.User{ID: id.UserID, Name: id.Name}, nil
}

// Save writes the user into the slot.
func (c *Cache) Save(ctx context.Context, u core.User) error {
	return c.st.PutIdentity(ctx, &Identity{Slot: c.slot, UserID: u.ID, Name: u.Name})
}

// Forget clears the slot so the next login caches a new identity.
func (c *Cache) Forget(ctx context.Context) error {
	return c.st.DeleteIdentity(ctx, c.slot)
}
