package core

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// UniqueBy selects the key that de-duplicates members inside a room.
type UniqueBy string

const (
	// UniqueByName treats two users with the same display name as the same member.
	UniqueByName UniqueBy = "name"
	// UniqueByID treats users as distinct unless their generated ids match.
	UniqueByID UniqueBy = "id"
)

// ParseUniqueBy maps a config value to a policy. Empty selects UniqueByName.
func ParseUniqueBy(s string) (UniqueBy, error) {
	switch UniqueBy(strings.ToLower(strings.TrimSpace(s))) {
	case "", UniqueByName:
		return UniqueByName, nil
	case UniqueByID:
		return UniqueByID, nil
	default:
		return "", fmt.Errorf("unknown uniqueness policy %q", s)
	}
}

func (p UniqueBy) key(u User) string {
	if p == UniqueByID {
		return u.ID
	}
	return u.Name
}

func (p UniqueBy) contains(members []User, u User) bool {
	k := p.key(u)
	return lo.ContainsBy(members, func(m User) bool { return p.key(m) == k })
}

// without returns a new slice holding every member except those matching u.
func (p UniqueBy) without(members []User, u User) []User {
	k := p.key(u)
	return lo.Reject(members, func(m User, _ int) bool { return p.key(m) == k })
}
