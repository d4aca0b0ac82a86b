package core

import (
	"strings"
	"unicode/utf8"

	"github.com/vovakirdan/sushistage/internal/utils"
)

// MaxUsernameLen bounds the display name length in runes.
const MaxUsernameLen = 36

// User is a self-asserted identity participating in rooms.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewUser builds a user with a freshly generated id.
func NewUser(name string) (User, error) {
	name, err := normalizeName(name)
	if err != nil {
		return User{}, err
	}
	return User{ID: utils.NewID(), Name: name}, nil
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", coreError(ErrCodeBadRequest, "username is empty", ErrInvalidUsername)
	}
	if utf8.RuneCountInString(name) > MaxUsernameLen {
		return "", coreError(ErrCodeBadRequest, "username is too long", ErrInvalidUsername)
	}
	return name, nil
}
