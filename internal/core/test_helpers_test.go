package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func mustEvent(t *testing.T, ch <-chan Event, kind EventKind) Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("watch channel closed before %v", kind)
			}
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event kind %v not received", kind)
			return Event{}
		}
	}
}

func memberNames(r Room) []string {
	names := make([]string, 0, len(r.Members))
	for _, m := range r.Members {
		names = append(names, m.Name)
	}
	return names
}

func mustRoom(t *testing.T, s *Store, id string) Room {
	t.Helper()
	r, ok := s.Room(id)
	if !ok {
		t.Fatalf("room %q not found", id)
	}
	return r
}

func loggedInStore(t *testing.T, name string, opts Options) *Store {
	t.Helper()
	s := NewStore(DefaultRooms(), opts)
	if _, err := s.Login(context.Background(), User{ID: name + "-id", Name: name}); err != nil {
		t.Fatalf("login: %v", err)
	}
	return s
}

type notifyCall struct {
	op   string
	room Room
	user User
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	err   error
}

func (n *recordingNotifier) NotifyJoin(_ context.Context, room Room, user User) error {
	return n.record("join", room, user)
}

func (n *recordingNotifier) NotifyLeave(_ context.Context, room Room, user User) error {
	return n.record("leave", room, user)
}

func (n *recordingNotifier) record(op string, room Room, user User) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{op: op, room: room, user: user})
	return n.err
}

func (n *recordingNotifier) snapshot() []notifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifyCall(nil), n.calls...)
}

type memoryIdentity struct {
	user  *User
	saves int
}

func (m *memoryIdentity) Load(context.Context) (User, error) {
	if m.user == nil {
		return User{}, ErrNoIdentity
	}
	return *m.user, nil
}

func (m *memoryIdentity) Save(_ context.Context, u User) error {
	m.saves++
	m.user = &u
	return nil
}

type brokenIdentity struct{}

func (brokenIdentity) Load(context.Context) (User, error) { return User{}, errors.New("disk on fire") }
func (brokenIdentity) Save(context.Context, User) error   { return errors.New("disk on fire") }
