package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/sushistage/internal/utils"
)

// Notifier publishes local membership changes to the server. Delivery is fire-and-forget.
type Notifier interface {
	NotifyJoin(ctx context.Context, room Room, user User) error
	NotifyLeave(ctx context.Context, room Room, user User) error
}

// IdentityCache persists the single local identity record.
// Load returns ErrNoIdentity when nothing has been saved yet.
type IdentityCache interface {
	Load(ctx context.Context) (User, error)
	Save(ctx context.Context, user User) error
}

// Options tune store behavior. The zero value is a local-only store keyed by names.
type Options struct {
	UniqueBy           UniqueBy
	SurfaceUnknownRoom bool
	Notifier           Notifier
	Identity           IdentityCache
	Logger             *zerolog.Logger
}

// Snapshot is an authoritative member list for one room pushed by the server.
type Snapshot struct {
	RoomID  string
	Members []User
	// Actor is the user the server reports as the cause of the change.
	Actor string
	// Joined marks a join snapshot; only those set the notice.
	Joined bool
}

// Store owns the room catalog, the member lists, the error queue and the current user.
// Member lists are never mutated in place: every change installs a new slice.
type Store struct {
	mu       sync.RWMutex
	rooms    []Room
	index    map[string]int
	errors   []MembershipError
	notice   string
	user     *User
	notifier Notifier

	uniqueBy      UniqueBy
	surfaceMissed bool
	identity      IdentityCache
	log           *zerolog.Logger

	wmu      sync.Mutex
	watchers map[chan Event]struct{}
}

// NewStore seeds a store with the room catalog. Duplicate room ids keep the first entry.
func NewStore(seed []Room, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	uniqueBy := opts.UniqueBy
	if uniqueBy == "" {
		uniqueBy = UniqueByName
	}

	rooms := make([]Room, 0, len(seed))
	index := make(map[string]int, len(seed))
	for _, r := range seed {
		if _, dup := index[r.ID]; dup {
			logger.Warn().Str("room_id", r.ID).Msg("duplicate room in catalog ignored")
			continue
		}
		index[r.ID] = len(rooms)
		rooms = append(rooms, r.Clone())
	}

	return &Store{
		rooms:         rooms,
		index:         index,
		errors:        []MembershipError{},
		notifier:      opts.Notifier,
		uniqueBy:      uniqueBy,
		surfaceMissed: opts.SurfaceUnknownRoom,
		identity:      opts.Identity,
		log:           logger,
		watchers:      make(map[chan Event]struct{}),
	}
}

// SetNotifier installs the outbound channel. A nil notifier turns the store local-only.
func (s *Store) SetNotifier(n Notifier) {
	s.mu.Lock()
	s.notifier = n
	s.mu.Unlock()
}

// Restore adopts the cached identity if one exists. It reports whether an identity was found.
func (s *Store) Restore(ctx context.Context) (User, bool, error) {
	if s.identity == nil {
		return User{}, false, nil
	}
	cached, err := s.identity.Load(ctx)
	if errors.Is(err, ErrNoIdentity) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, fmt.Errorf("load identity: %w", err)
	}
	s.adopt(cached)
	return cached, true, nil
}

// Login establishes the current user. A cached identity always wins over the candidate;
// otherwise the candidate gets an id if it lacks one, is cached and adopted.
func (s *Store) Login(ctx context.Context, candidate User) (User, error) {
	cached, found, err := s.Restore(ctx)
	if err != nil {
		return User{}, err
	}
	if found {
		if cached.Name != candidate.Name {
			s.log.Info().Str("cached", cached.Name).Str("requested", candidate.Name).Msg("restored cached identity")
		}
		return cached, nil
	}

	name, err := normalizeName(candidate.Name)
	if err != nil {
		return User{}, err
	}
	candidate.Name = name
	if candidate.ID == "" {
		candidate.ID = utils.NewID()
	}

	if s.identity != nil {
		if err := s.identity.Save(ctx, candidate); err != nil {
			return User{}, fmt.Errorf("save identity: %w", err)
		}
	}
	s.adopt(candidate)
	return candidate, nil
}

func (s *Store) adopt(u User) {
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()

	s.log.Info().Str("user_id", u.ID).Str("user", u.Name).Msg("logged in")
	s.publish(Event{Kind: EventLogin, User: u})
}

// CurrentUser returns the logged in user.
func (s *Store) CurrentUser() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// JoinRoom adds the current user to a room optimistically and notifies the server.
func (s *Store) JoinRoom(ctx context.Context, roomID string) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return coreError(ErrCodeNoIdentity, "login required", ErrNoIdentity)
	}
	user := *s.user

	idx, ok := s.index[roomID]
	if !ok {
		return s.missedRoomLocked(roomID, "join")
	}

	before := s.rooms[idx]
	if s.uniqueBy.contains(before.Members, user) {
		return s.rejectLocked(coreError(ErrCodeAlreadyJoined, msgAlreadyInRoom, ErrAlreadyJoined), roomID)
	}

	members := make([]User, 0, len(before.Members)+1)
	members = append(members, before.Members...)
	members = append(members, user)
	after := s.replaceMembersLocked(idx, members)
	notifier := s.notifier
	s.mu.Unlock()

	s.log.Debug().Str("room_id", roomID).Str("user", user.Name).Msg("joined room")
	s.publish(Event{Kind: EventRoomUpdated, Origin: OriginLocal, Room: after})

	if notifier != nil {
		if err := notifier.NotifyJoin(ctx, before, user); err != nil {
			s.log.Warn().Err(err).Str("room_id", roomID).Msg("emit join-room")
		}
	}
	return nil
}

// LeaveRoom removes the current user from a room optimistically and notifies the server.
func (s *Store) LeaveRoom(ctx context.Context, roomID string) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return coreError(ErrCodeNoIdentity, "login required", ErrNoIdentity)
	}
	user := *s.user

	idx, ok := s.index[roomID]
	if !ok {
		return s.missedRoomLocked(roomID, "leave")
	}

	before := s.rooms[idx]
	if !s.uniqueBy.contains(before.Members, user) {
		return s.rejectLocked(coreError(ErrCodeNotInRoom, msgNotInRoom, ErrNotInRoom), roomID)
	}

	after := s.replaceMembersLocked(idx, s.uniqueBy.without(before.Members, user))
	notifier := s.notifier
	s.mu.Unlock()

	s.log.Debug().Str("room_id", roomID).Str("user", user.Name).Msg("left room")
	s.publish(Event{Kind: EventRoomUpdated, Origin: OriginLocal, Room: after})

	if notifier != nil {
		if err := notifier.NotifyLeave(ctx, before, user); err != nil {
			s.log.Warn().Err(err).Str("room_id", roomID).Msg("emit leave-room")
		}
	}
	return nil
}

// ApplySnapshot overwrites a room's member list with the server's version. Local optimistic
// state for that room is discarded.
func (s *Store) ApplySnapshot(snap Snapshot) error {
	s.mu.Lock()
	idx, ok := s.index[snap.RoomID]
	if !ok {
		s.mu.Unlock()
		s.log.Warn().Str("room_id", snap.RoomID).Msg("snapshot for unknown room ignored")
		return coreError(ErrCodeRoomNotFound, msgRoomNotFound, ErrRoomNotFound)
	}
	after := s.replaceMembersLocked(idx, cloneMembers(snap.Members))
	notice := snap.Joined && snap.Actor != ""
	if notice {
		s.notice = snap.Actor
	}
	s.mu.Unlock()

	s.log.Debug().
		Str("room_id", snap.RoomID).
		Int("members", len(after.Members)).
		Bool("joined", snap.Joined).
		Msg("applied snapshot")

	s.publish(Event{Kind: EventRoomUpdated, Origin: OriginRemote, Room: after})
	if notice {
		s.publish(Event{Kind: EventNotice, Origin: OriginRemote, Notice: snap.Actor})
	}
	return nil
}

// ClearTransient empties the error queue and the notice unconditionally.
func (s *Store) ClearTransient() {
	s.mu.Lock()
	had := len(s.errors) > 0 || s.notice != ""
	s.errors = []MembershipError{}
	s.notice = ""
	s.mu.Unlock()

	if had {
		s.publish(Event{Kind: EventCleared})
	}
}

// replaceMembersLocked installs a new room value and a new catalog slice so that no reader
// ever observes a list changing under it. Caller holds s.mu.
func (s *Store) replaceMembersLocked(idx int, members []User) Room {
	rooms := slices.Clone(s.rooms)
	room := rooms[idx]
	room.Members = members
	rooms[idx] = room
	s.rooms = rooms
	return room.Clone()
}

// rejectLocked queues a client error and releases s.mu.
func (s *Store) rejectLocked(cerr *CoreError, roomID string) error {
	entry := s.queueLocked(cerr)
	s.mu.Unlock()

	s.log.Info().Str("room_id", roomID).Str("code", cerr.Code).Msg(cerr.Message)
	s.publish(Event{Kind: EventErrorQueued, Error: &entry})
	return cerr
}

// missedRoomLocked handles an unknown room id and releases s.mu.
func (s *Store) missedRoomLocked(roomID, op string) error {
	cerr := coreError(ErrCodeRoomNotFound, msgRoomNotFound, ErrRoomNotFound)
	if !s.surfaceMissed {
		s.mu.Unlock()
		s.log.Warn().Str("room_id", roomID).Str("op", op).Msg("room not found")
		return cerr
	}
	return s.rejectLocked(cerr, roomID)
}

func (s *Store) queueLocked(cerr *CoreError) MembershipError {
	entry := MembershipError{
		ID:      utils.NewID(),
		Kind:    ErrorKindClient,
		Code:    cerr.Code,
		Message: cerr.Message,
	}
	errs := make([]MembershipError, 0, len(s.errors)+1)
	errs = append(errs, s.errors...)
	s.errors = append(errs, entry)
	return entry
}

// Rooms returns a copy of the catalog with current member lists.
func (s *Store) Rooms() []Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r.Clone())
	}
	return out
}

// Room returns a copy of a single room.
func (s *Store) Room(id string) (Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.index[id]
	if !ok {
		return Room{}, false
	}
	return s.rooms[idx].Clone(), true
}

// IsMember reports whether the current user appears in the room's member list.
func (s *Store) IsMember(roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.index[roomID]
	if !ok || s.user == nil {
		return false
	}
	return s.uniqueBy.contains(s.rooms[idx].Members, *s.user)
}

// Errors returns the queued membership errors, oldest first.
func (s *Store) Errors() []MembershipError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.errors)
}

// Notice returns the name of the user who most recently joined, if not yet cleared.
func (s *Store) Notice() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notice
}

// Watch subscribes to store events. Slow watchers lose events rather than block the store.
// The returned func unsubscribes and closes the channel.
func (s *Store) Watch(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	s.wmu.Lock()
	s.watchers[ch] = struct{}{}
	s.wmu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.wmu.Lock()
			delete(s.watchers, ch)
			s.wmu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) publish(ev Event) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	for ch := range s.watchers {
		select {
		case ch <- ev:
		default:
			// Drop if slow consumer.
		}
	}
}
