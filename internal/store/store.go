// Package store is the in-memory social graph: users, posts, rooms, room
// messages, friendships and private messages.
//
// Every collection has its own read/write lock so that, for example, feed
// reads never wait on room writes. Read-check-mutate operations (like
// toggles, friendship acceptance, room membership) run under a single
// write acquisition of the collection they touch. Callers only ever see
// copies of stored records.
package store

import (
	"errors"
	"time"

	"github.com/skorotkiewicz/gnunet-social/internal/models"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrExists indicates a record with the same identifier is already stored.
	ErrExists = errors.New("record already exists")
)

// Store owns the six social collections.
type Store struct {
	users           userTable
	posts           postTable
	rooms           roomTable
	roomMessages    roomMessageTable
	friendships     friendshipTable
	privateMessages privateMessageTable

	// NowFunc overrides the clock used for update timestamps.
	NowFunc func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users: userTable{
			byID:       make(map[string]models.User),
			byUsername: make(map[string]string),
		},
		posts:           postTable{byID: make(map[string]*models.Post)},
		rooms:           roomTable{byID: make(map[string]*models.ChatRoom)},
		roomMessages:    roomMessageTable{byRoom: make(map[string][]models.RoomMessage)},
		friendships:     friendshipTable{byKey: make(map[string]models.Friendship)},
		privateMessages: privateMessageTable{},
	}
}

func (s *Store) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}

// Counts is a point-in-time size of every collection.
type Counts struct {
	Users           int
	Posts           int
	Rooms           int
	RoomMessages    int
	Friendships     int
	PrivateMessages int
}

// Counts reports collection sizes. Each collection is read under its own
// lock, so the result is not a consistent cross-collection snapshot.
func (s *Store) Counts() Counts {
	var c Counts

	s.users.mu.RLock()
	c.Users = len(s.users.byID)
	s.users.mu.RUnlock()

	s.posts.mu.RLock()
	c.Posts = len(s.posts.order)
	s.posts.mu.RUnlock()

	s.rooms.mu.RLock()
	c.Rooms = len(s.rooms.order)
	s.rooms.mu.RUnlock()

	s.roomMessages.mu.RLock()
	c.RoomMessages = s.roomMessages.total
	s.roomMessages.mu.RUnlock()

	s.friendships.mu.RLock()
	c.Friendships = len(s.friendships.byKey)
	s.friendships.mu.RUnlock()

	s.privateMessages.mu.RLock()
	c.PrivateMessages = len(s.privateMessages.items)
	s.privateMessages.mu.RUnlock()

	return c
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
