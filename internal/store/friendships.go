package store

import (
	"sort"
	"sync"

	"github.com/skorotkiewicz/gnunet-social/internal/models"
	"github.com/skorotkiewicz/gnunet-social/internal/visibility"
)

type friendshipTable struct {
	mu    sync.RWMutex
	byKey map[string]models.Friendship
}

// RequestFriendship upserts the friendship for its unordered pair. A second
// request for the same pair replaces the first.
func (s *Store) RequestFriendship(f models.Friendship) {
	key := visibility.FriendshipKey(f.RequesterID, f.AddresseeID)

	s.friendships.mu.Lock()
	s.friendships.byKey[key] = f
	s.friendships.mu.Unlock()
}

// GetFriendship returns the friendship between a and b in either direction.
func (s *Store) GetFriendship(a, b string) (models.Friendship, error) {
	key := visibility.FriendshipKey(a, b)

	s.friendships.mu.RLock()
	f, ok := s.friendships.byKey[key]
	s.friendships.mu.RUnlock()
	if !ok {
		return models.Friendship{}, ErrNotFound
	}
	return f, nil
}

// AcceptFriendship moves the pair's Pending friendship to Accepted and
// refreshes its update time. Accepting an already accepted friendship
// succeeds. It reports false, leaving the record untouched, when no
// friendship exists for the pair or the pair is Blocked. The direction of
// the original request is not checked.
func (s *Store) AcceptFriendship(a, b string) bool {
	key := visibility.FriendshipKey(a, b)

	s.friendships.mu.Lock()
	defer s.friendships.mu.Unlock()

	f, ok := s.friendships.byKey[key]
	if !ok {
		return false
	}
	switch f.Status {
	case models.FriendshipPending, models.FriendshipAccepted:
	default:
		return false
	}
	f.Status = models.FriendshipAccepted
	f.UpdatedAt = laterOf(s.now(), f.UpdatedAt)
	s.friendships.byKey[key] = f
	return true
}

// GetFriends lists every peer holding an Accepted friendship with peerID,
// sorted. This is a full scan of the friendship table; a per-participant
// index is the next step if the table grows large.
func (s *Store) GetFriends(peerID string) []string {
	s.friendships.mu.RLock()
	friends := make([]string, 0)
	for _, f := range s.friendships.byKey {
		if f.Status == models.FriendshipAccepted && f.Involves(peerID) {
			friends = append(friends, f.Other(peerID))
		}
	}
	s.friendships.mu.RUnlock()

	sort.Strings(friends)
	return friends
}
