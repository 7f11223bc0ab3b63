package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/skorotkiewicz/gnunet-social/internal/models"
)

type userTable struct {
	mu         sync.RWMutex
	byID       map[string]models.User
	byUsername map[string]string // lowercased username -> peer id
}

func usernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// AddUser inserts or replaces the user keyed by its peer identifier. It
// returns ErrConflict when another peer already holds the username.
func (s *Store) AddUser(user models.User) error {
	s.users.mu.Lock()
	defer s.users.mu.Unlock()
	return s.putUserLocked(user)
}

// CreateUser inserts the user only when the peer has no profile yet. It
// returns ErrExists for a known peer and ErrConflict when another peer
// holds the username. The check and the insert share one write lock.
func (s *Store) CreateUser(user models.User) error {
	s.users.mu.Lock()
	defer s.users.mu.Unlock()

	if _, ok := s.users.byID[user.ID]; ok {
		return ErrExists
	}
	return s.putUserLocked(user)
}

func (s *Store) putUserLocked(user models.User) error {
	key := usernameKey(user.Username)
	if owner, ok := s.users.byUsername[key]; ok && owner != user.ID {
		return ErrConflict
	}

	if previous, ok := s.users.byID[user.ID]; ok {
		delete(s.users.byUsername, usernameKey(previous.Username))
	}

	s.users.byID[user.ID] = user.Clone()
	if key != "" {
		s.users.byUsername[key] = user.ID
	}
	return nil
}

// GetUser returns the user with the given peer identifier.
func (s *Store) GetUser(id string) (models.User, error) {
	s.users.mu.RLock()
	user, ok := s.users.byID[id]
	s.users.mu.RUnlock()
	if !ok {
		return models.User{}, ErrNotFound
	}
	return user.Clone(), nil
}

// FindUserByUsername looks a user up by username, ignoring case.
func (s *Store) FindUserByUsername(username string) (models.User, error) {
	s.users.mu.RLock()
	defer s.users.mu.RUnlock()

	id, ok := s.users.byUsername[usernameKey(username)]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return s.users.byID[id].Clone(), nil
}

// UpdateUser applies mutate to the stored user under the write lock. The
// identifier, username and creation time cannot be changed through mutate.
// UpdatedAt is refreshed and never moves backwards.
func (s *Store) UpdateUser(id string, mutate func(*models.User)) (models.User, error) {
	s.users.mu.Lock()
	defer s.users.mu.Unlock()

	current, ok := s.users.byID[id]
	if !ok {
		return models.User{}, ErrNotFound
	}

	updated := current.Clone()
	if mutate != nil {
		mutate(&updated)
	}
	updated.ID = current.ID
	updated.Username = current.Username
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = laterOf(s.now(), laterOf(current.UpdatedAt, current.CreatedAt))

	s.users.byID[id] = updated.Clone()
	return updated.Clone(), nil
}

// SearchUsers returns users whose username or display name contains query,
// ignoring case, ordered by username. An empty query matches nobody.
func (s *Store) SearchUsers(query string, limit int) []models.User {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" || limit <= 0 {
		return []models.User{}
	}

	s.users.mu.RLock()
	matches := make([]models.User, 0)
	for _, user := range s.users.byID {
		if strings.Contains(strings.ToLower(user.Username), needle) ||
			strings.Contains(strings.ToLower(user.DisplayName), needle) {
			matches = append(matches, user.Clone())
		}
	}
	s.users.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Username == matches[j].Username {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Username < matches[j].Username
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
