// Package auth tracks which peer a connection speaks for and which peers
// are currently online.
package auth

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrMissingPeerID indicates an Auth request without a peer identifier.
var ErrMissingPeerID = errors.New("peer id must be provided")

// Session is the per-connection authentication slot. The peer identifier
// is a bearer credential: it is trusted as given.
type Session struct {
	mu       sync.RWMutex
	peerID   string
	authedAt time.Time

	// NowFunc overrides time.Now for tests.
	NowFunc func() time.Time
}

// NewSession returns an unauthenticated session.
func NewSession() *Session {
	return &Session{NowFunc: time.Now}
}

// Authenticate binds the session to peerID, replacing any earlier peer,
// and returns the peer it replaced.
func (s *Session) Authenticate(peerID string) (previous string, err error) {
	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		return "", ErrMissingPeerID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	previous = s.peerID
	s.peerID = peerID
	s.authedAt = s.now()
	return previous, nil
}

// PeerID returns the bound peer, if any.
func (s *Session) PeerID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peerID, s.peerID != ""
}

// AuthenticatedAt reports when the current peer was bound.
func (s *Session) AuthenticatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authedAt
}

// Clear unbinds the session and returns the peer it held.
func (s *Session) Clear() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	peerID := s.peerID
	s.peerID = ""
	s.authedAt = time.Time{}
	return peerID
}

func (s *Session) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc().UTC()
	}
	return time.Now().UTC()
}
