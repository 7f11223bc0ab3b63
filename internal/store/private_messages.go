package store

import (
	"sync"

	"github.com/skorotkiewicz/gnunet-social/internal/models"
)

type privateMessageTable struct {
	mu    sync.RWMutex
	items []models.PrivateMessage
}

// AddPrivateMessage appends a direct message.
func (s *Store) AddPrivateMessage(msg models.PrivateMessage) {
	s.privateMessages.mu.Lock()
	s.privateMessages.items = append(s.privateMessages.items, msg.Clone())
	s.privateMessages.mu.Unlock()
}

// GetPrivateMessages returns, in insertion order, every message peerID sent
// or received. When with is non-empty only the conversation with that peer
// is returned.
func (s *Store) GetPrivateMessages(peerID, with string) []models.PrivateMessage {
	s.privateMessages.mu.RLock()
	defer s.privateMessages.mu.RUnlock()

	out := make([]models.PrivateMessage, 0)
	for _, msg := range s.privateMessages.items {
		if !msg.Involves(peerID) {
			continue
		}
		if with != "" && !msg.Involves(with) {
			continue
		}
		out = append(out, msg.Clone())
	}
	return out
}
