package store

import (
	"sync"

	"github.com/skorotkiewicz/gnunet-social/internal/models"
)

type roomTable struct {
	mu    sync.RWMutex
	byID  map[string]*models.ChatRoom
	order []string
}

type roomMessageTable struct {
	mu     sync.RWMutex
	byRoom map[string][]models.RoomMessage
	total  int
}

// AddRoom inserts or replaces a room.
func (s *Store) AddRoom(room models.ChatRoom) {
	stored := room.Clone()

	s.rooms.mu.Lock()
	defer s.rooms.mu.Unlock()

	if _, exists := s.rooms.byID[room.ID]; !exists {
		s.rooms.order = append(s.rooms.order, room.ID)
	}
	s.rooms.byID[room.ID] = &stored
}

// GetRoom returns the room with the given identifier.
func (s *Store) GetRoom(id string) (models.ChatRoom, error) {
	s.rooms.mu.RLock()
	defer s.rooms.mu.RUnlock()

	room, ok := s.rooms.byID[id]
	if !ok {
		return models.ChatRoom{}, ErrNotFound
	}
	return room.Clone(), nil
}

// ListRoomsForMember returns every room peerID belongs to, in creation order.
func (s *Store) ListRoomsForMember(peerID string) []models.ChatRoom {
	s.rooms.mu.RLock()
	defer s.rooms.mu.RUnlock()

	out := make([]models.ChatRoom, 0)
	for _, id := range s.rooms.order {
		if room := s.rooms.byID[id]; room.HasMember(peerID) {
			out = append(out, room.Clone())
		}
	}
	return out
}

// JoinRoom adds peerID to the room's members. Joining twice is a no-op.
func (s *Store) JoinRoom(roomID, peerID string) (models.ChatRoom, error) {
	s.rooms.mu.Lock()
	defer s.rooms.mu.Unlock()

	room, ok := s.rooms.byID[roomID]
	if !ok {
		return models.ChatRoom{}, ErrNotFound
	}
	if !room.HasMember(peerID) {
		room.Members = append(room.Members, peerID)
	}
	return room.Clone(), nil
}

// LeaveRoom removes peerID from the room's members. The owner and admin set
// are left untouched.
func (s *Store) LeaveRoom(roomID, peerID string) (models.ChatRoom, error) {
	s.rooms.mu.Lock()
	defer s.rooms.mu.Unlock()

	room, ok := s.rooms.byID[roomID]
	if !ok {
		return models.ChatRoom{}, ErrNotFound
	}

	members := make([]string, 0, len(room.Members))
	for _, id := range room.Members {
		if id != peerID {
			members = append(members, id)
		}
	}
	room.Members = members
	return room.Clone(), nil
}

// AddRoomMessage stores msg if its room exists. The rooms read lock is held
// until the message is inserted, so the room cannot be observed missing
// between the check and the write.
func (s *Store) AddRoomMessage(msg models.RoomMessage) error {
	s.rooms.mu.RLock()
	defer s.rooms.mu.RUnlock()

	if _, ok := s.rooms.byID[msg.RoomID]; !ok {
		return ErrNotFound
	}

	s.roomMessages.mu.Lock()
	s.roomMessages.byRoom[msg.RoomID] = append(s.roomMessages.byRoom[msg.RoomID], msg.Clone())
	s.roomMessages.total++
	s.roomMessages.mu.Unlock()
	return nil
}

// GetRoomMessages returns every message for the room in insertion order.
// Ordering by timestamp and limits are the caller's concern.
func (s *Store) GetRoomMessages(roomID string) []models.RoomMessage {
	s.roomMessages.mu.RLock()
	defer s.roomMessages.mu.RUnlock()

	stored := s.roomMessages.byRoom[roomID]
	out := make([]models.RoomMessage, 0, len(stored))
	for _, msg := range stored {
		out = append(out, msg.Clone())
	}
	return out
}
