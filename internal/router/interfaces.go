package router

import (
	"context"

	"github.com/skorotkiewicz/gnunet-social/internal/models"
	"github.com/skorotkiewicz/gnunet-social/internal/names"
	"github.com/skorotkiewicz/gnunet-social/internal/protocol"
)

// UserStore captures the profile operations used by the router.
type UserStore interface {
	CreateUser(user models.User) error
	GetUser(id string) (models.User, error)
	UpdateUser(id string, mutate func(*models.User)) (models.User, error)
	SearchUsers(query string, limit int) []models.User
}

// PostStore captures post persistence.
type PostStore interface {
	AddPost(post models.Post)
	GetPost(id string) (models.Post, error)
	ListPosts() []models.Post
	ToggleLike(postID, peerID string) (models.Post, error)
}

// RoomStore captures rooms and their messages.
type RoomStore interface {
	AddRoom(room models.ChatRoom)
	GetRoom(id string) (models.ChatRoom, error)
	ListRoomsForMember(peerID string) []models.ChatRoom
	JoinRoom(roomID, peerID string) (models.ChatRoom, error)
	LeaveRoom(roomID, peerID string) (models.ChatRoom, error)
	AddRoomMessage(msg models.RoomMessage) error
	GetRoomMessages(roomID string) []models.RoomMessage
}

// FriendStore captures the friendship workflow.
type FriendStore interface {
	RequestFriendship(f models.Friendship)
	GetFriendship(a, b string) (models.Friendship, error)
	AcceptFriendship(a, b string) bool
	GetFriends(peerID string) []string
}

// MessageStore captures private messaging.
type MessageStore interface {
	AddPrivateMessage(msg models.PrivateMessage)
	GetPrivateMessages(peerID, with string) []models.PrivateMessage
}

// Graph is the full social graph the router dispatches into.
type Graph interface {
	UserStore
	PostStore
	RoomStore
	FriendStore
	MessageStore
}

// EventPublisher fans committed activity out to subscribers.
type EventPublisher interface {
	Publish(ev protocol.Event) int
}

// Relayer hands raw payloads to the channels bound to a port, either all
// of them or only those of the listed peers.
type Relayer interface {
	Broadcast(port string, payload []byte) int
	SendToPeers(port string, peers []string, payload []byte) int
}

// Directory publishes identity records that usernames resolve through.
type Directory interface {
	StoreLocal(ctx context.Context, label string, rec names.Record) error
	LocalZone() string
}
