package protocol

import "github.com/skorotkiewicz/gnunet-social/internal/models"

// Event kinds as they appear in the nested "event" field.
const (
	EventNewPost           = "new_post"
	EventNewRoomMessage    = "new_room_message"
	EventNewPrivateMessage = "new_private_message"
	EventFriendRequest     = "friend_request"
	EventFriendAccepted    = "friend_accepted"
	EventUserOnline        = "user_online"
	EventUserOffline       = "user_offline"
)

// Event is implemented only by the event types in this package.
type Event interface {
	Kind() string
	isEvent()
}

type NewPostEvent struct {
	Post models.Post `json:"post" cbor:"post"`
}

type NewRoomMessageEvent struct {
	RoomID  string             `json:"room_id" cbor:"room_id"`
	Message models.RoomMessage `json:"message" cbor:"message"`
}

type NewPrivateMessageEvent struct {
	Message models.PrivateMessage `json:"message" cbor:"message"`
}

type FriendRequestEvent struct {
	From       string            `json:"from" cbor:"from"`
	Friendship models.Friendship `json:"friendship" cbor:"friendship"`
}

// FriendAcceptedEvent names the peer that accepted; Requester is the other
// side of the friendship.
type FriendAcceptedEvent struct {
	PeerID    string `json:"peer_id" cbor:"peer_id"`
	Requester string `json:"requester_id" cbor:"requester_id"`
}

type UserOnlineEvent struct {
	PeerID string `json:"peer_id" cbor:"peer_id"`
}

type UserOfflineEvent struct {
	PeerID string `json:"peer_id" cbor:"peer_id"`
}

func (*NewPostEvent) Kind() string           { return EventNewPost }
func (*NewRoomMessageEvent) Kind() string    { return EventNewRoomMessage }
func (*NewPrivateMessageEvent) Kind() string { return EventNewPrivateMessage }
func (*FriendRequestEvent) Kind() string     { return EventFriendRequest }
func (*FriendAcceptedEvent) Kind() string    { return EventFriendAccepted }
func (*UserOnlineEvent) Kind() string        { return EventUserOnline }
func (*UserOfflineEvent) Kind() string       { return EventUserOffline }

func (*NewPostEvent) isEvent()           {}
func (*NewRoomMessageEvent) isEvent()    {}
func (*NewPrivateMessageEvent) isEvent() {}
func (*FriendRequestEvent) isEvent()     {}
func (*FriendAcceptedEvent) isEvent()    {}
func (*UserOnlineEvent) isEvent()        {}
func (*UserOfflineEvent) isEvent()       {}

var eventFactories = map[string]func() Event{
	EventNewPost:           func() Event { return &NewPostEvent{} },
	EventNewRoomMessage:    func() Event { return &NewRoomMessageEvent{} },
	EventNewPrivateMessage: func() Event { return &NewPrivateMessageEvent{} },
	EventFriendRequest:     func() Event { return &FriendRequestEvent{} },
	EventFriendAccepted:    func() Event { return &FriendAcceptedEvent{} },
	EventUserOnline:        func() Event { return &UserOnlineEvent{} },
	EventUserOffline:       func() Event { return &UserOfflineEvent{} },
}

// ActorOf returns the peer whose action produced ev.
func ActorOf(ev Event) string {
	switch e := ev.(type) {
	case *NewPostEvent:
		return e.Post.AuthorID
	case *NewRoomMessageEvent:
		return e.Message.SenderID
	case *NewPrivateMessageEvent:
		return e.Message.SenderID
	case *FriendRequestEvent:
		return e.From
	case *FriendAcceptedEvent:
		return e.PeerID
	case *UserOnlineEvent:
		return e.PeerID
	case *UserOfflineEvent:
		return e.PeerID
	default:
		return ""
	}
}
