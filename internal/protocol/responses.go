package protocol

import "github.com/skorotkiewicz/gnunet-social/internal/models"

// Response kinds.
const (
	KindUserResponse           = "user"
	KindPostResponse           = "post"
	KindFeedResponse           = "feed"
	KindRoomResponse           = "room"
	KindRoomMessageResponse    = "room_message"
	KindFriendResponse         = "friend"
	KindPrivateMessageResponse = "private_message"
	KindError                  = "error"
	KindEvent                  = "event"
)

// Error codes carried by ErrorResponse.
const (
	CodeBadRequest      uint16 = 400
	CodeUnauthenticated uint16 = 401
	CodeNotFound        uint16 = 404
	CodeConflict        uint16 = 409
	CodeInternal        uint16 = 500
)

// Response is implemented only by the response types in this package.
type Response interface {
	Kind() string
	isResponse()
}

type AuthResponse struct {
	Success bool   `json:"success" cbor:"success"`
	PeerID  string `json:"peer_id" cbor:"peer_id"`
}

type UserResponse struct {
	User  *models.User  `json:"user" cbor:"user"`
	Users []models.User `json:"users,omitempty" cbor:"users,omitempty"`
}

type PostResponse struct {
	Post *models.Post `json:"post" cbor:"post"`
}

type FeedResponse struct {
	Posts []models.Post `json:"posts" cbor:"posts"`
}

type RoomResponse struct {
	Room  *models.ChatRoom  `json:"room" cbor:"room"`
	Rooms []models.ChatRoom `json:"rooms" cbor:"rooms"`
}

type RoomMessageResponse struct {
	Message  *models.RoomMessage  `json:"message" cbor:"message"`
	Messages []models.RoomMessage `json:"messages" cbor:"messages"`
}

type FriendResponse struct {
	Friendship *models.Friendship `json:"friendship" cbor:"friendship"`
	Friends    []string           `json:"friends" cbor:"friends"`
}

type PrivateMessageResponse struct {
	Message  *models.PrivateMessage  `json:"message" cbor:"message"`
	Messages []models.PrivateMessage `json:"messages" cbor:"messages"`
}

type ErrorResponse struct {
	Code    uint16 `json:"code" cbor:"code"`
	Message string `json:"message" cbor:"message"`
}

// EventResponse carries a bus event out to a client.
type EventResponse struct {
	Event Event
}

// NewError builds an ErrorResponse.
func NewError(code uint16, message string) *ErrorResponse {
	return &ErrorResponse{Code: code, Message: message}
}

func (*AuthResponse) Kind() string           { return KindAuth }
func (*UserResponse) Kind() string           { return KindUserResponse }
func (*PostResponse) Kind() string           { return KindPostResponse }
func (*FeedResponse) Kind() string           { return KindFeedResponse }
func (*RoomResponse) Kind() string           { return KindRoomResponse }
func (*RoomMessageResponse) Kind() string    { return KindRoomMessageResponse }
func (*FriendResponse) Kind() string         { return KindFriendResponse }
func (*PrivateMessageResponse) Kind() string { return KindPrivateMessageResponse }
func (*ErrorResponse) Kind() string          { return KindError }
func (*EventResponse) Kind() string          { return KindEvent }

func (*AuthResponse) isResponse()           {}
func (*UserResponse) isResponse()           {}
func (*PostResponse) isResponse()           {}
func (*FeedResponse) isResponse()           {}
func (*RoomResponse) isResponse()           {}
func (*RoomMessageResponse) isResponse()    {}
func (*FriendResponse) isResponse()         {}
func (*PrivateMessageResponse) isResponse() {}
func (*ErrorResponse) isResponse()          {}
func (*EventResponse) isResponse()          {}

// EventResponse is decoded separately because its fields live under the
// nested "event" tag.
var responseFactories = map[string]func() Response{
	KindAuth:                   func() Response { return &AuthResponse{} },
	KindUserResponse:           func() Response { return &UserResponse{} },
	KindPostResponse:           func() Response { return &PostResponse{} },
	KindFeedResponse:           func() Response { return &FeedResponse{} },
	KindRoomResponse:           func() Response { return &RoomResponse{} },
	KindRoomMessageResponse:    func() Response { return &RoomMessageResponse{} },
	KindFriendResponse:         func() Response { return &FriendResponse{} },
	KindPrivateMessageResponse: func() Response { return &PrivateMessageResponse{} },
	KindError:                  func() Response { return &ErrorResponse{} },
}
