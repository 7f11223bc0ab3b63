// Package protocol defines the closed set of requests, responses and events
// exchanged with clients, and the JSON and CBOR envelope codecs that carry
// them.
package protocol

import (
	"time"

	"github.com/skorotkiewicz/gnunet-social/internal/models"
)

// Request kinds as they appear in the envelope "type" field.
const (
	KindAuth               = "auth"
	KindCreateUser         = "create_user"
	KindUpdateUser         = "update_user"
	KindCreatePost         = "create_post"
	KindGetFeed            = "get_feed"
	KindGetPost            = "get_post"
	KindLikePost           = "like_post"
	KindCreateRoom         = "create_room"
	KindGetRooms           = "get_rooms"
	KindJoinRoom           = "join_room"
	KindLeaveRoom          = "leave_room"
	KindSendRoomMessage    = "send_room_message"
	KindGetRoomMessages    = "get_room_messages"
	KindRequestFriend      = "request_friend"
	KindAcceptFriend       = "accept_friend"
	KindGetFriends         = "get_friends"
	KindSendPrivateMessage = "send_private_message"
	KindGetPrivateMessages = "get_private_messages"
	KindGetUser            = "get_user"
	KindSearchUsers        = "search_users"
)

// Request is implemented only by the request types in this package.
type Request interface {
	Kind() string
	isRequest()
}

type AuthRequest struct {
	PeerID string  `json:"peer_id" cbor:"peer_id"`
	Token  *string `json:"token" cbor:"token"`
}

type CreateUserRequest struct {
	Username    string  `json:"username" cbor:"username"`
	DisplayName *string `json:"display_name" cbor:"display_name"`
	Bio         *string `json:"bio" cbor:"bio"`
}

type UpdateUserRequest struct {
	DisplayName *string `json:"display_name" cbor:"display_name"`
	Bio         *string `json:"bio" cbor:"bio"`
}

type CreatePostRequest struct {
	Content     string            `json:"content" cbor:"content"`
	MediaHashes []string          `json:"media_hashes" cbor:"media_hashes"`
	ReplyTo     *string           `json:"reply_to" cbor:"reply_to"`
	RepostOf    *string           `json:"repost_of" cbor:"repost_of"`
	Visibility  models.Visibility `json:"visibility" cbor:"visibility"`
}

// GetFeedRequest names the viewer explicitly; the router ignores it in
// favour of the authenticated peer.
type GetFeedRequest struct {
	PeerID string     `json:"peer_id" cbor:"peer_id"`
	Limit  *uint32    `json:"limit" cbor:"limit"`
	Before *time.Time `json:"before" cbor:"before"`
}

type GetPostRequest struct {
	PostID string `json:"post_id" cbor:"post_id"`
}

type LikePostRequest struct {
	PostID string `json:"post_id" cbor:"post_id"`
}

type CreateRoomRequest struct {
	Name        string  `json:"name" cbor:"name"`
	Description *string `json:"description" cbor:"description"`
	IsGroup     bool    `json:"is_group" cbor:"is_group"`
	IsPublic    bool    `json:"is_public" cbor:"is_public"`
}

type GetRoomsRequest struct{}

type JoinRoomRequest struct {
	RoomID string `json:"room_id" cbor:"room_id"`
}

type LeaveRoomRequest struct {
	RoomID string `json:"room_id" cbor:"room_id"`
}

type SendRoomMessageRequest struct {
	RoomID      string   `json:"room_id" cbor:"room_id"`
	Content     string   `json:"content" cbor:"content"`
	MediaHashes []string `json:"media_hashes" cbor:"media_hashes"`
	ReplyTo     *string  `json:"reply_to" cbor:"reply_to"`
}

type GetRoomMessagesRequest struct {
	RoomID string     `json:"room_id" cbor:"room_id"`
	Limit  *uint32    `json:"limit" cbor:"limit"`
	Before *time.Time `json:"before" cbor:"before"`
}

type RequestFriendRequest struct {
	PeerID string `json:"peer_id" cbor:"peer_id"`
}

type AcceptFriendRequest struct {
	PeerID string `json:"peer_id" cbor:"peer_id"`
}

type GetFriendsRequest struct{}

type SendPrivateMessageRequest struct {
	RecipientID string   `json:"recipient_id" cbor:"recipient_id"`
	Content     string   `json:"content" cbor:"content"`
	MediaHashes []string `json:"media_hashes" cbor:"media_hashes"`
}

// GetPrivateMessagesRequest optionally narrows the conversation to one
// counterpart.
type GetPrivateMessagesRequest struct {
	PeerID *string `json:"peer_id" cbor:"peer_id"`
	Limit  *uint32 `json:"limit" cbor:"limit"`
}

type GetUserRequest struct {
	PeerID string `json:"peer_id" cbor:"peer_id"`
}

type SearchUsersRequest struct {
	Query string  `json:"query" cbor:"query"`
	Limit *uint32 `json:"limit" cbor:"limit"`
}

func (*AuthRequest) Kind() string               { return KindAuth }
func (*CreateUserRequest) Kind() string         { return KindCreateUser }
func (*UpdateUserRequest) Kind() string         { return KindUpdateUser }
func (*CreatePostRequest) Kind() string         { return KindCreatePost }
func (*GetFeedRequest) Kind() string            { return KindGetFeed }
func (*GetPostRequest) Kind() string            { return KindGetPost }
func (*LikePostRequest) Kind() string           { return KindLikePost }
func (*CreateRoomRequest) Kind() string         { return KindCreateRoom }
func (*GetRoomsRequest) Kind() string           { return KindGetRooms }
func (*JoinRoomRequest) Kind() string           { return KindJoinRoom }
func (*LeaveRoomRequest) Kind() string          { return KindLeaveRoom }
func (*SendRoomMessageRequest) Kind() string    { return KindSendRoomMessage }
func (*GetRoomMessagesRequest) Kind() string    { return KindGetRoomMessages }
func (*RequestFriendRequest) Kind() string      { return KindRequestFriend }
func (*AcceptFriendRequest) Kind() string       { return KindAcceptFriend }
func (*GetFriendsRequest) Kind() string         { return KindGetFriends }
func (*SendPrivateMessageRequest) Kind() string { return KindSendPrivateMessage }
func (*GetPrivateMessagesRequest) Kind() string { return KindGetPrivateMessages }
func (*GetUserRequest) Kind() string            { return KindGetUser }
func (*SearchUsersRequest) Kind() string        { return KindSearchUsers }

func (*AuthRequest) isRequest()               {}
func (*CreateUserRequest) isRequest()         {}
func (*UpdateUserRequest) isRequest()         {}
func (*CreatePostRequest) isRequest()         {}
func (*GetFeedRequest) isRequest()            {}
func (*GetPostRequest) isRequest()            {}
func (*LikePostRequest) isRequest()           {}
func (*CreateRoomRequest) isRequest()         {}
func (*GetRoomsRequest) isRequest()           {}
func (*JoinRoomRequest) isRequest()           {}
func (*LeaveRoomRequest) isRequest()          {}
func (*SendRoomMessageRequest) isRequest()    {}
func (*GetRoomMessagesRequest) isRequest()    {}
func (*RequestFriendRequest) isRequest()      {}
func (*AcceptFriendRequest) isRequest()       {}
func (*GetFriendsRequest) isRequest()         {}
func (*SendPrivateMessageRequest) isRequest() {}
func (*GetPrivateMessagesRequest) isRequest() {}
func (*GetUserRequest) isRequest()            {}
func (*SearchUsersRequest) isRequest()        {}

var requestFactories = map[string]func() Request{
	KindAuth:               func() Request { return &AuthRequest{} },
	KindCreateUser:         func() Request { return &CreateUserRequest{} },
	KindUpdateUser:         func() Request { return &UpdateUserRequest{} },
	KindCreatePost:         func() Request { return &CreatePostRequest{} },
	KindGetFeed:            func() Request { return &GetFeedRequest{} },
	KindGetPost:            func() Request { return &GetPostRequest{} },
	KindLikePost:           func() Request { return &LikePostRequest{} },
	KindCreateRoom:         func() Request { return &CreateRoomRequest{} },
	KindGetRooms:           func() Request { return &GetRoomsRequest{} },
	KindJoinRoom:           func() Request { return &JoinRoomRequest{} },
	KindLeaveRoom:          func() Request { return &LeaveRoomRequest{} },
	KindSendRoomMessage:    func() Request { return &SendRoomMessageRequest{} },
	KindGetRoomMessages:    func() Request { return &GetRoomMessagesRequest{} },
	KindRequestFriend:      func() Request { return &RequestFriendRequest{} },
	KindAcceptFriend:       func() Request { return &AcceptFriendRequest{} },
	KindGetFriends:         func() Request { return &GetFriendsRequest{} },
	KindSendPrivateMessage: func() Request { return &SendPrivateMessageRequest{} },
	KindGetPrivateMessages: func() Request { return &GetPrivateMessagesRequest{} },
	KindGetUser:            func() Request { return &GetUserRequest{} },
	KindSearchUsers:        func() Request { return &SearchUsersRequest{} },
}
