package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/skorotkiewicz/gnunet-social/internal/models"
)

const relayTag = "relay_type"

// Relay kinds.
const (
	RelayKindPost           = "post"
	RelayKindChat           = "chat"
	RelayKindFriendRequest  = "friend_request"
	RelayKindFriendAccept   = "friend_accept"
	RelayKindPrivateMessage = "private_message"
)

// Relay is a peer-to-peer notice carried over multiplexer ports. It is a
// slimmer projection of the matching event.
type Relay interface {
	RelayKind() string
}

type PostRelay struct {
	PostID  string `json:"post_id"`
	Author  string `json:"author"`
	Content string `json:"content"`
}

type ChatRelay struct {
	RoomID  string             `json:"room_id"`
	Message models.RoomMessage `json:"message"`
}

type FriendRequestRelay struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type FriendAcceptRelay struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type PrivateMessageRelay struct {
	Message models.PrivateMessage `json:"message"`
}

func (*PostRelay) RelayKind() string           { return RelayKindPost }
func (*ChatRelay) RelayKind() string           { return RelayKindChat }
func (*FriendRequestRelay) RelayKind() string  { return RelayKindFriendRequest }
func (*FriendAcceptRelay) RelayKind() string   { return RelayKindFriendAccept }
func (*PrivateMessageRelay) RelayKind() string { return RelayKindPrivateMessage }

// EncodeRelay renders r as JSON tagged by "relay_type".
func EncodeRelay(r Relay) ([]byte, error) {
	if isNil(r) {
		return nil, fmt.Errorf("encode relay: %w", ErrUnknownType)
	}
	return jsonFormat{}.encodeTagged(r, map[string]string{relayTag: r.RelayKind()})
}

// DecodeRelay parses a relay payload read from a port mailbox.
func DecodeRelay(data []byte) (Relay, error) {
	kind, err := jsonFormat{}.readTag(data, relayTag)
	if err != nil {
		return nil, err
	}
	var r Relay
	switch kind {
	case RelayKindPost:
		r = &PostRelay{}
	case RelayKindChat:
		r = &ChatRelay{}
	case RelayKindFriendRequest:
		r = &FriendRequestRelay{}
	case RelayKindFriendAccept:
		r = &FriendAcceptRelay{}
	case RelayKindPrivateMessage:
		r = &PrivateMessageRelay{}
	default:
		return nil, fmt.Errorf("relay %q: %w", kind, ErrUnknownType)
	}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("relay %q: %w: %v", kind, ErrMalformed, err)
	}
	return r, nil
}
