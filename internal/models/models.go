package models

import "time"

// Visibility controls who may read a post.
type Visibility string

const (
	VisibilityPublic        Visibility = "public"
	VisibilityFollowersOnly Visibility = "followers_only"
	VisibilityMutualsOnly   Visibility = "mutuals_only"
	VisibilityPrivate       Visibility = "private"
)

// Valid reports whether v is one of the declared visibility tiers.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityFollowersOnly, VisibilityMutualsOnly, VisibilityPrivate:
		return true
	}
	return false
}

// FriendshipStatus tracks where a friendship sits in the request workflow.
type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipBlocked  FriendshipStatus = "blocked"
)

// User is a peer's profile. ID is the peer identifier.
type User struct {
	ID          string    `json:"id" cbor:"id"`
	Username    string    `json:"username" cbor:"username"`
	DisplayName string    `json:"display_name" cbor:"display_name"`
	Bio         *string   `json:"bio" cbor:"bio"`
	AvatarHash  *string   `json:"avatar_hash" cbor:"avatar_hash"`
	Zone        string    `json:"gns_zone" cbor:"gns_zone"`
	CreatedAt   time.Time `json:"created_at" cbor:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" cbor:"updated_at"`
}

// Clone returns a copy that shares no pointers with u.
func (u User) Clone() User {
	u.Bio = cloneString(u.Bio)
	u.AvatarHash = cloneString(u.AvatarHash)
	return u
}

// Post is a status update authored by a peer.
type Post struct {
	ID          string     `json:"id" cbor:"id"`
	AuthorID    string     `json:"author_id" cbor:"author_id"`
	Content     string     `json:"content" cbor:"content"`
	MediaHashes []string   `json:"media_hashes" cbor:"media_hashes"`
	ReplyTo     *string    `json:"reply_to" cbor:"reply_to"`
	RepostOf    *string    `json:"repost_of" cbor:"repost_of"`
	Visibility  Visibility `json:"visibility" cbor:"visibility"`
	CreatedAt   time.Time  `json:"created_at" cbor:"created_at"`
	Likes       []string   `json:"likes" cbor:"likes"`
	Reposts     uint64     `json:"reposts" cbor:"reposts"`
}

// Clone returns a copy that shares no slices with p.
func (p Post) Clone() Post {
	p.MediaHashes = cloneStrings(p.MediaHashes)
	p.Likes = cloneStrings(p.Likes)
	p.ReplyTo = cloneString(p.ReplyTo)
	p.RepostOf = cloneString(p.RepostOf)
	return p
}

// LikedBy reports whether peerID is in the like set.
func (p Post) LikedBy(peerID string) bool {
	for _, id := range p.Likes {
		if id == peerID {
			return true
		}
	}
	return false
}

// ChatRoom is a named conversation with an owner, admins and members.
type ChatRoom struct {
	ID          string    `json:"id" cbor:"id"`
	Name        string    `json:"name" cbor:"name"`
	Description *string   `json:"description" cbor:"description"`
	OwnerID     string    `json:"owner_id" cbor:"owner_id"`
	Admins      []string  `json:"admins" cbor:"admins"`
	Members     []string  `json:"members" cbor:"members"`
	IsGroup     bool      `json:"is_group" cbor:"is_group"`
	IsPublic    bool      `json:"is_public" cbor:"is_public"`
	CreatedAt   time.Time `json:"created_at" cbor:"created_at"`
}

// Clone returns a copy that shares no slices with r.
func (r ChatRoom) Clone() ChatRoom {
	r.Admins = cloneStrings(r.Admins)
	r.Members = cloneStrings(r.Members)
	r.Description = cloneString(r.Description)
	return r
}

// HasMember reports whether peerID belongs to the room.
func (r ChatRoom) HasMember(peerID string) bool {
	for _, id := range r.Members {
		if id == peerID {
			return true
		}
	}
	return false
}

// RoomMessage is a message posted into a chat room.
type RoomMessage struct {
	ID          string    `json:"id" cbor:"id"`
	RoomID      string    `json:"room_id" cbor:"room_id"`
	SenderID    string    `json:"sender_id" cbor:"sender_id"`
	Content     string    `json:"content" cbor:"content"`
	MediaHashes []string  `json:"media_hashes" cbor:"media_hashes"`
	ReplyTo     *string   `json:"reply_to" cbor:"reply_to"`
	CreatedAt   time.Time `json:"created_at" cbor:"created_at"`
}

// Clone returns a copy that shares no slices with m.
func (m RoomMessage) Clone() RoomMessage {
	m.MediaHashes = cloneStrings(m.MediaHashes)
	m.ReplyTo = cloneString(m.ReplyTo)
	return m
}

// Friendship is the relationship record for an unordered pair of peers.
type Friendship struct {
	RequesterID string           `json:"requester_id" cbor:"requester_id"`
	AddresseeID string           `json:"addressee_id" cbor:"addressee_id"`
	Status      FriendshipStatus `json:"status" cbor:"status"`
	CreatedAt   time.Time        `json:"created_at" cbor:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" cbor:"updated_at"`
}

// Other returns the participant that is not peerID.
func (f Friendship) Other(peerID string) string {
	if f.RequesterID == peerID {
		return f.AddresseeID
	}
	return f.RequesterID
}

// Involves reports whether peerID is either side of the friendship.
func (f Friendship) Involves(peerID string) bool {
	return f.RequesterID == peerID || f.AddresseeID == peerID
}

// PrivateMessage is a direct message between two peers. ReadAt stays nil
// until read receipts exist.
type PrivateMessage struct {
	ID          string     `json:"id" cbor:"id"`
	SenderID    string     `json:"sender_id" cbor:"sender_id"`
	RecipientID string     `json:"recipient_id" cbor:"recipient_id"`
	Content     string     `json:"content" cbor:"content"`
	MediaHashes []string   `json:"media_hashes" cbor:"media_hashes"`
	CreatedAt   time.Time  `json:"created_at" cbor:"created_at"`
	ReadAt      *time.Time `json:"read_at" cbor:"read_at"`
}

// Clone returns a copy that shares no slices with m.
func (m PrivateMessage) Clone() PrivateMessage {
	m.MediaHashes = cloneStrings(m.MediaHashes)
	if m.ReadAt != nil {
		readAt := *m.ReadAt
		m.ReadAt = &readAt
	}
	return m
}

// Involves reports whether peerID sent or received the message.
func (m PrivateMessage) Involves(peerID string) bool {
	return m.SenderID == peerID || m.RecipientID == peerID
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneString(in *string) *string {
	if in == nil {
		return nil
	}
	out := *in
	return &out
}
