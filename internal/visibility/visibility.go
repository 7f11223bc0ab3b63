// Package visibility holds the pure rules deciding who may see what and
// how friendship pairs are addressed.
package visibility

import (
	"strings"

	"github.com/skorotkiewicz/gnunet-social/internal/models"
)

// KeySeparator joins the two peer identifiers of a friendship key.
const KeySeparator = ":"

// CanView reports whether viewer may see post. Authors always see their
// own posts and public posts are visible to everyone. FollowersOnly and
// MutualsOnly have no follow graph behind them yet and behave like
// Private for anyone but the author.
func CanView(viewer string, post models.Post) bool {
	if post.Visibility == models.VisibilityPublic {
		return true
	}
	return post.AuthorID == viewer
}

// CanViewRoom reports whether viewer may see a room: public rooms are open,
// everything else requires membership.
func CanViewRoom(viewer string, room models.ChatRoom) bool {
	if room.IsPublic {
		return true
	}
	return room.HasMember(viewer)
}

// FriendshipKey returns the order-independent key for the pair (a, b).
func FriendshipKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return strings.Join([]string{a, b}, KeySeparator)
}
