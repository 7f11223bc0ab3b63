package router

import (
	"github.com/skorotkiewicz/gnunet-social/internal/protocol"
	"github.com/skorotkiewicz/gnunet-social/internal/visibility"
)

// Deliverable reports whether peer may receive ev. An empty peer stands
// for an unauthenticated connection and only sees public activity and
// presence.
func (r *Router) Deliverable(peer string, ev protocol.Event) bool {
	switch e := ev.(type) {
	case *protocol.NewPostEvent:
		return visibility.CanView(peer, e.Post)
	case *protocol.NewRoomMessageEvent:
		room, err := r.graph.GetRoom(e.RoomID)
		if err != nil {
			return false
		}
		return visibility.CanViewRoom(peer, room)
	case *protocol.NewPrivateMessageEvent:
		return peer != "" && e.Message.Involves(peer)
	case *protocol.FriendRequestEvent:
		return peer != "" && e.Friendship.Involves(peer)
	case *protocol.FriendAcceptedEvent:
		return peer != "" && (peer == e.PeerID || peer == e.Requester)
	case *protocol.UserOnlineEvent, *protocol.UserOfflineEvent:
		return true
	default:
		return false
	}
}
