package router

import (
	"context"
	"strings"

	"github.com/skorotkiewicz/gnunet-social/internal/models"
	"github.com/skorotkiewicz/gnunet-social/internal/multiplexer"
	"github.com/skorotkiewicz/gnunet-social/internal/protocol"
)

func (r *Router) handleRequestFriend(ctx context.Context, peer string, req *protocol.RequestFriendRequest) protocol.Response {
	target := strings.TrimSpace(req.PeerID)
	if target == "" {
		return protocol.NewError(protocol.CodeBadRequest, "peer_id is required")
	}
	if target == peer {
		return protocol.NewError(protocol.CodeBadRequest, "cannot befriend yourself")
	}

	now := r.now()
	friendship := models.Friendship{
		RequesterID: peer,
		AddresseeID: target,
		Status:      models.FriendshipPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.graph.RequestFriendship(friendship)

	r.publish(ctx, &protocol.FriendRequestEvent{From: peer, Friendship: friendship},
		multiplexer.PortSocial, &protocol.FriendRequestRelay{From: peer, To: target}, only(target))
	return &protocol.FriendResponse{Friendship: &friendship}
}

// handleAcceptFriend accepts the pair's friendship whichever side asked
// first.
func (r *Router) handleAcceptFriend(ctx context.Context, peer string, req *protocol.AcceptFriendRequest) protocol.Response {
	requester := strings.TrimSpace(req.PeerID)
	if !r.graph.AcceptFriendship(peer, requester) {
		return notFound("Friend request")
	}

	friendship, err := r.graph.GetFriendship(peer, requester)
	if err != nil {
		return storeError(err, "Friend request")
	}

	r.publish(ctx, &protocol.FriendAcceptedEvent{PeerID: peer, Requester: requester},
		multiplexer.PortSocial, &protocol.FriendAcceptRelay{From: peer, To: requester}, only(requester))
	return &protocol.FriendResponse{Friendship: &friendship}
}

func (r *Router) handleGetFriends(peer string) protocol.Response {
	return &protocol.FriendResponse{Friends: r.graph.GetFriends(peer)}
}
