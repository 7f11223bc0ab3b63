package router

import (
	"context"
	"slices"
	"strings"

	"github.com/skorotkiewicz/gnunet-social/internal/models"
	"github.com/skorotkiewicz/gnunet-social/internal/multiplexer"
	"github.com/skorotkiewicz/gnunet-social/internal/protocol"
)

func (r *Router) handleSendPrivateMessage(ctx context.Context, peer string, req *protocol.SendPrivateMessageRequest) protocol.Response {
	recipient := strings.TrimSpace(req.RecipientID)
	if recipient == "" {
		return protocol.NewError(protocol.CodeBadRequest, "recipient_id is required")
	}

	msg := models.PrivateMessage{
		ID:          r.newID(),
		SenderID:    peer,
		RecipientID: recipient,
		Content:     req.Content,
		MediaHashes: nonNil(slices.Clone(req.MediaHashes)),
		CreatedAt:   r.now(),
	}
	r.graph.AddPrivateMessage(msg)

	r.publish(ctx, &protocol.NewPrivateMessageEvent{Message: msg.Clone()},
		multiplexer.PortSocial, &protocol.PrivateMessageRelay{Message: msg.Clone()}, only(recipient))
	return &protocol.PrivateMessageResponse{Message: &msg}
}

// handleGetPrivateMessages returns the peer's most recent messages, oldest
// first, optionally narrowed to one counterpart.
func (r *Router) handleGetPrivateMessages(peer string, req *protocol.GetPrivateMessagesRequest) protocol.Response {
	with := ""
	if req.PeerID != nil {
		with = strings.TrimSpace(*req.PeerID)
	}
	messages := r.graph.GetPrivateMessages(peer, with)
	return &protocol.PrivateMessageResponse{Messages: lastN(messages, limitOr(req.Limit, DefaultPrivateMessageLimit))}
}
