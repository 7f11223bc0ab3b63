package router

import (
	"context"
	"slices"
	"strings"

	"github.com/skorotkiewicz/gnunet-social/internal/models"
	"github.com/skorotkiewicz/gnunet-social/internal/multiplexer"
	"github.com/skorotkiewicz/gnunet-social/internal/protocol"
	"github.com/skorotkiewicz/gnunet-social/internal/visibility"
)

func (r *Router) handleCreateRoom(peer string, req *protocol.CreateRoomRequest) protocol.Response {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return protocol.NewError(protocol.CodeBadRequest, "room name is required")
	}

	room := models.ChatRoom{
		ID:          r.newID(),
		Name:        name,
		Description: req.Description,
		OwnerID:     peer,
		Admins:      []string{peer},
		Members:     []string{peer},
		IsGroup:     req.IsGroup,
		IsPublic:    req.IsPublic,
		CreatedAt:   r.now(),
	}
	r.graph.AddRoom(room)
	return &protocol.RoomResponse{Room: &room}
}

func (r *Router) handleGetRooms(peer string) protocol.Response {
	return &protocol.RoomResponse{Rooms: r.graph.ListRoomsForMember(peer)}
}

func (r *Router) handleJoinRoom(peer string, req *protocol.JoinRoomRequest) protocol.Response {
	room, err := r.graph.JoinRoom(req.RoomID, peer)
	if err != nil {
		return storeError(err, "Room")
	}
	return &protocol.RoomResponse{Room: &room}
}

func (r *Router) handleLeaveRoom(peer string, req *protocol.LeaveRoomRequest) protocol.Response {
	room, err := r.graph.LeaveRoom(req.RoomID, peer)
	if err != nil {
		return storeError(err, "Room")
	}
	return &protocol.RoomResponse{Room: &room}
}

func (r *Router) handleSendRoomMessage(ctx context.Context, peer string, req *protocol.SendRoomMessageRequest) protocol.Response {
	msg := models.RoomMessage{
		ID:          r.newID(),
		RoomID:      req.RoomID,
		SenderID:    peer,
		Content:     req.Content,
		MediaHashes: nonNil(slices.Clone(req.MediaHashes)),
		ReplyTo:     req.ReplyTo,
		CreatedAt:   r.now(),
	}
	if err := r.graph.AddRoomMessage(msg); err != nil {
		return storeError(err, "Room")
	}

	to := only(peer)
	if room, err := r.graph.GetRoom(msg.RoomID); err == nil {
		to = roomAudience(room)
	}
	r.publish(ctx, &protocol.NewRoomMessageEvent{RoomID: msg.RoomID, Message: msg.Clone()},
		multiplexer.PortChat, &protocol.ChatRelay{RoomID: msg.RoomID, Message: msg.Clone()}, to)
	return &protocol.RoomMessageResponse{Message: &msg}
}

// roomAudience relays public room chatter to every linked peer and private
// room chatter to members only.
func roomAudience(room models.ChatRoom) audience {
	if room.IsPublic {
		return everyone()
	}
	return only(room.Members...)
}

// handleGetRoomMessages returns the most recent messages before the
// cursor, oldest first. Rooms the peer cannot see are reported missing.
func (r *Router) handleGetRoomMessages(peer string, req *protocol.GetRoomMessagesRequest) protocol.Response {
	room, err := r.graph.GetRoom(req.RoomID)
	if err != nil {
		return storeError(err, "Room")
	}
	if !visibility.CanViewRoom(peer, room) {
		return notFound("Room")
	}

	all := r.graph.GetRoomMessages(req.RoomID)
	messages := make([]models.RoomMessage, 0, len(all))
	for _, msg := range all {
		if req.Before != nil && !msg.CreatedAt.Before(*req.Before) {
			continue
		}
		messages = append(messages, msg)
	}
	return &protocol.RoomMessageResponse{Messages: lastN(messages, limitOr(req.Limit, DefaultRoomMessageLimit))}
}

func lastN[T any](items []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if len(items) > n {
		return items[len(items)-n:]
	}
	return items
}
