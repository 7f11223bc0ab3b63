// Package router dispatches decoded client requests against the social
// graph on behalf of an authenticated connection.
//
// State-changing requests publish their event only after the store has
// accepted the write. The write and the publish are not atomic: a crash in
// between loses the notification but keeps the data, so delivery is at
// most once and best effort.
package router

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/skorotkiewicz/gnunet-social/internal/auth"
	"github.com/skorotkiewicz/gnunet-social/internal/logging"
	"github.com/skorotkiewicz/gnunet-social/internal/names"
	"github.com/skorotkiewicz/gnunet-social/internal/protocol"
	"github.com/skorotkiewicz/gnunet-social/internal/store"
)

// Default page sizes when a request leaves the limit unset.
const (
	DefaultFeedLimit           = 50
	DefaultRoomMessageLimit    = 100
	DefaultPrivateMessageLimit = 100
	DefaultSearchLimit         = 20
)

// Option configures a Router.
type Option func(*Router)

// WithNames publishes identities into dir on user creation and lets
// GetUser fall back to resolving its argument as a username.
func WithNames(dir Directory, resolver names.Resolver) Option {
	return func(r *Router) {
		r.directory = dir
		r.resolver = resolver
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator overrides the random identifier source.
func WithIDGenerator(newID func() string) Option {
	return func(r *Router) {
		if newID != nil {
			r.newID = newID
		}
	}
}

// Router maps requests 1:1 onto graph operations.
type Router struct {
	graph  Graph
	events EventPublisher
	relay  Relayer

	directory Directory
	resolver  names.Resolver

	now   func() time.Time
	newID func() string
}

// New constructs a Router. The graph and publisher are required; relay may
// be nil to disable peer relays.
func New(graph Graph, events EventPublisher, relay Relayer, opts ...Option) *Router {
	if graph == nil {
		panic("router: graph must not be nil")
	}
	if events == nil {
		panic("router: event publisher must not be nil")
	}
	r := &Router{
		graph:  graph,
		events: events,
		relay:  relay,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle serves one request for session. Every request other than Auth
// requires an authenticated session and is rejected with 401 before the
// graph is touched.
func (r *Router) Handle(ctx context.Context, session *auth.Session, req protocol.Request) protocol.Response {
	if req == nil {
		return protocol.NewError(protocol.CodeBadRequest, "Invalid message format")
	}

	ctx, span := logging.StartSpan(ctx, "router."+req.Kind())
	defer span.End()

	resp := r.dispatch(ctx, session, req)
	if errResp, ok := resp.(*protocol.ErrorResponse); ok {
		span.Fail()
		logging.FromContext(ctx).Debug("request rejected",
			slog.Int("code", int(errResp.Code)),
			slog.String("message", errResp.Message),
		)
	}
	return resp
}

func (r *Router) dispatch(ctx context.Context, session *auth.Session, req protocol.Request) protocol.Response {
	if session == nil {
		return protocol.NewError(protocol.CodeUnauthenticated, "Not authenticated")
	}
	if authReq, ok := req.(*protocol.AuthRequest); ok {
		return r.handleAuth(ctx, session, authReq)
	}

	peer, ok := session.PeerID()
	if !ok {
		return protocol.NewError(protocol.CodeUnauthenticated, "Not authenticated")
	}
	ctx = logging.WithPeerID(ctx, peer)

	switch req := req.(type) {
	case *protocol.CreateUserRequest:
		return r.handleCreateUser(ctx, peer, req)
	case *protocol.UpdateUserRequest:
		return r.handleUpdateUser(peer, req)
	case *protocol.GetUserRequest:
		return r.handleGetUser(ctx, req)
	case *protocol.SearchUsersRequest:
		return r.handleSearchUsers(req)
	case *protocol.CreatePostRequest:
		return r.handleCreatePost(ctx, peer, req)
	case *protocol.GetFeedRequest:
		return r.handleGetFeed(peer, req)
	case *protocol.GetPostRequest:
		return r.handleGetPost(peer, req)
	case *protocol.LikePostRequest:
		return r.handleLikePost(peer, req)
	case *protocol.CreateRoomRequest:
		return r.handleCreateRoom(peer, req)
	case *protocol.GetRoomsRequest:
		return r.handleGetRooms(peer)
	case *protocol.JoinRoomRequest:
		return r.handleJoinRoom(peer, req)
	case *protocol.LeaveRoomRequest:
		return r.handleLeaveRoom(peer, req)
	case *protocol.SendRoomMessageRequest:
		return r.handleSendRoomMessage(ctx, peer, req)
	case *protocol.GetRoomMessagesRequest:
		return r.handleGetRoomMessages(peer, req)
	case *protocol.RequestFriendRequest:
		return r.handleRequestFriend(ctx, peer, req)
	case *protocol.AcceptFriendRequest:
		return r.handleAcceptFriend(ctx, peer, req)
	case *protocol.GetFriendsRequest:
		return r.handleGetFriends(peer)
	case *protocol.SendPrivateMessageRequest:
		return r.handleSendPrivateMessage(ctx, peer, req)
	case *protocol.GetPrivateMessagesRequest:
		return r.handleGetPrivateMessages(peer, req)
	default:
		return protocol.NewError(protocol.CodeBadRequest, "Unsupported request type")
	}
}

func (r *Router) handleAuth(ctx context.Context, session *auth.Session, req *protocol.AuthRequest) protocol.Response {
	previous, err := session.Authenticate(req.PeerID)
	if err != nil {
		return protocol.NewError(protocol.CodeBadRequest, "peer_id is required")
	}
	peer, _ := session.PeerID()

	logger := logging.FromContext(ctx).With(slog.String("peer_id", peer))
	if previous != "" && previous != peer {
		logger.Info("session re-authenticated", slog.String("previous_peer_id", previous))
	} else {
		logger.Info("session authenticated")
	}
	return &protocol.AuthResponse{Success: true, PeerID: peer}
}

// audience selects which peer channels receive a relay.
type audience struct {
	everyone bool
	peers    []string
}

func everyone() audience { return audience{everyone: true} }

func only(peers ...string) audience { return audience{peers: peers} }

// publish emits ev and relays the matching peer notice on port to the
// channels of to.
func (r *Router) publish(ctx context.Context, ev protocol.Event, port string, relay protocol.Relay, to audience) {
	receivers := r.events.Publish(ev)
	logger := logging.FromContext(ctx)
	logger.Debug("event published", slog.String("event", ev.Kind()), slog.Int("receivers", receivers))

	if r.relay == nil || relay == nil {
		return
	}
	payload, err := protocol.EncodeRelay(relay)
	if err != nil {
		logger.Warn("encode relay failed", slog.String("relay", relay.RelayKind()), slog.Any("error", err))
		return
	}
	var delivered int
	if to.everyone {
		delivered = r.relay.Broadcast(port, payload)
	} else {
		delivered = r.relay.SendToPeers(port, to.peers, payload)
	}
	logger.Debug("relay sent",
		slog.String("port", port),
		slog.Bool("broadcast", to.everyone),
		slog.Int("delivered", delivered),
	)
}

func notFound(what string) *protocol.ErrorResponse {
	return protocol.NewError(protocol.CodeNotFound, what+" not found")
}

func storeError(err error, what string) *protocol.ErrorResponse {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return notFound(what)
	case errors.Is(err, store.ErrConflict):
		return protocol.NewError(protocol.CodeConflict, err.Error())
	default:
		return protocol.NewError(protocol.CodeInternal, "internal error")
	}
}

func limitOr(limit *uint32, fallback int) int {
	if limit == nil {
		return fallback
	}
	return int(*limit)
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
