// Package gateway serves the request protocol over websocket connections.
// Each connection gets its own session and its own event subscription.
package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/net/websocket"

	"github.com/skorotkiewicz/gnunet-social/internal/auth"
	"github.com/skorotkiewicz/gnunet-social/internal/eventbus"
	"github.com/skorotkiewicz/gnunet-social/internal/logging"
	"github.com/skorotkiewicz/gnunet-social/internal/protocol"
)

const (
	// MaxDecodeFailures is how many undecodable frames in a row a
	// connection may send before it is closed.
	MaxDecodeFailures = 5
	// MaxFrameBytes bounds a single incoming frame.
	MaxFrameBytes = 1 << 20

	defaultWriteTimeout = 10 * time.Second
	invalidFormat       = "Invalid message format"
)

// Router serves requests and decides which events a peer may receive.
type Router interface {
	Handle(ctx context.Context, session *auth.Session, req protocol.Request) protocol.Response
	Deliverable(peer string, ev protocol.Event) bool
}

// Bus is the event fan-out each connection subscribes to.
type Bus interface {
	Subscribe() *eventbus.Subscription
	Publish(ev protocol.Event) int
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the base logger for connections.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithWriteTimeout bounds each frame write.
func WithWriteTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.writeTimeout = d
		}
	}
}

// Gateway accepts websocket connections and bridges them to the router and
// the event bus.
type Gateway struct {
	router   Router
	bus      Bus
	presence *auth.Presence
	logger   *slog.Logger

	writeTimeout time.Duration

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	accepted       atomic.Uint64
	decodeFailures atomic.Uint64
}

// New constructs a Gateway. A nil presence registry gets a fresh one.
func New(router Router, bus Bus, presence *auth.Presence, opts ...Option) *Gateway {
	if router == nil || bus == nil {
		panic("gateway: router and bus must not be nil")
	}
	if presence == nil {
		presence = auth.NewPresence()
	}
	g := &Gateway{
		router:       router,
		bus:          bus,
		presence:     presence,
		logger:       slog.Default(),
		writeTimeout: defaultWriteTimeout,
		clients:      make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Handler returns the HTTP handler that upgrades GET requests.
func (g *Gateway) Handler() http.Handler {
	server := websocket.Server{
		// Any origin is accepted.
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler:   g.serve,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		server.ServeHTTP(w, r)
	})
}

// ConnectedPeers lists the peers with at least one authenticated
// connection.
func (g *Gateway) ConnectedPeers() []string {
	return g.presence.Peers()
}

// Stats is a snapshot of gateway counters.
type Stats struct {
	Connections    int
	Accepted       uint64
	DecodeFailures uint64
}

// Stats reports live and cumulative connection counters.
func (g *Gateway) Stats() Stats {
	g.mu.Lock()
	live := len(g.clients)
	g.mu.Unlock()
	return Stats{
		Connections:    live,
		Accepted:       g.accepted.Load(),
		DecodeFailures: g.decodeFailures.Load(),
	}
}

// Close disconnects every client and refuses new ones.
func (g *Gateway) Close() error {
	g.mu.Lock()
	g.closed = true
	clients := make([]*client, 0, len(g.clients))
	for c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.Unlock()

	var err error
	for _, c := range clients {
		err = multierr.Append(err, c.ws.Close())
	}
	return err
}

func (g *Gateway) register(c *client) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.clients[c] = struct{}{}
	return true
}

func (g *Gateway) unregister(c *client) {
	g.mu.Lock()
	delete(g.clients, c)
	g.mu.Unlock()
}

func (g *Gateway) serve(ws *websocket.Conn) {
	ws.MaxPayloadBytes = MaxFrameBytes
	_ = ws.SetReadDeadline(time.Time{})

	connID := uuid.NewString()
	base := context.Background()
	if req := ws.Request(); req != nil {
		base = req.Context()
	}
	ctx, cancel := context.WithCancel(logging.WithLogger(base, g.logger))
	ctx = logging.WithConnID(ctx, connID)
	logger := logging.FromContext(ctx)

	c := &client{ws: ws, session: auth.NewSession(), writeTimeout: g.writeTimeout}
	if !g.register(c) {
		cancel()
		_ = ws.Close()
		return
	}
	g.accepted.Add(1)
	logger.Info("connection opened")

	sub := g.bus.Subscribe()
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		g.pump(ctx, c, sub)
	}()

	defer func() {
		cancel()
		sub.Close()
		<-pumpDone
		if peer := c.session.Clear(); peer != "" {
			g.leave(peer)
		}
		g.unregister(c)
		_ = ws.Close()
		logger.Info("connection closed")
	}()

	g.readLoop(ctx, c)
}

func (g *Gateway) readLoop(ctx context.Context, c *client) {
	logger := logging.FromContext(ctx)
	failures := 0

	for {
		var in frame
		if err := frameCodec.Receive(c.ws, &in); err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				logger.Debug("read frame failed", slog.Any("error", err))
			}
			return
		}

		codec := in.codec()
		c.useCodec(in.binary)

		req, err := codec.DecodeRequest(in.data)
		if err != nil {
			failures++
			g.decodeFailures.Add(1)
			logger.Debug("decode request failed", slog.String("codec", codec.Name()), slog.Any("error", err))
			if werr := c.write(codec, protocol.NewError(protocol.CodeBadRequest, invalidFormat)); werr != nil {
				return
			}
			if failures > MaxDecodeFailures {
				logger.Warn("closing connection after repeated decode failures", slog.Int("failures", failures))
				return
			}
			continue
		}
		failures = 0

		before, _ := c.session.PeerID()
		resp := g.router.Handle(ctx, c.session, req)
		if authResp, ok := resp.(*protocol.AuthResponse); ok && authResp.Success {
			g.switchPeer(before, authResp.PeerID)
		}

		if err := c.write(codec, resp); err != nil {
			logger.Debug("write response failed", slog.Any("error", err))
			return
		}
	}
}

// switchPeer moves a connection's presence from one peer to another after
// a (re-)authentication.
func (g *Gateway) switchPeer(from, to string) {
	if from == to {
		return
	}
	if to != "" && g.presence.Connect(to) {
		g.bus.Publish(&protocol.UserOnlineEvent{PeerID: to})
	}
	if from != "" {
		g.leave(from)
	}
}

func (g *Gateway) leave(peer string) {
	if g.presence.Disconnect(peer) {
		g.bus.Publish(&protocol.UserOfflineEvent{PeerID: peer})
	}
}

// pump forwards the events this connection's peer may see.
func (g *Gateway) pump(ctx context.Context, c *client, sub *eventbus.Subscription) {
	logger := logging.FromContext(ctx)

	for {
		ev, err := sub.Recv(ctx)
		if err != nil {
			var lagged *eventbus.LaggedError
			if errors.As(err, &lagged) {
				logger.Warn("event subscriber lagged", slog.Uint64("skipped", lagged.Skipped))
				continue
			}
			return
		}

		peer, _ := c.session.PeerID()
		if !g.router.Deliverable(peer, ev) {
			continue
		}
		if err := c.write(c.eventCodec(), &protocol.EventResponse{Event: ev}); err != nil {
			logger.Debug("write event failed", slog.String("event", ev.Kind()), slog.Any("error", err))
			_ = c.ws.Close()
			return
		}
	}
}

// client is one websocket connection. Responses and events are written
// from different goroutines, so writes are serialized.
type client struct {
	ws           *websocket.Conn
	session      *auth.Session
	writeTimeout time.Duration

	binary atomic.Bool

	mu sync.Mutex
}

// useCodec records the encoding of the most recent request so events
// follow it.
func (c *client) useCodec(binary bool) {
	c.binary.Store(binary)
}

func (c *client) eventCodec() protocol.Codec {
	return frame{binary: c.binary.Load()}.codec()
}

func (c *client) write(codec protocol.Codec, resp protocol.Response) error {
	data, err := codec.EncodeResponse(resp)
	if err != nil {
		return err
	}
	out := frame{binary: codec.Name() == protocol.CBOR.Name(), data: data}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return frameCodec.Send(c.ws, out)
}
