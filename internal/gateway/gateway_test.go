package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/skorotkiewicz/gnunet-social/internal/eventbus"
	"github.com/skorotkiewicz/gnunet-social/internal/models"
	"github.com/skorotkiewicz/gnunet-social/internal/protocol"
	"github.com/skorotkiewicz/gnunet-social/internal/router"
	"github.com/skorotkiewicz/gnunet-social/internal/store"
)

type harness struct {
	gateway *Gateway
	bus     *eventbus.Bus
	server  *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	bus := eventbus.New(eventbus.WithBacklog(64))
	r := router.New(store.New(), bus, nil)
	gw := New(r, bus, nil, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	mux := http.NewServeMux()
	mux.Handle("/ws", gw.Handler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { _ = gw.Close() })

	return &harness{gateway: gw, bus: bus, server: srv}
}

type testClient struct {
	t          *testing.T
	ws         *websocket.Conn
	lastBinary bool
}

func (h *harness) dial(t *testing.T) *testClient {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws"
	ws, err := websocket.Dial(wsURL, "", h.server.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return &testClient{t: t, ws: ws}
}

func (c *testClient) sendText(raw string) {
	c.t.Helper()
	require.NoError(c.t, websocket.Message.Send(c.ws, raw))
}

func (c *testClient) send(req protocol.Request) {
	c.t.Helper()
	data, err := protocol.JSON.EncodeRequest(req)
	require.NoError(c.t, err)
	c.sendText(string(data))
}

func (c *testClient) sendBinary(req protocol.Request) {
	c.t.Helper()
	data, err := protocol.CBOR.EncodeRequest(req)
	require.NoError(c.t, err)
	require.NoError(c.t, websocket.Message.Send(c.ws, data))
}

func (c *testClient) readFrame() (frame, error) {
	_ = c.ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	var in frame
	err := frameCodec.Receive(c.ws, &in)
	return in, err
}

func (c *testClient) read() protocol.Response {
	c.t.Helper()
	in, err := c.readFrame()
	require.NoError(c.t, err)
	c.lastBinary = in.binary
	resp, err := in.codec().DecodeResponse(in.data)
	require.NoError(c.t, err)
	return resp
}

// next skips frames until match accepts one.
func (c *testClient) next(match func(protocol.Response) bool) protocol.Response {
	c.t.Helper()
	for i := 0; i < 32; i++ {
		if resp := c.read(); match(resp) {
			return resp
		}
	}
	c.t.Fatal("no matching frame")
	return nil
}

func (c *testClient) request(req protocol.Request) protocol.Response {
	c.t.Helper()
	c.send(req)
	return c.next(func(resp protocol.Response) bool {
		_, isEvent := resp.(*protocol.EventResponse)
		return !isEvent
	})
}

func (c *testClient) auth(peer string) {
	c.t.Helper()
	resp := c.request(&protocol.AuthRequest{PeerID: peer})
	authResp, ok := resp.(*protocol.AuthResponse)
	require.True(c.t, ok, "unexpected response %#v", resp)
	require.True(c.t, authResp.Success)
	require.Equal(c.t, peer, authResp.PeerID)
}

func isPresence(kind, peer string) func(protocol.Response) bool {
	return func(resp protocol.Response) bool {
		ev, ok := resp.(*protocol.EventResponse)
		return ok && ev.Event.Kind() == kind && protocol.ActorOf(ev.Event) == peer
	}
}

func isEvent(kinds ...string) func(protocol.Response) bool {
	return func(resp protocol.Response) bool {
		ev, ok := resp.(*protocol.EventResponse)
		if !ok {
			return false
		}
		for _, kind := range kinds {
			if ev.Event.Kind() == kind {
				return true
			}
		}
		return false
	}
}

func TestRequestResponseOverText(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t)

	resp := c.request(&protocol.GetFriendsRequest{})
	errResp, ok := resp.(*protocol.ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, protocol.CodeUnauthenticated, errResp.Code)

	c.auth("peerA")
	resp = c.request(&protocol.CreateUserRequest{Username: "alice"})
	user, ok := resp.(*protocol.UserResponse)
	require.True(t, ok, "unexpected response %#v", resp)
	assert.Equal(t, "peerA", user.User.ID)
}

func TestWireShapeMatchesEnvelope(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t)

	c.sendText(`{"type":"auth","peer_id":"peerA"}`)

	var body map[string]any
	for body == nil || body["type"] == "event" {
		in, err := c.readFrame()
		require.NoError(t, err)
		assert.False(t, in.binary)
		body = nil
		require.NoError(t, json.Unmarshal(in.data, &body))
	}
	assert.Equal(t, "auth", body["type"])
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "peerA", body["peer_id"])
}

func TestBinaryFramesUseCBOR(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t)

	c.sendBinary(&protocol.AuthRequest{PeerID: "peerA"})
	resp := c.next(func(resp protocol.Response) bool {
		_, ok := resp.(*protocol.AuthResponse)
		return ok
	})
	assert.True(t, c.lastBinary)
	assert.Equal(t, "peerA", resp.(*protocol.AuthResponse).PeerID)

	// Events follow the encoding of the most recent request.
	c.sendBinary(&protocol.CreatePostRequest{Content: "hi", Visibility: models.VisibilityPublic})
	for i := 0; i < 4; i++ {
		in, err := c.readFrame()
		require.NoError(t, err)
		require.True(t, in.binary)
		resp, err := protocol.CBOR.DecodeResponse(in.data)
		require.NoError(t, err)
		if ev, ok := resp.(*protocol.EventResponse); ok && ev.Event.Kind() == protocol.EventNewPost {
			return
		}
	}
	t.Fatal("new_post event not received")
}

func TestInvalidFramesCloseConnection(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t)

	c.sendText("{not json")
	resp := c.read()
	errResp, ok := resp.(*protocol.ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, protocol.CodeBadRequest, errResp.Code)
	assert.Equal(t, "Invalid message format", errResp.Message)

	// A valid request resets the failure count.
	c.auth("peerA")

	for i := 0; i <= MaxDecodeFailures; i++ {
		c.sendText(`{"type":"no_such_request"}`)
		resp := c.next(func(resp protocol.Response) bool {
			_, ok := resp.(*protocol.ErrorResponse)
			return ok
		})
		assert.Equal(t, protocol.CodeBadRequest, resp.(*protocol.ErrorResponse).Code)
	}

	for {
		if _, err := c.readFrame(); err != nil {
			break
		}
	}
	assert.Eventually(t, func() bool { return len(h.gateway.ConnectedPeers()) == 0 }, 3*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, MaxDecodeFailures+2, h.gateway.Stats().DecodeFailures)
}

func TestEventsRespectAudience(t *testing.T) {
	h := newHarness(t)
	alice, bob, carol := h.dial(t), h.dial(t), h.dial(t)
	alice.auth("peerA")
	bob.auth("peerB")
	carol.auth("peerC")

	_, ok := alice.request(&protocol.SendPrivateMessageRequest{RecipientID: "peerB", Content: "psst"}).(*protocol.PrivateMessageResponse)
	require.True(t, ok)
	_, ok = alice.request(&protocol.CreatePostRequest{Content: "hello all", Visibility: models.VisibilityPublic}).(*protocol.PostResponse)
	require.True(t, ok)

	got := bob.next(isEvent(protocol.EventNewPrivateMessage)).(*protocol.EventResponse)
	assert.Equal(t, "psst", got.Event.(*protocol.NewPrivateMessageEvent).Message.Content)

	// Carol's subscription is ordered, so reaching the post proves the
	// private message was filtered out.
	first := carol.next(isEvent(protocol.EventNewPrivateMessage, protocol.EventNewPost)).(*protocol.EventResponse)
	assert.Equal(t, protocol.EventNewPost, first.Event.Kind())
}

func TestPresenceTracksConnections(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.dial(t), h.dial(t)
	bob.auth("peerB")
	alice.auth("peerA")

	bob.next(isPresence(protocol.EventUserOnline, "peerA"))
	assert.ElementsMatch(t, []string{"peerA", "peerB"}, h.gateway.ConnectedPeers())

	// A second connection for the same peer does not announce it again.
	extra := h.dial(t)
	extra.auth("peerA")
	require.NoError(t, extra.ws.Close())
	require.NoError(t, alice.ws.Close())

	bob.next(isPresence(protocol.EventUserOffline, "peerA"))
	assert.Eventually(t, func() bool {
		peers := h.gateway.ConnectedPeers()
		return len(peers) == 1 && peers[0] == "peerB"
	}, 3*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return h.gateway.Stats().Connections == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 3, h.gateway.Stats().Accepted)
}

func TestReauthenticationMovesPresence(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t)
	c.auth("peerA")
	c.auth("peerZ")

	assert.Equal(t, []string{"peerZ"}, h.gateway.ConnectedPeers())
}

func TestRejectsNonGet(t *testing.T) {
	h := newHarness(t)
	resp, err := http.Post(h.server.URL+"/ws", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCloseDisconnectsClients(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t)
	c.auth("peerA")

	require.NoError(t, h.gateway.Close())
	for {
		if _, err := c.readFrame(); err != nil {
			break
		}
	}
	assert.Eventually(t, func() bool { return h.gateway.Stats().Connections == 0 }, 3*time.Second, 10*time.Millisecond)

	late := h.dial(t)
	_, err := late.readFrame()
	assert.Error(t, err)
}
