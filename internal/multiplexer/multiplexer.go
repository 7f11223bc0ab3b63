// Package multiplexer routes opaque payloads between peers and named
// service ports over numbered virtual channels.
//
// A port owns a bounded mailbox. A channel binds one peer to one port and
// carries a numeric identifier that is never reused. Sending never blocks:
// when the mailbox is full, or the port is closed, the payload is dropped
// and Send reports false. Callers needing reliable delivery build their
// own acknowledgement layer on top.
package multiplexer

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMailboxCapacity bounds the number of pending messages per port.
const DefaultMailboxCapacity = 1024

// Conventional service port names.
const (
	PortSocial    = "social"
	PortChat      = "chat"
	PortFileshare = "fileshare"
)

// Message is one payload delivered into a port's mailbox.
type Message struct {
	ChannelID uint64
	Peer      string
	Data      []byte
}

// Channel binds a peer to a port.
type Channel struct {
	ID   uint64
	Peer string
	Port string
}

// Port is the receiving side of a named endpoint.
type Port struct {
	name    string
	mailbox chan Message
}

// Name returns the port name.
func (p *Port) Name() string { return p.name }

// Messages exposes the mailbox for range/select loops. The channel is never
// closed by the multiplexer; a replaced or closed port simply stops
// receiving.
func (p *Port) Messages() <-chan Message { return p.mailbox }

// Pending reports how many messages wait in the mailbox.
func (p *Port) Pending() int { return len(p.mailbox) }

// Recv waits for the next message or for ctx to end.
func (p *Port) Recv(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case msg := <-p.mailbox:
		return msg, nil
	}
}

// Option configures a Multiplexer.
type Option func(*Multiplexer)

// WithMailboxCapacity overrides DefaultMailboxCapacity for ports opened
// afterwards.
func WithMailboxCapacity(capacity int) Option {
	return func(m *Multiplexer) {
		if capacity > 0 {
			m.capacity = capacity
		}
	}
}

// WithLogger sets the logger used for drop warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Multiplexer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Multiplexer holds the port and channel tables. All table mutation is
// serialized by one lock; sends only take it for reading.
type Multiplexer struct {
	mu       sync.RWMutex
	ports    map[string]*Port
	channels map[uint64]Channel
	nextID   uint64

	capacity int
	logger   *slog.Logger
	dropWarn rate.Sometimes

	sent       atomic.Uint64
	dropped    atomic.Uint64
	unroutable atomic.Uint64
}

// New constructs an empty multiplexer.
func New(opts ...Option) *Multiplexer {
	m := &Multiplexer{
		ports:    make(map[string]*Port),
		channels: make(map[uint64]Channel),
		nextID:   1,
		capacity: DefaultMailboxCapacity,
		logger:   slog.Default(),
		dropWarn: rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OpenPort registers a fresh mailbox under name and returns it. Opening a
// port that is already open replaces its mailbox; the previous Port stops
// receiving new messages but is not closed.
func (m *Multiplexer) OpenPort(name string) *Port {
	port := &Port{name: name, mailbox: make(chan Message, m.capacity)}

	m.mu.Lock()
	m.ports[name] = port
	m.mu.Unlock()

	return port
}

// ClosePort removes the port's mailbox. Channels bound to it stay in the
// table but become unroutable.
func (m *Multiplexer) ClosePort(name string) {
	m.mu.Lock()
	delete(m.ports, name)
	m.mu.Unlock()
}

// CreateChannel binds peer to port under a new identifier. The port does
// not need to be open yet.
func (m *Multiplexer) CreateChannel(peer, port string) Channel {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := Channel{ID: m.nextID, Peer: peer, Port: port}
	m.nextID++
	m.channels[ch.ID] = ch
	return ch
}

// EnsureChannel returns the peer's lowest numbered channel bound to port,
// creating one when none exists. Lookup and creation share one write
// acquisition, so concurrent callers for the same pair get the same channel.
func (m *Multiplexer) EnsureChannel(peer, port string) Channel {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		found Channel
		ok    bool
	)
	for _, ch := range m.channels {
		if ch.Peer == peer && ch.Port == port && (!ok || ch.ID < found.ID) {
			found, ok = ch, true
		}
	}
	if ok {
		return found
	}

	ch := Channel{ID: m.nextID, Peer: peer, Port: port}
	m.nextID++
	m.channels[ch.ID] = ch
	return ch
}

// DestroyChannel forgets the channel. Messages it already enqueued are
// still delivered.
func (m *Multiplexer) DestroyChannel(id uint64) {
	m.mu.Lock()
	delete(m.channels, id)
	m.mu.Unlock()
}

// Channel looks a channel up by identifier.
func (m *Multiplexer) Channel(id uint64) (Channel, bool) {
	m.mu.RLock()
	ch, ok := m.channels[id]
	m.mu.RUnlock()
	return ch, ok
}

// ChannelsForPeer returns the peer's channels bound to port, or to any port
// when port is empty, ordered by identifier.
func (m *Multiplexer) ChannelsForPeer(peer, port string) []Channel {
	m.mu.RLock()
	out := make([]Channel, 0)
	for _, ch := range m.channels {
		if ch.Peer == peer && (port == "" || ch.Port == port) {
			out = append(out, ch)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Send enqueues payload on the channel's port without blocking. It reports
// false when the channel is unknown, its port is closed, or the mailbox is
// full. The payload is not copied.
func (m *Multiplexer) Send(channelID uint64, payload []byte) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ch, ok := m.channels[channelID]
	if !ok {
		m.unroutable.Add(1)
		return false
	}
	return m.enqueueLocked(ch, payload)
}

// Broadcast sends payload on every channel bound to port and returns how
// many deliveries succeeded. A drop on one channel does not affect the
// others.
func (m *Multiplexer) Broadcast(port string, payload []byte) int {
	return m.deliver(port, payload, func(Channel) bool { return true })
}

// SendToPeers sends payload on the channels bound to port that belong to
// one of peers and returns how many deliveries succeeded. Channels of other
// peers never see the payload.
func (m *Multiplexer) SendToPeers(port string, peers []string, payload []byte) int {
	if len(peers) == 0 {
		return 0
	}
	wanted := make(map[string]struct{}, len(peers))
	for _, peer := range peers {
		wanted[peer] = struct{}{}
	}
	return m.deliver(port, payload, func(ch Channel) bool {
		_, ok := wanted[ch.Peer]
		return ok
	})
}

func (m *Multiplexer) deliver(port string, payload []byte, match func(Channel) bool) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	targets := make([]Channel, 0)
	for _, ch := range m.channels {
		if ch.Port == port && match(ch) {
			targets = append(targets, ch)
		}
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].ID < targets[j].ID })

	delivered := 0
	for _, ch := range targets {
		if m.enqueueLocked(ch, payload) {
			delivered++
		}
	}
	return delivered
}

// enqueueLocked must be called with m.mu held (read or write).
func (m *Multiplexer) enqueueLocked(ch Channel, payload []byte) bool {
	port, ok := m.ports[ch.Port]
	if !ok {
		m.unroutable.Add(1)
		return false
	}

	select {
	case port.mailbox <- Message{ChannelID: ch.ID, Peer: ch.Peer, Data: payload}:
		m.sent.Add(1)
		return true
	default:
		dropped := m.dropped.Add(1)
		m.dropWarn.Do(func() {
			m.logger.Warn("port mailbox full, dropping payload",
				slog.String("port", ch.Port),
				slog.Uint64("channel_id", ch.ID),
				slog.Uint64("dropped_total", dropped),
			)
		})
		return false
	}
}

// Stats is a snapshot of multiplexer activity.
type Stats struct {
	Ports      int
	Channels   int
	Sent       uint64
	Dropped    uint64
	Unroutable uint64
}

// Stats reports table sizes and delivery counters.
func (m *Multiplexer) Stats() Stats {
	m.mu.RLock()
	ports, channels := len(m.ports), len(m.channels)
	m.mu.RUnlock()

	return Stats{
		Ports:      ports,
		Channels:   channels,
		Sent:       m.sent.Load(),
		Dropped:    m.dropped.Load(),
		Unroutable: m.unroutable.Load(),
	}
}
