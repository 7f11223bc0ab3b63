// Package relay binds online peers to the social and chat ports so router
// relays reach them, and drains what the ports receive.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/skorotkiewicz/gnunet-social/internal/eventbus"
	"github.com/skorotkiewicz/gnunet-social/internal/multiplexer"
	"github.com/skorotkiewicz/gnunet-social/internal/protocol"
)

// Ports are the ports each online peer is linked on.
var Ports = []string{multiplexer.PortSocial, multiplexer.PortChat}

// Fabric is the slice of the multiplexer a Link needs.
type Fabric interface {
	OpenPort(name string) *multiplexer.Port
	ClosePort(name string)
	CreateChannel(peer, port string) multiplexer.Channel
	DestroyChannel(id uint64)
	ChannelsForPeer(peer, port string) []multiplexer.Channel
}

// EventSource yields bus events.
type EventSource interface {
	Recv(ctx context.Context) (protocol.Event, error)
}

// Handler observes each decoded relay. Peer is the channel's peer.
type Handler func(peer string, r protocol.Relay)

// Link maintains one channel per online peer and port.
type Link struct {
	fabric  Fabric
	ports   []*multiplexer.Port
	logger  *slog.Logger
	handler Handler

	linked    atomic.Int64
	relayed   atomic.Uint64
	malformed atomic.Uint64
}

// NewLink opens the relay ports on fabric. A nil handler only counts.
func NewLink(fabric Fabric, handler Handler, logger *slog.Logger) *Link {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Link{
		fabric:  fabric,
		logger:  logger.With(slog.String("component", "relay")),
		handler: handler,
	}
	for _, name := range Ports {
		l.ports = append(l.ports, fabric.OpenPort(name))
	}
	return l
}

// Track follows presence events until src closes or ctx ends.
func (l *Link) Track(ctx context.Context, src EventSource) error {
	for {
		ev, err := src.Recv(ctx)
		if err != nil {
			var lagged *eventbus.LaggedError
			switch {
			case errors.As(err, &lagged):
				l.logger.Warn("presence events skipped", slog.Uint64("skipped", lagged.Skipped))
				continue
			case errors.Is(err, eventbus.ErrClosed), errors.Is(err, context.Canceled):
				return nil
			default:
				return err
			}
		}

		switch e := ev.(type) {
		case *protocol.UserOnlineEvent:
			l.connect(e.PeerID)
		case *protocol.UserOfflineEvent:
			l.disconnect(e.PeerID)
		}
	}
}

func (l *Link) connect(peer string) {
	for _, port := range Ports {
		if len(l.fabric.ChannelsForPeer(peer, port)) > 0 {
			continue
		}
		ch := l.fabric.CreateChannel(peer, port)
		l.linked.Add(1)
		l.logger.Debug("peer linked", slog.String("peer_id", peer), slog.String("port", port), slog.Uint64("channel", ch.ID))
	}
}

func (l *Link) disconnect(peer string) {
	for _, port := range Ports {
		for _, ch := range l.fabric.ChannelsForPeer(peer, port) {
			l.fabric.DestroyChannel(ch.ID)
			l.linked.Add(-1)
		}
	}
	l.logger.Debug("peer unlinked", slog.String("peer_id", peer))
}

// Drain consumes every relay port until ctx ends.
func (l *Link) Drain(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, port := range l.ports {
		g.Go(func() error { return l.drain(ctx, port) })
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (l *Link) drain(ctx context.Context, port *multiplexer.Port) error {
	for {
		msg, err := port.Recv(ctx)
		if err != nil {
			return err
		}
		r, err := protocol.DecodeRelay(msg.Data)
		if err != nil {
			l.malformed.Add(1)
			l.logger.Warn("malformed relay", slog.String("port", port.Name()), slog.Any("error", err))
			continue
		}
		l.relayed.Add(1)
		if l.handler != nil {
			l.handler(msg.Peer, r)
		}
	}
}

// Close closes the relay ports.
func (l *Link) Close() {
	for _, name := range Ports {
		l.fabric.ClosePort(name)
	}
}

// Stats is a snapshot of link activity.
type Stats struct {
	Links     int64
	Relayed   uint64
	Malformed uint64
}

// Stats reports live links and relay counters.
func (l *Link) Stats() Stats {
	return Stats{
		Links:     l.linked.Load(),
		Relayed:   l.relayed.Load(),
		Malformed: l.malformed.Load(),
	}
}
