package eventbus

import (
	"context"
	"sync"

	"github.com/skorotkiewicz/gnunet-social/internal/protocol"
)

// Subscription is one receiver's view of the bus. Its backlog is a ring
// buffer; the publisher only ever touches it under the subscription lock.
type Subscription struct {
	bus *Bus
	id  uint64

	mu      sync.Mutex
	ring    []protocol.Event
	head    int
	size    int
	skipped uint64
	closed  bool

	// notify holds at most one wake-up token for a waiting Recv.
	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newSubscription(bus *Bus, id uint64, capacity int) *Subscription {
	return &Subscription{
		bus:    bus,
		id:     id,
		ring:   make([]protocol.Event, capacity),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// ID identifies the subscription within its bus.
func (s *Subscription) ID() uint64 { return s.id }

// push appends ev and reports whether the oldest event was discarded to
// make room.
func (s *Subscription) push(ev protocol.Event) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}

	overflow := s.size == len(s.ring)
	if overflow {
		s.ring[s.head] = nil
		s.head = (s.head + 1) % len(s.ring)
		s.size--
		s.skipped++
	}
	s.ring[(s.head+s.size)%len(s.ring)] = ev
	s.size++
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return overflow
}

// Recv returns the next event. After an overflow it first returns a
// *LaggedError carrying the number of skipped events, then resumes with the
// oldest event still held. Once closed and drained it returns ErrClosed.
func (s *Subscription) Recv(ctx context.Context) (protocol.Event, error) {
	for {
		s.mu.Lock()
		if s.skipped > 0 {
			skipped := s.skipped
			s.skipped = 0
			s.mu.Unlock()
			return nil, &LaggedError{Skipped: skipped}
		}
		if s.size > 0 {
			ev := s.ring[s.head]
			s.ring[s.head] = nil
			s.head = (s.head + 1) % len(s.ring)
			s.size--
			s.mu.Unlock()
			return ev, nil
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return nil, ErrClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.notify:
		case <-s.done:
		}
	}
}

// Pending reports how many events wait in the backlog.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.id)
	s.mu.Lock()
	s.size = 0
	s.skipped = 0
	clear(s.ring)
	s.mu.Unlock()
	s.markClosed()
}

func (s *Subscription) markClosed() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
}
