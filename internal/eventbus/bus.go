// Package eventbus fans domain events out to many concurrent subscribers.
//
// Every subscriber owns a bounded backlog. Publishing never blocks: when a
// backlog is full its oldest event is discarded and the subscriber is told
// how many it missed on its next Recv. Events published before a
// subscription exists are never replayed to it.
package eventbus

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/skorotkiewicz/gnunet-social/internal/protocol"
)

// DefaultBacklog is the per-subscriber backlog capacity.
const DefaultBacklog = 1024

// ErrClosed is returned by Recv once the subscription or the bus is closed
// and the backlog has been drained.
var ErrClosed = errors.New("eventbus closed")

// LaggedError reports that a subscriber fell behind and Skipped events were
// discarded from its backlog. Receiving resumes with the oldest retained
// event.
type LaggedError struct {
	Skipped uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("eventbus: subscriber lagged, %d events skipped", e.Skipped)
}

// Option configures a Bus.
type Option func(*Bus)

// WithBacklog overrides DefaultBacklog for subscriptions created afterwards.
func WithBacklog(capacity int) Option {
	return func(b *Bus) {
		if capacity > 0 {
			b.backlog = capacity
		}
	}
}

// WithLogger sets the logger used for slow-subscriber warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Bus is the single broadcast point for domain events.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool

	backlog  int
	logger   *slog.Logger
	slowWarn rate.Sometimes

	published atomic.Uint64
	dropped   atomic.Uint64
}

// New constructs a bus with no subscribers.
func New(opts ...Option) *Bus {
	b := &Bus{
		subs:     make(map[uint64]*Subscription),
		backlog:  DefaultBacklog,
		logger:   slog.Default(),
		slowWarn: rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a new receiver. Subscribing to a closed bus returns a
// subscription that is already closed.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := newSubscription(b, b.nextID, b.backlog)
	if b.closed {
		sub.markClosed()
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// Publish delivers ev to every current subscriber and returns how many
// received it. It never blocks.
func (b *Bus) Publish(ev protocol.Event) int {
	if ev == nil {
		return 0
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0
	}
	b.published.Add(1)

	for _, sub := range b.subs {
		if sub.push(ev) {
			dropped := b.dropped.Add(1)
			b.slowWarn.Do(func() {
				b.logger.Warn("slow event subscriber, dropping oldest events",
					slog.Uint64("subscription_id", sub.id),
					slog.String("event", ev.Kind()),
					slog.Uint64("dropped_total", dropped),
				)
			})
		}
	}
	return len(b.subs)
}

// Close shuts the bus down. Subscribers drain what they already hold and
// then receive ErrClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		sub.markClosed()
		delete(b.subs, id)
	}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

// Stats is a snapshot of bus activity.
type Stats struct {
	Subscribers int
	Published   uint64
	Dropped     uint64
}

// Stats reports the subscriber count and delivery counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	subscribers := len(b.subs)
	b.mu.RUnlock()

	return Stats{
		Subscribers: subscribers,
		Published:   b.published.Load(),
		Dropped:     b.dropped.Load(),
	}
}
