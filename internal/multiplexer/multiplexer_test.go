package multiplexer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelIDsMonotonicAndNeverReused(t *testing.T) {
	m := New()

	first := m.CreateChannel("peerA", PortChat)
	second := m.CreateChannel("peerB", PortChat)
	assert.Equal(t, uint64(1), first.ID)
	assert.Equal(t, uint64(2), second.ID)

	m.DestroyChannel(second.ID)
	third := m.CreateChannel("peerC", PortChat)
	assert.Equal(t, uint64(3), third.ID)

	_, ok := m.Channel(second.ID)
	assert.False(t, ok)
}

func TestSendDeliversToPort(t *testing.T) {
	m := New()
	port := m.OpenPort(PortChat)
	ch := m.CreateChannel("peerA", PortChat)

	require.True(t, m.Send(ch.ID, []byte("hello")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := port.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, ch.ID, msg.ChannelID)
	assert.Equal(t, "peerA", msg.Peer)
	assert.Equal(t, []byte("hello"), msg.Data)
}

func TestSendUnroutable(t *testing.T) {
	m := New()

	assert.False(t, m.Send(42, []byte("x")), "unknown channel")

	ch := m.CreateChannel("peerA", PortSocial)
	assert.False(t, m.Send(ch.ID, []byte("x")), "port never opened")

	m.OpenPort(PortSocial)
	assert.True(t, m.Send(ch.ID, []byte("x")))

	m.ClosePort(PortSocial)
	assert.False(t, m.Send(ch.ID, []byte("x")), "closed port")

	_, ok := m.Channel(ch.ID)
	assert.True(t, ok, "closing a port must not destroy its channels")
	assert.Equal(t, uint64(3), m.Stats().Unroutable)
}

func TestSendOverflowDropsWithoutBlocking(t *testing.T) {
	const capacity = 8
	m := New(WithMailboxCapacity(capacity))
	port := m.OpenPort(PortFileshare)
	ch := m.CreateChannel("peerA", PortFileshare)

	done := make(chan []bool)
	go func() {
		results := make([]bool, 0, capacity*2)
		for i := 0; i < capacity*2; i++ {
			results = append(results, m.Send(ch.ID, []byte{byte(i)}))
		}
		done <- results
	}()

	var results []bool
	select {
	case results = <-done:
	case <-time.After(time.Second):
		t.Fatal("send blocked on a full mailbox")
	}

	for i, ok := range results {
		if i < capacity {
			assert.True(t, ok, "send %d should fit", i)
		} else {
			assert.False(t, ok, "send %d should overflow", i)
		}
	}
	assert.Equal(t, capacity, port.Pending())

	stats := m.Stats()
	assert.Equal(t, uint64(capacity), stats.Sent)
	assert.Equal(t, uint64(capacity), stats.Dropped)
}

func TestReopenPortReplacesMailbox(t *testing.T) {
	m := New()
	old := m.OpenPort(PortChat)
	fresh := m.OpenPort(PortChat)
	ch := m.CreateChannel("peerA", PortChat)

	require.True(t, m.Send(ch.ID, []byte("x")))
	assert.Equal(t, 0, old.Pending())
	assert.Equal(t, 1, fresh.Pending())
}

func TestDestroyedChannelMessagesStillDelivered(t *testing.T) {
	m := New()
	port := m.OpenPort(PortChat)
	ch := m.CreateChannel("peerA", PortChat)

	require.True(t, m.Send(ch.ID, []byte("in flight")))
	m.DestroyChannel(ch.ID)

	assert.False(t, m.Send(ch.ID, []byte("late")))
	msg := <-port.Messages()
	assert.Equal(t, []byte("in flight"), msg.Data)
}

func TestBroadcastIndependentDrops(t *testing.T) {
	m := New(WithMailboxCapacity(2))
	chat := m.OpenPort(PortChat)
	social := m.OpenPort(PortSocial)

	a := m.CreateChannel("peerA", PortChat)
	m.CreateChannel("peerB", PortChat)
	m.CreateChannel("peerC", PortSocial)

	// Two channels on a mailbox of two: the first broadcast fills it.
	assert.Equal(t, 2, m.Broadcast(PortChat, []byte("one")))
	assert.Equal(t, 0, m.Broadcast(PortChat, []byte("two")))
	assert.Equal(t, 0, social.Pending())

	first := <-chat.Messages()
	assert.Equal(t, a.ID, first.ChannelID, "broadcast walks channels in id order")

	assert.Equal(t, 1, m.Broadcast(PortChat, []byte("three")))
	assert.Equal(t, 0, m.Broadcast("nobody", []byte("x")))
}

func TestChannelsForPeer(t *testing.T) {
	m := New()
	m.CreateChannel("peerA", PortChat)
	m.CreateChannel("peerB", PortChat)
	m.CreateChannel("peerA", PortFileshare)

	assert.Len(t, m.ChannelsForPeer("peerA", ""), 2)
	got := m.ChannelsForPeer("peerA", PortFileshare)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(3), got[0].ID)
}

func TestSendToPeersSkipsOtherPeers(t *testing.T) {
	m := New()
	social := m.OpenPort(PortSocial)

	m.CreateChannel("peerA", PortSocial)
	b := m.CreateChannel("peerB", PortSocial)
	m.CreateChannel("peerC", PortSocial)
	m.CreateChannel("peerB", PortChat)

	assert.Equal(t, 1, m.SendToPeers(PortSocial, []string{"peerB"}, []byte("dm")))
	assert.Equal(t, 0, m.SendToPeers(PortSocial, nil, []byte("nobody")))
	assert.Equal(t, 0, m.SendToPeers(PortSocial, []string{"peerZ"}, []byte("stranger")))

	require.Equal(t, 1, social.Pending())
	msg := <-social.Messages()
	assert.Equal(t, b.ID, msg.ChannelID)
	assert.Equal(t, "peerB", msg.Peer)
}

func TestEnsureChannelReusesExisting(t *testing.T) {
	m := New()
	first := m.CreateChannel("peerA", PortFileshare)
	m.CreateChannel("peerA", PortFileshare)
	m.CreateChannel("peerA", PortChat)

	assert.Equal(t, first.ID, m.EnsureChannel("peerA", PortFileshare).ID)
	created := m.EnsureChannel("peerB", PortFileshare)
	assert.Equal(t, uint64(4), created.ID)
	assert.Equal(t, 4, m.Stats().Channels)
}

func TestEnsureChannelConcurrentCallersShareOneChannel(t *testing.T) {
	m := New()

	const callers = 32
	ids := make(chan uint64, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- m.EnsureChannel("peerA", PortFileshare).ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]struct{})
	for id := range ids {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 1)
	assert.Len(t, m.ChannelsForPeer("peerA", PortFileshare), 1)
}

func TestConcurrentTableMutationAndSends(t *testing.T) {
	m := New(WithMailboxCapacity(16))
	port := m.OpenPort(PortChat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-port.Messages():
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ch := m.CreateChannel(fmt.Sprintf("peer-%d", i), PortChat)
				m.Send(ch.ID, []byte("x"))
				m.Broadcast(PortChat, []byte("y"))
				m.DestroyChannel(ch.ID)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, m.Stats().Channels)
	next := m.CreateChannel("late", PortChat)
	assert.Equal(t, uint64(801), next.ID)
}

func TestPortRecvHonoursContext(t *testing.T) {
	m := New()
	port := m.OpenPort(PortChat)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := port.Recv(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
