package auth

import (
	"sort"
	"sync"
)

// Presence counts live connections per peer. A peer is online while at
// least one of its connections is authenticated.
type Presence struct {
	mu    sync.Mutex
	conns map[string]int
}

// NewPresence returns an empty registry.
func NewPresence() *Presence {
	return &Presence{conns: make(map[string]int)}
}

// Connect records a connection for peerID and reports whether the peer
// just came online.
func (p *Presence) Connect(peerID string) bool {
	if peerID == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conns[peerID]++
	return p.conns[peerID] == 1
}

// Disconnect releases one connection for peerID and reports whether it
// was the last one.
func (p *Presence) Disconnect(peerID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.conns[peerID]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(p.conns, peerID)
		return true
	}
	p.conns[peerID] = n - 1
	return false
}

// Online reports whether peerID has a live connection.
func (p *Presence) Online(peerID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conns[peerID] > 0
}

// Peers lists online peers in lexical order.
func (p *Presence) Peers() []string {
	p.mu.Lock()
	peers := make([]string, 0, len(p.conns))
	for id := range p.conns {
		peers = append(peers, id)
	}
	p.mu.Unlock()
	sort.Strings(peers)
	return peers
}

// Connections returns the total number of authenticated connections.
func (p *Presence) Connections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.conns {
		total += n
	}
	return total
}
