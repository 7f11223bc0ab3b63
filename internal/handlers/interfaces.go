package handlers

import (
	"context"

	"github.com/skorotkiewicz/gnunet-social/internal/media"
	"github.com/skorotkiewicz/gnunet-social/internal/repositories"
)

// MediaService accepts uploads onto the fileshare port and serves the
// resulting asset index.
type MediaService interface {
	Submit(peer string, payload []byte) (hash string, accepted bool, err error)
	Lookup(hash string) (media.Asset, bool)
}

// PeerLister reports peers with a live gateway connection.
type PeerLister interface {
	ConnectedPeers() []string
}

// ActivityLister reads recently archived events.
type ActivityLister interface {
	ListRecent(ctx context.Context, limit int) ([]repositories.ActivityRecord, error)
}

// Pinger checks a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
