package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skorotkiewicz/gnunet-social/internal/multiplexer"
)

// AssetStorage persists a named blob and returns where it can be fetched.
type AssetStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// Fabric is the slice of the multiplexer the ingestor needs.
type Fabric interface {
	OpenPort(name string) *multiplexer.Port
	ClosePort(name string)
	EnsureChannel(peer, port string) multiplexer.Channel
	Send(channelID uint64, payload []byte) bool
}

// Asset describes a stored payload.
type Asset struct {
	Hash     string    `json:"hash"`
	Peer     string    `json:"peer_id"`
	Location string    `json:"location"`
	Size     int64     `json:"size"`
	StoredAt time.Time `json:"stored_at"`
}

// IngestorConfig controls the concurrency characteristics of the ingestor.
type IngestorConfig struct {
	Workers     int
	SaveTimeout time.Duration
}

// Ingestor drains the fileshare port with a pool of workers and saves each
// payload under <peer>/<hash>.
type Ingestor struct {
	fabric  Fabric
	port    *multiplexer.Port
	storage AssetStorage
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	assets map[string]Asset

	stored atomic.Uint64
	failed atomic.Uint64

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	// NowFunc overrides the clock used for StoredAt.
	NowFunc func() time.Time
}

var errIngestorClosed = errors.New("media ingestor closed")

// NewIngestor opens the fileshare port on fabric and starts the worker pool.
func NewIngestor(fabric Fabric, storage AssetStorage, cfg IngestorConfig, logger *slog.Logger) *Ingestor {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	ing := &Ingestor{
		fabric:  fabric,
		port:    fabric.OpenPort(multiplexer.PortFileshare),
		storage: storage,
		logger:  logger.With(slog.String("component", "media")),
		timeout: cfg.SaveTimeout,
		assets:  make(map[string]Asset),
		stop:    make(chan struct{}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	ing.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go ing.worker()
	}

	return ing
}

// Submit queues payload on the peer's fileshare channel, creating the
// channel on first use. It returns the content hash and whether the
// mailbox accepted the payload.
func (i *Ingestor) Submit(peer string, payload []byte) (string, bool, error) {
	select {
	case <-i.stop:
		return "", false, errIngestorClosed
	default:
	}

	hash := ContentHash(payload)

	channel := i.fabric.EnsureChannel(peer, multiplexer.PortFileshare)
	return hash, i.fabric.Send(channel.ID, payload), nil
}

// Lookup returns the stored asset with the given content hash.
func (i *Ingestor) Lookup(hash string) (Asset, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	asset, ok := i.assets[hash]
	return asset, ok
}

// IngestorStats is a snapshot of the ingestor's counters.
type IngestorStats struct {
	Stored  uint64
	Failed  uint64
	Pending int
}

// Stats reports counters and the fileshare mailbox depth.
func (i *Ingestor) Stats() IngestorStats {
	return IngestorStats{
		Stored:  i.stored.Load(),
		Failed:  i.failed.Load(),
		Pending: i.port.Pending(),
	}
}

// Shutdown closes the fileshare port and waits for the workers to finish
// the payloads already queued.
func (i *Ingestor) Shutdown(ctx context.Context) error {
	i.once.Do(func() {
		i.fabric.ClosePort(multiplexer.PortFileshare)
		close(i.stop)
	})

	done := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (i *Ingestor) worker() {
	defer i.wg.Done()

	for {
		select {
		case msg := <-i.port.Messages():
			i.handle(msg)
		case <-i.stop:
			i.drain()
			return
		}
	}
}

func (i *Ingestor) drain() {
	for {
		select {
		case msg := <-i.port.Messages():
			i.handle(msg)
		default:
			return
		}
	}
}

func (i *Ingestor) handle(msg multiplexer.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), i.timeout)
	defer cancel()

	asset, err := i.save(ctx, msg.Peer, msg.Data)
	if err != nil {
		i.failed.Add(1)
		i.logger.Error("media ingestion failed",
			slog.String("peer_id", msg.Peer),
			slog.Uint64("channel_id", msg.ChannelID),
			slog.Any("error", err),
		)
		return
	}

	i.stored.Add(1)
	i.logger.Debug("media stored",
		slog.String("peer_id", asset.Peer),
		slog.String("hash", asset.Hash),
		slog.Int64("size", asset.Size),
	)
}

func (i *Ingestor) save(ctx context.Context, peer string, payload []byte) (Asset, error) {
	if i.storage == nil {
		return Asset{}, ErrStorageUnavailable
	}

	hash := ContentHash(payload)
	location, err := i.storage.Save(ctx, path.Join(peer, hash), bytes.NewReader(payload))
	if err != nil {
		return Asset{}, err
	}

	asset := Asset{
		Hash:     hash,
		Peer:     peer,
		Location: location,
		Size:     int64(len(payload)),
		StoredAt: i.NowFunc(),
	}

	i.mu.Lock()
	i.assets[hash] = asset
	i.mu.Unlock()
	return asset, nil
}
