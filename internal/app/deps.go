package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/skorotkiewicz/gnunet-social/internal/auth"
	"github.com/skorotkiewicz/gnunet-social/internal/config"
	"github.com/skorotkiewicz/gnunet-social/internal/db"
	"github.com/skorotkiewicz/gnunet-social/internal/eventbus"
	"github.com/skorotkiewicz/gnunet-social/internal/gateway"
	"github.com/skorotkiewicz/gnunet-social/internal/handlers"
	"github.com/skorotkiewicz/gnunet-social/internal/media"
	"github.com/skorotkiewicz/gnunet-social/internal/metrics"
	"github.com/skorotkiewicz/gnunet-social/internal/middleware"
	"github.com/skorotkiewicz/gnunet-social/internal/multiplexer"
	"github.com/skorotkiewicz/gnunet-social/internal/names"
	"github.com/skorotkiewicz/gnunet-social/internal/protocol"
	"github.com/skorotkiewicz/gnunet-social/internal/relay"
	"github.com/skorotkiewicz/gnunet-social/internal/repositories"
	"github.com/skorotkiewicz/gnunet-social/internal/router"
	"github.com/skorotkiewicz/gnunet-social/internal/storage"
	"github.com/skorotkiewicz/gnunet-social/internal/store"
)

// fabric is one node's wired set of components.
type fabric struct {
	logger *slog.Logger

	bus      *eventbus.Bus
	mux      *multiplexer.Multiplexer
	names    *names.Registry
	router   *router.Router
	gateway  *gateway.Gateway
	link     *relay.Link
	ingestor *media.Ingestor
	archiver *repositories.Archiver
	activity *repositories.PostgresActivityRepository
	metrics  *metrics.Registry
	routes   handlers.Dependencies

	linkEvents    *eventbus.Subscription
	archiveEvents *eventbus.Subscription
}

// buildDependencies wires the fabric. A nil pool disables the activity
// archive.
func buildDependencies(ctx context.Context, cfg config.Config, pool db.Pool, logger *slog.Logger) (*fabric, error) {
	if logger == nil {
		logger = slog.Default()
	}

	assets, err := newAssetStorage(ctx, cfg.ObjectStore)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New(eventbus.WithBacklog(cfg.EventBacklog), eventbus.WithLogger(logger))
	mux := multiplexer.New(multiplexer.WithMailboxCapacity(cfg.MailboxCapacity), multiplexer.WithLogger(logger))

	registry := names.NewRegistry(cfg.NameZone)
	resolver := names.NewCachingResolver(registry, cfg.NameCacheSize, cfg.NameCacheTTL)
	rt := router.New(store.New(), bus, mux, router.WithNames(registry, resolver))

	f := &fabric{
		logger:     logger,
		bus:        bus,
		mux:        mux,
		names:      registry,
		router:     rt,
		gateway:    gateway.New(rt, bus, auth.NewPresence(), gateway.WithLogger(logger)),
		linkEvents: bus.Subscribe(),
	}
	f.link = relay.NewLink(mux, f.observeRelay, logger)
	f.ingestor = media.NewIngestor(mux, assets, media.IngestorConfig{Workers: cfg.IngestWorkers}, logger)

	sources := metrics.Sources{
		Multiplexer: mux.Stats,
		Bus:         bus.Stats,
		Gateway:     f.gateway.Stats,
		Ingestor:    f.ingestor.Stats,
		Relay:       f.link.Stats,
	}

	f.routes = handlers.Dependencies{
		Media:          f.ingestor,
		MaxUploadBytes: gateway.MaxFrameBytes,
		Peers:          f.gateway,
		Gateway:        f.gateway.Handler(),
	}

	if pool != nil {
		f.activity = repositories.NewPostgresActivityRepository(pool)
		f.archiver = repositories.NewArchiver(f.activity, logger)
		f.archiveEvents = bus.Subscribe()
		sources.Archiver = f.archiver.Stats
		f.routes.Activity = f.activity
		f.routes.Database = pool
	}

	f.metrics = metrics.New(sources)
	f.routes.Metrics = f.metrics.Handler()

	return f, nil
}

func newAssetStorage(ctx context.Context, cfg config.ObjectStoreConfig) (media.AssetStorage, error) {
	if !cfg.Enabled() {
		return storage.NewMemoryStorage(cfg.PublicBaseURL), nil
	}
	s3, err := storage.NewS3Storage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("configure object storage: %w", err)
	}
	return s3, nil
}

// handler returns the node's HTTP surface.
func (f *fabric) handler() http.Handler {
	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, f.routes)
	return middleware.RequestLogger(f.logger)(mux)
}

func (f *fabric) observeRelay(peer string, r protocol.Relay) {
	f.logger.Debug("relay received", slog.String("peer_id", peer), slog.String("relay", r.RelayKind()))
}

// run drives the background consumers. Presence tracking and relay
// draining stop with ctx; the archive drains until the bus closes.
func (f *fabric) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return f.link.Track(gctx, f.linkEvents) })
	g.Go(func() error { return f.link.Drain(gctx) })
	if f.archiver != nil {
		g.Go(func() error { return f.archiver.Run(context.WithoutCancel(gctx), f.archiveEvents) })
	}
	return g.Wait()
}

// closeClients disconnects every websocket client.
func (f *fabric) closeClients() {
	if err := f.gateway.Close(); err != nil {
		f.logger.Warn("close websocket clients", "error", err)
	}
}

// shutdown finishes queued media, closes the relay ports and the bus.
// Websocket clients are closed separately when the HTTP server stops.
func (f *fabric) shutdown(ctx context.Context) error {
	err := f.ingestor.Shutdown(ctx)
	f.link.Close()
	f.bus.Close()
	return err
}
