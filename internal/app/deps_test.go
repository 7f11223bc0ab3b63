package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skorotkiewicz/gnunet-social/internal/config"
)

type fakePool struct{}

func (fakePool) Acquire(context.Context) (*pgxpool.Conn, error) {
	return nil, errors.New("not implemented")
}

func (fakePool) Ping(context.Context) error { return nil }

func (fakePool) Close() {}

func testConfig() config.Config {
	return config.Config{
		MailboxCapacity: 16,
		EventBacklog:    16,
		NameZone:        "social",
		NameCacheSize:   16,
		NameCacheTTL:    time.Minute,
		IngestWorkers:   1,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func shutdownFabric(t *testing.T, f *fabric) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	f.closeClients()
	if err := f.shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestBuildDependencies(t *testing.T) {
	f, err := buildDependencies(context.Background(), testConfig(), nil, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer shutdownFabric(t, f)

	if f.routes.Media == nil {
		t.Fatal("expected media service to be configured")
	}
	if f.routes.Peers == nil || f.routes.Gateway == nil || f.routes.Metrics == nil {
		t.Fatal("expected gateway and metrics routes to be configured")
	}
	if f.routes.Activity != nil || f.routes.Database != nil || f.archiver != nil {
		t.Fatal("archive should be disabled without a pool")
	}
	if got := f.mux.Stats().Ports; got != 3 {
		t.Fatalf("expected social, chat and fileshare ports, got %d", got)
	}
}

func TestBuildDependenciesWithArchive(t *testing.T) {
	f, err := buildDependencies(context.Background(), testConfig(), fakePool{}, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer shutdownFabric(t, f)

	if f.archiver == nil || f.routes.Activity == nil {
		t.Fatal("expected activity archive to be configured")
	}
	if f.routes.Database == nil {
		t.Fatal("expected database health check")
	}
	if got := f.bus.Stats().Subscribers; got != 2 {
		t.Fatalf("expected relay and archive subscriptions, got %d", got)
	}
}

func TestBuildDependenciesWithObjectStore(t *testing.T) {
	cfg := testConfig()
	cfg.ObjectStore = config.ObjectStoreConfig{Bucket: "test-bucket", Endpoint: "http://localhost:9000", Region: "us-east-1"}

	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	f, err := buildDependencies(context.Background(), cfg, nil, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	shutdownFabric(t, f)
}

func TestArchiveDrainsUntilBusCloses(t *testing.T) {
	f, err := buildDependencies(context.Background(), testConfig(), fakePool{}, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.run(ctx) }()

	cancel()
	select {
	case <-done:
		t.Fatal("archive should keep running until the bus closes")
	case <-time.After(50 * time.Millisecond):
	}

	shutdownFabric(t, f)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not stop after shutdown")
	}
}
