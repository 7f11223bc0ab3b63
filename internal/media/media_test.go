package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skorotkiewicz/gnunet-social/internal/multiplexer"
	"github.com/skorotkiewicz/gnunet-social/internal/storage"
)

type blockingStorage struct {
	started chan string
	release chan struct{}

	mu    sync.Mutex
	names []string
}

func (s *blockingStorage) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	s.started <- name
	<-s.release
	s.mu.Lock()
	s.names = append(s.names, name)
	s.mu.Unlock()
	return "mem://" + name, nil
}

type failingStorage struct{}

func (failingStorage) Save(context.Context, string, io.Reader) (string, error) {
	return "", errors.New("disk full")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func shutdown(t *testing.T, ing *Ingestor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ing.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestContentHash(t *testing.T) {
	got := ContentHash([]byte("abc"))
	want := "bddd813c634239723171ef3fee98579b94964e3bb1cb3e427262c8c068d52319"
	if got != want {
		t.Fatalf("unexpected hash %s", got)
	}
	if len(got) != HashLength {
		t.Fatalf("unexpected length %d", len(got))
	}
}

func TestParseHash(t *testing.T) {
	valid := ContentHash([]byte("x"))
	if got, err := ParseHash(" " + strings.ToUpper(valid) + " "); err != nil || got != valid {
		t.Fatalf("expected %s, got %s (%v)", valid, got, err)
	}
	for _, raw := range []string{"", "abc", strings.Repeat("z", HashLength)} {
		if _, err := ParseHash(raw); !errors.Is(err, ErrInvalidHash) {
			t.Fatalf("%q: expected ErrInvalidHash, got %v", raw, err)
		}
	}
}

func TestIngestorStoresPayloads(t *testing.T) {
	mux := multiplexer.New(multiplexer.WithMailboxCapacity(8))
	assets := storage.NewMemoryStorage("https://cdn.example.com")
	ing := NewIngestor(mux, assets, IngestorConfig{Workers: 2}, discardLogger())

	var hashes []string
	for i := 0; i < 3; i++ {
		hash, ok, err := ing.Submit("peerA", []byte(fmt.Sprintf("file-%d", i)))
		if err != nil || !ok {
			t.Fatalf("submit %d: ok=%v err=%v", i, ok, err)
		}
		hashes = append(hashes, hash)
	}

	if channels := mux.ChannelsForPeer("peerA", multiplexer.PortFileshare); len(channels) != 1 {
		t.Fatalf("expected one reused fileshare channel, got %d", len(channels))
	}

	shutdown(t, ing)

	for i, hash := range hashes {
		asset, ok := ing.Lookup(hash)
		if !ok {
			t.Fatalf("asset %d not indexed", i)
		}
		if asset.Location != "https://cdn.example.com/peerA/"+hash || asset.Peer != "peerA" {
			t.Fatalf("unexpected asset %+v", asset)
		}
		data, ok := assets.Get("peerA/" + hash)
		if !ok || string(data) != fmt.Sprintf("file-%d", i) {
			t.Fatalf("unexpected stored data %q", data)
		}
	}

	if stats := ing.Stats(); stats.Stored != 3 || stats.Failed != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if _, _, err := ing.Submit("peerA", []byte("late")); err == nil {
		t.Fatal("submit after shutdown should fail")
	}
}

func TestIngestorConcurrentSubmitsShareChannel(t *testing.T) {
	mux := multiplexer.New(multiplexer.WithMailboxCapacity(64))
	ing := NewIngestor(mux, storage.NewMemoryStorage(""), IngestorConfig{Workers: 2}, discardLogger())

	const submitters = 16
	var wg sync.WaitGroup
	for n := 0; n < submitters; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, _, err := ing.Submit("peerA", []byte(fmt.Sprintf("part-%d", n))); err != nil {
				t.Errorf("submit %d: %v", n, err)
			}
		}(n)
	}
	wg.Wait()

	if channels := mux.ChannelsForPeer("peerA", multiplexer.PortFileshare); len(channels) != 1 {
		t.Fatalf("expected a single fileshare channel, got %d", len(channels))
	}
	shutdown(t, ing)
}

func TestIngestorBackpressure(t *testing.T) {
	mux := multiplexer.New(multiplexer.WithMailboxCapacity(1))
	blocking := &blockingStorage{started: make(chan string, 4), release: make(chan struct{})}
	ing := NewIngestor(mux, blocking, IngestorConfig{Workers: 1}, discardLogger())

	if _, ok, _ := ing.Submit("peerA", []byte("one")); !ok {
		t.Fatal("first payload should be accepted")
	}
	select {
	case <-blocking.started:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never picked up the first payload")
	}

	if _, ok, _ := ing.Submit("peerA", []byte("two")); !ok {
		t.Fatal("second payload should fill the mailbox")
	}
	if _, ok, _ := ing.Submit("peerA", []byte("three")); ok {
		t.Fatal("third payload should be dropped")
	}
	if got := mux.Stats().Dropped; got != 1 {
		t.Fatalf("expected one dropped delivery, got %d", got)
	}

	close(blocking.release)
	shutdown(t, ing)

	if len(blocking.names) != 2 {
		t.Fatalf("expected two saved payloads, got %v", blocking.names)
	}
}

func TestIngestorCountsFailures(t *testing.T) {
	mux := multiplexer.New()
	ing := NewIngestor(mux, failingStorage{}, IngestorConfig{}, discardLogger())

	hash, ok, err := ing.Submit("peerA", []byte("x"))
	if err != nil || !ok {
		t.Fatalf("submit: ok=%v err=%v", ok, err)
	}
	shutdown(t, ing)

	if _, found := ing.Lookup(hash); found {
		t.Fatal("failed payload must not be indexed")
	}
	if stats := ing.Stats(); stats.Failed != 1 || stats.Stored != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestIngestorWithoutStorage(t *testing.T) {
	mux := multiplexer.New()
	ing := NewIngestor(mux, nil, IngestorConfig{}, discardLogger())

	if _, _, err := ing.Submit("peerA", []byte("x")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	shutdown(t, ing)

	if ing.Stats().Failed != 1 {
		t.Fatal("payload without storage should count as failed")
	}
}
