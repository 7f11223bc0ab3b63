package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/skorotkiewicz/gnunet-social/internal/repositories"
)

type peerListerStub []string

func (p peerListerStub) ConnectedPeers() []string { return p }

type activityStub struct {
	records []repositories.ActivityRecord
	err     error
	limit   int
}

func (a *activityStub) ListRecent(_ context.Context, limit int) ([]repositories.ActivityRecord, error) {
	a.limit = limit
	return a.records, a.err
}

func TestPeersHandlerList(t *testing.T) {
	rec := httptest.NewRecorder()
	PeersHandler{Peers: peerListerStub{"peerB", "peerA"}}.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/peers", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var body map[string][]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(body["peers"], []string{"peerA", "peerB"}) {
		t.Fatalf("unexpected peers %v", body["peers"])
	}
}

func TestActivityHandlerRecent(t *testing.T) {
	store := &activityStub{records: []repositories.ActivityRecord{
		{ID: "a", Kind: "post_created", PeerID: "peerA", Payload: json.RawMessage(`{}`), CreatedAt: time.Unix(10, 0).UTC()},
	}}
	handler := ActivityHandler{Activity: store}

	rec := httptest.NewRecorder()
	handler.Recent(rec, httptest.NewRequest(http.MethodGet, "/api/v1/activity?limit=5000", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if store.limit != repositories.MaxListLimit {
		t.Fatalf("limit should be capped, got %d", store.limit)
	}

	rec = httptest.NewRecorder()
	handler.Recent(rec, httptest.NewRequest(http.MethodGet, "/api/v1/activity", nil))
	if store.limit != defaultActivityLimit {
		t.Fatalf("expected default limit, got %d", store.limit)
	}

	rec = httptest.NewRecorder()
	handler.Recent(rec, httptest.NewRequest(http.MethodGet, "/api/v1/activity?limit=-1", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}

	store.err = errors.New("db down")
	rec = httptest.NewRecorder()
	handler.Recent(rec, httptest.NewRequest(http.MethodGet, "/api/v1/activity", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}

func TestRegisterRoutes(t *testing.T) {
	marker := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux := http.NewServeMux()
	RegisterRoutes(mux, Dependencies{
		Media:   &mediaServiceStub{accepted: true},
		Peers:   peerListerStub{},
		Gateway: marker,
		Metrics: marker,
	})

	do := func(method, path, peer string) int {
		req := httptest.NewRequest(method, path, nil)
		if peer != "" {
			req.Header.Set(PeerHeader, peer)
			req.Body = http.NoBody
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec.Code
	}

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/ws", http.StatusNoContent},
		{http.MethodGet, "/metrics", http.StatusNoContent},
		{http.MethodGet, "/api/v1/peers", http.StatusOK},
		{http.MethodGet, "/api/v1/activity", http.StatusNotFound},
	}
	for _, tc := range cases {
		if got := do(tc.method, tc.path, ""); got != tc.want {
			t.Errorf("%s %s: expected %d got %d", tc.method, tc.path, tc.want, got)
		}
	}

	if got := do(http.MethodPost, "/api/v1/media", "peerA"); got != http.StatusBadRequest {
		t.Fatalf("empty upload: expected 400 got %d", got)
	}
	if got := do(http.MethodPut, "/api/v1/media", "peerA"); got != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", got)
	}
}
