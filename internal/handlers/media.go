package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/skorotkiewicz/gnunet-social/internal/logging"
	"github.com/skorotkiewicz/gnunet-social/internal/media"
)

// PeerHeader names the uploading peer on media requests.
const PeerHeader = "X-Peer-ID"

// DefaultMaxUploadBytes caps a single media payload.
const DefaultMaxUploadBytes = 1 << 20

// MediaHandler exposes the fileshare port over HTTP.
type MediaHandler struct {
	Media    MediaService
	MaxBytes int64
}

type uploadResponse struct {
	Hash string `json:"hash"`
}

// Upload handles POST /api/v1/media.
func (h MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Media == nil {
		respondError(ctx, w, http.StatusServiceUnavailable, "media service unavailable")
		return
	}

	peer := strings.TrimSpace(r.Header.Get(PeerHeader))
	if peer == "" {
		respondError(ctx, w, http.StatusBadRequest, PeerHeader+" header is required")
		return
	}
	ctx = logging.WithPeerID(ctx, peer)

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes()))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(ctx, w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		logger.Warn("read media payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(payload) == 0 {
		respondError(ctx, w, http.StatusBadRequest, "payload is empty")
		return
	}

	hash, accepted, err := h.Media.Submit(peer, payload)
	if err != nil {
		logger.Error("submit media payload", "peer_id", peer, "error", err)
		respondError(ctx, w, http.StatusServiceUnavailable, "media ingestion unavailable")
		return
	}
	if !accepted {
		respondError(ctx, w, http.StatusServiceUnavailable, "fileshare mailbox full")
		return
	}

	respondJSON(ctx, w, http.StatusAccepted, uploadResponse{Hash: hash})
}

// Get handles GET /api/v1/media/{hash}.
func (h MediaHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if h.Media == nil {
		respondError(ctx, w, http.StatusServiceUnavailable, "media service unavailable")
		return
	}

	hash, err := media.ParseHash(r.PathValue("hash"))
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid content hash")
		return
	}

	asset, ok := h.Media.Lookup(hash)
	if !ok {
		respondError(ctx, w, http.StatusNotFound, "asset not found")
		return
	}
	respondJSON(ctx, w, http.StatusOK, asset)
}

func (h MediaHandler) maxBytes() int64 {
	if h.MaxBytes > 0 {
		return h.MaxBytes
	}
	return DefaultMaxUploadBytes
}
