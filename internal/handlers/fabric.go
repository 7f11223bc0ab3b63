package handlers

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/skorotkiewicz/gnunet-social/internal/repositories"
)

const defaultActivityLimit = 50

// PeersHandler lists peers connected to the gateway.
type PeersHandler struct {
	Peers PeerLister
}

// List handles GET /api/v1/peers.
func (h PeersHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	peers := []string{}
	if h.Peers != nil {
		peers = append(peers, h.Peers.ConnectedPeers()...)
	}
	sort.Strings(peers)
	respondJSON(r.Context(), w, http.StatusOK, map[string][]string{"peers": peers})
}

// ActivityHandler reads the archived activity log.
type ActivityHandler struct {
	Activity ActivityLister
}

// Recent handles GET /api/v1/activity?limit=N.
func (h ActivityHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if h.Activity == nil {
		respondError(ctx, w, http.StatusNotFound, "activity archive disabled")
		return
	}

	limit := defaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(ctx, w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, repositories.MaxListLimit)
	}

	records, err := h.Activity.ListRecent(ctx, limit)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to load activity")
		return
	}
	if records == nil {
		records = []repositories.ActivityRecord{}
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"activity": records})
}
