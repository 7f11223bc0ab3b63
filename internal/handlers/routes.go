package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Database: deps.Database}
	mediaHandler := MediaHandler{Media: deps.Media, MaxBytes: deps.MaxUploadBytes}
	peers := PeersHandler{Peers: deps.Peers}
	activity := ActivityHandler{Activity: deps.Activity}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/v1/media", mediaHandler.Upload)
	mux.HandleFunc("/api/v1/media/{hash}", mediaHandler.Get)
	mux.HandleFunc("/api/v1/peers", peers.List)
	if deps.Activity != nil {
		mux.HandleFunc("/api/v1/activity", activity.Recent)
	}
	if deps.Gateway != nil {
		mux.Handle("/ws", deps.Gateway)
	}
	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics)
	}
}

// Dependencies aggregates collaborators required by HTTP handlers. Nil
// fields disable the routes that need them.
type Dependencies struct {
	Media          MediaService
	MaxUploadBytes int64
	Peers          PeerLister
	Activity       ActivityLister
	Database       Pinger
	Gateway        http.Handler
	Metrics        http.Handler
}
