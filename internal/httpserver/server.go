package httpserver

import (
	"fmt"
	"net/http"
	"time"
)

// Server wraps the http.Server with sensible defaults.
type Server struct {
	inner           *http.Server
	shutdownTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// New constructs a server listening on the provided port. Write deadlines
// on upgraded websocket connections are managed by the gateway per frame.
func New(port int, handler http.Handler, opts ...Option) *Server {
	s := &Server{
		inner: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       time.Minute,
		},
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.inner.Addr
}

// OnShutdown registers f to run when shutdown starts. Hijacked connections
// are not tracked by http.Server, so their owners close them here.
func (s *Server) OnShutdown(f func()) {
	s.inner.RegisterOnShutdown(f)
}
