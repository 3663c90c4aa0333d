package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Server wraps an *http.Server to provide start/shutdown lifecycle for the
// control API.
type Server struct {
	mu         sync.Mutex
	httpServer *http.Server
}

const (
	maxHeaderBytes    = 1 << 20 // 1 MB
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 15 * time.Second
	idleTimeout       = 60 * time.Second
	defaultPort       = "8080"
)

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		MaxHeaderBytes:    maxHeaderBytes,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// NormalizeAddr accepts "8080", ":8080" or "host:8080". Empty means the default port.
func NormalizeAddr(port string) string {
	port = strings.TrimSpace(port)
	switch {
	case port == "":
		return ":" + defaultPort
	case strings.Contains(port, ":"):
		return port
	default:
		return ":" + port
	}
}

// Run listens on port and serves handler until Shutdown. A clean shutdown
// returns nil.
func (s *Server) Run(port string, handler http.Handler) error {
	l, err := net.Listen("tcp", NormalizeAddr(port))
	if err != nil {
		return err
	}
	return s.Serve(l, handler)
}

// Serve serves handler on an existing listener until Shutdown.
func (s *Server) Serve(l net.Listener, handler http.Handler) error {
	srv := newHTTPServer(l.Addr().String(), handler)
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server, allowing in-flight requests to complete.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
