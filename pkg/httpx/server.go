// Package httpx provides HTTP server utilities and helpers for attendbench services.
package httpx

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server runs one named HTTP service. It binds its listener itself so the
// resolved address of a ":0" listen spec can be read back with Addr.
type Server struct {
	name   string
	server *http.Server
	logger *slog.Logger

	ready chan struct{}
	addr  net.Addr
}

// NewServer creates a server named name that will listen on addr.
func NewServer(name, addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		name: name,
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger.With("server", name),
		ready:  make(chan struct{}),
	}
}

// SetTLSConfig sets client-auth and version policy for StartTLS.
func (s *Server) SetTLSConfig(config *tls.Config) {
	s.server.TLSConfig = config
}

// Addr waits until the server is listening and returns the bound address.
// It returns nil if ctx is done first.
func (s *Server) Addr(ctx context.Context) net.Addr {
	select {
	case <-s.ready:
		return s.addr
	case <-ctx.Done():
		return nil
	}
}

// Start serves plain HTTP until Stop is called.
func (s *Server) Start() error {
	return s.serve("http", s.server.Serve)
}

// StartTLS serves HTTPS with the given certificate until Stop is called.
func (s *Server) StartTLS(certFile, keyFile string) error {
	return s.serve("https", func(ln net.Listener) error {
		return s.server.ServeTLS(ln, certFile, keyFile)
	})
}

func (s *Server) serve(scheme string, serve func(net.Listener) error) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("%s: listen on %q: %w", s.name, s.server.Addr, err)
	}
	defer ln.Close()

	s.addr = ln.Addr()
	s.logger.Info("listening", "scheme", scheme, "addr", s.addr.String())
	close(s.ready)

	if err := serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: serve %s: %w", s.name, scheme, err)
	}
	return nil
}

// Stop drains in-flight requests for at most timeout, then closes.
func (s *Server) Stop(timeout time.Duration) error {
	s.logger.Info("draining connections", "timeout", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s: shutdown: %w", s.name, err)
	}

	s.logger.Info("stopped")
	return nil
}

// ErrorResponse is the body of every error reply: {"error":"<msg>"}.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON writes a JSON response with the specified status code.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

// WriteError writes err's message as a JSON error response.
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteErrorMessage(w, status, err.Error())
}

// WriteErrorMessage writes a JSON error response with a custom message.
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	resp := ErrorResponse{
		Error: message,
	}
	if err := WriteJSON(w, status, resp); err != nil {
		slog.Error("failed to write error message", "error", err, "message", message)
	}
}
