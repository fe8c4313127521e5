package localserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
)

// Server serves an http.Handler over a Unix domain socket.
type Server struct {
	path       string
	httpServer *http.Server
	listener   net.Listener
}

// New creates a local server for the given socket path.
func New(socketPath string, handler http.Handler) *Server {
	return &Server{
		path: socketPath,
		httpServer: &http.Server{
			Handler: handler,
		},
	}
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// ListenAndServe creates the socket and serves until Shutdown. A stale
// socket file from an unclean exit is removed first.
func (s *Server) ListenAndServe() error {
	if err := removeStaleSocket(s.path); err != nil {
		return err
	}

	listener, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.path, err)
	}

	// Owner-only: the socket is the credential.
	if err := os.Chmod(s.path, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("chmod %s: %w", s.path, err)
	}

	s.listener = listener

	err = s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server, draining in-flight
// requests until the context expires, and removes the socket file.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if rmErr := os.Remove(s.path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	return err
}

// removeStaleSocket removes a leftover socket file. It refuses to
// remove anything that is not a socket.
func removeStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	return os.Remove(path)
}
