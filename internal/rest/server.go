// Package rest implements the local REST API of the daemon.
package rest

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/veilnet/veild/api"
	"github.com/veilnet/veild/internal/reset"
	"github.com/veilnet/veild/internal/services"
	"github.com/veilnet/veild/internal/ui"
)

// StatusProvider returns the current system status.
type StatusProvider interface {
	Get() api.SystemStatus
}

// ServiceProvider returns the managed services and their last known status.
type ServiceProvider interface {
	Services() []services.Service
	Statuses() map[string]services.Status
}

// Backend holds what the API handlers operate on.
type Backend struct {
	Runner   *reset.Runner
	Status   StatusProvider
	Services ServiceProvider

	// NewContext returns a UI context for a client using the given language.
	NewContext func(lang string) *ui.Context

	// NewSession returns a factory reset reporting to the given UI handles.
	NewSession func(uictx *ui.Context, progress *ui.Progress) *reset.Session
}

// Server holds the internal state of the REST API server.
type Server struct {
	socketPath string
	backend    Backend
	operations *operations
}

// NewServer returns a REST API server object.
func NewServer(backend Backend, socketPath string) (*Server, error) {
	// Define the struct.
	server := Server{
		socketPath: socketPath,
		backend:    backend,
		operations: newOperations(),
	}

	// Create runtime path if missing.
	err := os.MkdirAll(filepath.Dir(socketPath), 0o700)
	if err != nil {
		return nil, err
	}

	return &server, nil
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	router := http.NewServeMux()

	router.HandleFunc("/", s.apiRoot)
	router.HandleFunc("/1.0", s.apiRoot10)
	router.HandleFunc("/1.0/operations/{id}", s.apiOperation)
	router.HandleFunc("/1.0/services", s.apiServices)
	router.HandleFunc("/1.0/services/{name}", s.apiServicesEndpoint)
	router.HandleFunc("/1.0/system/:factory-reset", s.apiSystemFactoryReset)
	router.HandleFunc("/1.0/system/status", s.apiSystemStatus)

	return router
}

// PruneOperations forgets the operations completed for longer than maxAge.
func (s *Server) PruneOperations(ctx context.Context, maxAge time.Duration) error {
	count := s.operations.prune(maxAge)
	if count > 0 {
		slog.DebugContext(ctx, "Pruned completed operations", "count", count)
	}

	return nil
}

// Serve starts the REST API server and stops it when ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	// Setup listener.
	_ = os.Remove(s.socketPath)
	lc := &net.ListenConfig{}

	listener, err := lc.Listen(ctx, "unix", s.socketPath)
	if err != nil {
		return err
	}

	// Setup server.
	server := &http.Server{
		Handler: s.Handler(),

		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	slog.InfoContext(ctx, "Serving the REST API", "socket", s.socketPath)

	err = server.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
